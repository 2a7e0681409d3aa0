package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pdf-chat-server/internal/domain"
	apperrors "pdf-chat-server/pkg/errors"
)

type contextKey string

const (
	userIDContextKey   contextKey = "userID"
	identityContextKey contextKey = "identity"
)

// GetUserIDFromContext extracts the authenticated account id from request context
func GetUserIDFromContext(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(userIDContextKey).(string)
	return id, ok && id != ""
}

// GetIdentityFromContext extracts the auth provider identity from request context
func GetIdentityFromContext(r *http.Request) (*domain.SupabaseUser, bool) {
	user, ok := r.Context().Value(identityContextKey).(*domain.SupabaseUser)
	return user, ok
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type limitResponse struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	Reason       string `json:"reason"`
	CurrentCount int    `json:"currentCount"`
	MaxAllowed   int    `json:"maxAllowed"`
}

func writeLimitError(w http.ResponseWriter, limit *domain.LimitError) {
	title := "Message limit exceeded"
	if limit.Resource == domain.ResourceDocuments {
		title = "Upload limit exceeded"
	}
	appErr := apperrors.NewLimitError(title, limit.Message, limit)
	writeJSON(w, appErr.StatusCode, limitResponse{
		Error:        appErr.Message,
		Message:      appErr.Details,
		Reason:       limit.Reason,
		CurrentCount: limit.CurrentCount,
		MaxAllowed:   limit.MaxAllowed,
	})
}

// respondError maps a use case error onto an HTTP response. Server-side
// failures are logged; their details never reach the client.
func respondError(w http.ResponseWriter, logger domain.Logger, err error, msg string, fields ...interface{}) {
	var limit *domain.LimitError
	if errors.As(err, &limit) {
		writeLimitError(w, limit)
		return
	}

	appErr := toAppError(err)
	if apperrors.IsType(appErr, apperrors.ErrorTypeInternal) || apperrors.IsType(appErr, apperrors.ErrorTypeNetwork) {
		logger.Error(msg, err, fields...)
	}
	writeError(w, apperrors.GetStatusCode(appErr), appErr.Message)
}

func toAppError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}

	var validation *domain.ValidationError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &validation):
		return apperrors.NewValidationError(validation.Error())
	case errors.As(err, &maxBytes), errors.Is(err, domain.ErrFileTooLarge):
		return apperrors.NewTooLargeError("File too large")
	case errors.Is(err, domain.ErrInvalidFile):
		return apperrors.NewValidationError("Invalid file. Only readable PDF files are allowed")
	case errors.Is(err, domain.ErrUnknownPrice):
		return apperrors.NewValidationError("Unknown price")
	case errors.Is(err, domain.ErrInvalidSignature), errors.Is(err, domain.ErrInvalidBillingEvent):
		return apperrors.NewValidationError("Invalid webhook payload")
	case errors.Is(err, domain.ErrInvalidToken):
		return apperrors.NewUnauthorizedError("Invalid token")
	case errors.Is(err, domain.ErrAccessDenied):
		return apperrors.NewForbiddenError("Access denied")
	case errors.Is(err, domain.ErrDocumentNotFound):
		return apperrors.NewNotFoundError("Document not found")
	case errors.Is(err, domain.ErrChatNotFound):
		return apperrors.NewNotFoundError("Chat not found")
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NewNotFoundError("User not found")
	case errors.Is(err, domain.ErrNoBillingCustomer):
		return apperrors.NewConflictError("No billing account yet. Start a subscription first")
	case errors.Is(err, domain.ErrIndexingFailed):
		return apperrors.NewNetworkError("Document could not be processed, please try again", err)
	default:
		return apperrors.NewInternalError("Internal server error", err)
	}
}
