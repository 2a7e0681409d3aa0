package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrChatNotFound        = errors.New("chat not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidFile         = errors.New("invalid file")
	ErrFileTooLarge        = errors.New("file too large")
	ErrIndexingFailed      = errors.New("document indexing failed")
	ErrInvalidBillingEvent = errors.New("invalid billing event")
	ErrDuplicateEvent      = errors.New("billing event already applied")
	ErrUnknownPrice        = errors.New("unknown price")
	ErrNoBillingCustomer   = errors.New("user has no billing customer")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
)

// Limited resources.
const (
	ResourceDocuments = "documents"
	ResourceMessages  = "messages"
)

// LimitError is returned by use cases that refuse an action because a quota
// is used up. It is a normal outcome, not an infrastructure failure.
type LimitError struct {
	Resource     string
	CurrentCount int
	MaxAllowed   int
	Message      string
	Reason       string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit reached (%d/%d)", e.Resource, e.CurrentCount, e.MaxAllowed)
}

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
