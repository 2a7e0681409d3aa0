package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"

	"pdf-chat-server/internal/domain"
)

// AdminHandler exposes admin-only endpoints protected by X-Admin-Secret.
// These endpoints are intended for internal use (support tooling) and should not be exposed publicly without additional safeguards.
type AdminHandler struct {
	secret     string
	reconciler domain.Reconciler
	logger     domain.Logger
}

// NewAdminHandler creates the admin handler. An empty secret disables it.
func NewAdminHandler(secret string, reconciler domain.Reconciler, logger domain.Logger) *AdminHandler {
	return &AdminHandler{secret: secret, reconciler: reconciler, logger: logger}
}

func (h *AdminHandler) authorized(r *http.Request) bool {
	given := r.Header.Get("X-Admin-Secret")
	return h.secret != "" && given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) == 1
}

// ListSubscriptionEvents returns the billing audit trail of a user.
func (h *AdminHandler) ListSubscriptionEvents(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	userID := mux.Vars(r)["id"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "User id is required")
		return
	}

	events, err := h.reconciler.ListEvents(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, err, "Failed to list subscription events", "userId", userID)
		return
	}
	if events == nil {
		events = []*domain.SubscriptionEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
