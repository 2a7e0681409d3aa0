package handler

import (
	"net/http"
	"time"

	"pdf-chat-server/internal/domain"
)

// AuthHandler serves the signed-in user's account and usage.
type AuthHandler struct {
	users  domain.UserRepository
	usage  domain.UsageService
	logger domain.Logger
}

// NewAuthHandler creates a new account handler
func NewAuthHandler(users domain.UserRepository, usage domain.UsageService, logger domain.Logger) *AuthHandler {
	return &AuthHandler{users: users, usage: usage, logger: logger}
}

type profileResponse struct {
	ID                 string                    `json:"id"`
	Email              string                    `json:"email"`
	Name               string                    `json:"name,omitempty"`
	Plan               domain.Plan               `json:"plan"`
	NominalPlan        domain.Plan               `json:"nominalPlan"`
	SubscriptionStatus domain.SubscriptionStatus `json:"subscriptionStatus"`
	CurrentPeriodEnd   *time.Time                `json:"currentPeriodEnd,omitempty"`
	HasBillingAccount  bool                      `json:"hasBillingAccount"`
	CreatedAt          time.Time                 `json:"createdAt"`
}

// GetProfile returns the current user's account with the plan currently in effect
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, err, "Failed to load profile", "userId", userID)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:                 user.ID,
		Email:              user.Email,
		Name:               user.Name,
		Plan:               domain.EffectivePlan(user, time.Now()),
		NominalPlan:        user.Plan,
		SubscriptionStatus: user.SubscriptionStatus,
		CurrentPeriodEnd:   user.CurrentPeriodEnd,
		HasBillingAccount:  user.BillingCustomerID != nil,
		CreatedAt:          user.CreatedAt,
	})
}

// GetUsage returns document and message usage against the effective plan
func (h *AuthHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}

	stats, err := h.usage.GetUserUsageStats(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, err, "Failed to load usage", "userId", userID)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
