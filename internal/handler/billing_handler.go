package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"pdf-chat-server/internal/domain"
)

const maxWebhookBodyBytes = int64(65536)

// BillingHandler starts checkouts and receives provider webhooks.
type BillingHandler struct {
	billing    domain.BillingService
	parser     domain.BillingEventParser
	reconciler domain.Reconciler
	logger     domain.Logger
}

func NewBillingHandler(billing domain.BillingService, parser domain.BillingEventParser, reconciler domain.Reconciler, logger domain.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, parser: parser, reconciler: reconciler, logger: logger}
}

type checkoutRequest struct {
	PriceID string `json:"priceId"`
}

// CreateCheckoutSession starts a subscription checkout for the given price
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PriceID == "" {
		writeError(w, http.StatusBadRequest, "priceId is required")
		return
	}

	sess, err := h.billing.Checkout(r.Context(), userID, req.PriceID)
	if err != nil {
		respondError(w, h.logger, err, "Failed to create checkout session", "userId", userID)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// CreatePortalSession opens the billing portal for an existing customer
func (h *BillingHandler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	url, err := h.billing.Portal(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, err, "Failed to create portal session", "userId", userID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// StripeWebhook verifies and reconciles a webhook delivery. Anything other
// than a 2xx makes the provider redeliver, so only infrastructure failures
// answer 500.
func (h *BillingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	event, err := h.parser.Parse(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			h.logger.Warn("Rejected webhook", "error", err)
		}
		respondError(w, h.logger, err, "Failed to parse webhook")
		return
	}

	outcome, err := h.reconciler.ApplyBillingEvent(r.Context(), *event)
	if err != nil {
		respondError(w, h.logger, err, "Failed to reconcile webhook", "eventId", event.ID, "type", event.Type)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}
