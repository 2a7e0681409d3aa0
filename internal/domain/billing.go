package domain

import (
	"context"
	"time"
)

// Billing event types handled by the reconciler. Values match Stripe's.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// CheckoutModeSubscription is the only checkout mode that changes a plan.
const CheckoutModeSubscription = "subscription"

// BillingEvent is a webhook event that was already signature-verified and
// normalized by the provider adapter.
type BillingEvent struct {
	ID               string
	Type             string
	CustomerID       string
	CustomerEmail    string
	CustomerName     string
	Mode             string
	SubscriptionID   string
	PriceID          string
	Status           string
	CurrentPeriodEnd *time.Time
}

// SubscriptionEvent is the append-only audit record of an applied event.
type SubscriptionEvent struct {
	ID             string    `json:"id"`
	BillingEventID string    `json:"billingEventId"`
	EventType      string    `json:"eventType"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
	CustomerID     string    `json:"customerId,omitempty"`
	PriceID        string    `json:"priceId,omitempty"`
	Status         string    `json:"status,omitempty"`
	UserID         string    `json:"userId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SubscriptionUpdate lists the user fields an event sets. Nil fields are left
// as they are, so concurrent events only overwrite what they carry.
type SubscriptionUpdate struct {
	Plan                  *Plan
	SubscriptionStatus    *SubscriptionStatus
	BillingSubscriptionID *string
	BillingPriceID        *string
	CurrentPeriodEnd      *time.Time
}

// ApplyOutcome tells the caller what happened to an event.
type ApplyOutcome string

const (
	OutcomeApplied   ApplyOutcome = "applied"
	OutcomeDuplicate ApplyOutcome = "duplicate"
	OutcomeIgnored   ApplyOutcome = "ignored"
)

// BillingRepository persists subscription state changes.
type BillingRepository interface {
	// ApplySubscriptionEvent inserts the audit record and applies update to
	// the user in one transaction. If record.BillingEventID was already
	// recorded nothing is written and ErrDuplicateEvent is returned.
	ApplySubscriptionEvent(ctx context.Context, record *SubscriptionEvent, update *SubscriptionUpdate, now time.Time) error

	ListSubscriptionEvents(ctx context.Context, userID string) ([]*SubscriptionEvent, error)
}

// Reconciler applies billing provider events to user accounts.
type Reconciler interface {
	ApplyBillingEvent(ctx context.Context, event BillingEvent) (ApplyOutcome, error)
	ListEvents(ctx context.Context, userID string) ([]*SubscriptionEvent, error)
}

// BillingProvider is the checkout side of the billing integration.
type BillingProvider interface {
	CreateCustomer(ctx context.Context, user *User) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, userID, priceID string) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

// CheckoutSession is what the client needs to redirect to checkout.
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// BillingService is the user-facing billing use case.
type BillingService interface {
	Checkout(ctx context.Context, userID, priceID string) (*CheckoutSession, error)
	Portal(ctx context.Context, userID string) (string, error)
}

// BillingEventParser verifies a raw webhook delivery and normalizes it.
// Signature failures wrap ErrInvalidSignature.
type BillingEventParser interface {
	Parse(ctx context.Context, payload []byte, signature string) (*BillingEvent, error)
}
