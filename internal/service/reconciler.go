package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdf-chat-server/internal/domain"
	"pdf-chat-server/internal/metrics"
)

// Reconciler applies verified billing events to user subscription state.
// Each event is applied at most once, keyed by its provider event id.
type Reconciler struct {
	users   domain.UserRepository
	billing domain.BillingRepository
	prices  domain.PriceCatalog
	metrics *metrics.Metrics
	logger  domain.Logger
	now     func() time.Time
}

// NewReconciler creates the subscription event reconciler.
func NewReconciler(
	users domain.UserRepository,
	billing domain.BillingRepository,
	prices domain.PriceCatalog,
	m *metrics.Metrics,
	logger domain.Logger,
) *Reconciler {
	return &Reconciler{
		users:   users,
		billing: billing,
		prices:  prices,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// ApplyBillingEvent reconciles one event. Duplicates and events that do not
// concern a known subscriber are reported through the outcome, not as errors.
func (r *Reconciler) ApplyBillingEvent(ctx context.Context, event domain.BillingEvent) (domain.ApplyOutcome, error) {
	if event.ID == "" || event.Type == "" {
		return "", domain.ErrInvalidBillingEvent
	}

	outcome, err := r.apply(ctx, event)
	if err != nil {
		r.metrics.BillingEvent(event.Type, "error")
		r.logger.Error("Failed to apply billing event", err, "eventId", event.ID, "type", event.Type)
		return "", err
	}
	r.metrics.BillingEvent(event.Type, string(outcome))
	r.logger.Info("Billing event handled", "eventId", event.ID, "type", event.Type, "outcome", outcome)
	return outcome, nil
}

func (r *Reconciler) apply(ctx context.Context, event domain.BillingEvent) (domain.ApplyOutcome, error) {
	now := r.now()

	var (
		user   *domain.User
		update domain.SubscriptionUpdate
		err    error
	)
	switch event.Type {
	case domain.EventCheckoutCompleted:
		if event.Mode != "" && event.Mode != domain.CheckoutModeSubscription {
			return domain.OutcomeIgnored, nil
		}
		user, err = r.resolveCheckoutUser(ctx, event, now)
		if err != nil || user == nil {
			return ignoreMissingUser(err)
		}
		plan := r.prices.PlanFor(event.PriceID)
		if plan == domain.PlanFree {
			r.logger.Warn("Checkout completed with unknown price", "eventId", event.ID, "priceId", event.PriceID)
		}
		update = domain.SubscriptionUpdate{
			Plan:               &plan,
			SubscriptionStatus: statusPtr(domain.SubscriptionStatusActive),
			CurrentPeriodEnd:   event.CurrentPeriodEnd,
		}

	case domain.EventSubscriptionUpdated:
		user, err = r.users.GetByBillingCustomerID(ctx, event.CustomerID)
		if err != nil {
			return ignoreMissingUser(err)
		}
		plan := domain.PlanFree
		if strings.EqualFold(strings.TrimSpace(event.Status), "active") {
			plan = r.prices.PlanFor(event.PriceID)
		}
		update = domain.SubscriptionUpdate{
			Plan:               &plan,
			SubscriptionStatus: statusPtr(domain.ParseSubscriptionStatus(event.Status)),
			CurrentPeriodEnd:   event.CurrentPeriodEnd,
		}

	case domain.EventSubscriptionDeleted:
		user, err = r.users.GetByBillingCustomerID(ctx, event.CustomerID)
		if err != nil {
			return ignoreMissingUser(err)
		}
		plan := domain.PlanFree
		update = domain.SubscriptionUpdate{
			Plan:               &plan,
			SubscriptionStatus: statusPtr(domain.SubscriptionStatusCanceled),
		}

	case domain.EventInvoicePaymentFailed:
		user, err = r.users.GetByBillingCustomerID(ctx, event.CustomerID)
		if err != nil {
			return ignoreMissingUser(err)
		}
		update = domain.SubscriptionUpdate{
			SubscriptionStatus: statusPtr(domain.SubscriptionStatusPastDue),
		}

	default:
		return domain.OutcomeIgnored, nil
	}

	// Subscription and price ids are only overwritten when the event names them.
	if event.Type == domain.EventCheckoutCompleted || event.Type == domain.EventSubscriptionUpdated {
		update.BillingSubscriptionID = nonEmpty(event.SubscriptionID)
		update.BillingPriceID = nonEmpty(event.PriceID)
	}

	record := &domain.SubscriptionEvent{
		ID:             uuid.NewString(),
		BillingEventID: event.ID,
		EventType:      event.Type,
		SubscriptionID: event.SubscriptionID,
		CustomerID:     event.CustomerID,
		PriceID:        event.PriceID,
		Status:         string(*update.SubscriptionStatus),
		UserID:         user.ID,
		CreatedAt:      now,
	}

	err = r.billing.ApplySubscriptionEvent(ctx, record, &update, now)
	switch {
	case errors.Is(err, domain.ErrDuplicateEvent):
		return domain.OutcomeDuplicate, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return domain.OutcomeIgnored, nil
	case err != nil:
		return "", fmt.Errorf("apply subscription event: %w", err)
	}
	return domain.OutcomeApplied, nil
}

// resolveCheckoutUser finds the buyer by billing customer, then by email,
// creating the account when the email is new. A nil user means the event
// carries nothing to identify anyone.
func (r *Reconciler) resolveCheckoutUser(ctx context.Context, event domain.BillingEvent, now time.Time) (*domain.User, error) {
	if event.CustomerID != "" {
		user, err := r.users.GetByBillingCustomerID(ctx, event.CustomerID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("lookup by customer: %w", err)
		}
	}
	if event.CustomerEmail == "" {
		return nil, nil
	}

	user, err := r.users.EnsureByEmail(ctx, event.CustomerEmail, event.CustomerName, now)
	if err != nil {
		return nil, fmt.Errorf("ensure user by email: %w", err)
	}
	if event.CustomerID != "" {
		attached, err := r.users.AttachBillingCustomer(ctx, user.ID, event.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("attach billing customer: %w", err)
		}
		if attached != event.CustomerID {
			r.logger.Warn("User already linked to another billing customer",
				"userId", user.ID, "existing", attached, "eventCustomer", event.CustomerID)
		}
		user.BillingCustomerID = &attached
	}
	return user, nil
}

// ListEvents returns the audit trail for a user.
func (r *Reconciler) ListEvents(ctx context.Context, userID string) ([]*domain.SubscriptionEvent, error) {
	events, err := r.billing.ListSubscriptionEvents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscription events: %w", err)
	}
	return events, nil
}

func ignoreMissingUser(err error) (domain.ApplyOutcome, error) {
	if err == nil || errors.Is(err, domain.ErrUserNotFound) {
		return domain.OutcomeIgnored, nil
	}
	return "", fmt.Errorf("resolve user: %w", err)
}

func statusPtr(s domain.SubscriptionStatus) *domain.SubscriptionStatus {
	return &s
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
