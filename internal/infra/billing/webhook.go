package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"pdf-chat-server/internal/domain"
)

// SubscriptionFetcher loads a subscription that a checkout session only
// references by id.
type SubscriptionFetcher func(ctx context.Context, id string) (*stripe.Subscription, error)

// WebhookParser verifies Stripe webhook deliveries and turns them into
// provider-neutral billing events.
type WebhookParser struct {
	secret       string
	subscription SubscriptionFetcher
	logger       domain.Logger
}

func NewWebhookParser(secret string, fetch SubscriptionFetcher, logger domain.Logger) *WebhookParser {
	return &WebhookParser{secret: secret, subscription: fetch, logger: logger}
}

// Parse checks the Stripe-Signature header against the raw payload and
// normalizes the event. Types the reconciler does not handle come back with
// only ID and Type set.
func (p *WebhookParser) Parse(ctx context.Context, payload []byte, signature string) (*domain.BillingEvent, error) {
	if p.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", domain.ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	out := &domain.BillingEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case domain.EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %v", domain.ErrInvalidBillingEvent, err)
		}
		if err := p.fromCheckout(ctx, out, &sess); err != nil {
			return nil, err
		}

	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: subscription: %v", domain.ErrInvalidBillingEvent, err)
		}
		fromSubscription(out, &sub)

	case domain.EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: invoice: %v", domain.ErrInvalidBillingEvent, err)
		}
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}
	}
	return out, nil
}

func (p *WebhookParser) fromCheckout(ctx context.Context, out *domain.BillingEvent, sess *stripe.CheckoutSession) error {
	out.Mode = string(sess.Mode)
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	out.CustomerEmail = sess.CustomerEmail
	if sess.CustomerDetails != nil {
		if sess.CustomerDetails.Email != "" {
			out.CustomerEmail = sess.CustomerDetails.Email
		}
		out.CustomerName = sess.CustomerDetails.Name
	}
	if sess.Subscription == nil || sess.Subscription.ID == "" {
		return nil
	}

	sub := sess.Subscription
	if sub.Items == nil && p.subscription != nil {
		fetched, err := p.subscription(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("fetch subscription %s: %w", sub.ID, err)
		}
		sub = fetched
	}
	out.SubscriptionID = sub.ID
	out.PriceID = priceOf(sub)
	out.CurrentPeriodEnd = periodEnd(sub)
	return nil
}

func fromSubscription(out *domain.BillingEvent, sub *stripe.Subscription) {
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	out.SubscriptionID = sub.ID
	out.PriceID = priceOf(sub)
	out.Status = string(sub.Status)
	out.CurrentPeriodEnd = periodEnd(sub)
}

func priceOf(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	item := sub.Items.Data[0]
	if item.Price == nil {
		return ""
	}
	return item.Price.ID
}

func periodEnd(sub *stripe.Subscription) *time.Time {
	if sub.CurrentPeriodEnd == 0 {
		return nil
	}
	t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	return &t
}
