package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"pdf-chat-server/internal/domain"
)

// Provider creates Stripe customers, checkout sessions and portal sessions.
type Provider struct {
	api    *client.API
	appURL string
	logger domain.Logger
}

// NewProvider builds a Stripe client bound to secretKey. appURL is where
// checkout and the billing portal send the user back to.
func NewProvider(secretKey, appURL string, logger domain.Logger) *Provider {
	return &Provider{
		api:    client.New(secretKey, nil),
		appURL: strings.TrimRight(appURL, "/"),
		logger: logger,
	}
}

// FetchSubscription satisfies SubscriptionFetcher.
func (p *Provider) FetchSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return p.api.Subscriptions.Get(id, params)
}

func (p *Provider) CreateCustomer(ctx context.Context, user *domain.User) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Metadata: map[string]string{
			"user_id": user.ID,
		},
	}
	if user.Name != "" {
		params.Name = stripe.String(user.Name)
	}
	params.Context = ctx

	cust, err := p.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	p.logger.Info("Stripe customer created", "userId", user.ID, "customerId", cust.ID)
	return cust.ID, nil
}

func (p *Provider) CreateCheckoutSession(ctx context.Context, customerID, userID, priceID string) (*domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(customerID),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.appURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(p.appURL + "/billing/cancel"),
	}
	params.Context = ctx

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &domain.CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

func (p *Provider) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(p.appURL + "/settings/billing"),
	}
	params.Context = ctx

	sess, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}
