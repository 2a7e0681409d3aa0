package service

import (
	"context"
	"fmt"

	"pdf-chat-server/internal/domain"
)

// BillingService starts checkout and portal sessions for signed-in users.
// Plan changes only ever arrive through the reconciler.
type BillingService struct {
	users    domain.UserRepository
	provider domain.BillingProvider
	prices   domain.PriceCatalog
	logger   domain.Logger
}

func NewBillingService(users domain.UserRepository, provider domain.BillingProvider, prices domain.PriceCatalog, logger domain.Logger) *BillingService {
	return &BillingService{users: users, provider: provider, prices: prices, logger: logger}
}

// Checkout opens a subscription checkout for one of the sellable prices.
func (s *BillingService) Checkout(ctx context.Context, userID, priceID string) (*domain.CheckoutSession, error) {
	if !s.prices.Knows(priceID) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPrice, priceID)
	}
	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess, err := s.provider.CreateCheckoutSession(ctx, customerID, userID, priceID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Checkout session created", "userId", userID, "priceId", priceID, "sessionId", sess.SessionID)
	return sess, nil
}

// Portal opens the provider's self-service billing portal.
func (s *BillingService) Portal(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.BillingCustomerID == nil || *user.BillingCustomerID == "" {
		return "", domain.ErrNoBillingCustomer
	}
	return s.provider.CreatePortalSession(ctx, *user.BillingCustomerID)
}

// ensureCustomer returns the user's billing customer, creating it on first
// checkout. When two checkouts race the first stored id wins and is used by both.
func (s *BillingService) ensureCustomer(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.BillingCustomerID != nil && *user.BillingCustomerID != "" {
		return *user.BillingCustomerID, nil
	}

	created, err := s.provider.CreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	attached, err := s.users.AttachBillingCustomer(ctx, userID, created)
	if err != nil {
		return "", fmt.Errorf("attach billing customer: %w", err)
	}
	if attached != created {
		s.logger.Warn("Discarding concurrently created billing customer", "userId", userID, "created", created, "kept", attached)
	}
	return attached, nil
}
