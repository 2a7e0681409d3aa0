package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"pdf-chat-server/internal/domain"
	"pdf-chat-server/internal/metrics"
)

// Gate outcomes as reported to metrics.
const (
	outcomeAllowed      = "allowed"
	outcomeDenied       = "denied"
	outcomeUserNotFound = "user_not_found"
)

// UsageService is the limit-checking gate. Every check recomputes the
// effective plan from the user row at the time of the call.
type UsageService struct {
	users     domain.UserRepository
	counters  domain.MessageCounterStore
	documents domain.DocumentRepository
	metrics   *metrics.Metrics
	logger    domain.Logger
	now       func() time.Time
}

// NewUsageService creates the usage gate.
func NewUsageService(
	users domain.UserRepository,
	counters domain.MessageCounterStore,
	documents domain.DocumentRepository,
	m *metrics.Metrics,
	logger domain.Logger,
) *UsageService {
	return &UsageService{
		users:     users,
		counters:  counters,
		documents: documents,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *UsageService) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// CheckDocumentLimit reports whether the user may add one more active document.
func (s *UsageService) CheckDocumentLimit(ctx context.Context, userID string) (*domain.DocumentLimitCheck, error) {
	user, err := s.loadUser(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.metrics.LimitDecision(domain.ResourceDocuments, outcomeUserNotFound)
		return &domain.DocumentLimitCheck{Message: "User not found", Reason: domain.ReasonUserNotFound}, err
	}
	if err != nil {
		return nil, err
	}

	limits := domain.EffectiveLimits(user, s.now())
	count, err := s.documents.CountActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	check := &domain.DocumentLimitCheck{
		CanUpload:    withinLimit(count, limits.MaxDocuments),
		CurrentCount: count,
		MaxAllowed:   limits.MaxDocuments,
		Reason:       domain.ReasonAllowed,
	}
	if !check.CanUpload {
		check.Message = domain.DocumentLimitMessage(limits.MaxDocuments)
		check.Reason = domain.ReasonLimitExceeded
	}
	s.record(domain.ResourceDocuments, check.CanUpload)
	return check, nil
}

// CheckMessageLimit reports whether the user may send one more message.
// A due window reset is applied first; nothing is consumed.
func (s *UsageService) CheckMessageLimit(ctx context.Context, userID string) (*domain.MessageLimitCheck, error) {
	user, err := s.loadUser(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return s.messageUserNotFound(), err
	}
	if err != nil {
		return nil, err
	}

	usage, err := s.counters.ReadMessageUsage(ctx, userID, s.now())
	if errors.Is(err, domain.ErrUserNotFound) {
		return s.messageUserNotFound(), err
	}
	if err != nil {
		return nil, fmt.Errorf("read message usage: %w", err)
	}

	limits := domain.EffectiveLimits(user, s.now())
	check := messageCheck(usage.Count, limits.MaxMessagesPerMonth, withinLimit(usage.Count, limits.MaxMessagesPerMonth))
	s.record(domain.ResourceMessages, check.CanSendMessage)
	return check, nil
}

// IncrementMessageCount records one sent message without checking the limit.
func (s *UsageService) IncrementMessageCount(ctx context.Context, userID string) (*domain.MessageUsage, error) {
	usage, err := s.counters.IncrementMessageCount(ctx, userID, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("increment message count: %w", err)
	}
	return usage, nil
}

// ReserveMessage checks and consumes one message in a single atomic step.
// When allowed, CurrentCount is the count including this message.
func (s *UsageService) ReserveMessage(ctx context.Context, userID string) (*domain.MessageLimitCheck, error) {
	user, err := s.loadUser(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return s.messageUserNotFound(), err
	}
	if err != nil {
		return nil, err
	}

	limits := domain.EffectiveLimits(user, s.now())
	usage, consumed, err := s.counters.ConsumeMessage(ctx, userID, s.now(), limits.MaxMessagesPerMonth)
	if errors.Is(err, domain.ErrUserNotFound) {
		return s.messageUserNotFound(), err
	}
	if err != nil {
		return nil, fmt.Errorf("consume message: %w", err)
	}

	check := messageCheck(usage.Count, limits.MaxMessagesPerMonth, consumed)
	s.record(domain.ResourceMessages, consumed)
	if !consumed {
		s.logger.Info("Message limit reached", "userId", userID, "count", usage.Count, "max", limits.MaxMessagesPerMonth)
	}
	return check, nil
}

// GetUserUsageStats assembles the usage payload shown to the user.
func (s *UsageService) GetUserUsageStats(ctx context.Context, userID string) (*domain.UsageStats, error) {
	var (
		user     *domain.User
		usage    *domain.MessageUsage
		docCount int
	)
	now := s.now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.loadUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		usage, err = s.counters.ReadMessageUsage(gctx, userID, now)
		if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			return fmt.Errorf("read message usage: %w", err)
		}
		return err
	})
	g.Go(func() error {
		var err error
		docCount, err = s.documents.CountActive(gctx, userID)
		if err != nil {
			return fmt.Errorf("count documents: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	plan := domain.EffectivePlan(user, now)
	limits := domain.LimitsFor(plan)
	return &domain.UsageStats{
		Plan:               plan,
		NominalPlan:        user.Plan,
		IsPremium:          plan == domain.PlanPremium,
		IsStarter:          plan == domain.PlanStarter,
		SubscriptionStatus: user.SubscriptionStatus,
		CurrentPeriodEnd:   user.CurrentPeriodEnd,
		Documents: domain.DocumentUsage{
			Current:   docCount,
			Max:       limits.MaxDocuments,
			CanUpload: withinLimit(docCount, limits.MaxDocuments),
		},
		Messages: domain.MessageUsageStats{
			Current: usage.Count,
			Max:     limits.MaxMessagesPerMonth,
			CanSend: withinLimit(usage.Count, limits.MaxMessagesPerMonth),
			ResetAt: usage.ResetAt,
		},
	}, nil
}

func (s *UsageService) messageUserNotFound() *domain.MessageLimitCheck {
	s.metrics.LimitDecision(domain.ResourceMessages, outcomeUserNotFound)
	return &domain.MessageLimitCheck{Message: "User not found", Reason: domain.ReasonUserNotFound}
}

func (s *UsageService) record(resource string, allowed bool) {
	if allowed {
		s.metrics.LimitDecision(resource, outcomeAllowed)
		return
	}
	s.metrics.LimitDecision(resource, outcomeDenied)
}

func messageCheck(count, limit int, allowed bool) *domain.MessageLimitCheck {
	check := &domain.MessageLimitCheck{
		CanSendMessage: allowed,
		CurrentCount:   count,
		MaxAllowed:     limit,
		Reason:         domain.ReasonAllowed,
	}
	if !allowed {
		check.Message = domain.MessageLimitMessage(limit)
		check.Reason = domain.ReasonLimitExceeded
	}
	return check
}

func withinLimit(count, limit int) bool {
	return limit == domain.Unlimited || count < limit
}
