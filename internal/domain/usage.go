package domain

import (
	"context"
	"fmt"
	"time"
)

// MessageWindow is the length of the rolling message quota window. It is
// anchored to the last reset, not to calendar months.
const MessageWindow = 30 * 24 * time.Hour

// MessageResetDue reports whether a counter last reset at resetAt must be
// reset at now.
func MessageResetDue(resetAt, now time.Time) bool {
	return now.Sub(resetAt) >= MessageWindow
}

// MessageResetCutoff is the latest reset timestamp that is due at now.
// Stores compare `reset_at <= cutoff`, which is MessageResetDue in SQL.
func MessageResetCutoff(now time.Time) time.Time {
	return now.Add(-MessageWindow)
}

// MessageUsage is the message counter after any due reset was applied.
type MessageUsage struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
}

// MessageCounterStore keeps per-user message counters. Every method is a
// single atomic read-modify-write on one user row and applies the rolling
// reset in the same statement.
type MessageCounterStore interface {
	// ReadMessageUsage resets the counter to 0 when due and returns it.
	ReadMessageUsage(ctx context.Context, userID string, now time.Time) (*MessageUsage, error)

	// IncrementMessageCount adds one message. When a reset is due the result is 1.
	IncrementMessageCount(ctx context.Context, userID string, now time.Time) (*MessageUsage, error)

	// ConsumeMessage increments only while the post-reset count is below max
	// (max < 0 means unlimited). consumed is false when the quota is used up;
	// the returned usage is then the current, unchanged counter.
	ConsumeMessage(ctx context.Context, userID string, now time.Time, max int) (usage *MessageUsage, consumed bool, err error)
}

// Decision reasons. Machine readable, stable.
const (
	ReasonAllowed       = "allowed"
	ReasonLimitExceeded = "limit_exceeded"
	ReasonUserNotFound  = "user_not_found"
)

// DocumentLimitCheck is the gate verdict for an upload.
type DocumentLimitCheck struct {
	CanUpload    bool   `json:"canUpload"`
	CurrentCount int    `json:"currentCount"`
	MaxAllowed   int    `json:"maxAllowed"`
	Message      string `json:"message,omitempty"`
	Reason       string `json:"reason"`
}

// MessageLimitCheck is the gate verdict for a chat message.
type MessageLimitCheck struct {
	CanSendMessage bool   `json:"canSendMessage"`
	CurrentCount   int    `json:"currentCount"`
	MaxAllowed     int    `json:"maxAllowed"`
	Message        string `json:"message,omitempty"`
	Reason         string `json:"reason"`
}

// DocumentUsage is the documents section of UsageStats.
type DocumentUsage struct {
	Current   int  `json:"current"`
	Max       int  `json:"max"`
	CanUpload bool `json:"canUpload"`
}

// MessageUsageStats is the messages section of UsageStats.
type MessageUsageStats struct {
	Current int       `json:"current"`
	Max     int       `json:"max"`
	CanSend bool      `json:"canSend"`
	ResetAt time.Time `json:"resetAt"`
}

// UsageStats is the canonical usage payload. Plan is the effective plan.
type UsageStats struct {
	Plan               Plan               `json:"plan"`
	NominalPlan        Plan               `json:"nominalPlan"`
	IsPremium          bool               `json:"isPremium"`
	IsStarter          bool               `json:"isStarter"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	CurrentPeriodEnd   *time.Time         `json:"currentPeriodEnd,omitempty"`
	Documents          DocumentUsage      `json:"documents"`
	Messages           MessageUsageStats  `json:"messages"`
}

// UsageService is the limit-checking gate consumed by request handlers.
type UsageService interface {
	CheckDocumentLimit(ctx context.Context, userID string) (*DocumentLimitCheck, error)
	CheckMessageLimit(ctx context.Context, userID string) (*MessageLimitCheck, error)
	IncrementMessageCount(ctx context.Context, userID string) (*MessageUsage, error)
	ReserveMessage(ctx context.Context, userID string) (*MessageLimitCheck, error)
	GetUserUsageStats(ctx context.Context, userID string) (*UsageStats, error)
}

// DocumentLimitMessage is the upgrade prompt for an exhausted document quota.
func DocumentLimitMessage(max int) string {
	noun := "documents"
	if max == 1 {
		noun = "document"
	}
	return fmt.Sprintf("You've reached your limit of %d %s. Upgrade to Premium for unlimited uploads.", max, noun)
}

// MessageLimitMessage is the upgrade prompt for an exhausted message quota.
func MessageLimitMessage(max int) string {
	return fmt.Sprintf("You've reached your limit of %d messages this month. Upgrade to Premium for unlimited messaging.", max)
}
