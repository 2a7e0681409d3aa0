package domain

import (
	"context"
	"time"
)

// User is the account record shared by the usage gate and the billing
// reconciler. Plan is the nominal plan; see EffectivePlan.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`

	Plan                  Plan               `json:"plan"`
	SubscriptionStatus    SubscriptionStatus `json:"subscriptionStatus"`
	BillingCustomerID     *string            `json:"billingCustomerId,omitempty"`
	BillingSubscriptionID *string            `json:"billingSubscriptionId,omitempty"`
	BillingPriceID        *string            `json:"billingPriceId,omitempty"`
	CurrentPeriodEnd      *time.Time         `json:"currentPeriodEnd,omitempty"`

	MessageCount        int       `json:"messageCount"`
	MessageCountResetAt time.Time `json:"messageCountResetAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SupabaseUser represents a user from Supabase Auth
type SupabaseUser struct {
	ID           string
	Email        string
	UserMetadata map[string]interface{}
	CreatedAt    string
	UpdatedAt    string
}

// DisplayName pulls a human name out of the auth provider metadata.
func (u *SupabaseUser) DisplayName() string {
	if u == nil || u.UserMetadata == nil {
		return ""
	}
	for _, key := range []string{"full_name", "name"} {
		if v, ok := u.UserMetadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// UserRepository persists user accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByBillingCustomerID(ctx context.Context, customerID string) (*User, error)

	// EnsureByEmail returns the user with this email, creating a FREE/INACTIVE
	// account first if none exists. Safe to call concurrently.
	EnsureByEmail(ctx context.Context, email, name string, now time.Time) (*User, error)

	// AttachBillingCustomer sets the billing customer id if the user has none.
	// It returns the id the user ends up with.
	AttachBillingCustomer(ctx context.Context, userID, customerID string) (string, error)
}
