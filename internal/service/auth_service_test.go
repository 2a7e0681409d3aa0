package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-chat-server/internal/domain"
)

// MockSupabaseClient accepts a single token.
type MockSupabaseClient struct{}

func (m *MockSupabaseClient) Initialize() error { return nil }

func (m *MockSupabaseClient) ValidateToken(token string) (*domain.SupabaseUser, error) {
	if token == "valid-token" {
		return &domain.SupabaseUser{
			ID:           "sb-123",
			Email:        "test@example.com",
			UserMetadata: map[string]interface{}{"full_name": "Test User"},
		}, nil
	}
	return nil, errors.New("token validation failed")
}

// countingUserStore counts EnsureByEmail calls.
type countingUserStore struct {
	*MockUserStore
	ensures int
}

func (c *countingUserStore) EnsureByEmail(ctx context.Context, email, name string, now time.Time) (*domain.User, error) {
	c.ensures++
	return c.MockUserStore.EnsureByEmail(ctx, email, name, now)
}

func TestAuthService_ValidateToken(t *testing.T) {
	service := NewAuthService(&MockSupabaseClient{}, NewMockUserStore(), NewMockLogger())

	user, err := service.ValidateToken("valid-token")
	require.NoError(t, err)
	assert.Equal(t, "sb-123", user.ID)
	assert.Equal(t, "test@example.com", user.Email)

	_, err = service.ValidateToken("invalid-token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestAuthService_ResolveUserID(t *testing.T) {
	ctx := context.Background()
	store := &countingUserStore{MockUserStore: NewMockUserStore()}
	service := NewAuthService(&MockSupabaseClient{}, store, NewMockLogger())
	clock := testNow
	service.now = func() time.Time { return clock }

	identity, err := service.ValidateToken("valid-token")
	require.NoError(t, err)

	id, err := service.ResolveUserID(ctx, identity)
	require.NoError(t, err)
	user := store.Get(id)
	require.NotNil(t, user)
	assert.Equal(t, "Test User", user.Name)
	assert.Equal(t, domain.PlanFree, user.Plan)
	assert.Equal(t, domain.SubscriptionStatusInactive, user.SubscriptionStatus)

	again, err := service.ResolveUserID(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, store.ensures)

	clock = clock.Add(userIDCacheTTL + time.Second)
	again, err = service.ResolveUserID(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 2, store.ensures)
}

func TestAuthService_ResolveUserIDRequiresEmail(t *testing.T) {
	service := NewAuthService(&MockSupabaseClient{}, NewMockUserStore(), NewMockLogger())
	_, err := service.ResolveUserID(context.Background(), &domain.SupabaseUser{ID: "sb-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
