package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pdf-chat-server/internal/domain"
)

const userIDCacheTTL = 5 * time.Minute

type userIDCacheEntry struct {
	userID    string
	expiresAt time.Time
}

type authService struct {
	supabaseClient domain.SupabaseClient
	users          domain.UserRepository
	logger         domain.Logger
	now            func() time.Time

	userIDCacheMu sync.RWMutex
	userIDCache   map[string]userIDCacheEntry
}

func NewAuthService(
	supabaseClient domain.SupabaseClient,
	users domain.UserRepository,
	logger domain.Logger,
) *authService {
	return &authService{
		supabaseClient: supabaseClient,
		users:          users,
		logger:         logger,
		now:            time.Now,
		userIDCache:    make(map[string]userIDCacheEntry),
	}
}

// ValidateToken validates a token with Supabase Auth and returns the identity.
func (s *authService) ValidateToken(token string) (*domain.SupabaseUser, error) {
	user, err := s.supabaseClient.ValidateToken(token)
	if err != nil {
		s.logger.Error("Failed to validate token with Supabase", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	return user, nil
}

// ResolveUserID returns the account id for an authenticated identity. The
// account is created on first sign-in. Results are cached per identity.
func (s *authService) ResolveUserID(ctx context.Context, identity *domain.SupabaseUser) (string, error) {
	if identity == nil || strings.TrimSpace(identity.Email) == "" {
		return "", fmt.Errorf("%w: identity has no email", domain.ErrInvalidToken)
	}

	now := s.now()
	s.userIDCacheMu.RLock()
	entry, ok := s.userIDCache[identity.ID]
	s.userIDCacheMu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.userID, nil
	}

	user, err := s.users.EnsureByEmail(ctx, identity.Email, identity.DisplayName(), now.UTC())
	if err != nil {
		return "", fmt.Errorf("ensure user: %w", err)
	}

	s.userIDCacheMu.Lock()
	s.userIDCache[identity.ID] = userIDCacheEntry{userID: user.ID, expiresAt: now.Add(userIDCacheTTL)}
	s.userIDCacheMu.Unlock()

	return user.ID, nil
}
