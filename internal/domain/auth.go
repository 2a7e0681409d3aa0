package domain

import "context"

type AuthService interface {
	ValidateToken(token string) (*SupabaseUser, error)

	// ResolveUserID maps an authenticated identity to our user id, creating
	// the account on first sign-in.
	ResolveUserID(ctx context.Context, identity *SupabaseUser) (string, error)
}
