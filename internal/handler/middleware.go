package handler

import (
	"context"
	"net/http"
	"strings"

	"pdf-chat-server/internal/domain"
)

// AuthMiddleware validates Supabase access tokens and resolves them to an
// account id.
type AuthMiddleware struct {
	authService domain.AuthService
	logger      domain.Logger
}

func NewAuthMiddleware(authService domain.AuthService, logger domain.Logger) *AuthMiddleware {
	return &AuthMiddleware{authService: authService, logger: logger}
}

func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Token required")
			return
		}

		identity, err := m.authService.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		userID, err := m.authService.ResolveUserID(r.Context(), identity)
		if err != nil {
			respondError(w, m.logger, err, "Failed to resolve user", "authId", identity.ID)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		ctx = context.WithValue(ctx, userIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
