package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/wishvault/wishvault/internal/service"
)

// Context keys for authenticated account data
const (
	AccountIDKey contextKey = "account_id"
	SessionIDKey contextKey = "session_id"
)

// Auth validates the session token and confirms the underlying session is
// still live before letting the request through. A structurally valid token
// whose session was revoked is rejected.
func (m *Middleware) Auth(sessions *service.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string

			// 1. Try Authorization header first
			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
					tokenString = parts[1]
				}
			}

			// 2. Fall back to cookie
			if tokenString == "" {
				if cookie, err := r.Cookie("wishvault_session_token"); err == nil && cookie.Value != "" {
					tokenString = cookie.Value
				}
			}

			if tokenString == "" {
				http.Error(w, `{"error":{"code":"unauthorized","message":"Authentication required"}}`, http.StatusUnauthorized)
				return
			}

			claims, err := sessions.Verify(r.Context(), tokenString)
			if err != nil {
				m.log.Debug().Err(err).Msg("session token validation failed")
				code := "session_invalid"
				switch {
				case errors.Is(err, service.ErrSessionExpired):
					code = "session_expired"
				case errors.Is(err, service.ErrSessionRevoked):
					code = "session_revoked"
				}
				http.Error(w, `{"error":{"code":"`+code+`","message":"The session token is invalid or expired"}}`, http.StatusUnauthorized)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, AccountIDKey, claims.Subject)
			ctx = context.WithValue(ctx, SessionIDKey, claims.SessionID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
