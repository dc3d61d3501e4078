package router

import (
	"net/http"
	"time"

	"github.com/wishvault/wishvault/internal/handler"
	"github.com/wishvault/wishvault/internal/middleware"
	"github.com/wishvault/wishvault/internal/service"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, sessionSvc *service.SessionService, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (no auth required)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	// API v1 routes
	mux.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"WishVault API v1","version":"0.1.0"}`))
	})

	// Public authentication routes (rate limited)
	loginRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  5,
		Window: 15 * time.Minute,
		KeyFn:  middleware.IPKey,
	})
	registerRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  3,
		Window: 1 * time.Hour,
		KeyFn:  middleware.IPKey,
	})
	refreshRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  10,
		Window: 1 * time.Minute,
		KeyFn:  middleware.IPKey,
	})

	mux.Handle("POST /api/v1/auth/register", registerRateLimit(http.HandlerFunc(h.Register)))
	mux.Handle("POST /api/v1/auth/login", loginRateLimit(http.HandlerFunc(h.Login)))
	mux.Handle("POST /api/v1/auth/login/2fa", loginRateLimit(http.HandlerFunc(h.CompleteTwoFactorLogin)))
	mux.Handle("POST /api/v1/auth/token/refresh", refreshRateLimit(http.HandlerFunc(h.Refresh)))

	// Passkey login ceremonies (public, rate limited)
	ceremonyRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  5,
		Window: 5 * time.Minute,
		KeyFn:  middleware.IPKey,
	})
	mux.Handle("POST /api/v1/auth/webauthn/authenticate/begin", ceremonyRateLimit(http.HandlerFunc(h.WebAuthnAuthenticateBegin)))
	mux.Handle("POST /api/v1/auth/webauthn/authenticate/complete", ceremonyRateLimit(http.HandlerFunc(h.WebAuthnAuthenticateComplete)))

	// Email verification routes (public, rate limited)
	verifyRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  10,
		Window: 15 * time.Minute,
		KeyFn:  middleware.IPKey,
	})
	mux.Handle("POST /api/v1/auth/email/verify", verifyRateLimit(http.HandlerFunc(h.VerifyEmail)))
	mux.Handle("POST /api/v1/auth/email/resend", verifyRateLimit(http.HandlerFunc(h.ResendVerificationOTP)))

	// Protected routes (require auth)
	authMw := mw.Auth(sessionSvc)

	// Auth routes requiring authentication
	mux.Handle("POST /api/v1/auth/logout", authMw(http.HandlerFunc(h.Logout)))
	mux.Handle("POST /api/v1/auth/logout/all", authMw(http.HandlerFunc(h.LogoutAll)))
	mux.Handle("POST /api/v1/auth/password/change", authMw(http.HandlerFunc(h.ChangePassword)))

	// Account routes requiring authentication
	mux.Handle("GET /api/v1/accounts/me", authMw(http.HandlerFunc(h.GetCurrentAccount)))
	mux.Handle("GET /api/v1/accounts/me/security-events", authMw(http.HandlerFunc(h.ListSecurityEvents)))

	// Passkey registration and credential management (authenticated)
	mux.Handle("POST /api/v1/webauthn/register/begin", authMw(http.HandlerFunc(h.WebAuthnRegisterBegin)))
	mux.Handle("POST /api/v1/webauthn/register/complete", authMw(http.HandlerFunc(h.WebAuthnRegisterComplete)))
	mux.Handle("GET /api/v1/webauthn/credentials", authMw(http.HandlerFunc(h.ListCredentials)))
	mux.Handle("DELETE /api/v1/webauthn/credentials/{id}", authMw(http.HandlerFunc(h.DeleteCredential)))
	mux.Handle("PATCH /api/v1/webauthn/credentials/{id}", authMw(http.HandlerFunc(h.RenameCredential)))

	// TOTP routes (authenticated, rate limited)
	totpRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  10,
		Window: 1 * time.Minute,
		KeyFn:  middleware.AccountKey,
	})
	mux.Handle("POST /api/v1/totp/setup", authMw(totpRateLimit(http.HandlerFunc(h.TOTPSetup))))
	mux.Handle("POST /api/v1/totp/confirm", authMw(totpRateLimit(http.HandlerFunc(h.TOTPConfirm))))
	mux.Handle("GET /api/v1/totp/status", authMw(http.HandlerFunc(h.TOTPStatus)))
	mux.Handle("DELETE /api/v1/totp", authMw(totpRateLimit(http.HandlerFunc(h.TOTPDisable))))

	// Session management routes (authenticated)
	mux.Handle("GET /api/v1/sessions", authMw(http.HandlerFunc(h.ListSessions)))
	mux.Handle("POST /api/v1/sessions/{id}/revoke", authMw(http.HandlerFunc(h.RevokeSession)))

	// Wish list routes (authenticated)
	mux.Handle("POST /api/v1/wishes", authMw(http.HandlerFunc(h.CreateWish)))
	mux.Handle("GET /api/v1/wishes", authMw(http.HandlerFunc(h.ListWishes)))
	mux.Handle("GET /api/v1/wishes/{id}", authMw(http.HandlerFunc(h.GetWish)))
	mux.Handle("PUT /api/v1/wishes/{id}", authMw(http.HandlerFunc(h.UpdateWish)))
	mux.Handle("DELETE /api/v1/wishes/{id}", authMw(http.HandlerFunc(h.DeleteWish)))

	// Apply middleware stack
	var handler http.Handler = mux

	handler = mw.CORS(allowedOrigins)(handler)
	handler = mw.SecurityHeaders(handler)
	handler = mw.Logger(handler)
	handler = mw.Timing(handler)
	handler = mw.RequestID(handler)

	// Panic recovery (outermost)
	handler = mw.Recover(handler)

	return handler
}
