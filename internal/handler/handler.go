package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wishvault/wishvault/internal/config"
	"github.com/wishvault/wishvault/internal/database"
	"github.com/wishvault/wishvault/internal/logger"
	"github.com/wishvault/wishvault/internal/service"
)

// Handler holds all HTTP handlers
type Handler struct {
	db              *database.Postgres
	rdb             *database.Redis
	log             *logger.Logger
	cfg             *config.Config
	authSvc         *service.AuthService
	webauthnSvc     *service.WebAuthnService
	totpSvc         *service.TOTPService
	sessionSvc      *service.SessionService
	verificationSvc *service.VerificationService
	wishSvc         *service.WishService
}

// New creates a new Handler instance
func New(
	db *database.Postgres,
	rdb *database.Redis,
	log *logger.Logger,
	cfg *config.Config,
	authSvc *service.AuthService,
	webauthnSvc *service.WebAuthnService,
	totpSvc *service.TOTPService,
	sessionSvc *service.SessionService,
	verificationSvc *service.VerificationService,
	wishSvc *service.WishService,
) *Handler {
	return &Handler{
		db:              db,
		rdb:             rdb,
		log:             log,
		cfg:             cfg,
		authSvc:         authSvc,
		webauthnSvc:     webauthnSvc,
		totpSvc:         totpSvc,
		sessionSvc:      sessionSvc,
		verificationSvc: verificationSvc,
		wishSvc:         wishSvc,
	}
}

// JSON helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// requestMeta builds the audit metadata for a request
func requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
