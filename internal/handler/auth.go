package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/wishvault/wishvault/internal/middleware"
	"github.com/wishvault/wishvault/internal/service"
)

// --- Registration ---

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles account registration. When email verification is enabled
// a verification code is sent; the account stays pending until verified.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Username, email and password are required")
		return
	}

	account, err := h.authSvc.Register(r.Context(), service.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailAlreadyExists):
			writeError(w, http.StatusConflict, "email_exists", "An account with this email already exists")
		case errors.Is(err, service.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "username_taken", "This username is already taken")
		case errors.Is(err, service.ErrPasswordTooWeak):
			writeError(w, http.StatusBadRequest, "password_too_weak", err.Error())
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		default:
			h.log.Error().Err(err).Msg("registration failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Registration failed")
		}
		return
	}

	if h.verificationSvc.IsEnabled() {
		if err := h.verificationSvc.SendVerificationOTP(r.Context(), account.ID, account.Email); err != nil {
			h.log.Error().Err(err).Str("account_id", account.ID).Msg("failed to send verification email")
		}
	}

	writeJSON(w, http.StatusCreated, account)
}

// --- Login ---

type loginRequest struct {
	Identifier        string `json:"identifier"` // username or email
	Password          string `json:"password"`
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
}

// Login handles password authentication. When two-factor authentication is
// enabled the response carries a short-lived token for the second step
// instead of session tokens.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	if req.Identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Identifier and password are required")
		return
	}

	result, err := h.authSvc.Login(r.Context(), service.LoginRequest{
		Identifier:        req.Identifier,
		Password:          req.Password,
		DeviceFingerprint: req.DeviceFingerprint,
	}, requestMeta(r))
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	if result.TwoFactorToken != "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":         "two_factor_required",
			"twoFactorToken": result.TwoFactorToken,
		})
		return
	}

	h.setSessionCookie(w, result.Tokens.SessionToken)
	writeJSON(w, http.StatusOK, result.Tokens)
}

// --- Two-factor completion ---

type twoFactorLoginRequest struct {
	TwoFactorToken    string `json:"twoFactorToken"`
	Code              string `json:"code"`
	RecoveryCode      bool   `json:"recoveryCode,omitempty"`
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
}

// CompleteTwoFactorLogin finishes a login that paused for a second factor
func (h *Handler) CompleteTwoFactorLogin(w http.ResponseWriter, r *http.Request) {
	var req twoFactorLoginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	if req.TwoFactorToken == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Token and code are required")
		return
	}

	tokens, err := h.authSvc.CompleteTwoFactorLogin(r.Context(), req.TwoFactorToken, req.Code, req.RecoveryCode, req.DeviceFingerprint, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCode):
			writeError(w, http.StatusUnauthorized, "invalid_code", "The verification code is incorrect.")
		case errors.Is(err, service.ErrNoRecoveryCodes):
			writeError(w, http.StatusBadRequest, "no_recovery_codes", "No recovery codes remaining.")
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid_token", "The two-factor token is invalid or expired. Please log in again.")
		case errors.Is(err, service.ErrAccountLocked):
			writeError(w, http.StatusForbidden, "account_locked", "Your account has been temporarily locked.")
		default:
			h.log.Error().Err(err).Msg("two-factor login failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Login failed")
		}
		return
	}

	h.setSessionCookie(w, tokens.SessionToken)
	writeJSON(w, http.StatusOK, tokens)
}

// --- Token refresh ---

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh exchanges a refresh token for a new token pair
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Refresh token is required")
		return
	}

	tokens, err := h.sessionSvc.Refresh(r.Context(), req.RefreshToken, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRefreshToken):
			h.clearSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "The refresh token is invalid, expired, or has been revoked.")
		default:
			h.log.Error().Err(err).Msg("token refresh failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Token refresh failed")
		}
		return
	}

	h.setSessionCookie(w, tokens.SessionToken)
	writeJSON(w, http.StatusOK, tokens)
}

// --- Logout ---

// Logout revokes the current session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	sessionID, _ := r.Context().Value(middleware.SessionIDKey).(string)
	if accountID == "" || sessionID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	if err := h.sessionSvc.Revoke(r.Context(), accountID, sessionID); err != nil && !errors.Is(err, service.ErrSessionNotFound) {
		h.log.Error().Err(err).Msg("logout failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Logout failed")
		return
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// LogoutAll revokes every session belonging to the account
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	revoked, err := h.sessionSvc.RevokeAll(r.Context(), accountID)
	if err != nil {
		h.log.Error().Err(err).Msg("logout all failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Logout failed")
		return
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":         "all sessions logged out successfully",
		"sessionsRevoked": revoked,
	})
}

// --- Password change ---

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword handles authenticated password change
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req changePasswordRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Current password and new password are required")
		return
	}

	err := h.authSvc.ChangePassword(r.Context(), accountID, req.CurrentPassword, req.NewPassword, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid_password", "The current password is incorrect.")
		case errors.Is(err, service.ErrSamePassword):
			writeError(w, http.StatusBadRequest, "same_password", "New password must be different from the current password.")
		case errors.Is(err, service.ErrPasswordTooWeak):
			writeError(w, http.StatusBadRequest, "password_too_weak", err.Error())
		default:
			h.log.Error().Err(err).Msg("password change failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to change password")
		}
		return
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully. Please log in again."})
}

// --- Current account ---

// GetCurrentAccount returns the authenticated account
func (h *Handler) GetCurrentAccount(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	account, err := h.authSvc.GetAccount(r.Context(), accountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("failed to get current account")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get account data")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// ListSecurityEvents returns the account's audit trail
func (h *Handler) ListSecurityEvents(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	events, err := h.authSvc.ListSecurityEvents(r.Context(), accountID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list security events")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list security events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (h *Handler) writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "The identifier or password is incorrect.")
	case errors.Is(err, service.ErrAccountLocked):
		writeError(w, http.StatusForbidden, "account_locked", "Your account has been temporarily locked due to too many failed login attempts.")
	case errors.Is(err, service.ErrAccountNotActive):
		writeError(w, http.StatusForbidden, "account_inactive", "Your account is not active.")
	default:
		h.log.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Login failed")
	}
}

// --- Cookie helpers ---

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "wishvault_session_token",
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.Security.Tokens.SessionTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Server.TLS.Enabled,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "wishvault_session_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Server.TLS.Enabled,
		SameSite: http.SameSiteLaxMode,
	})
}
