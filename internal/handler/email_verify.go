package handler

import (
	"errors"
	"net/http"

	"github.com/wishvault/wishvault/internal/service"
)

type verifyEmailRequest struct {
	AccountID string `json:"accountId"`
	Code      string `json:"code"`
}

// VerifyEmail checks the emailed code and activates the account
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if req.AccountID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Account ID and code are required")
		return
	}

	err := h.verificationSvc.VerifyOTP(r.Context(), req.AccountID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVerificationDisabled):
			writeError(w, http.StatusBadRequest, "verification_disabled", "Email verification is not enabled")
		case errors.Is(err, service.ErrInvalidOTP):
			writeError(w, http.StatusBadRequest, "invalid_code", "The verification code is invalid or has expired")
		default:
			h.log.Error().Err(err).Msg("email verification failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to verify email")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified. Your account is now active."})
}

type resendVerificationRequest struct {
	AccountID string `json:"accountId"`
}

// ResendVerificationOTP sends a fresh verification code to the account's email
func (h *Handler) ResendVerificationOTP(w http.ResponseWriter, r *http.Request) {
	var req resendVerificationRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Account ID is required")
		return
	}

	account, err := h.authSvc.GetAccount(r.Context(), req.AccountID)
	if err != nil {
		// Respond as if the code was sent so account IDs cannot be probed
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "If the account exists, a new code has been sent."})
			return
		}
		h.log.Error().Err(err).Msg("failed to load account for resend")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to resend verification code")
		return
	}

	if account.EmailVerified {
		writeError(w, http.StatusBadRequest, "already_verified", "This email address is already verified")
		return
	}

	err = h.verificationSvc.SendVerificationOTP(r.Context(), account.ID, account.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVerificationDisabled):
			writeError(w, http.StatusBadRequest, "verification_disabled", "Email verification is not enabled")
		case errors.Is(err, service.ErrTooManyResendAttempts):
			writeError(w, http.StatusTooManyRequests, "too_many_requests", "Please wait before requesting another code")
		default:
			h.log.Error().Err(err).Msg("failed to resend verification OTP")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to resend verification code")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "If the account exists, a new code has been sent."})
}
