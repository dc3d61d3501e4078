package handler

import (
	"errors"
	"net/http"

	"github.com/wishvault/wishvault/internal/middleware"
	"github.com/wishvault/wishvault/internal/service"
)

// TOTPSetup initiates TOTP enrollment for the authenticated account
func (h *Handler) TOTPSetup(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	result, err := h.totpSvc.Setup(r.Context(), accountID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTwoFactorEnrolled):
			writeError(w, http.StatusConflict, "already_enrolled", "Two-factor authentication is already set up for this account")
		default:
			h.log.Error().Err(err).Msg("TOTP setup failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to set up two-factor authentication")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type totpCodeRequest struct {
	Code string `json:"code"`
}

// TOTPConfirm verifies the first code and activates the enrollment
func (h *Handler) TOTPConfirm(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req totpCodeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Code is required")
		return
	}

	err := h.totpSvc.Confirm(r.Context(), accountID, req.Code, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTwoFactorNotEnabled):
			writeError(w, http.StatusBadRequest, "not_enrolled", "Two-factor setup has not been initiated. Please start setup first.")
		case errors.Is(err, service.ErrTwoFactorEnrolled):
			writeError(w, http.StatusConflict, "already_enrolled", "Two-factor authentication is already confirmed.")
		case errors.Is(err, service.ErrInvalidCode):
			writeError(w, http.StatusBadRequest, "invalid_code", "The verification code is incorrect. Please try again.")
		default:
			h.log.Error().Err(err).Msg("TOTP confirmation failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to confirm two-factor authentication")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Two-factor authentication has been enabled."})
}

// TOTPDisable removes the account's two-factor enrollment
func (h *Handler) TOTPDisable(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	if err := h.totpSvc.Disable(r.Context(), accountID, requestMeta(r)); err != nil {
		if errors.Is(err, service.ErrTwoFactorNotEnabled) {
			writeError(w, http.StatusBadRequest, "not_enrolled", "Two-factor authentication is not enabled.")
			return
		}
		h.log.Error().Err(err).Msg("TOTP disable failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to disable two-factor authentication")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Two-factor authentication has been disabled."})
}

// TOTPStatus returns the account's two-factor enrollment status
func (h *Handler) TOTPStatus(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	status, err := h.totpSvc.GetStatus(r.Context(), accountID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to get two-factor status")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get two-factor status")
		return
	}

	writeJSON(w, http.StatusOK, status)
}
