package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wishvault/wishvault/internal/middleware"
	"github.com/wishvault/wishvault/internal/service"
)

// --- Registration ceremony ---

// WebAuthnRegisterBegin starts a credential registration ceremony for the
// authenticated account
func (h *Handler) WebAuthnRegisterBegin(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	creation, err := h.webauthnSvc.BeginRegistration(r.Context(), accountID)
	if err != nil {
		h.log.Error().Err(err).Msg("webauthn registration begin failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to start registration")
		return
	}

	writeJSON(w, http.StatusOK, creation)
}

type webauthnRegisterCompleteRequest struct {
	Name       string          `json:"name,omitempty"`
	Credential json.RawMessage `json:"credential"`
}

// WebAuthnRegisterComplete finishes a credential registration ceremony
func (h *Handler) WebAuthnRegisterComplete(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req webauthnRegisterCompleteRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if req.Credential == nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Credential data is required")
		return
	}

	cred, err := h.webauthnSvc.FinishRegistration(r.Context(), accountID, req.Name, bytes.NewReader(req.Credential), requestMeta(r))
	if err != nil {
		h.writeCeremonyError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, cred)
}

// --- Authentication ceremony ---

type webauthnAuthenticateBeginRequest struct {
	Identifier string `json:"identifier"` // username or email
}

// WebAuthnAuthenticateBegin starts an authentication ceremony
func (h *Handler) WebAuthnAuthenticateBegin(w http.ResponseWriter, r *http.Request) {
	var req webauthnAuthenticateBeginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Identifier is required")
		return
	}

	assertion, err := h.webauthnSvc.BeginAuthentication(r.Context(), req.Identifier)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrNoCredentials):
			// Do not reveal whether the account exists or has passkeys
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "Authentication could not be started for this account.")
		case errors.Is(err, service.ErrAccountLocked):
			writeError(w, http.StatusForbidden, "account_locked", "Your account has been temporarily locked.")
		default:
			h.log.Error().Err(err).Msg("webauthn authentication begin failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to start authentication")
		}
		return
	}

	writeJSON(w, http.StatusOK, assertion)
}

type webauthnAuthenticateCompleteRequest struct {
	Credential        json.RawMessage `json:"credential"`
	DeviceFingerprint string          `json:"deviceFingerprint,omitempty"`
}

// WebAuthnAuthenticateComplete finishes an authentication ceremony and issues
// session tokens. A passkey login is a complete strong factor; no second step
// is required even when TOTP is enrolled.
func (h *Handler) WebAuthnAuthenticateComplete(w http.ResponseWriter, r *http.Request) {
	var req webauthnAuthenticateCompleteRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if req.Credential == nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Credential data is required")
		return
	}

	account, _, err := h.webauthnSvc.FinishAuthentication(r.Context(), bytes.NewReader(req.Credential), requestMeta(r))
	if err != nil {
		h.writeCeremonyError(w, err)
		return
	}

	tokens, err := h.sessionSvc.Issue(r.Context(), account.ID, req.DeviceFingerprint, requestMeta(r))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to issue session after webauthn login")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to complete login")
		return
	}

	h.setSessionCookie(w, tokens.SessionToken)
	writeJSON(w, http.StatusOK, tokens)
}

// --- Credential management ---

// ListCredentials returns the account's registered credentials
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	creds, err := h.webauthnSvc.ListCredentials(r.Context(), accountID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list credentials")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"credentials": creds})
}

// DeleteCredential deactivates one of the account's credentials
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	credentialID := r.PathValue("id")
	if credentialID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Credential ID is required")
		return
	}

	if err := h.webauthnSvc.RemoveCredential(r.Context(), accountID, credentialID); err != nil {
		if errors.Is(err, service.ErrCredentialNotFound) {
			writeError(w, http.StatusNotFound, "credential_not_found", "Credential not found")
			return
		}
		h.log.Error().Err(err).Msg("failed to remove credential")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to remove credential")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Credential removed."})
}

type renameCredentialRequest struct {
	Name string `json:"name"`
}

// RenameCredential sets the user-facing name of a credential
func (h *Handler) RenameCredential(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	credentialID := r.PathValue("id")
	var req renameCredentialRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Name is required")
		return
	}

	if err := h.webauthnSvc.RenameCredential(r.Context(), accountID, credentialID, req.Name); err != nil {
		if errors.Is(err, service.ErrCredentialNotFound) {
			writeError(w, http.StatusNotFound, "credential_not_found", "Credential not found")
			return
		}
		h.log.Error().Err(err).Msg("failed to rename credential")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to rename credential")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Credential renamed."})
}

// writeCeremonyError maps ceremony completion errors to HTTP responses
func (h *Handler) writeCeremonyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrChallengeNotFound),
		errors.Is(err, service.ErrChallengeExpired),
		errors.Is(err, service.ErrChallengeAlreadyUsed),
		errors.Is(err, service.ErrChallengeMismatch),
		errors.Is(err, service.ErrChallengeOriginMismatch):
		writeError(w, http.StatusBadRequest, "challenge_invalid", "The ceremony challenge is invalid, expired, or already used. Please start again.")
	case errors.Is(err, service.ErrVerificationFailed):
		writeError(w, http.StatusUnauthorized, "verification_failed", "The authenticator response could not be verified.")
	case errors.Is(err, service.ErrReplayDetected):
		writeError(w, http.StatusUnauthorized, "credential_revoked", "This credential has been revoked due to suspicious activity.")
	case errors.Is(err, service.ErrCredentialNotFound), errors.Is(err, service.ErrCredentialInactive):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "The credential is not recognized.")
	case errors.Is(err, service.ErrCredentialExists):
		writeError(w, http.StatusConflict, "credential_exists", "This credential is already registered.")
	case errors.Is(err, service.ErrAccountLocked):
		writeError(w, http.StatusForbidden, "account_locked", "Your account has been temporarily locked.")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Authentication failed.")
	default:
		h.log.Error().Err(err).Msg("webauthn ceremony failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "The ceremony could not be completed")
	}
}
