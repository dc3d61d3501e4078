package service

import "errors"

// Common service errors. Handlers map these onto HTTP status codes; anything
// not in this list is treated as an internal error.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrAccountNotActive   = errors.New("account is not active")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrPasswordTooWeak    = errors.New("password does not meet requirements")
	ErrSamePassword       = errors.New("new password must be different from current password")

	ErrChallengeNotFound       = errors.New("challenge not found")
	ErrChallengeExpired        = errors.New("challenge has expired")
	ErrChallengeAlreadyUsed    = errors.New("challenge has already been used")
	ErrChallengeMismatch       = errors.New("challenge does not belong to this account")
	ErrChallengeOriginMismatch = errors.New("challenge was issued for a different origin")

	ErrCredentialNotFound  = errors.New("credential not found")
	ErrCredentialInactive  = errors.New("credential is deactivated")
	ErrCredentialExists    = errors.New("credential already registered")
	ErrNoCredentials       = errors.New("no active credentials registered")
	ErrReplayDetected      = errors.New("signature counter regression detected")
	ErrVerificationFailed  = errors.New("ceremony verification failed")
	ErrTwoFactorRequired   = errors.New("two-factor verification required")
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication not enabled")
	ErrTwoFactorEnrolled   = errors.New("two-factor authentication already enabled")
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrNoRecoveryCodes     = errors.New("no recovery codes remaining")

	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExpired      = errors.New("session has expired")
	ErrSessionRevoked      = errors.New("session has been revoked")

	ErrNotOwner      = errors.New("resource belongs to another account")
	ErrWishNotFound  = errors.New("wish not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmailNotFound = errors.New("no pending verification for this email")
)
