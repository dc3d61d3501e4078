package wishvault

import "time"

// Account represents a WishVault account returned by the API.
type Account struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	EmailVerified    bool      `json:"emailVerified"`
	Status           string    `json:"status"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// LoginRequest contains the credentials for authentication.
type LoginRequest struct {
	// Identifier is the account's username or email address.
	Identifier        string `json:"identifier"`
	Password          string `json:"password"`
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
}

// TokenPair is returned when authentication completes.
type TokenPair struct {
	SessionToken string `json:"sessionToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
	SessionID    string `json:"sessionId"`
}

// TwoFactorRequiredResponse is returned when the login needs a second step.
type TwoFactorRequiredResponse struct {
	Status         string `json:"status"`
	TwoFactorToken string `json:"twoFactorToken"`
}

// AuthResult wraps the login response, which is either a completed login or
// a two-factor challenge.
type AuthResult struct {
	// Tokens is set when authentication succeeds without a second factor.
	Tokens *TokenPair

	// TwoFactorRequired is set when the login paused for a second factor.
	TwoFactorRequired *TwoFactorRequiredResponse
}

// TwoFactorLoginRequest completes a login that paused for a second factor.
type TwoFactorLoginRequest struct {
	TwoFactorToken    string `json:"twoFactorToken"`
	Code              string `json:"code"`
	RecoveryCode      bool   `json:"recoveryCode,omitempty"`
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
}

// RegisterRequest contains the data for creating a new account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
