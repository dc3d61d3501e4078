package model

import (
	"time"
)

// DeviceClass describes the authenticator attachment reported at registration
type DeviceClass string

const (
	DeviceClassPlatform      DeviceClass = "platform"
	DeviceClassCrossPlatform DeviceClass = "cross-platform"
)

// WebAuthnCredential is a registered authenticator public key belonging to
// exactly one account. The signature counter is monotonically non-decreasing
// across successful authentications; a regression signals a cloned
// authenticator and aborts the ceremony.
type WebAuthnCredential struct {
	ID              string      `json:"id"`
	AccountID       string      `json:"accountId"`
	CredentialID    string      `json:"credentialId"` // base64url, globally unique
	PublicKey       []byte      `json:"-"`
	SignCount       uint32      `json:"signCount"`
	DeviceClass     DeviceClass `json:"deviceClass"`
	Transports      []string    `json:"transports,omitempty"`
	BackupEligible  bool        `json:"backupEligible"`
	BackupState     bool        `json:"backupState"`
	AttestationType string      `json:"attestationType"`
	AAGUID          []byte      `json:"-"`
	Name            *string     `json:"name,omitempty"`
	IsActive        bool        `json:"isActive"`
	LastUsedAt      *time.Time  `json:"lastUsedAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// ChallengeType binds a challenge to the ceremony it was issued for
type ChallengeType string

const (
	ChallengeTypeRegistration   ChallengeType = "registration"
	ChallengeTypeAuthentication ChallengeType = "authentication"
)

// AuthChallenge is a short-lived, single-use random value issued at the start
// of a WebAuthn ceremony. It may be consumed at most once. SessionData holds
// the serialized ceremony state so completion can run on any server instance.
type AuthChallenge struct {
	ID          string        `json:"id"`
	Value       string        `json:"value"` // base64url-encoded random bytes
	Type        ChallengeType `json:"type"`
	AccountID   *string       `json:"accountId,omitempty"`
	Origin      string        `json:"origin"`
	SessionData []byte        `json:"-"`
	Used        bool          `json:"used"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// IsExpired checks if the challenge is past its expiry
func (c *AuthChallenge) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
