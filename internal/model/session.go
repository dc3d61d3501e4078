package model

import "time"

// AuthSession represents an issued session. Only the refresh token's hash is
// persisted; the raw refresh token is handed to the client exactly once.
type AuthSession struct {
	ID                string     `json:"id"`
	AccountID         string     `json:"accountId"`
	RefreshTokenHash  string     `json:"-"`
	DeviceFingerprint string     `json:"deviceFingerprint,omitempty"`
	IPAddress         string     `json:"ipAddress,omitempty"`
	UserAgent         string     `json:"userAgent,omitempty"`
	IsActive          bool       `json:"isActive"`
	ExpiresAt         time.Time  `json:"expiresAt"`
	RevokedAt         *time.Time `json:"revokedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// IsExpired checks if the session has expired
func (s *AuthSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsUsable reports whether the session can still be refreshed
func (s *AuthSession) IsUsable() bool {
	return s.IsActive && s.RevokedAt == nil && !s.IsExpired()
}
