package model

import "time"

// SecurityEventType is the closed set of auditable security events
type SecurityEventType string

const (
	EventLoginSuccess         SecurityEventType = "login_success"
	EventLoginFailed          SecurityEventType = "login_failed"
	EventLoginLocked          SecurityEventType = "login_locked"
	EventWebAuthnRegistered   SecurityEventType = "webauthn_registered"
	EventWebAuthnLoginSuccess SecurityEventType = "webauthn_login_success"
	EventWebAuthnLoginFailed  SecurityEventType = "webauthn_login_failed"
	EventRecoveryCodeUsed     SecurityEventType = "recovery_code_used"
	EventSuspiciousActivity   SecurityEventType = "suspicious_activity"
	EventPasswordChanged      SecurityEventType = "password_changed"
	EventTwoFactorEnabled     SecurityEventType = "2fa_enabled"
	EventTwoFactorDisabled    SecurityEventType = "2fa_disabled"
)

// SecurityEvent is an append-only audit record. Application logic never
// updates or deletes rows; audit queries preserve creation order.
type SecurityEvent struct {
	ID        string                 `json:"id"`
	AccountID *string                `json:"accountId,omitempty"`
	Type      SecurityEventType      `json:"type"`
	IPAddress string                 `json:"ipAddress,omitempty"`
	UserAgent string                 `json:"userAgent,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}
