package model

import (
	"time"
)

// AccountStatus represents the status of an account
type AccountStatus string

const (
	AccountStatusPendingVerification AccountStatus = "pending_verification"
	AccountStatusActive              AccountStatus = "active"
	AccountStatusLocked              AccountStatus = "locked"
	AccountStatusDisabled            AccountStatus = "disabled"
)

// Account represents the core account entity
type Account struct {
	ID               string        `json:"id"`
	Username         string        `json:"username"`
	Email            string        `json:"email"`
	EmailVerified    bool          `json:"emailVerified"`
	PasswordHash     string        `json:"-"` // never expose password hash
	Status           AccountStatus `json:"status"`
	TwoFactorEnabled bool          `json:"twoFactorEnabled"`
	FailedAttempts   int           `json:"-"`
	LockUntil        *time.Time    `json:"-"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	DeletedAt        *time.Time    `json:"-"`
}

// IsLocked checks if the account is currently locked
func (a *Account) IsLocked() bool {
	if a.LockUntil == nil {
		return false
	}
	return time.Now().Before(*a.LockUntil)
}

// IsActive checks if the account is active
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}
