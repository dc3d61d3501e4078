package model

import "time"

// TwoFactorBackup holds an account's encrypted TOTP secret and recovery
// codes. At most one row exists per account. A recovery code index, once
// recorded in UsedCodes, can never again satisfy a verification.
type TwoFactorBackup struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"accountId"`
	SecretEncrypted []byte    `json:"-"` // encrypted TOTP secret, never expose
	CodesEncrypted  [][]byte  `json:"-"` // encrypted recovery codes by index
	UsedCodes       []int     `json:"-"` // consumed recovery code indices
	Confirmed       bool      `json:"confirmed"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// IsCodeUsed reports whether the recovery code at the given index has
// already been consumed
func (b *TwoFactorBackup) IsCodeUsed(index int) bool {
	for _, used := range b.UsedCodes {
		if used == index {
			return true
		}
	}
	return false
}

// RemainingCodes returns the count of unconsumed recovery codes
func (b *TwoFactorBackup) RemainingCodes() int {
	return len(b.CodesEncrypted) - len(b.UsedCodes)
}
