package service

import (
	"context"
	"time"

	"github.com/wishvault/wishvault/internal/model"
)

// Storage interfaces implemented by the repository package. Services receive
// these explicitly so tests can substitute in-memory implementations.

// AccountStore persists accounts
type AccountStore interface {
	Create(ctx context.Context, account *model.Account) error
	GetByID(ctx context.Context, id string) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	VerifyEmail(ctx context.Context, id string) error
	SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	ResetFailedAttempts(ctx context.Context, id string) error
	LockUntil(ctx context.Context, id string, until time.Time) error
}

// CredentialStore persists WebAuthn credentials
type CredentialStore interface {
	Create(ctx context.Context, cred *model.WebAuthnCredential) error
	GetByCredentialID(ctx context.Context, credentialID string) (*model.WebAuthnCredential, error)
	ListActiveByAccount(ctx context.Context, accountID string) ([]*model.WebAuthnCredential, error)
	CountActiveByAccount(ctx context.Context, accountID string) (int, error)
	AdvanceSignCount(ctx context.Context, credentialID string, newCount uint32, usedAt time.Time) (bool, error)
	TouchZeroCounter(ctx context.Context, credentialID string, usedAt time.Time) error
	Deactivate(ctx context.Context, accountID, credentialID string) error
	Rename(ctx context.Context, accountID, credentialID, name string) error
}

// ChallengeStore persists single-use ceremony challenges
type ChallengeStore interface {
	Create(ctx context.Context, ch *model.AuthChallenge) error
	Get(ctx context.Context, value string, challengeType model.ChallengeType) (*model.AuthChallenge, error)
	Consume(ctx context.Context, value string, challengeType model.ChallengeType) (*model.AuthChallenge, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TwoFactorStore persists encrypted TOTP secrets and recovery codes
type TwoFactorStore interface {
	Upsert(ctx context.Context, tf *model.TwoFactorBackup) error
	GetByAccount(ctx context.Context, accountID string) (*model.TwoFactorBackup, error)
	Confirm(ctx context.Context, accountID string) error
	ConsumeRecoveryCode(ctx context.Context, accountID string, index int) (bool, error)
	Delete(ctx context.Context, accountID string) error
}

// SessionStore persists auth sessions
type SessionStore interface {
	Create(ctx context.Context, session *model.AuthSession) error
	GetByID(ctx context.Context, id string) (*model.AuthSession, error)
	GetByRefreshHash(ctx context.Context, hash string) (*model.AuthSession, error)
	ListActiveByAccount(ctx context.Context, accountID string) ([]*model.AuthSession, error)
	Rotate(ctx context.Context, oldHash string, successor *model.AuthSession) (*model.AuthSession, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForAccount(ctx context.Context, accountID string) (int64, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventStore persists the append-only security event log
type EventStore interface {
	Append(ctx context.Context, event *model.SecurityEvent) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*model.SecurityEvent, error)
}

// KVStore is the slice of Redis used for short-lived login and verification
// state. A missing or expired key surfaces as an error from GetString.
type KVStore interface {
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}

// WishStore persists wish-list entries
type WishStore interface {
	Create(ctx context.Context, wish *model.Wish) error
	GetByID(ctx context.Context, accountID, id string) (*model.Wish, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*model.Wish, error)
	Update(ctx context.Context, wish *model.Wish) error
	SoftDelete(ctx context.Context, accountID, id string) error
}
