package service

import (
	"context"
	"time"

	"github.com/wishvault/wishvault/internal/config"
	"github.com/wishvault/wishvault/internal/logger"
	"github.com/wishvault/wishvault/internal/model"
)

// Lockout applies the failed-attempt policy shared by password and WebAuthn
// logins. Lock duration escalates as failures accumulate past the threshold.
type Lockout struct {
	accounts AccountStore
	audit    *AuditRecorder
	cfg      config.LockoutConfig
	log      *logger.Logger
}

// NewLockout creates a new Lockout
func NewLockout(accounts AccountStore, audit *AuditRecorder, cfg config.LockoutConfig, log *logger.Logger) *Lockout {
	return &Lockout{
		accounts: accounts,
		audit:    audit,
		cfg:      cfg,
		log:      log.WithComponent("lockout"),
	}
}

// RecordFailure increments the account's failed-attempt counter and locks the
// account when the threshold is crossed. Returns the new attempt count.
func (l *Lockout) RecordFailure(ctx context.Context, accountID string, meta RequestMeta) int {
	attempts, err := l.accounts.IncrementFailedAttempts(ctx, accountID)
	if err != nil {
		l.log.Error().Err(err).Str("account_id", accountID).Msg("failed to increment failed attempts")
		return 0
	}

	duration := l.lockDuration(attempts)
	if duration > 0 {
		until := time.Now().Add(duration)
		if err := l.accounts.LockUntil(ctx, accountID, until); err != nil {
			l.log.Error().Err(err).Str("account_id", accountID).Msg("failed to lock account")
			return attempts
		}

		l.audit.Record(ctx, accountID, model.EventLoginLocked, meta, map[string]interface{}{
			"failed_attempts": attempts,
			"lock_until":      until,
		})
		l.log.Warn().
			Str("account_id", accountID).
			Int("attempts", attempts).
			Dur("lock_duration", duration).
			Msg("account locked due to failed attempts")
	}

	return attempts
}

// Reset clears the failed-attempt counter after a successful login
func (l *Lockout) Reset(ctx context.Context, accountID string) {
	if err := l.accounts.ResetFailedAttempts(ctx, accountID); err != nil {
		l.log.Error().Err(err).Str("account_id", accountID).Msg("failed to reset failed attempts")
	}
}

func (l *Lockout) lockDuration(attempts int) time.Duration {
	max := l.cfg.MaxAttempts
	base := l.cfg.BaseLockDuration

	switch {
	case attempts >= 4*max:
		// Effectively permanent - requires manual unlock
		return 24 * 365 * time.Hour
	case attempts >= 3*max:
		return 24 * base
	case attempts >= 2*max:
		return 6 * base
	case attempts >= max:
		return base
	}
	return 0
}
