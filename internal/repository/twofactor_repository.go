package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/wishvault/wishvault/internal/database"
	"github.com/wishvault/wishvault/internal/model"
)

// TwoFactorRepository handles encrypted TOTP secret and recovery code persistence
type TwoFactorRepository struct {
	db *database.Postgres
}

// NewTwoFactorRepository creates a new TwoFactorRepository
func NewTwoFactorRepository(db *database.Postgres) *TwoFactorRepository {
	return &TwoFactorRepository{db: db}
}

// Upsert stores the account's two-factor record, replacing any unconfirmed
// one. A confirmed record is never silently replaced; callers must Delete
// first, which keeps a live TOTP enrollment from being overwritten.
func (r *TwoFactorRepository) Upsert(ctx context.Context, tf *model.TwoFactorBackup) error {
	query := `
		INSERT INTO two_factor_backups (id, account_id, secret_encrypted, codes_encrypted, used_codes, confirmed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id)
		DO UPDATE SET id = EXCLUDED.id,
		              secret_encrypted = EXCLUDED.secret_encrypted,
		              codes_encrypted = EXCLUDED.codes_encrypted,
		              used_codes = EXCLUDED.used_codes,
		              confirmed = EXCLUDED.confirmed,
		              updated_at = EXCLUDED.updated_at
		WHERE two_factor_backups.confirmed = false
	`
	result, err := r.db.ExecContext(ctx, query,
		tf.ID,
		tf.AccountID,
		tf.SecretEncrypted,
		pq.ByteaArray(tf.CodesEncrypted),
		pq.Array(intsToInt64(tf.UsedCodes)),
		tf.Confirmed,
		tf.CreatedAt,
		tf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store two-factor record: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// GetByAccount retrieves the account's two-factor record
func (r *TwoFactorRepository) GetByAccount(ctx context.Context, accountID string) (*model.TwoFactorBackup, error) {
	query := `
		SELECT id, account_id, secret_encrypted, codes_encrypted, used_codes, confirmed, created_at, updated_at
		FROM two_factor_backups
		WHERE account_id = $1
	`
	var tf model.TwoFactorBackup
	var codes pq.ByteaArray
	var used pq.Int64Array
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&tf.ID,
		&tf.AccountID,
		&tf.SecretEncrypted,
		&codes,
		&used,
		&tf.Confirmed,
		&tf.CreatedAt,
		&tf.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get two-factor record: %w", err)
	}
	tf.CodesEncrypted = codes
	tf.UsedCodes = int64sToInts(used)
	return &tf, nil
}

// Confirm activates a pending two-factor record after the first successful
// code verification
func (r *TwoFactorRepository) Confirm(ctx context.Context, accountID string) error {
	query := `
		UPDATE two_factor_backups
		SET confirmed = true, updated_at = $1
		WHERE account_id = $2 AND confirmed = false
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), accountID)
	if err != nil {
		return fmt.Errorf("failed to confirm two-factor record: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeRecoveryCode atomically records a recovery code index as used. The
// conditional update guarantees a given index is consumed at most once even
// under concurrent verification attempts.
func (r *TwoFactorRepository) ConsumeRecoveryCode(ctx context.Context, accountID string, index int) (bool, error) {
	query := `
		UPDATE two_factor_backups
		SET used_codes = array_append(used_codes, $1), updated_at = $2
		WHERE account_id = $3 AND confirmed = true AND NOT ($1 = ANY(used_codes))
	`
	result, err := r.db.ExecContext(ctx, query, index, time.Now(), accountID)
	if err != nil {
		return false, fmt.Errorf("failed to consume recovery code: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0, nil
}

// Delete removes the account's two-factor record
func (r *TwoFactorRepository) Delete(ctx context.Context, accountID string) error {
	query := `DELETE FROM two_factor_backups WHERE account_id = $1`
	result, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete two-factor record: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func intsToInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func int64sToInts(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
