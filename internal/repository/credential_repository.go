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

// CredentialRepository handles WebAuthn credential persistence
type CredentialRepository struct {
	db *database.Postgres
}

// NewCredentialRepository creates a new CredentialRepository
func NewCredentialRepository(db *database.Postgres) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const credentialColumns = `id, account_id, credential_id, public_key, sign_count, device_class,
       transports, backup_eligible, backup_state, attestation_type, aaguid,
       name, is_active, last_used_at, created_at, updated_at`

// Create inserts a new credential. The credential ID is globally unique; a
// collision with any existing credential returns ErrDuplicate.
func (r *CredentialRepository) Create(ctx context.Context, cred *model.WebAuthnCredential) error {
	query := `
		INSERT INTO webauthn_credentials (id, account_id, credential_id, public_key, sign_count,
		                                  device_class, transports, backup_eligible, backup_state,
		                                  attestation_type, aaguid, name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		cred.ID,
		cred.AccountID,
		cred.CredentialID,
		cred.PublicKey,
		cred.SignCount,
		cred.DeviceClass,
		pq.StringArray(cred.Transports),
		cred.BackupEligible,
		cred.BackupState,
		cred.AttestationType,
		cred.AAGUID,
		cred.Name,
		cred.IsActive,
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

// GetByCredentialID retrieves a credential by its WebAuthn credential ID
func (r *CredentialRepository) GetByCredentialID(ctx context.Context, credentialID string) (*model.WebAuthnCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM webauthn_credentials WHERE credential_id = $1`
	return r.scanCredential(r.db.QueryRowContext(ctx, query, credentialID))
}

// ListActiveByAccount returns the account's active credentials, oldest first
func (r *CredentialRepository) ListActiveByAccount(ctx context.Context, accountID string) ([]*model.WebAuthnCredential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM webauthn_credentials
		WHERE account_id = $1 AND is_active = true
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*model.WebAuthnCredential
	for rows.Next() {
		cred, err := scanCredentialRow(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credentials: %w", err)
	}
	return creds, nil
}

// CountActiveByAccount returns the number of active credentials for an account
func (r *CredentialRepository) CountActiveByAccount(ctx context.Context, accountID string) (int, error) {
	query := `SELECT COUNT(*) FROM webauthn_credentials WHERE account_id = $1 AND is_active = true`
	var count int
	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count credentials: %w", err)
	}
	return count, nil
}

// AdvanceSignCount updates the signature counter only if the new value is
// strictly greater than the stored one. A false return with no error means
// the counter did not advance, which callers treat as a replay signal.
func (r *CredentialRepository) AdvanceSignCount(ctx context.Context, credentialID string, newCount uint32, usedAt time.Time) (bool, error) {
	query := `
		UPDATE webauthn_credentials
		SET sign_count = $1, last_used_at = $2, updated_at = $2
		WHERE credential_id = $3 AND is_active = true AND sign_count < $1
	`
	result, err := r.db.ExecContext(ctx, query, newCount, usedAt, credentialID)
	if err != nil {
		return false, fmt.Errorf("failed to advance sign count: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0, nil
}

// TouchZeroCounter records use of a credential whose authenticator always
// reports a zero signature counter
func (r *CredentialRepository) TouchZeroCounter(ctx context.Context, credentialID string, usedAt time.Time) error {
	query := `
		UPDATE webauthn_credentials
		SET last_used_at = $1, updated_at = $1
		WHERE credential_id = $2 AND is_active = true
	`
	result, err := r.db.ExecContext(ctx, query, usedAt, credentialID)
	if err != nil {
		return fmt.Errorf("failed to record credential use: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate marks a credential inactive. Inactive credentials are excluded
// from future ceremonies but kept for audit.
func (r *CredentialRepository) Deactivate(ctx context.Context, accountID, credentialID string) error {
	query := `
		UPDATE webauthn_credentials
		SET is_active = false, updated_at = $1
		WHERE account_id = $2 AND credential_id = $3 AND is_active = true
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), accountID, credentialID)
	if err != nil {
		return fmt.Errorf("failed to deactivate credential: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Rename sets the user-facing name of a credential
func (r *CredentialRepository) Rename(ctx context.Context, accountID, credentialID, name string) error {
	query := `
		UPDATE webauthn_credentials
		SET name = $1, updated_at = $2
		WHERE account_id = $3 AND credential_id = $4
	`
	result, err := r.db.ExecContext(ctx, query, name, time.Now(), accountID, credentialID)
	if err != nil {
		return fmt.Errorf("failed to rename credential: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type credentialScanner interface {
	Scan(dest ...interface{}) error
}

func (r *CredentialRepository) scanCredential(row *sql.Row) (*model.WebAuthnCredential, error) {
	cred, err := scanCredentialRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return cred, err
}

func scanCredentialRow(s credentialScanner) (*model.WebAuthnCredential, error) {
	var cred model.WebAuthnCredential
	var transports pq.StringArray
	err := s.Scan(
		&cred.ID,
		&cred.AccountID,
		&cred.CredentialID,
		&cred.PublicKey,
		&cred.SignCount,
		&cred.DeviceClass,
		&transports,
		&cred.BackupEligible,
		&cred.BackupState,
		&cred.AttestationType,
		&cred.AAGUID,
		&cred.Name,
		&cred.IsActive,
		&cred.LastUsedAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}
	cred.Transports = transports
	return &cred, nil
}
