package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wishvault/wishvault/internal/database"
	"github.com/wishvault/wishvault/internal/model"
)

// SessionRepository handles auth session persistence
type SessionRepository struct {
	db *database.Postgres
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *database.Postgres) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, account_id, refresh_token_hash, device_fingerprint, ip_address,
       user_agent, is_active, expires_at, revoked_at, created_at`

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, session *model.AuthSession) error {
	query := `
		INSERT INTO auth_sessions (id, account_id, refresh_token_hash, device_fingerprint,
		                           ip_address, user_agent, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.AccountID,
		session.RefreshTokenHash,
		session.DeviceFingerprint,
		session.IPAddress,
		session.UserAgent,
		session.IsActive,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.AuthSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM auth_sessions WHERE id = $1`
	return r.scanSession(r.db.QueryRowContext(ctx, query, id))
}

// GetByRefreshHash retrieves a session by refresh token hash
func (r *SessionRepository) GetByRefreshHash(ctx context.Context, hash string) (*model.AuthSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM auth_sessions WHERE refresh_token_hash = $1`
	return r.scanSession(r.db.QueryRowContext(ctx, query, hash))
}

// ListActiveByAccount returns the account's active sessions, newest first
func (r *SessionRepository) ListActiveByAccount(ctx context.Context, accountID string) ([]*model.AuthSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM auth_sessions
		WHERE account_id = $1 AND is_active = true AND expires_at > $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, accountID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.AuthSession
	for rows.Next() {
		var s model.AuthSession
		err := rows.Scan(
			&s.ID,
			&s.AccountID,
			&s.RefreshTokenHash,
			&s.DeviceFingerprint,
			&s.IPAddress,
			&s.UserAgent,
			&s.IsActive,
			&s.ExpiresAt,
			&s.RevokedAt,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// Rotate atomically revokes the session identified by oldHash and creates its
// successor in a single transaction. If the old session is already inactive,
// revoked, or expired, nothing is written and ErrNotFound is returned, so a
// presented-twice refresh token can never yield two live sessions.
func (r *SessionRepository) Rotate(ctx context.Context, oldHash string, successor *model.AuthSession) (*model.AuthSession, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	revokeQuery := `
		UPDATE auth_sessions
		SET is_active = false, revoked_at = $1
		WHERE refresh_token_hash = $2 AND is_active = true AND revoked_at IS NULL AND expires_at > $1
		RETURNING ` + sessionColumns + `
	`
	old, err := r.scanSession(tx.QueryRowContext(ctx, revokeQuery, time.Now(), oldHash))
	if err != nil {
		return nil, err
	}

	insertQuery := `
		INSERT INTO auth_sessions (id, account_id, refresh_token_hash, device_fingerprint,
		                           ip_address, user_agent, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.ExecContext(ctx, insertQuery,
		successor.ID,
		successor.AccountID,
		successor.RefreshTokenHash,
		successor.DeviceFingerprint,
		successor.IPAddress,
		successor.UserAgent,
		successor.IsActive,
		successor.ExpiresAt,
		successor.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create successor session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session rotation: %w", err)
	}
	return old, nil
}

// Revoke deactivates a single session
func (r *SessionRepository) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE auth_sessions
		SET is_active = false, revoked_at = $1
		WHERE id = $2 AND is_active = true
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAllForAccount deactivates every active session belonging to the
// account and returns the count revoked
func (r *SessionRepository) RevokeAllForAccount(ctx context.Context, accountID string) (int64, error) {
	query := `
		UPDATE auth_sessions
		SET is_active = false, revoked_at = $1
		WHERE account_id = $2 AND is_active = true
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	revoked, _ := result.RowsAffected()
	return revoked, nil
}

// DeleteExpired removes sessions that expired before the cutoff and returns
// the count removed
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM auth_sessions WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

func (r *SessionRepository) scanSession(row *sql.Row) (*model.AuthSession, error) {
	var s model.AuthSession
	err := row.Scan(
		&s.ID,
		&s.AccountID,
		&s.RefreshTokenHash,
		&s.DeviceFingerprint,
		&s.IPAddress,
		&s.UserAgent,
		&s.IsActive,
		&s.ExpiresAt,
		&s.RevokedAt,
		&s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &s, nil
}
