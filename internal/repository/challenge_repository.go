package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wishvault/wishvault/internal/database"
	"github.com/wishvault/wishvault/internal/model"
)

// ChallengeRepository handles single-use ceremony challenge persistence
type ChallengeRepository struct {
	db *database.Postgres
}

// NewChallengeRepository creates a new ChallengeRepository
func NewChallengeRepository(db *database.Postgres) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

// Create inserts a new challenge
func (r *ChallengeRepository) Create(ctx context.Context, ch *model.AuthChallenge) error {
	query := `
		INSERT INTO auth_challenges (id, value, type, account_id, origin, session_data, used, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		ch.ID,
		ch.Value,
		ch.Type,
		ch.AccountID,
		ch.Origin,
		ch.SessionData,
		ch.Used,
		ch.ExpiresAt,
		ch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

// Get retrieves a challenge by value and ceremony type without consuming it
func (r *ChallengeRepository) Get(ctx context.Context, value string, challengeType model.ChallengeType) (*model.AuthChallenge, error) {
	query := `
		SELECT id, value, type, account_id, origin, session_data, used, expires_at, created_at
		FROM auth_challenges
		WHERE value = $1 AND type = $2
	`
	return r.scanChallenge(r.db.QueryRowContext(ctx, query, value, challengeType))
}

// Consume atomically marks an unused challenge as used and returns it. The
// conditional UPDATE guarantees that when several callers race on the same
// value, exactly one receives the challenge and the rest get ErrNotFound.
// Expiry is checked here rather than filtered in SQL so callers can tell an
// expired challenge apart from a missing or already-consumed one.
func (r *ChallengeRepository) Consume(ctx context.Context, value string, challengeType model.ChallengeType) (*model.AuthChallenge, error) {
	query := `
		UPDATE auth_challenges
		SET used = true
		WHERE value = $1 AND type = $2 AND used = false
		RETURNING id, value, type, account_id, origin, session_data, used, expires_at, created_at
	`
	return r.scanChallenge(r.db.QueryRowContext(ctx, query, value, challengeType))
}

// DeleteExpired removes challenges past their expiry and returns the count removed
func (r *ChallengeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM auth_challenges WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

func (r *ChallengeRepository) scanChallenge(row *sql.Row) (*model.AuthChallenge, error) {
	var ch model.AuthChallenge
	err := row.Scan(
		&ch.ID,
		&ch.Value,
		&ch.Type,
		&ch.AccountID,
		&ch.Origin,
		&ch.SessionData,
		&ch.Used,
		&ch.ExpiresAt,
		&ch.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan challenge: %w", err)
	}
	return &ch, nil
}
