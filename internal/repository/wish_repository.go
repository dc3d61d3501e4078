package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wishvault/wishvault/internal/database"
	"github.com/wishvault/wishvault/internal/model"
)

// WishRepository handles wish-list entry persistence
type WishRepository struct {
	db *database.Postgres
}

// NewWishRepository creates a new WishRepository
func NewWishRepository(db *database.Postgres) *WishRepository {
	return &WishRepository{db: db}
}

const wishColumns = `id, account_id, title, description, url, price_cents, fulfilled, created_at, updated_at`

// Create inserts a new wish
func (r *WishRepository) Create(ctx context.Context, wish *model.Wish) error {
	query := `
		INSERT INTO wishes (id, account_id, title, description, url, price_cents, fulfilled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		wish.ID,
		wish.AccountID,
		wish.Title,
		wish.Description,
		wish.URL,
		wish.PriceCents,
		wish.Fulfilled,
		wish.CreatedAt,
		wish.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wish: %w", err)
	}
	return nil
}

// GetByID retrieves a wish scoped to its owner (excludes soft-deleted)
func (r *WishRepository) GetByID(ctx context.Context, accountID, id string) (*model.Wish, error) {
	query := `SELECT ` + wishColumns + ` FROM wishes WHERE id = $1 AND account_id = $2 AND deleted_at IS NULL`
	return r.scanWish(r.db.QueryRowContext(ctx, query, id, accountID))
}

// ListByAccount returns the account's wishes, newest first
func (r *WishRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*model.Wish, error) {
	query := `
		SELECT ` + wishColumns + `
		FROM wishes
		WHERE account_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishes: %w", err)
	}
	defer rows.Close()

	var wishes []*model.Wish
	for rows.Next() {
		var w model.Wish
		err := rows.Scan(
			&w.ID,
			&w.AccountID,
			&w.Title,
			&w.Description,
			&w.URL,
			&w.PriceCents,
			&w.Fulfilled,
			&w.CreatedAt,
			&w.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wish: %w", err)
		}
		wishes = append(wishes, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wishes: %w", err)
	}
	return wishes, nil
}

// Update replaces the mutable fields of a wish scoped to its owner
func (r *WishRepository) Update(ctx context.Context, wish *model.Wish) error {
	query := `
		UPDATE wishes
		SET title = $1, description = $2, url = $3, price_cents = $4, fulfilled = $5, updated_at = $6
		WHERE id = $7 AND account_id = $8 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		wish.Title,
		wish.Description,
		wish.URL,
		wish.PriceCents,
		wish.Fulfilled,
		wish.UpdatedAt,
		wish.ID,
		wish.AccountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update wish: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks a wish as deleted, scoped to its owner
func (r *WishRepository) SoftDelete(ctx context.Context, accountID, id string) error {
	query := `UPDATE wishes SET deleted_at = $1 WHERE id = $2 AND account_id = $3 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete wish: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *WishRepository) scanWish(row *sql.Row) (*model.Wish, error) {
	var w model.Wish
	err := row.Scan(
		&w.ID,
		&w.AccountID,
		&w.Title,
		&w.Description,
		&w.URL,
		&w.PriceCents,
		&w.Fulfilled,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan wish: %w", err)
	}
	return &w, nil
}
