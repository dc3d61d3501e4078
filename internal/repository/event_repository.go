package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wishvault/wishvault/internal/database"
	"github.com/wishvault/wishvault/internal/model"
)

// EventRepository handles the append-only security event log. There are no
// update or delete operations; rows are immutable once written.
type EventRepository struct {
	db *database.Postgres
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(db *database.Postgres) *EventRepository {
	return &EventRepository{db: db}
}

// Append writes a new security event
func (r *EventRepository) Append(ctx context.Context, event *model.SecurityEvent) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		metadataJSON = []byte("{}")
	}

	query := `
		INSERT INTO security_events (id, account_id, event_type, ip_address, user_agent, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.AccountID,
		event.Type,
		event.IPAddress,
		event.UserAgent,
		metadataJSON,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append security event: %w", err)
	}
	return nil
}

// ListByAccount returns the account's security events in creation order,
// oldest first, up to limit rows starting at offset
func (r *EventRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*model.SecurityEvent, error) {
	query := `
		SELECT id, account_id, event_type, ip_address, user_agent, metadata, created_at
		FROM security_events
		WHERE account_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	defer rows.Close()

	var events []*model.SecurityEvent
	for rows.Next() {
		var e model.SecurityEvent
		var metadataJSON []byte
		err := rows.Scan(
			&e.ID,
			&e.AccountID,
			&e.Type,
			&e.IPAddress,
			&e.UserAgent,
			&metadataJSON,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		if len(metadataJSON) > 0 {
			json.Unmarshal(metadataJSON, &e.Metadata)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate security events: %w", err)
	}
	return events, nil
}

// CountByAccountAndType returns how many of the account's most recent events,
// capped at limit, are of the given type. Used for abuse heuristics.
func (r *EventRepository) CountByAccountAndType(ctx context.Context, accountID string, eventType model.SecurityEventType, limit int) (int, error) {
	query := `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM security_events
			WHERE account_id = $1 AND event_type = $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, accountID, eventType, limit).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count security events: %w", err)
	}
	return count, nil
}
