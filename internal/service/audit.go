package service

import (
	"context"
	"time"

	"github.com/wishvault/wishvault/internal/logger"
	"github.com/wishvault/wishvault/internal/model"
)

// AuditRecorder appends security events as a best-effort side effect. A
// failed append never fails the operation that triggered it; it is logged
// and the caller proceeds.
type AuditRecorder struct {
	events EventStore
	log    *logger.Logger
}

// NewAuditRecorder creates a new AuditRecorder
func NewAuditRecorder(events EventStore, log *logger.Logger) *AuditRecorder {
	return &AuditRecorder{
		events: events,
		log:    log.WithComponent("audit"),
	}
}

// Record appends a security event for an account
func (a *AuditRecorder) Record(ctx context.Context, accountID string, eventType model.SecurityEventType, meta RequestMeta, metadata map[string]interface{}) {
	event := &model.SecurityEvent{
		ID:        generateID("evt"),
		Type:      eventType,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if accountID != "" {
		event.AccountID = &accountID
	}

	if err := a.events.Append(ctx, event); err != nil {
		a.log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to append security event")
	}
}
