package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wishvault/wishvault/internal/logger"
	"github.com/wishvault/wishvault/internal/model"
	"github.com/wishvault/wishvault/internal/repository"
)

// ChallengeService manages the lifecycle of single-use ceremony challenges.
type ChallengeService struct {
	store ChallengeStore
	ttl   time.Duration
	log   *logger.Logger
}

// NewChallengeService creates a new ChallengeService
func NewChallengeService(store ChallengeStore, ttl time.Duration, log *logger.Logger) *ChallengeService {
	return &ChallengeService{
		store: store,
		ttl:   ttl,
		log:   log.WithComponent("challenge_service"),
	}
}

// Issue persists a challenge for a pending ceremony. The value is the
// base64url challenge the client must sign; sessionData is the serialized
// ceremony state restored at completion.
func (s *ChallengeService) Issue(ctx context.Context, value string, challengeType model.ChallengeType, accountID *string, origin string, sessionData []byte) (*model.AuthChallenge, error) {
	now := time.Now()
	ch := &model.AuthChallenge{
		ID:          generateID("chl"),
		Value:       value,
		Type:        challengeType,
		AccountID:   accountID,
		Origin:      origin,
		SessionData: sessionData,
		Used:        false,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("failed to issue challenge: %w", err)
	}
	return ch, nil
}

// Consume atomically claims a challenge for completion. When several callers
// present the same value concurrently, exactly one succeeds. A challenge that
// turns out to be expired is still burned by the claim, so retrying with it
// can never succeed.
func (s *ChallengeService) Consume(ctx context.Context, value string, challengeType model.ChallengeType) (*model.AuthChallenge, error) {
	ch, err := s.store.Consume(ctx, value, challengeType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.classifyMiss(ctx, value, challengeType)
		}
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	if ch.IsExpired() {
		return nil, ErrChallengeExpired
	}
	return ch, nil
}

// classifyMiss distinguishes a consumed challenge from one that never existed
func (s *ChallengeService) classifyMiss(ctx context.Context, value string, challengeType model.ChallengeType) error {
	ch, err := s.store.Get(ctx, value, challengeType)
	if err != nil {
		return ErrChallengeNotFound
	}
	if ch.Used {
		return ErrChallengeAlreadyUsed
	}
	return ErrChallengeNotFound
}

// PurgeExpired removes challenges past their expiry
func (s *ChallengeService) PurgeExpired(ctx context.Context) (int64, error) {
	deleted, err := s.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Debug().Int64("count", deleted).Msg("purged expired challenges")
	}
	return deleted, nil
}
