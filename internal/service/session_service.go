package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wishvault/wishvault/internal/auth"
	"github.com/wishvault/wishvault/internal/logger"
	"github.com/wishvault/wishvault/internal/model"
	"github.com/wishvault/wishvault/internal/repository"
)

// SessionService manages the session and refresh token lifecycle. Raw refresh
// tokens exist only in flight; the store holds their hashes.
type SessionService struct {
	sessions SessionStore
	tokens   *auth.TokenService
	audit    *AuditRecorder
	log      *logger.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(sessions SessionStore, tokens *auth.TokenService, audit *AuditRecorder, log *logger.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		tokens:   tokens,
		audit:    audit,
		log:      log.WithComponent("session_service"),
	}
}

// TokenPair is handed to the client after a successful login or refresh
type TokenPair struct {
	SessionToken string `json:"sessionToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"` // session token lifetime in seconds
	SessionID    string `json:"sessionId"`
}

// Issue creates a new session for an account and returns its token pair
func (s *SessionService) Issue(ctx context.Context, accountID, deviceFingerprint string, meta RequestMeta) (*TokenPair, error) {
	raw, hash, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	session := &model.AuthSession{
		ID:                generateID("ses"),
		AccountID:         accountID,
		RefreshTokenHash:  hash,
		DeviceFingerprint: deviceFingerprint,
		IPAddress:         meta.IPAddress,
		UserAgent:         meta.UserAgent,
		IsActive:          true,
		ExpiresAt:         now.Add(s.tokens.RefreshTokenTTL()),
		CreatedAt:         now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return s.tokenPair(accountID, session.ID, raw)
}

// Refresh exchanges a refresh token for a new token pair, rotating the
// session. Presenting an already-rotated or revoked refresh token is treated
// as theft: every session belonging to the account is revoked.
func (s *SessionService) Refresh(ctx context.Context, rawRefresh string, meta RequestMeta) (*TokenPair, error) {
	hash := auth.HashToken(rawRefresh)

	current, err := s.sessions.GetByRefreshHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if !current.IsActive || current.RevokedAt != nil {
		return nil, s.handleRefreshReuse(ctx, current, meta)
	}
	// An expired session's refresh token is indistinguishable from an
	// unknown one to the caller.
	if current.IsExpired() {
		return nil, ErrInvalidRefreshToken
	}

	raw, newHash, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	successor := &model.AuthSession{
		ID:                generateID("ses"),
		AccountID:         current.AccountID,
		RefreshTokenHash:  newHash,
		DeviceFingerprint: current.DeviceFingerprint,
		IPAddress:         meta.IPAddress,
		UserAgent:         meta.UserAgent,
		IsActive:          true,
		ExpiresAt:         now.Add(s.tokens.RefreshTokenTTL()),
		CreatedAt:         now,
	}

	if _, err := s.sessions.Rotate(ctx, hash, successor); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost the race against another rotation of the same token
			return nil, s.handleRefreshReuse(ctx, current, meta)
		}
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	s.log.Debug().Str("account_id", current.AccountID).Str("session_id", successor.ID).Msg("session rotated")
	return s.tokenPair(current.AccountID, successor.ID, raw)
}

// handleRefreshReuse revokes all of the account's sessions after a rotated
// refresh token was presented again
func (s *SessionService) handleRefreshReuse(ctx context.Context, session *model.AuthSession, meta RequestMeta) error {
	revoked, err := s.sessions.RevokeAllForAccount(ctx, session.AccountID)
	if err != nil {
		s.log.Error().Err(err).Str("account_id", session.AccountID).Msg("failed to revoke sessions after refresh reuse")
	}

	s.audit.Record(ctx, session.AccountID, model.EventSuspiciousActivity, meta, map[string]interface{}{
		"reason":           "refresh_token_reuse",
		"session_id":       session.ID,
		"sessions_revoked": revoked,
	})
	s.log.Warn().
		Str("account_id", session.AccountID).
		Str("session_id", session.ID).
		Int64("sessions_revoked", revoked).
		Msg("refresh token reuse detected, all sessions revoked")

	return ErrInvalidRefreshToken
}

// Verify validates a session token and confirms the underlying session is
// still live. A structurally valid token whose session was revoked fails.
func (s *SessionService) Verify(ctx context.Context, signedToken string) (*auth.SessionClaims, error) {
	claims, err := s.tokens.VerifySessionToken(signedToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidCredentials
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !session.IsActive || session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}

	return claims, nil
}

// Revoke deactivates one of the account's sessions
func (s *SessionService) Revoke(ctx context.Context, accountID, sessionID string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session.AccountID != accountID {
		return ErrNotOwner
	}

	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.log.Info().Str("account_id", accountID).Str("session_id", sessionID).Msg("session revoked")
	return nil
}

// RevokeAll deactivates every active session belonging to the account
func (s *SessionService) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	revoked, err := s.sessions.RevokeAllForAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	s.log.Info().Str("account_id", accountID).Int64("count", revoked).Msg("all sessions revoked")
	return revoked, nil
}

// ListActive returns the account's live sessions
func (s *SessionService) ListActive(ctx context.Context, accountID string) ([]*model.AuthSession, error) {
	return s.sessions.ListActiveByAccount(ctx, accountID)
}

// PurgeExpired removes sessions past their expiry
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, time.Now())
}

func (s *SessionService) tokenPair(accountID, sessionID, rawRefresh string) (*TokenPair, error) {
	signed, expiresAt, err := s.tokens.SignSessionToken(accountID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &TokenPair{
		SessionToken: signed,
		RefreshToken: rawRefresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(expiresAt).Seconds()),
		SessionID:    sessionID,
	}, nil
}
