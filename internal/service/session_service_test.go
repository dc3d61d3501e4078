package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishvault/wishvault/internal/auth"
	"github.com/wishvault/wishvault/internal/model"
)

func TestSessionIssueAndVerify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	pair, err := env.sessionSvc.Issue(ctx, account.ID, "device-1", testMeta())
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEmpty(t, pair.SessionToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Greater(t, pair.ExpiresIn, 0)

	claims, err := env.sessionSvc.Verify(ctx, pair.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.Subject)
	assert.Equal(t, pair.SessionID, claims.SessionID)
}

func TestSessionVerifyGarbageToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.sessionSvc.Verify(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSessionRefreshRotates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	first, err := env.sessionSvc.Issue(ctx, account.ID, "device-1", testMeta())
	require.NoError(t, err)

	second, err := env.sessionSvc.Refresh(ctx, first.RefreshToken, testMeta())
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	// The rotated-out session no longer verifies.
	_, err = env.sessionSvc.Verify(ctx, first.SessionToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	_, err = env.sessionSvc.Verify(ctx, second.SessionToken)
	assert.NoError(t, err)
}

func TestSessionRefreshReuseRevokesAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	first, err := env.sessionSvc.Issue(ctx, account.ID, "device-1", testMeta())
	require.NoError(t, err)
	second, err := env.sessionSvc.Refresh(ctx, first.RefreshToken, testMeta())
	require.NoError(t, err)

	// Presenting the already-rotated token is treated as theft.
	_, err = env.sessionSvc.Refresh(ctx, first.RefreshToken, testMeta())
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	active, err := env.sessionSvc.ListActive(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, active, "every session must be revoked after refresh reuse")

	_, err = env.sessionSvc.Verify(ctx, second.SessionToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	assert.Equal(t, 1, env.events.countByType(model.EventSuspiciousActivity))
}

func TestSessionRefreshUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.sessionSvc.Refresh(context.Background(), "deadbeef", testMeta())
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestSessionRefreshExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	raw := "stale-refresh-token"
	now := time.Now()
	require.NoError(t, env.sessions.Create(ctx, &model.AuthSession{
		ID:               generateID("ses"),
		AccountID:        account.ID,
		RefreshTokenHash: auth.HashToken(raw),
		IsActive:         true,
		ExpiresAt:        now.Add(-time.Minute),
		CreatedAt:        now.Add(-time.Hour),
	}))

	_, err := env.sessionSvc.Refresh(ctx, raw, testMeta())
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestSessionRevokeOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "alice@example.com")
	bob := env.seedAccount(t, "bob", "bob@example.com")

	pair, err := env.sessionSvc.Issue(ctx, alice.ID, "device-1", testMeta())
	require.NoError(t, err)

	err = env.sessionSvc.Revoke(ctx, bob.ID, pair.SessionID)
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, env.sessionSvc.Revoke(ctx, alice.ID, pair.SessionID))

	_, err = env.sessionSvc.Verify(ctx, pair.SessionToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestSessionRevokeAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	for i := 0; i < 3; i++ {
		_, err := env.sessionSvc.Issue(ctx, account.ID, "device", testMeta())
		require.NoError(t, err)
	}

	revoked, err := env.sessionSvc.RevokeAll(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), revoked)

	active, err := env.sessionSvc.ListActive(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}
