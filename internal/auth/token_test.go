package auth

import (
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wishvault/wishvault/internal/config"
)

func testTokenConfig(t *testing.T, sessionTTL time.Duration) config.TokenConfig {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	require.NoError(t, err)

	return config.TokenConfig{
		SigningSecret:        hex.EncodeToString(b),
		MinSecretLength:      32,
		MinSecretEntropyBits: 128,
		SessionTokenTTL:      sessionTTL,
		RefreshTokenTTL:      24 * time.Hour,
		Issuer:               "wishvault-test",
	}
}

func TestNewTokenService(t *testing.T) {
	t.Run("rejects weak signing secret", func(t *testing.T) {
		cfg := testTokenConfig(t, time.Hour)
		cfg.SigningSecret = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

		svc, err := NewTokenService(cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrWeakSecret)
		assert.Nil(t, svc)
	})

	t.Run("rejects empty signing secret", func(t *testing.T) {
		cfg := testTokenConfig(t, time.Hour)
		cfg.SigningSecret = ""

		_, err := NewTokenService(cfg)
		assert.ErrorIs(t, err, ErrWeakSecret)
	})

	t.Run("accepts strong signing secret", func(t *testing.T) {
		svc, err := NewTokenService(testTokenConfig(t, time.Hour))
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestTokenService_SignAndVerify(t *testing.T) {
	t.Run("round trip returns account and session ids", func(t *testing.T) {
		svc, err := NewTokenService(testTokenConfig(t, time.Hour))
		require.NoError(t, err)

		signed, expiresAt, err := svc.SignSessionToken("acc_1234", "ses_5678")
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

		claims, err := svc.VerifySessionToken(signed)
		require.NoError(t, err)
		assert.Equal(t, "acc_1234", claims.Subject)
		assert.Equal(t, "ses_5678", claims.SessionID)
	})

	t.Run("expired token returns ErrTokenExpired", func(t *testing.T) {
		svc, err := NewTokenService(testTokenConfig(t, -time.Minute))
		require.NoError(t, err)

		signed, _, err := svc.SignSessionToken("acc_1234", "ses_5678")
		require.NoError(t, err)

		_, err = svc.VerifySessionToken(signed)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("token signed with another secret is invalid", func(t *testing.T) {
		svcA, err := NewTokenService(testTokenConfig(t, time.Hour))
		require.NoError(t, err)
		svcB, err := NewTokenService(testTokenConfig(t, time.Hour))
		require.NoError(t, err)

		signed, _, err := svcA.SignSessionToken("acc_1234", "ses_5678")
		require.NoError(t, err)

		_, err = svcB.VerifySessionToken(signed)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage token is invalid", func(t *testing.T) {
		svc, err := NewTokenService(testTokenConfig(t, time.Hour))
		require.NoError(t, err)

		_, err = svc.VerifySessionToken("not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestTokenService_GenerateRefreshToken(t *testing.T) {
	svc, err := NewTokenService(testTokenConfig(t, time.Hour))
	require.NoError(t, err)

	raw, hash, err := svc.GenerateRefreshToken()
	require.NoError(t, err)
	assert.Len(t, raw, 64) // 32 random bytes, hex-encoded
	assert.NotEqual(t, raw, hash)
	assert.Equal(t, HashToken(raw), hash)

	raw2, _, err := svc.GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
}
