package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wishvault/wishvault/internal/auth"
	"github.com/wishvault/wishvault/internal/config"
	"github.com/wishvault/wishvault/internal/logger"
	"github.com/wishvault/wishvault/internal/model"
)

const (
	testSigningSecret = "4f9a1c83e7d2b6905a3f8c1d7e4b2a6908f5c3d1e9b7a4f2c6d8e0a1b3c5d7f9"
	testEncryptionKey = "6d1f0a9c3e5b7d2f4a8c0e6b1d3f5a7c9e2b4d6f8a0c1e3b5d7f9a2c4e6b8d0f"
	testPassword      = "correct-horse-battery"
)

// Cheap hashing parameters keep the test suite fast.
func testArgonConfig() config.PasswordConfig {
	return config.PasswordConfig{
		MinLength:         12,
		Argon2Memory:      8 * 1024,
		Argon2Iterations:  1,
		Argon2Parallelism: 1,
	}
}

type testEnv struct {
	accounts   *memAccounts
	creds      *memCredentials
	challenges *memChallenges
	twoFactor  *memTwoFactor
	sessions   *memSessions
	events     *memEvents
	wishes     *memWishes
	kv         *memKV
	verifier   *fakeVerifier

	challengeSvc *ChallengeService
	lockout      *Lockout
	audit        *AuditRecorder
	webauthnSvc  *WebAuthnService
	totpSvc      *TOTPService
	sessionSvc   *SessionService
	authSvc      *AuthService
	wishSvc      *WishService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.New("disabled", "json")

	cfg := &config.Config{}
	cfg.Security.Password = testArgonConfig()
	cfg.Security.Tokens = config.TokenConfig{
		SigningSecret:        testSigningSecret,
		MinSecretLength:      32,
		MinSecretEntropyBits: 128,
		SessionTokenTTL:      time.Hour,
		RefreshTokenTTL:      720 * time.Hour,
		Issuer:               "wishvault-test",
	}
	cfg.Security.Lockout = config.LockoutConfig{
		MaxAttempts:      3,
		BaseLockDuration: 5 * time.Minute,
	}
	cfg.WebAuthn = config.WebAuthnConfig{
		RPID:         "localhost",
		RPName:       "WishVault",
		RPOrigins:    []string{"http://localhost:3000"},
		ChallengeTTL: 5 * time.Minute,
	}
	cfg.TOTP = config.TOTPConfig{
		Issuer:            "WishVault",
		Digits:            6,
		Period:            30,
		RecoveryCodeCount: 4,
	}

	tokens, err := auth.NewTokenService(cfg.Security.Tokens)
	require.NoError(t, err)

	box, err := auth.NewSecretBox(testEncryptionKey)
	require.NoError(t, err)

	env := &testEnv{
		accounts:   newMemAccounts(),
		creds:      newMemCredentials(),
		challenges: newMemChallenges(),
		twoFactor:  newMemTwoFactor(),
		sessions:   newMemSessions(),
		events:     newMemEvents(),
		wishes:     newMemWishes(),
		kv:         newMemKV(),
		verifier:   &fakeVerifier{},
	}

	env.audit = NewAuditRecorder(env.events, log)
	env.lockout = NewLockout(env.accounts, env.audit, cfg.Security.Lockout, log)
	env.challengeSvc = NewChallengeService(env.challenges, cfg.WebAuthn.ChallengeTTL, log)
	env.webauthnSvc = NewWebAuthnService(env.accounts, env.creds, env.challengeSvc, env.verifier, env.lockout, env.audit, cfg.WebAuthn, log)
	env.totpSvc = NewTOTPService(env.accounts, env.twoFactor, box, env.audit, cfg.TOTP, log)
	env.sessionSvc = NewSessionService(env.sessions, tokens, env.audit, log)
	env.authSvc = NewAuthService(env.accounts, env.events, env.sessionSvc, env.totpSvc, env.lockout, env.audit, env.kv, cfg, log)
	env.wishSvc = NewWishService(env.wishes, log)

	return env
}

// seedAccount creates an active account with the shared test password.
func (e *testEnv) seedAccount(t *testing.T, username, email string) *model.Account {
	t.Helper()

	hash, err := auth.HashPassword(testPassword, auth.NewParams(8*1024, 1, 1))
	require.NoError(t, err)

	now := time.Now()
	account := &model.Account{
		ID:            generateID("acc"),
		Username:      username,
		Email:         email,
		EmailVerified: true,
		PasswordHash:  hash,
		Status:        model.AccountStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, e.accounts.Create(context.Background(), account))
	return account
}

// seedCredential stores an active WebAuthn credential for the account.
func (e *testEnv) seedCredential(t *testing.T, accountID, credentialID string, signCount uint32) *model.WebAuthnCredential {
	t.Helper()

	now := time.Now()
	cred := &model.WebAuthnCredential{
		ID:           generateID("crd"),
		AccountID:    accountID,
		CredentialID: credentialID,
		PublicKey:    []byte("test-public-key"),
		SignCount:    signCount,
		DeviceClass:  model.DeviceClassCrossPlatform,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.creds.Create(context.Background(), cred))
	return cred
}

func testMeta() RequestMeta {
	return RequestMeta{IPAddress: "203.0.113.10", UserAgent: "test-agent"}
}
