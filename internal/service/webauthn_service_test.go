package service

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishvault/wishvault/internal/model"
	"github.com/wishvault/wishvault/internal/webauthn"
)

func TestFinishRegistrationStoresCredential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	env.verifier.nextChallenge = "reg-chal-1"
	env.verifier.regResult = &webauthn.RegistrationResult{
		CredentialID:    "cred-alice-1",
		PublicKey:       []byte("pubkey"),
		SignCount:       0,
		AttestationType: "none",
		DeviceClass:     model.DeviceClassPlatform,
	}

	_, err := env.webauthnSvc.BeginRegistration(ctx, account.ID)
	require.NoError(t, err)

	cred, err := env.webauthnSvc.FinishRegistration(ctx, account.ID, "My Passkey", fakeBody("reg-chal-1", []byte("raw-1")), testMeta())
	require.NoError(t, err)
	assert.Equal(t, "cred-alice-1", cred.CredentialID)
	assert.True(t, cred.IsActive)
	require.NotNil(t, cred.Name)
	assert.Equal(t, "My Passkey", *cred.Name)

	stored, err := env.creds.GetByCredentialID(ctx, "cred-alice-1")
	require.NoError(t, err)
	assert.Equal(t, account.ID, stored.AccountID)

	assert.Equal(t, 1, env.events.countByType(model.EventWebAuthnRegistered))
}

func TestFinishRegistrationReplayedResponse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	env.verifier.nextChallenge = "reg-chal-2"
	env.verifier.regResult = &webauthn.RegistrationResult{CredentialID: "cred-alice-2", PublicKey: []byte("pubkey")}

	_, err := env.webauthnSvc.BeginRegistration(ctx, account.ID)
	require.NoError(t, err)

	_, err = env.webauthnSvc.FinishRegistration(ctx, account.ID, "", fakeBody("reg-chal-2", []byte("raw-2")), testMeta())
	require.NoError(t, err)

	_, err = env.webauthnSvc.FinishRegistration(ctx, account.ID, "", fakeBody("reg-chal-2", []byte("raw-2")), testMeta())
	assert.ErrorIs(t, err, ErrChallengeAlreadyUsed)
}

func TestFinishRegistrationWrongAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "alice@example.com")
	mallory := env.seedAccount(t, "mallory", "mallory@example.com")

	env.verifier.nextChallenge = "reg-chal-3"
	env.verifier.regResult = &webauthn.RegistrationResult{CredentialID: "cred-x", PublicKey: []byte("pubkey")}

	_, err := env.webauthnSvc.BeginRegistration(ctx, alice.ID)
	require.NoError(t, err)

	_, err = env.webauthnSvc.FinishRegistration(ctx, mallory.ID, "", fakeBody("reg-chal-3", []byte("raw-3")), testMeta())
	assert.ErrorIs(t, err, ErrChallengeMismatch)
}

func TestFinishRegistrationOriginMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	env.verifier.nextChallenge = "reg-chal-origin"
	env.verifier.regResult = &webauthn.RegistrationResult{CredentialID: "cred-origin", PublicKey: []byte("pubkey")}

	_, err := env.webauthnSvc.BeginRegistration(ctx, account.ID)
	require.NoError(t, err)

	_, err = env.webauthnSvc.FinishRegistration(ctx, account.ID, "", fakeBodyFromOrigin("reg-chal-origin", "https://evil.example.com", []byte("raw-o")), testMeta())
	assert.ErrorIs(t, err, ErrChallengeOriginMismatch)
	assert.Equal(t, 0, env.verifier.regVerifyCalls(), "attestation verification must not run for a foreign origin")

	// The mismatched attempt already burned the challenge.
	_, err = env.webauthnSvc.FinishRegistration(ctx, account.ID, "", fakeBody("reg-chal-origin", []byte("raw-o")), testMeta())
	assert.ErrorIs(t, err, ErrChallengeAlreadyUsed)
}

func TestBeginAuthenticationWithoutCredentials(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "alice", "alice@example.com")

	_, err := env.webauthnSvc.BeginAuthentication(context.Background(), account.Username)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestFinishAuthenticationSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	rawID := []byte("raw-cred-auth")
	credentialID := base64.RawURLEncoding.EncodeToString(rawID)
	env.seedCredential(t, account.ID, credentialID, 5)

	env.verifier.nextChallenge = "auth-chal-1"
	env.verifier.authResult = &webauthn.AuthenticationResult{CredentialID: credentialID, NewSignCount: 6}

	_, err := env.webauthnSvc.BeginAuthentication(ctx, "alice@example.com")
	require.NoError(t, err)

	gotAccount, gotCred, err := env.webauthnSvc.FinishAuthentication(ctx, fakeBody("auth-chal-1", rawID), testMeta())
	require.NoError(t, err)
	assert.Equal(t, account.ID, gotAccount.ID)
	assert.Equal(t, credentialID, gotCred.CredentialID)

	stored, err := env.creds.GetByCredentialID(ctx, credentialID)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), stored.SignCount)
	assert.NotNil(t, stored.LastUsedAt)

	assert.Equal(t, 1, env.events.countByType(model.EventWebAuthnLoginSuccess))
}

func TestFinishAuthenticationOriginMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	rawID := []byte("raw-cred-origin")
	credentialID := base64.RawURLEncoding.EncodeToString(rawID)
	env.seedCredential(t, account.ID, credentialID, 5)

	env.verifier.nextChallenge = "auth-chal-origin"
	env.verifier.authResult = &webauthn.AuthenticationResult{CredentialID: credentialID, NewSignCount: 6}

	_, err := env.webauthnSvc.BeginAuthentication(ctx, "alice")
	require.NoError(t, err)

	_, _, err = env.webauthnSvc.FinishAuthentication(ctx, fakeBodyFromOrigin("auth-chal-origin", "https://evil.example.com", rawID), testMeta())
	assert.ErrorIs(t, err, ErrChallengeOriginMismatch)
	assert.Equal(t, 0, env.verifier.authVerifyCalls(), "assertion verification must not run for a foreign origin")

	// The mismatched attempt already burned the challenge.
	_, _, err = env.webauthnSvc.FinishAuthentication(ctx, fakeBody("auth-chal-origin", rawID), testMeta())
	assert.ErrorIs(t, err, ErrChallengeAlreadyUsed)

	stored, err := env.creds.GetByCredentialID(ctx, credentialID)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), stored.SignCount)
}

func TestFinishAuthenticationZeroCounterAllowed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	rawID := []byte("raw-cred-zero")
	credentialID := base64.RawURLEncoding.EncodeToString(rawID)
	env.seedCredential(t, account.ID, credentialID, 0)

	env.verifier.nextChallenge = "auth-chal-zero"
	env.verifier.authResult = &webauthn.AuthenticationResult{CredentialID: credentialID, NewSignCount: 0}

	_, err := env.webauthnSvc.BeginAuthentication(ctx, "alice")
	require.NoError(t, err)

	_, _, err = env.webauthnSvc.FinishAuthentication(ctx, fakeBody("auth-chal-zero", rawID), testMeta())
	require.NoError(t, err)

	stored, err := env.creds.GetByCredentialID(ctx, credentialID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.NotNil(t, stored.LastUsedAt)
}

func TestFinishAuthenticationCounterRegression(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	rawID := []byte("raw-cred-replay")
	credentialID := base64.RawURLEncoding.EncodeToString(rawID)
	env.seedCredential(t, account.ID, credentialID, 10)

	// The assertion verifies but the counter fails to advance.
	env.verifier.nextChallenge = "auth-chal-replay"
	env.verifier.authResult = &webauthn.AuthenticationResult{CredentialID: credentialID, NewSignCount: 10}

	_, err := env.webauthnSvc.BeginAuthentication(ctx, "alice")
	require.NoError(t, err)

	_, _, err = env.webauthnSvc.FinishAuthentication(ctx, fakeBody("auth-chal-replay", rawID), testMeta())
	assert.ErrorIs(t, err, ErrReplayDetected)

	stored, err := env.creds.GetByCredentialID(ctx, credentialID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive, "replayed credential must be deactivated")

	assert.Equal(t, 1, env.events.countByType(model.EventSuspiciousActivity))
}

func TestFinishAuthenticationCloneWarning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	rawID := []byte("raw-cred-clone")
	credentialID := base64.RawURLEncoding.EncodeToString(rawID)
	env.seedCredential(t, account.ID, credentialID, 3)

	env.verifier.nextChallenge = "auth-chal-clone"
	env.verifier.authResult = &webauthn.AuthenticationResult{CredentialID: credentialID, NewSignCount: 4, CloneWarning: true}

	_, err := env.webauthnSvc.BeginAuthentication(ctx, "alice")
	require.NoError(t, err)

	_, _, err = env.webauthnSvc.FinishAuthentication(ctx, fakeBody("auth-chal-clone", rawID), testMeta())
	assert.ErrorIs(t, err, ErrReplayDetected)

	stored, err := env.creds.GetByCredentialID(ctx, credentialID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestFinishAuthenticationLockedAccountSkipsVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	rawID := []byte("raw-cred-locked")
	credentialID := base64.RawURLEncoding.EncodeToString(rawID)
	env.seedCredential(t, account.ID, credentialID, 1)

	env.verifier.nextChallenge = "auth-chal-locked"
	env.verifier.authResult = &webauthn.AuthenticationResult{CredentialID: credentialID, NewSignCount: 2}

	_, err := env.webauthnSvc.BeginAuthentication(ctx, "alice")
	require.NoError(t, err)

	// Lock the account between begin and finish.
	for i := 0; i < 3; i++ {
		env.lockout.RecordFailure(ctx, account.ID, testMeta())
	}

	_, _, err = env.webauthnSvc.FinishAuthentication(ctx, fakeBody("auth-chal-locked", rawID), testMeta())
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Equal(t, 0, env.verifier.authVerifyCalls(), "signature verification must not run for a locked account")
}

func TestFinishAuthenticationFailuresLockAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	rawID := []byte("raw-cred-fail")
	credentialID := base64.RawURLEncoding.EncodeToString(rawID)
	env.seedCredential(t, account.ID, credentialID, 1)

	env.verifier.verifyAuthErr = assert.AnError

	for i := 0; i < 3; i++ {
		env.verifier.nextChallenge = "auth-chal-fail-" + string(rune('a'+i))
		_, err := env.webauthnSvc.BeginAuthentication(ctx, "alice")
		require.NoError(t, err)

		_, _, err = env.webauthnSvc.FinishAuthentication(ctx, fakeBody(env.verifier.nextChallenge, rawID), testMeta())
		assert.ErrorIs(t, err, ErrVerificationFailed)
	}

	updated, err := env.accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsLocked())
	assert.Equal(t, 1, env.events.countByType(model.EventLoginLocked))
	assert.Equal(t, 3, env.events.countByType(model.EventWebAuthnLoginFailed))
}

func TestFinishAuthenticationInactiveCredential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	rawID := []byte("raw-cred-inactive")
	credentialID := base64.RawURLEncoding.EncodeToString(rawID)
	env.seedCredential(t, account.ID, credentialID, 1)

	env.verifier.nextChallenge = "auth-chal-inactive"
	_, err := env.webauthnSvc.BeginAuthentication(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, env.creds.Deactivate(ctx, account.ID, credentialID))

	_, _, err = env.webauthnSvc.FinishAuthentication(ctx, fakeBody("auth-chal-inactive", rawID), testMeta())
	assert.ErrorIs(t, err, ErrCredentialInactive)
}

func TestRemoveCredential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")
	other := env.seedAccount(t, "bob", "bob@example.com")

	cred := env.seedCredential(t, account.ID, "cred-remove", 0)

	// Another account cannot remove it.
	err := env.webauthnSvc.RemoveCredential(ctx, other.ID, cred.CredentialID)
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	require.NoError(t, env.webauthnSvc.RemoveCredential(ctx, account.ID, cred.CredentialID))

	list, err := env.webauthnSvc.ListCredentials(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
