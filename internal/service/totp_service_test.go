package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishvault/wishvault/internal/model"
)

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

// wrongCode returns a six-digit code guaranteed to differ from the valid one.
func wrongCode(valid string) string {
	if valid == "000000" {
		return "111111"
	}
	return "000000"
}

func enrollTwoFactor(t *testing.T, env *testEnv, accountID string) *SetupResult {
	t.Helper()
	setup, err := env.totpSvc.Setup(context.Background(), accountID)
	require.NoError(t, err)
	require.NoError(t, env.totpSvc.Confirm(context.Background(), accountID, currentCode(t, setup.Secret), testMeta()))
	return setup
}

func TestTOTPSetupAndConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	setup, err := env.totpSvc.Setup(ctx, account.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.NotEmpty(t, setup.QRCode)
	assert.Len(t, setup.RecoveryCodes, 4)

	// Not usable until confirmed.
	err = env.totpSvc.VerifyCode(ctx, account.ID, currentCode(t, setup.Secret))
	assert.ErrorIs(t, err, ErrTwoFactorNotEnabled)

	status, err := env.totpSvc.GetStatus(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	assert.True(t, status.PendingConfirmation)

	require.NoError(t, env.totpSvc.Confirm(ctx, account.ID, currentCode(t, setup.Secret), testMeta()))

	updated, err := env.accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, updated.TwoFactorEnabled)

	require.NoError(t, env.totpSvc.VerifyCode(ctx, account.ID, currentCode(t, setup.Secret)))
	assert.Equal(t, 1, env.events.countByType(model.EventTwoFactorEnabled))
}

func TestTOTPConfirmRejectsWrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	setup, err := env.totpSvc.Setup(ctx, account.ID)
	require.NoError(t, err)

	err = env.totpSvc.Confirm(ctx, account.ID, wrongCode(currentCode(t, setup.Secret)), testMeta())
	assert.ErrorIs(t, err, ErrInvalidCode)

	updated, err := env.accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, updated.TwoFactorEnabled)
}

func TestTOTPSetupReplacesPendingEnrollment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")

	first, err := env.totpSvc.Setup(ctx, account.ID)
	require.NoError(t, err)
	second, err := env.totpSvc.Setup(ctx, account.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.Secret, second.Secret)

	// The first secret is gone; only the second confirms.
	err = env.totpSvc.Confirm(ctx, account.ID, currentCode(t, first.Secret), testMeta())
	assert.ErrorIs(t, err, ErrInvalidCode)
	require.NoError(t, env.totpSvc.Confirm(ctx, account.ID, currentCode(t, second.Secret), testMeta()))

	// A confirmed enrollment cannot be replaced.
	_, err = env.totpSvc.Setup(ctx, account.ID)
	assert.ErrorIs(t, err, ErrTwoFactorEnrolled)
}

func TestRecoveryCodeAlphabet(t *testing.T) {
	const charset = "123456789abcdefghjkmnpqrstuvwxyz"
	for i := 0; i < 256; i++ {
		code := generateRecoveryCode()
		require.Len(t, code, 9)
		require.Equal(t, byte('-'), code[4])
		for _, c := range normalizeRecoveryCode(code) {
			assert.Containsf(t, charset, string(c), "code %q uses a character outside the alphabet", code)
		}
	}
}

func TestRecoveryCodeSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")
	setup := enrollTwoFactor(t, env, account.ID)

	code := setup.RecoveryCodes[0]
	require.NoError(t, env.totpSvc.VerifyRecoveryCode(ctx, account.ID, code, testMeta()))

	err := env.totpSvc.VerifyRecoveryCode(ctx, account.ID, code, testMeta())
	assert.ErrorIs(t, err, ErrInvalidCode)

	status, err := env.totpSvc.GetStatus(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, status.RecoveryCodesRemaining)
	assert.Equal(t, 1, env.events.countByType(model.EventRecoveryCodeUsed))
}

func TestRecoveryCodeFormatInsensitive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")
	setup := enrollTwoFactor(t, env, account.ID)

	// Codes are issued as xxxx-xxxx; accept them without the dash too.
	code := setup.RecoveryCodes[1]
	bare := code[:4] + code[5:]
	require.NoError(t, env.totpSvc.VerifyRecoveryCode(ctx, account.ID, bare, testMeta()))
}

func TestRecoveryCodeConcurrentConsume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")
	setup := enrollTwoFactor(t, env, account.ID)

	code := setup.RecoveryCodes[2]

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- env.totpSvc.VerifyRecoveryCode(ctx, account.ID, code, testMeta())
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrInvalidCode)
		}
	}
	assert.Equal(t, 1, successes, "a recovery code is consumed at most once")
}

func TestRecoveryCodesExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")
	setup := enrollTwoFactor(t, env, account.ID)

	for _, code := range setup.RecoveryCodes {
		require.NoError(t, env.totpSvc.VerifyRecoveryCode(ctx, account.ID, code, testMeta()))
	}

	err := env.totpSvc.VerifyRecoveryCode(ctx, account.ID, setup.RecoveryCodes[0], testMeta())
	assert.ErrorIs(t, err, ErrNoRecoveryCodes)
}

func TestTOTPDisable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "alice", "alice@example.com")
	setup := enrollTwoFactor(t, env, account.ID)

	require.NoError(t, env.totpSvc.Disable(ctx, account.ID, testMeta()))

	updated, err := env.accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, updated.TwoFactorEnabled)

	err = env.totpSvc.VerifyCode(ctx, account.ID, currentCode(t, setup.Secret))
	assert.ErrorIs(t, err, ErrTwoFactorNotEnabled)

	err = env.totpSvc.Disable(ctx, account.ID, testMeta())
	assert.ErrorIs(t, err, ErrTwoFactorNotEnabled)
	assert.Equal(t, 1, env.events.countByType(model.EventTwoFactorDisabled))
}
