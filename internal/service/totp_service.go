package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/wishvault/wishvault/internal/auth"
	"github.com/wishvault/wishvault/internal/config"
	"github.com/wishvault/wishvault/internal/logger"
	"github.com/wishvault/wishvault/internal/model"
	"github.com/wishvault/wishvault/internal/repository"
)

const recoveryCodeLength = 8 // characters per code

// TOTPService handles time-based one-time password enrollment and
// verification. Secrets and recovery codes are encrypted at rest; recovery
// codes are single-use.
type TOTPService struct {
	accounts  AccountStore
	twoFactor TwoFactorStore
	box       *auth.SecretBox
	audit     *AuditRecorder
	cfg       config.TOTPConfig
	log       *logger.Logger
}

// NewTOTPService creates a new TOTPService
func NewTOTPService(
	accounts AccountStore,
	twoFactor TwoFactorStore,
	box *auth.SecretBox,
	audit *AuditRecorder,
	cfg config.TOTPConfig,
	log *logger.Logger,
) *TOTPService {
	return &TOTPService{
		accounts:  accounts,
		twoFactor: twoFactor,
		box:       box,
		audit:     audit,
		cfg:       cfg,
		log:       log.WithComponent("totp_service"),
	}
}

// SetupResult is returned once at enrollment. The secret and recovery codes
// are never retrievable again in plaintext.
type SetupResult struct {
	Secret        string   `json:"secret"`
	QRCode        string   `json:"qrCode"` // base64 PNG
	RecoveryCodes []string `json:"recoveryCodes"`
}

// Setup generates a TOTP secret and recovery codes for an account. The
// enrollment stays pending until the first code is confirmed; calling Setup
// again before confirmation replaces the pending enrollment.
func (s *TOTPService) Setup(ctx context.Context, accountID string) (*SetupResult, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	existing, err := s.twoFactor.GetByAccount(ctx, accountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if existing != nil && existing.Confirmed {
		return nil, ErrTwoFactorEnrolled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.Issuer,
		AccountName: account.Email,
		Period:      uint(s.cfg.Period),
		Digits:      otp.Digits(s.cfg.Digits),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	secretEncrypted, err := s.box.Seal([]byte(key.Secret()))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	plainCodes := make([]string, s.cfg.RecoveryCodeCount)
	codesEncrypted := make([][]byte, s.cfg.RecoveryCodeCount)
	for i := range plainCodes {
		code := generateRecoveryCode()
		plainCodes[i] = code
		sealed, err := s.box.Seal([]byte(normalizeRecoveryCode(code)))
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt recovery code: %w", err)
		}
		codesEncrypted[i] = sealed
	}

	now := time.Now()
	record := &model.TwoFactorBackup{
		ID:              generateID("tfa"),
		AccountID:       accountID,
		SecretEncrypted: secretEncrypted,
		CodesEncrypted:  codesEncrypted,
		UsedCodes:       []int{},
		Confirmed:       false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.twoFactor.Upsert(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrTwoFactorEnrolled
		}
		return nil, fmt.Errorf("failed to store enrollment: %w", err)
	}

	qrPNG, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	s.log.Info().Str("account_id", accountID).Msg("TOTP setup initiated")

	return &SetupResult{
		Secret:        key.Secret(),
		QRCode:        base64.StdEncoding.EncodeToString(qrPNG),
		RecoveryCodes: plainCodes,
	}, nil
}

// Confirm verifies the first code against a pending enrollment and activates
// two-factor authentication on the account
func (s *TOTPService) Confirm(ctx context.Context, accountID, code string, meta RequestMeta) error {
	record, err := s.getRecord(ctx, accountID)
	if err != nil {
		return err
	}
	if record.Confirmed {
		return ErrTwoFactorEnrolled
	}

	if err := s.validateCode(record, code); err != nil {
		return err
	}

	if err := s.twoFactor.Confirm(ctx, accountID); err != nil {
		return fmt.Errorf("failed to confirm enrollment: %w", err)
	}
	if err := s.accounts.SetTwoFactorEnabled(ctx, accountID, true); err != nil {
		return fmt.Errorf("failed to enable two-factor flag: %w", err)
	}

	s.audit.Record(ctx, accountID, model.EventTwoFactorEnabled, meta, nil)
	s.log.Info().Str("account_id", accountID).Msg("two-factor authentication enabled")
	return nil
}

// VerifyCode validates a TOTP code against a confirmed enrollment
func (s *TOTPService) VerifyCode(ctx context.Context, accountID, code string) error {
	record, err := s.getRecord(ctx, accountID)
	if err != nil {
		return err
	}
	if !record.Confirmed {
		return ErrTwoFactorNotEnabled
	}
	return s.validateCode(record, code)
}

// VerifyRecoveryCode validates and consumes a single-use recovery code. The
// consumed index is recorded atomically, so presenting the same code twice,
// even concurrently, succeeds at most once.
func (s *TOTPService) VerifyRecoveryCode(ctx context.Context, accountID, code string, meta RequestMeta) error {
	record, err := s.getRecord(ctx, accountID)
	if err != nil {
		return err
	}
	if !record.Confirmed {
		return ErrTwoFactorNotEnabled
	}
	if record.RemainingCodes() == 0 {
		return ErrNoRecoveryCodes
	}

	normalized := normalizeRecoveryCode(code)
	for i, sealed := range record.CodesEncrypted {
		plain, err := s.box.Open(sealed)
		if err != nil {
			s.log.Error().Err(err).Str("account_id", accountID).Msg("failed to decrypt recovery code")
			continue
		}
		if subtle.ConstantTimeCompare(plain, []byte(normalized)) != 1 {
			continue
		}

		consumed, err := s.twoFactor.ConsumeRecoveryCode(ctx, accountID, i)
		if err != nil {
			return fmt.Errorf("failed to consume recovery code: %w", err)
		}
		if !consumed {
			return ErrInvalidCode
		}

		s.audit.Record(ctx, accountID, model.EventRecoveryCodeUsed, meta, map[string]interface{}{
			"remaining": record.RemainingCodes() - 1,
		})
		s.log.Info().Str("account_id", accountID).Int("remaining", record.RemainingCodes()-1).Msg("recovery code used")
		return nil
	}

	return ErrInvalidCode
}

// Disable removes the account's two-factor enrollment
func (s *TOTPService) Disable(ctx context.Context, accountID string, meta RequestMeta) error {
	if err := s.twoFactor.Delete(ctx, accountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTwoFactorNotEnabled
		}
		return fmt.Errorf("failed to delete enrollment: %w", err)
	}
	if err := s.accounts.SetTwoFactorEnabled(ctx, accountID, false); err != nil {
		return fmt.Errorf("failed to clear two-factor flag: %w", err)
	}

	s.audit.Record(ctx, accountID, model.EventTwoFactorDisabled, meta, nil)
	s.log.Info().Str("account_id", accountID).Msg("two-factor authentication disabled")
	return nil
}

// Status describes the account's two-factor state
type Status struct {
	Enabled                bool `json:"enabled"`
	PendingConfirmation    bool `json:"pendingConfirmation"`
	RecoveryCodesRemaining int  `json:"recoveryCodesRemaining"`
}

// GetStatus returns the account's two-factor status
func (s *TOTPService) GetStatus(ctx context.Context, accountID string) (*Status, error) {
	record, err := s.twoFactor.GetByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Status{}, nil
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}

	return &Status{
		Enabled:                record.Confirmed,
		PendingConfirmation:    !record.Confirmed,
		RecoveryCodesRemaining: record.RemainingCodes(),
	}, nil
}

func (s *TOTPService) getRecord(ctx context.Context, accountID string) (*model.TwoFactorBackup, error) {
	record, err := s.twoFactor.GetByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTwoFactorNotEnabled
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return record, nil
}

// validateCode checks a TOTP code, accepting one period of clock skew in
// either direction
func (s *TOTPService) validateCode(record *model.TwoFactorBackup, code string) error {
	secret, err := s.box.Open(record.SecretEncrypted)
	if err != nil {
		return fmt.Errorf("failed to decrypt secret: %w", err)
	}

	valid, err := totp.ValidateCustom(strings.TrimSpace(code), string(secret), time.Now(), totp.ValidateOpts{
		Period:    uint(s.cfg.Period),
		Skew:      1,
		Digits:    otp.Digits(s.cfg.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		return ErrInvalidCode
	}
	return nil
}

func generateRecoveryCode() string {
	// 32 characters so a random byte maps uniformly; 0, i, l and o are
	// excluded as easily misread.
	const charset = "123456789abcdefghjkmnpqrstuvwxyz"
	b := make([]byte, recoveryCodeLength)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate random bytes for recovery code")
	}
	code := make([]byte, recoveryCodeLength)
	for i := range code {
		code[i] = charset[int(b[i])%len(charset)]
	}
	// Format as xxxx-xxxx
	return string(code[:4]) + "-" + string(code[4:])
}

func normalizeRecoveryCode(code string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
}
