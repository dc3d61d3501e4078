package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wishvault/wishvault/internal/config"
	"github.com/wishvault/wishvault/internal/database"
	"github.com/wishvault/wishvault/internal/email"
	"github.com/wishvault/wishvault/internal/logger"
)

// Email verification errors
var (
	ErrVerificationDisabled  = errors.New("email verification is not enabled")
	ErrInvalidOTP            = errors.New("invalid or expired verification code")
	ErrTooManyResendAttempts = errors.New("too many resend attempts, please wait")
	ErrEmailAlreadyVerified  = errors.New("email is already verified")
)

const (
	otpRedisPrefix       = "email_otp:"
	resendCooldownPrefix = "email_resend:"
	otpAttemptsPrefix    = "email_otp_attempts:"
	maxOTPAttempts       = 5
)

// VerificationService handles email verification via one-time codes. Codes
// are hashed before they touch Redis and expire on their own.
type VerificationService struct {
	rdb      *database.Redis
	accounts AccountStore
	sender   email.Sender
	cfg      *config.Config
	log      *logger.Logger
}

// NewVerificationService creates a new VerificationService
func NewVerificationService(
	rdb *database.Redis,
	accounts AccountStore,
	sender email.Sender,
	cfg *config.Config,
	log *logger.Logger,
) *VerificationService {
	return &VerificationService{
		rdb:      rdb,
		accounts: accounts,
		sender:   sender,
		cfg:      cfg,
		log:      log.WithComponent("verification_service"),
	}
}

// IsEnabled returns whether email verification is enabled in the config
func (s *VerificationService) IsEnabled() bool {
	return s.cfg.EmailVerification.Enabled
}

// SendVerificationOTP generates a code and emails it to the account
func (s *VerificationService) SendVerificationOTP(ctx context.Context, accountID, accountEmail string) error {
	if !s.IsEnabled() {
		return ErrVerificationDisabled
	}

	cooldownKey := resendCooldownPrefix + accountID
	exists, err := s.rdb.Exists(ctx, cooldownKey)
	if err != nil {
		return fmt.Errorf("failed to check resend cooldown: %w", err)
	}
	if exists > 0 {
		return ErrTooManyResendAttempts
	}

	otp, err := s.generateOTP()
	if err != nil {
		return fmt.Errorf("failed to generate OTP: %w", err)
	}

	otpKey := otpRedisPrefix + accountID
	ttl := s.cfg.EmailVerification.OTPTTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	if err := s.rdb.SetWithTTL(ctx, otpKey, hashOTP(otp), ttl); err != nil {
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	_ = s.rdb.Delete(ctx, otpAttemptsPrefix+accountID)

	cooldown := s.cfg.EmailVerification.ResendCooldown
	if cooldown == 0 {
		cooldown = 60 * time.Second
	}
	if err := s.rdb.SetWithTTL(ctx, cooldownKey, "1", cooldown); err != nil {
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("failed to set resend cooldown")
	}

	ttlMinutes := int(ttl.Minutes())
	if ttlMinutes < 1 {
		ttlMinutes = 1
	}
	appName := s.cfg.Email.AppName
	if appName == "" {
		appName = "WishVault"
	}

	msg := email.Message{
		To:       accountEmail,
		Subject:  fmt.Sprintf("Your %s verification code: %s", appName, otp),
		HTMLBody: email.VerificationEmailHTML(otp, appName, ttlMinutes),
		TextBody: email.VerificationEmailText(otp, appName, ttlMinutes),
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		// Clean up so the user can retry immediately
		_ = s.rdb.Delete(ctx, otpKey, cooldownKey)
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	s.log.Info().Str("account_id", accountID).Str("email", accountEmail).Msg("verification OTP sent")
	return nil
}

// VerifyOTP checks the submitted code. On success the account's email is
// marked verified and the account becomes active.
func (s *VerificationService) VerifyOTP(ctx context.Context, accountID, code string) error {
	if !s.IsEnabled() {
		return ErrVerificationDisabled
	}

	attemptsKey := otpAttemptsPrefix + accountID
	attempts, err := s.rdb.Incr(ctx, attemptsKey)
	if err != nil {
		return fmt.Errorf("failed to track OTP attempts: %w", err)
	}
	if attempts == 1 {
		_ = s.rdb.Expire(ctx, attemptsKey, 15*time.Minute)
	}
	if attempts > int64(maxOTPAttempts) {
		return ErrInvalidOTP
	}

	storedHash, err := s.rdb.GetString(ctx, otpRedisPrefix+accountID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrInvalidOTP
		}
		return fmt.Errorf("failed to get OTP: %w", err)
	}

	if storedHash != hashOTP(code) {
		return ErrInvalidOTP
	}

	_ = s.rdb.Delete(ctx, otpRedisPrefix+accountID, attemptsKey, resendCooldownPrefix+accountID)

	if err := s.accounts.VerifyEmail(ctx, accountID); err != nil {
		return fmt.Errorf("failed to verify email: %w", err)
	}

	s.log.Info().Str("account_id", accountID).Msg("email verified")
	return nil
}

// generateOTP creates a cryptographically random numeric code
func (s *VerificationService) generateOTP() (string, error) {
	length := s.cfg.EmailVerification.OTPLength
	if length == 0 {
		length = 6
	}

	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", err
	}

	format := fmt.Sprintf("%%0%dd", length)
	return fmt.Sprintf(format, n), nil
}

func hashOTP(otp string) string {
	h := sha256.Sum256([]byte(otp))
	return hex.EncodeToString(h[:])
}
