package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wishvault/wishvault/internal/auth"
	"github.com/wishvault/wishvault/internal/config"
	"github.com/wishvault/wishvault/internal/logger"
	"github.com/wishvault/wishvault/internal/model"
	"github.com/wishvault/wishvault/internal/repository"
)

const (
	twoFactorPendingPrefix = "twofactor:pending:"
	twoFactorPendingTTL    = 5 * time.Minute
)

// AuthService handles registration, password login, and password changes.
// Two-factor logins pause after the password step; the pending state lives in
// Redis under a single-use token.
type AuthService struct {
	accounts    AccountStore
	events      EventStore
	sessions    *SessionService
	totp        *TOTPService
	lockout     *Lockout
	audit       *AuditRecorder
	kv          KVStore
	argonParams *auth.Argon2Params
	cfg         *config.Config
	log         *logger.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	accounts AccountStore,
	events EventStore,
	sessions *SessionService,
	totp *TOTPService,
	lockout *Lockout,
	audit *AuditRecorder,
	kv KVStore,
	cfg *config.Config,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		accounts: accounts,
		events:   events,
		sessions: sessions,
		totp:     totp,
		lockout:  lockout,
		audit:    audit,
		kv:       kv,
		argonParams: auth.NewParams(
			cfg.Security.Password.Argon2Memory,
			cfg.Security.Password.Argon2Iterations,
			cfg.Security.Password.Argon2Parallelism,
		),
		cfg: cfg,
		log: log.WithComponent("auth_service"),
	}
}

// RegisterRequest contains the data for registering a new account
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// Register creates a new account in pending-verification state
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.ToLower(strings.TrimSpace(req.Username))

	if !isValidEmail(email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	if !isValidUsername(username) {
		return nil, fmt.Errorf("%w: invalid username", ErrInvalidInput)
	}

	exists, err := s.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	exists, err = s.accounts.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	if err := auth.ValidatePassword(req.Password, s.cfg.Security.Password.MinLength); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPasswordTooWeak, err.Error())
	}

	passwordHash, err := auth.HashPassword(req.Password, s.argonParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	account := &model.Account{
		ID:            generateID("acc"),
		Username:      username,
		Email:         email,
		EmailVerified: false,
		PasswordHash:  passwordHash,
		Status:        model.AccountStatusPendingVerification,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.log.Info().Str("account_id", account.ID).Str("email", email).Msg("account registered")
	return account, nil
}

// LoginRequest contains the data for a password login
type LoginRequest struct {
	Identifier        string // username or email
	Password          string
	DeviceFingerprint string
}

// LoginResult wraps either a completed login or a pending two-factor step
type LoginResult struct {
	// Tokens is set when login is complete
	Tokens *TokenPair `json:"tokens,omitempty"`
	// TwoFactorToken is set when a second factor is required to finish login
	TwoFactorToken string `json:"twoFactorToken,omitempty"`
}

// Login authenticates an account by password. The lock state is checked
// before the password is verified so a locked account fails fast. When
// two-factor authentication is enabled, no tokens are issued; the caller
// must complete the second step with the returned token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, meta RequestMeta) (*LoginResult, error) {
	account, err := s.lookupAccount(ctx, req.Identifier)
	if err != nil {
		return nil, err
	}

	if account.IsLocked() {
		s.audit.Record(ctx, account.ID, model.EventLoginFailed, meta, map[string]interface{}{
			"reason": "account_locked",
		})
		return nil, ErrAccountLocked
	}

	match, err := auth.VerifyPassword(req.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		attempts := s.lockout.RecordFailure(ctx, account.ID, meta)
		s.audit.Record(ctx, account.ID, model.EventLoginFailed, meta, map[string]interface{}{
			"reason":          "invalid_password",
			"failed_attempts": attempts,
		})
		return nil, ErrInvalidCredentials
	}

	if account.Status == model.AccountStatusDisabled {
		return nil, ErrAccountNotActive
	}

	s.lockout.Reset(ctx, account.ID)

	if account.TwoFactorEnabled {
		token, err := generateSecureToken(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate two-factor token: %w", err)
		}
		if err := s.kv.SetWithTTL(ctx, twoFactorPendingPrefix+token, account.ID, twoFactorPendingTTL); err != nil {
			return nil, fmt.Errorf("failed to store pending login: %w", err)
		}
		return &LoginResult{TwoFactorToken: token}, nil
	}

	tokens, err := s.sessions.Issue(ctx, account.ID, req.DeviceFingerprint, meta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, account.ID, model.EventLoginSuccess, meta, nil)
	s.log.Info().Str("account_id", account.ID).Msg("account logged in")

	return &LoginResult{Tokens: tokens}, nil
}

// CompleteTwoFactorLogin finishes a login that paused for a second factor.
// The pending token is burned on first use regardless of whether the code
// verifies. UseRecoveryCode selects recovery code verification instead of a
// TOTP code; a consumed recovery code stays consumed even if a later step
// fails.
func (s *AuthService) CompleteTwoFactorLogin(ctx context.Context, pendingToken, code string, useRecoveryCode bool, deviceFingerprint string, meta RequestMeta) (*TokenPair, error) {
	key := twoFactorPendingPrefix + pendingToken
	accountID, err := s.kv.GetString(ctx, key)
	if err != nil || accountID == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		s.log.Error().Err(err).Msg("failed to delete pending login token")
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if account.IsLocked() {
		s.audit.Record(ctx, account.ID, model.EventLoginFailed, meta, map[string]interface{}{
			"reason": "account_locked",
		})
		return nil, ErrAccountLocked
	}

	if useRecoveryCode {
		err = s.totp.VerifyRecoveryCode(ctx, account.ID, code, meta)
	} else {
		err = s.totp.VerifyCode(ctx, account.ID, code)
	}
	if err != nil {
		if errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrNoRecoveryCodes) {
			attempts := s.lockout.RecordFailure(ctx, account.ID, meta)
			s.audit.Record(ctx, account.ID, model.EventLoginFailed, meta, map[string]interface{}{
				"reason":          "invalid_second_factor",
				"failed_attempts": attempts,
			})
		}
		return nil, err
	}

	s.lockout.Reset(ctx, account.ID)

	tokens, err := s.sessions.Issue(ctx, account.ID, deviceFingerprint, meta)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, account.ID, model.EventLoginSuccess, meta, map[string]interface{}{
		"two_factor":    true,
		"recovery_code": useRecoveryCode,
	})
	s.log.Info().Str("account_id", account.ID).Bool("recovery_code", useRecoveryCode).Msg("two-factor login completed")

	return tokens, nil
}

// ChangePassword replaces the account's password after verifying the current
// one, then revokes every session so existing tokens cannot outlive the old
// password
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string, meta RequestMeta) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to get account: %w", err)
	}

	match, err := auth.VerifyPassword(currentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		return ErrInvalidCredentials
	}
	if currentPassword == newPassword {
		return ErrSamePassword
	}

	if err := auth.ValidatePassword(newPassword, s.cfg.Security.Password.MinLength); err != nil {
		return fmt.Errorf("%w: %s", ErrPasswordTooWeak, err.Error())
	}

	hash, err := auth.HashPassword(newPassword, s.argonParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.accounts.UpdatePasswordHash(ctx, accountID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if _, err := s.sessions.RevokeAll(ctx, accountID); err != nil {
		s.log.Error().Err(err).Str("account_id", accountID).Msg("failed to revoke sessions after password change")
	}

	s.audit.Record(ctx, accountID, model.EventPasswordChanged, meta, nil)
	s.log.Info().Str("account_id", accountID).Msg("password changed")
	return nil
}

// GetAccount returns an account by ID
func (s *AuthService) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListSecurityEvents returns the account's audit trail in creation order
func (s *AuthService) ListSecurityEvents(ctx context.Context, accountID string, limit, offset int) ([]*model.SecurityEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.events.ListByAccount(ctx, accountID, limit, offset)
}

func (s *AuthService) lookupAccount(ctx context.Context, identifier string) (*model.Account, error) {
	identifier = strings.TrimSpace(identifier)

	var account *model.Account
	var err error
	if strings.Contains(identifier, "@") {
		account, err = s.accounts.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		account, err = s.accounts.GetByUsername(ctx, strings.ToLower(identifier))
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}
