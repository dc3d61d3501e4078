package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/wishvault/wishvault/internal/config"
	"github.com/wishvault/wishvault/internal/logger"
	"github.com/wishvault/wishvault/internal/model"
	"github.com/wishvault/wishvault/internal/repository"
	"github.com/wishvault/wishvault/internal/webauthn"
)

// CeremonyVerifier performs the cryptographic half of WebAuthn ceremonies.
// Implemented by the webauthn package; faked in tests.
type CeremonyVerifier interface {
	BeginRegistration(reg *webauthn.Registrant) (*protocol.CredentialCreation, string, []byte, error)
	ParseRegistration(body io.Reader) (*protocol.ParsedCredentialCreationData, error)
	VerifyRegistration(reg *webauthn.Registrant, state []byte, parsed *protocol.ParsedCredentialCreationData) (*webauthn.RegistrationResult, error)
	BeginAuthentication(reg *webauthn.Registrant) (*protocol.CredentialAssertion, string, []byte, error)
	ParseAuthentication(body io.Reader) (*protocol.ParsedCredentialAssertionData, error)
	VerifyAuthentication(reg *webauthn.Registrant, state []byte, parsed *protocol.ParsedCredentialAssertionData) (*webauthn.AuthenticationResult, error)
}

// WebAuthnService orchestrates registration and authentication ceremonies.
// Challenge consumption happens before any verification so a challenge is
// burned exactly once no matter how the ceremony ends.
type WebAuthnService struct {
	accounts   AccountStore
	creds      CredentialStore
	challenges *ChallengeService
	verifier   CeremonyVerifier
	lockout    *Lockout
	audit      *AuditRecorder
	cfg        config.WebAuthnConfig
	log        *logger.Logger
}

// NewWebAuthnService creates a new WebAuthnService
func NewWebAuthnService(
	accounts AccountStore,
	creds CredentialStore,
	challenges *ChallengeService,
	verifier CeremonyVerifier,
	lockout *Lockout,
	audit *AuditRecorder,
	cfg config.WebAuthnConfig,
	log *logger.Logger,
) *WebAuthnService {
	return &WebAuthnService{
		accounts:   accounts,
		creds:      creds,
		challenges: challenges,
		verifier:   verifier,
		lockout:    lockout,
		audit:      audit,
		cfg:        cfg,
		log:        log.WithComponent("webauthn_service"),
	}
}

// BeginRegistration starts a registration ceremony for an authenticated
// account and returns the creation options for the client
func (s *WebAuthnService) BeginRegistration(ctx context.Context, accountID string) (*protocol.CredentialCreation, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	reg, err := s.registrant(ctx, account)
	if err != nil {
		return nil, err
	}

	creation, challenge, state, err := s.verifier.BeginRegistration(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to begin registration: %w", err)
	}

	if _, err := s.challenges.Issue(ctx, challenge, model.ChallengeTypeRegistration, &accountID, s.expectedOrigin(), state); err != nil {
		return nil, err
	}

	return creation, nil
}

// FinishRegistration completes a registration ceremony and stores the new
// credential. The challenge embedded in the response is consumed before
// verification; a second completion attempt with the same response fails
// with ErrChallengeAlreadyUsed.
func (s *WebAuthnService) FinishRegistration(ctx context.Context, accountID, name string, body io.Reader, meta RequestMeta) (*model.WebAuthnCredential, error) {
	parsed, err := s.verifier.ParseRegistration(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	ch, err := s.challenges.Consume(ctx, parsed.Response.CollectedClientData.Challenge, model.ChallengeTypeRegistration)
	if err != nil {
		return nil, err
	}
	if ch.AccountID == nil || *ch.AccountID != accountID {
		return nil, ErrChallengeMismatch
	}
	if ch.Origin != "" && parsed.Response.CollectedClientData.Origin != ch.Origin {
		s.log.Warn().Str("account_id", accountID).Str("origin", parsed.Response.CollectedClientData.Origin).Msg("registration response from unexpected origin")
		return nil, ErrChallengeOriginMismatch
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	reg, err := s.registrant(ctx, account)
	if err != nil {
		return nil, err
	}

	result, err := s.verifier.VerifyRegistration(reg, ch.SessionData, parsed)
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("registration verification failed")
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	now := time.Now()
	cred := &model.WebAuthnCredential{
		ID:              generateID("crd"),
		AccountID:       accountID,
		CredentialID:    result.CredentialID,
		PublicKey:       result.PublicKey,
		SignCount:       result.SignCount,
		DeviceClass:     result.DeviceClass,
		Transports:      result.Transports,
		BackupEligible:  result.BackupEligible,
		BackupState:     result.BackupState,
		AttestationType: result.AttestationType,
		AAGUID:          result.AAGUID,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if name != "" {
		cred.Name = &name
	}

	if err := s.creds.Create(ctx, cred); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrCredentialExists
		}
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	s.audit.Record(ctx, accountID, model.EventWebAuthnRegistered, meta, map[string]interface{}{
		"credential_id": cred.CredentialID,
		"device_class":  cred.DeviceClass,
	})
	s.log.Info().Str("account_id", accountID).Str("credential_id", cred.CredentialID).Msg("credential registered")

	return cred, nil
}

// BeginAuthentication starts an authentication ceremony for the account
// matching the identifier (username or email) and returns the assertion
// options for the client
func (s *WebAuthnService) BeginAuthentication(ctx context.Context, identifier string) (*protocol.CredentialAssertion, error) {
	account, err := s.lookupAccount(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if account.IsLocked() {
		return nil, ErrAccountLocked
	}

	reg, err := s.registrant(ctx, account)
	if err != nil {
		return nil, err
	}
	if len(reg.Credentials) == 0 {
		return nil, ErrNoCredentials
	}

	assertion, challenge, state, err := s.verifier.BeginAuthentication(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to begin authentication: %w", err)
	}

	if _, err := s.challenges.Issue(ctx, challenge, model.ChallengeTypeAuthentication, &account.ID, s.expectedOrigin(), state); err != nil {
		return nil, err
	}

	return assertion, nil
}

// FinishAuthentication completes an authentication ceremony. The account lock
// is checked before any signature verification so a locked account fails fast
// regardless of whether the assertion is valid. A signature counter that
// fails to advance deactivates the credential and reports a replay.
func (s *WebAuthnService) FinishAuthentication(ctx context.Context, body io.Reader, meta RequestMeta) (*model.Account, *model.WebAuthnCredential, error) {
	parsed, err := s.verifier.ParseAuthentication(body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	ch, err := s.challenges.Consume(ctx, parsed.Response.CollectedClientData.Challenge, model.ChallengeTypeAuthentication)
	if err != nil {
		return nil, nil, err
	}
	if ch.Origin != "" && parsed.Response.CollectedClientData.Origin != ch.Origin {
		s.log.Warn().Str("origin", parsed.Response.CollectedClientData.Origin).Msg("assertion from unexpected origin")
		return nil, nil, ErrChallengeOriginMismatch
	}

	credentialID := base64.RawURLEncoding.EncodeToString(parsed.RawID)
	cred, err := s.creds.GetByCredentialID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrCredentialNotFound
		}
		return nil, nil, fmt.Errorf("failed to get credential: %w", err)
	}
	if !cred.IsActive {
		return nil, nil, ErrCredentialInactive
	}
	if ch.AccountID != nil && *ch.AccountID != cred.AccountID {
		return nil, nil, ErrChallengeMismatch
	}

	account, err := s.accounts.GetByID(ctx, cred.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to get account: %w", err)
	}

	if account.IsLocked() {
		s.audit.Record(ctx, account.ID, model.EventWebAuthnLoginFailed, meta, map[string]interface{}{
			"reason": "account_locked",
		})
		return nil, nil, ErrAccountLocked
	}

	reg := &webauthn.Registrant{
		AccountID:   account.ID,
		Username:    account.Username,
		DisplayName: account.Username,
		Credentials: []model.WebAuthnCredential{*cred},
	}

	result, err := s.verifier.VerifyAuthentication(reg, ch.SessionData, parsed)
	if err != nil {
		s.lockout.RecordFailure(ctx, account.ID, meta)
		s.audit.Record(ctx, account.ID, model.EventWebAuthnLoginFailed, meta, map[string]interface{}{
			"credential_id": credentialID,
			"reason":        "verification_failed",
		})
		return nil, nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	if err := s.advanceCounter(ctx, account, cred, result, meta); err != nil {
		return nil, nil, err
	}

	s.lockout.Reset(ctx, account.ID)
	s.audit.Record(ctx, account.ID, model.EventWebAuthnLoginSuccess, meta, map[string]interface{}{
		"credential_id": credentialID,
	})
	s.log.Info().Str("account_id", account.ID).Str("credential_id", credentialID).Msg("authentication successful")

	return account, cred, nil
}

// advanceCounter enforces signature counter monotonicity. Authenticators that
// never implement a counter report zero on both sides, which is allowed; any
// other non-advancing counter is treated as a cloned credential.
func (s *WebAuthnService) advanceCounter(ctx context.Context, account *model.Account, cred *model.WebAuthnCredential, result *webauthn.AuthenticationResult, meta RequestMeta) error {
	now := time.Now()

	if result.NewSignCount == 0 && cred.SignCount == 0 && !result.CloneWarning {
		if err := s.creds.TouchZeroCounter(ctx, cred.CredentialID, now); err != nil {
			s.log.Error().Err(err).Str("credential_id", cred.CredentialID).Msg("failed to record credential use")
		}
		return nil
	}

	advanced := false
	if !result.CloneWarning {
		var err error
		advanced, err = s.creds.AdvanceSignCount(ctx, cred.CredentialID, result.NewSignCount, now)
		if err != nil {
			return fmt.Errorf("failed to advance sign count: %w", err)
		}
	}

	if !advanced {
		s.audit.Record(ctx, account.ID, model.EventSuspiciousActivity, meta, map[string]interface{}{
			"credential_id": cred.CredentialID,
			"stored_count":  cred.SignCount,
			"new_count":     result.NewSignCount,
			"reason":        "sign_count_regression",
		})
		if err := s.creds.Deactivate(ctx, account.ID, cred.CredentialID); err != nil {
			s.log.Error().Err(err).Str("credential_id", cred.CredentialID).Msg("failed to deactivate credential after replay")
		}
		s.log.Warn().
			Str("account_id", account.ID).
			Str("credential_id", cred.CredentialID).
			Uint32("stored_count", cred.SignCount).
			Uint32("new_count", result.NewSignCount).
			Msg("replay detected, credential deactivated")
		return ErrReplayDetected
	}

	return nil
}

// ListCredentials returns the account's active credentials
func (s *WebAuthnService) ListCredentials(ctx context.Context, accountID string) ([]*model.WebAuthnCredential, error) {
	return s.creds.ListActiveByAccount(ctx, accountID)
}

// RemoveCredential deactivates one of the account's credentials
func (s *WebAuthnService) RemoveCredential(ctx context.Context, accountID, credentialID string) error {
	if err := s.creds.Deactivate(ctx, accountID, credentialID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("failed to deactivate credential: %w", err)
	}
	s.log.Info().Str("account_id", accountID).Str("credential_id", credentialID).Msg("credential removed")
	return nil
}

// RenameCredential sets the user-facing name of a credential
func (s *WebAuthnService) RenameCredential(ctx context.Context, accountID, credentialID, name string) error {
	if name == "" {
		return ErrInvalidInput
	}
	if err := s.creds.Rename(ctx, accountID, credentialID, name); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("failed to rename credential: %w", err)
	}
	return nil
}

func (s *WebAuthnService) registrant(ctx context.Context, account *model.Account) (*webauthn.Registrant, error) {
	stored, err := s.creds.ListActiveByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	creds := make([]model.WebAuthnCredential, 0, len(stored))
	for _, c := range stored {
		creds = append(creds, *c)
	}

	return &webauthn.Registrant{
		AccountID:   account.ID,
		Username:    account.Username,
		DisplayName: account.Username,
		Credentials: creds,
	}, nil
}

func (s *WebAuthnService) lookupAccount(ctx context.Context, identifier string) (*model.Account, error) {
	identifier = strings.TrimSpace(identifier)

	var account *model.Account
	var err error
	if strings.Contains(identifier, "@") {
		account, err = s.accounts.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		account, err = s.accounts.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (s *WebAuthnService) expectedOrigin() string {
	if len(s.cfg.RPOrigins) > 0 {
		return s.cfg.RPOrigins[0]
	}
	return ""
}
