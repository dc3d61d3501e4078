// Package webauthn wraps the go-webauthn library behind a narrow surface so
// ceremony state can live in the database instead of process memory. Each
// Begin call returns serialized session state; the caller persists it
// alongside the challenge and hands it back to the matching Finish call.
package webauthn

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-webauthn/webauthn/protocol"
	wa "github.com/go-webauthn/webauthn/webauthn"

	"github.com/wishvault/wishvault/internal/config"
	"github.com/wishvault/wishvault/internal/model"
)

// Registrant is the account taking part in a ceremony, together with the
// credentials already registered to it.
type Registrant struct {
	AccountID   string
	Username    string
	DisplayName string
	Credentials []model.WebAuthnCredential
}

func (r *Registrant) WebAuthnID() []byte          { return []byte(r.AccountID) }
func (r *Registrant) WebAuthnName() string        { return r.Username }
func (r *Registrant) WebAuthnDisplayName() string { return r.DisplayName }

func (r *Registrant) WebAuthnCredentials() []wa.Credential {
	creds := make([]wa.Credential, 0, len(r.Credentials))
	for _, c := range r.Credentials {
		id, err := base64.RawURLEncoding.DecodeString(c.CredentialID)
		if err != nil {
			continue
		}
		transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
		for _, t := range c.Transports {
			transports = append(transports, protocol.AuthenticatorTransport(t))
		}
		creds = append(creds, wa.Credential{
			ID:              id,
			PublicKey:       c.PublicKey,
			AttestationType: c.AttestationType,
			Transport:       transports,
			Flags: wa.CredentialFlags{
				BackupEligible: c.BackupEligible,
				BackupState:    c.BackupState,
			},
			Authenticator: wa.Authenticator{
				AAGUID:    c.AAGUID,
				SignCount: c.SignCount,
			},
		})
	}
	return creds
}

// RegistrationResult is the verified outcome of a registration ceremony.
type RegistrationResult struct {
	CredentialID    string // base64url
	PublicKey       []byte
	SignCount       uint32
	AAGUID          []byte
	AttestationType string
	Transports      []string
	DeviceClass     model.DeviceClass
	BackupEligible  bool
	BackupState     bool
}

// AuthenticationResult is the verified outcome of an authentication ceremony.
// CloneWarning is set when the authenticator reported a signature counter at
// or below the stored one, which indicates a cloned or replayed credential.
type AuthenticationResult struct {
	CredentialID string // base64url
	NewSignCount uint32
	CloneWarning bool
	BackupState  bool
}

// Verifier performs WebAuthn ceremony verification for a single relying party.
type Verifier struct {
	wa *wa.WebAuthn
}

// NewVerifier builds a Verifier from relying-party configuration.
func NewVerifier(cfg config.WebAuthnConfig) (*Verifier, error) {
	w, err := wa.New(&wa.Config{
		RPID:                  cfg.RPID,
		RPDisplayName:         cfg.RPName,
		RPOrigins:             cfg.RPOrigins,
		AttestationPreference: protocol.PreferNoAttestation,
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationPreferred,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize WebAuthn: %w", err)
	}
	return &Verifier{wa: w}, nil
}

// BeginRegistration produces creation options for the client plus the
// serialized session state. The returned challenge is the base64url value the
// client must sign.
func (v *Verifier) BeginRegistration(reg *Registrant) (*protocol.CredentialCreation, string, []byte, error) {
	exclusions := make([]protocol.CredentialDescriptor, 0, len(reg.Credentials))
	for _, c := range reg.WebAuthnCredentials() {
		exclusions = append(exclusions, c.Descriptor())
	}

	creation, session, err := v.wa.BeginRegistration(reg, wa.WithExclusions(exclusions))
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to begin registration: %w", err)
	}

	state, err := json.Marshal(session)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to serialize session state: %w", err)
	}
	return creation, session.Challenge, state, nil
}

// ParseRegistration decodes an attestation response without verifying it.
// Callers use the embedded challenge to consume ceremony state before
// verification runs.
func (v *Verifier) ParseRegistration(body io.Reader) (*protocol.ParsedCredentialCreationData, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBody(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse attestation response: %w", err)
	}
	return parsed, nil
}

// VerifyRegistration verifies a parsed attestation response against the
// stored session state.
func (v *Verifier) VerifyRegistration(reg *Registrant, state []byte, parsed *protocol.ParsedCredentialCreationData) (*RegistrationResult, error) {
	var session wa.SessionData
	if err := json.Unmarshal(state, &session); err != nil {
		return nil, fmt.Errorf("failed to restore session state: %w", err)
	}

	cred, err := v.wa.CreateCredential(reg, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("registration verification failed: %w", err)
	}

	return &RegistrationResult{
		CredentialID:    base64.RawURLEncoding.EncodeToString(cred.ID),
		PublicKey:       cred.PublicKey,
		SignCount:       cred.Authenticator.SignCount,
		AAGUID:          cred.Authenticator.AAGUID,
		AttestationType: cred.AttestationType,
		Transports:      transportStrings(cred.Transport),
		DeviceClass:     deviceClass(cred.Authenticator.Attachment),
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}, nil
}

// BeginAuthentication produces assertion options scoped to the registrant's
// active credentials plus the serialized session state.
func (v *Verifier) BeginAuthentication(reg *Registrant) (*protocol.CredentialAssertion, string, []byte, error) {
	assertion, session, err := v.wa.BeginLogin(reg)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to begin authentication: %w", err)
	}

	state, err := json.Marshal(session)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to serialize session state: %w", err)
	}
	return assertion, session.Challenge, state, nil
}

// ParseAuthentication decodes an assertion response without verifying it.
// Callers use the embedded challenge and credential ID to consume ceremony
// state and load the stored credential before verification runs.
func (v *Verifier) ParseAuthentication(body io.Reader) (*protocol.ParsedCredentialAssertionData, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBody(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse assertion response: %w", err)
	}
	return parsed, nil
}

// VerifyAuthentication verifies a parsed assertion response against the
// stored session state.
func (v *Verifier) VerifyAuthentication(reg *Registrant, state []byte, parsed *protocol.ParsedCredentialAssertionData) (*AuthenticationResult, error) {
	var session wa.SessionData
	if err := json.Unmarshal(state, &session); err != nil {
		return nil, fmt.Errorf("failed to restore session state: %w", err)
	}

	cred, err := v.wa.ValidateLogin(reg, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("authentication verification failed: %w", err)
	}

	return &AuthenticationResult{
		CredentialID: base64.RawURLEncoding.EncodeToString(cred.ID),
		NewSignCount: cred.Authenticator.SignCount,
		CloneWarning: cred.Authenticator.CloneWarning,
		BackupState:  cred.Flags.BackupState,
	}, nil
}

func transportStrings(transports []protocol.AuthenticatorTransport) []string {
	out := make([]string, 0, len(transports))
	for _, t := range transports {
		out = append(out, string(t))
	}
	return out
}

func deviceClass(attachment protocol.AuthenticatorAttachment) model.DeviceClass {
	if attachment == protocol.Platform {
		return model.DeviceClassPlatform
	}
	return model.DeviceClassCrossPlatform
}
