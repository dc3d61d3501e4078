package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/wishvault/wishvault/internal/model"
	"github.com/wishvault/wishvault/internal/repository"
	"github.com/wishvault/wishvault/internal/webauthn"
)

// In-memory store implementations backing service tests.

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[string]*model.Account)}
}

func (m *memAccounts) Create(_ context.Context, account *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == account.Email || a.Username == account.Username {
			return repository.ErrDuplicate
		}
	}
	cp := *account
	m.accounts[account.ID] = &cp
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAccounts) GetByUsername(_ context.Context, username string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAccounts) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	if err == repository.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *memAccounts) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	if err == repository.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *memAccounts) UpdatePasswordHash(_ context.Context, id string, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (m *memAccounts) VerifyEmail(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.EmailVerified = true
	a.Status = model.AccountStatusActive
	return nil
}

func (m *memAccounts) SetTwoFactorEnabled(_ context.Context, id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.TwoFactorEnabled = enabled
	return nil
}

func (m *memAccounts) IncrementFailedAttempts(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	a.FailedAttempts++
	return a.FailedAttempts, nil
}

func (m *memAccounts) ResetFailedAttempts(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.FailedAttempts = 0
	a.LockUntil = nil
	return nil
}

func (m *memAccounts) LockUntil(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.LockUntil = &until
	a.Status = model.AccountStatusLocked
	return nil
}

type memCredentials struct {
	mu    sync.Mutex
	creds map[string]*model.WebAuthnCredential // keyed by credential ID
}

func newMemCredentials() *memCredentials {
	return &memCredentials{creds: make(map[string]*model.WebAuthnCredential)}
}

func (m *memCredentials) Create(_ context.Context, cred *model.WebAuthnCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[cred.CredentialID]; ok {
		return repository.ErrDuplicate
	}
	cp := *cred
	m.creds[cred.CredentialID] = &cp
	return nil
}

func (m *memCredentials) GetByCredentialID(_ context.Context, credentialID string) (*model.WebAuthnCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credentialID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCredentials) ListActiveByAccount(_ context.Context, accountID string) ([]*model.WebAuthnCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.WebAuthnCredential
	for _, c := range m.creds {
		if c.AccountID == accountID && c.IsActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memCredentials) CountActiveByAccount(ctx context.Context, accountID string) (int, error) {
	creds, _ := m.ListActiveByAccount(ctx, accountID)
	return len(creds), nil
}

func (m *memCredentials) AdvanceSignCount(_ context.Context, credentialID string, newCount uint32, usedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credentialID]
	if !ok || !c.IsActive || c.SignCount >= newCount {
		return false, nil
	}
	c.SignCount = newCount
	c.LastUsedAt = &usedAt
	return true, nil
}

func (m *memCredentials) TouchZeroCounter(_ context.Context, credentialID string, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credentialID]
	if !ok || !c.IsActive {
		return repository.ErrNotFound
	}
	c.LastUsedAt = &usedAt
	return nil
}

func (m *memCredentials) Deactivate(_ context.Context, accountID, credentialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credentialID]
	if !ok || c.AccountID != accountID || !c.IsActive {
		return repository.ErrNotFound
	}
	c.IsActive = false
	return nil
}

func (m *memCredentials) Rename(_ context.Context, accountID, credentialID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credentialID]
	if !ok || c.AccountID != accountID {
		return repository.ErrNotFound
	}
	c.Name = &name
	return nil
}

type memChallenges struct {
	mu         sync.Mutex
	challenges map[string]*model.AuthChallenge // keyed by value
}

func newMemChallenges() *memChallenges {
	return &memChallenges{challenges: make(map[string]*model.AuthChallenge)}
}

func (m *memChallenges) Create(_ context.Context, ch *model.AuthChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ch
	m.challenges[ch.Value] = &cp
	return nil
}

func (m *memChallenges) Get(_ context.Context, value string, challengeType model.ChallengeType) (*model.AuthChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[value]
	if !ok || ch.Type != challengeType {
		return nil, repository.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (m *memChallenges) Consume(_ context.Context, value string, challengeType model.ChallengeType) (*model.AuthChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[value]
	if !ok || ch.Type != challengeType || ch.Used {
		return nil, repository.ErrNotFound
	}
	ch.Used = true
	cp := *ch
	return &cp, nil
}

func (m *memChallenges) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for v, ch := range m.challenges {
		if ch.ExpiresAt.Before(now) {
			delete(m.challenges, v)
			deleted++
		}
	}
	return deleted, nil
}

type memTwoFactor struct {
	mu      sync.Mutex
	records map[string]*model.TwoFactorBackup // keyed by account ID
}

func newMemTwoFactor() *memTwoFactor {
	return &memTwoFactor{records: make(map[string]*model.TwoFactorBackup)}
}

func (m *memTwoFactor) Upsert(_ context.Context, tf *model.TwoFactorBackup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[tf.AccountID]; ok && existing.Confirmed {
		return repository.ErrDuplicate
	}
	cp := *tf
	m.records[tf.AccountID] = &cp
	return nil
}

func (m *memTwoFactor) GetByAccount(_ context.Context, accountID string) (*model.TwoFactorBackup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tf, ok := m.records[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *tf
	cp.UsedCodes = append([]int(nil), tf.UsedCodes...)
	return &cp, nil
}

func (m *memTwoFactor) Confirm(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tf, ok := m.records[accountID]
	if !ok || tf.Confirmed {
		return repository.ErrNotFound
	}
	tf.Confirmed = true
	return nil
}

func (m *memTwoFactor) ConsumeRecoveryCode(_ context.Context, accountID string, index int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tf, ok := m.records[accountID]
	if !ok || !tf.Confirmed {
		return false, nil
	}
	for _, used := range tf.UsedCodes {
		if used == index {
			return false, nil
		}
	}
	tf.UsedCodes = append(tf.UsedCodes, index)
	return true, nil
}

func (m *memTwoFactor) Delete(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[accountID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.records, accountID)
	return nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*model.AuthSession // keyed by session ID
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*model.AuthSession)}
}

func (m *memSessions) Create(_ context.Context, session *model.AuthSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *memSessions) GetByID(_ context.Context, id string) (*model.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) GetByRefreshHash(_ context.Context, hash string) (*model.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.RefreshTokenHash == hash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memSessions) ListActiveByAccount(_ context.Context, accountID string) ([]*model.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AuthSession
	for _, s := range m.sessions {
		if s.AccountID == accountID && s.IsActive && time.Now().Before(s.ExpiresAt) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessions) Rotate(_ context.Context, oldHash string, successor *model.AuthSession) (*model.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.RefreshTokenHash == oldHash && s.IsActive && s.RevokedAt == nil && time.Now().Before(s.ExpiresAt) {
			now := time.Now()
			s.IsActive = false
			s.RevokedAt = &now
			cp := *successor
			m.sessions[successor.ID] = &cp
			old := *s
			return &old, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memSessions) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.IsActive {
		return repository.ErrNotFound
	}
	now := time.Now()
	s.IsActive = false
	s.RevokedAt = &now
	return nil
}

func (m *memSessions) RevokeAllForAccount(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var revoked int64
	now := time.Now()
	for _, s := range m.sessions {
		if s.AccountID == accountID && s.IsActive {
			s.IsActive = false
			s.RevokedAt = &now
			revoked++
		}
	}
	return revoked, nil
}

func (m *memSessions) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(cutoff) {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

type memEvents struct {
	mu     sync.Mutex
	events []*model.SecurityEvent
}

func newMemEvents() *memEvents {
	return &memEvents{}
}

func (m *memEvents) Append(_ context.Context, event *model.SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.events = append(m.events, &cp)
	return nil
}

func (m *memEvents) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*model.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SecurityEvent
	for _, e := range m.events {
		if e.AccountID != nil && *e.AccountID == accountID {
			cp := *e
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memEvents) countByType(eventType model.SecurityEventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.events {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

type memWishes struct {
	mu     sync.Mutex
	wishes map[string]*model.Wish
}

func newMemWishes() *memWishes {
	return &memWishes{wishes: make(map[string]*model.Wish)}
}

func (m *memWishes) Create(_ context.Context, wish *model.Wish) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *wish
	m.wishes[wish.ID] = &cp
	return nil
}

func (m *memWishes) GetByID(_ context.Context, accountID, id string) (*model.Wish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wishes[id]
	if !ok || w.AccountID != accountID || w.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memWishes) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*model.Wish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Wish
	for _, w := range m.wishes {
		if w.AccountID == accountID && w.DeletedAt == nil {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memWishes) Update(_ context.Context, wish *model.Wish) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wishes[wish.ID]
	if !ok || w.AccountID != wish.AccountID || w.DeletedAt != nil {
		return repository.ErrNotFound
	}
	cp := *wish
	m.wishes[wish.ID] = &cp
	return nil
}

func (m *memWishes) SoftDelete(_ context.Context, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wishes[id]
	if !ok || w.AccountID != accountID || w.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now()
	w.DeletedAt = &now
	return nil
}

type memKV struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemKV() *memKV {
	return &memKV{values: make(map[string]string)}
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = fmt.Sprintf("%v", value)
	return nil
}

func (m *memKV) GetString(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("key not found")
	}
	return v, nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// fakeVerifier stands in for the WebAuthn library. Begin calls hand out a
// configured challenge; Parse reads a minimal JSON body; Verify returns the
// configured result or error.
type fakeVerifier struct {
	mu             sync.Mutex
	nextChallenge  string
	regResult      *webauthn.RegistrationResult
	authResult     *webauthn.AuthenticationResult
	verifyRegErr   error
	verifyAuthErr  error
	verifyRegCalls int
	verifyAuthCall int
}

// testOrigin matches the first RP origin configured in newTestEnv.
const testOrigin = "http://localhost:3000"

type fakeCeremonyBody struct {
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
	RawID     []byte `json:"rawId"`
}

func fakeBody(challenge string, rawID []byte) io.Reader {
	return fakeBodyFromOrigin(challenge, testOrigin, rawID)
}

func fakeBodyFromOrigin(challenge, origin string, rawID []byte) io.Reader {
	b, _ := json.Marshal(fakeCeremonyBody{Challenge: challenge, Origin: origin, RawID: rawID})
	return bytes.NewReader(b)
}

func (f *fakeVerifier) BeginRegistration(_ *webauthn.Registrant) (*protocol.CredentialCreation, string, []byte, error) {
	return &protocol.CredentialCreation{}, f.nextChallenge, []byte("session-state"), nil
}

func (f *fakeVerifier) ParseRegistration(body io.Reader) (*protocol.ParsedCredentialCreationData, error) {
	var b fakeCeremonyBody
	if err := json.NewDecoder(body).Decode(&b); err != nil {
		return nil, err
	}
	parsed := &protocol.ParsedCredentialCreationData{}
	parsed.RawID = b.RawID
	parsed.Response.CollectedClientData.Challenge = b.Challenge
	parsed.Response.CollectedClientData.Origin = b.Origin
	return parsed, nil
}

func (f *fakeVerifier) VerifyRegistration(_ *webauthn.Registrant, _ []byte, _ *protocol.ParsedCredentialCreationData) (*webauthn.RegistrationResult, error) {
	f.mu.Lock()
	f.verifyRegCalls++
	f.mu.Unlock()
	if f.verifyRegErr != nil {
		return nil, f.verifyRegErr
	}
	return f.regResult, nil
}

func (f *fakeVerifier) BeginAuthentication(_ *webauthn.Registrant) (*protocol.CredentialAssertion, string, []byte, error) {
	return &protocol.CredentialAssertion{}, f.nextChallenge, []byte("session-state"), nil
}

func (f *fakeVerifier) ParseAuthentication(body io.Reader) (*protocol.ParsedCredentialAssertionData, error) {
	var b fakeCeremonyBody
	if err := json.NewDecoder(body).Decode(&b); err != nil {
		return nil, err
	}
	parsed := &protocol.ParsedCredentialAssertionData{}
	parsed.RawID = b.RawID
	parsed.Response.CollectedClientData.Challenge = b.Challenge
	parsed.Response.CollectedClientData.Origin = b.Origin
	return parsed, nil
}

func (f *fakeVerifier) VerifyAuthentication(_ *webauthn.Registrant, _ []byte, _ *protocol.ParsedCredentialAssertionData) (*webauthn.AuthenticationResult, error) {
	f.mu.Lock()
	f.verifyAuthCall++
	f.mu.Unlock()
	if f.verifyAuthErr != nil {
		return nil, f.verifyAuthErr
	}
	return f.authResult, nil
}

func (f *fakeVerifier) authVerifyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyAuthCall
}

func (f *fakeVerifier) regVerifyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyRegCalls
}
