package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wishvault/wishvault/internal/config"
)

// Token errors
var (
	ErrTokenExpired = errors.New("session token has expired")
	ErrTokenInvalid = errors.New("session token is invalid")
)

// TokenService signs and verifies session tokens and generates opaque
// refresh tokens. The signing secret is validated against the entropy
// checks once, at construction; a weak secret makes construction fail.
type TokenService struct {
	cfg    config.TokenConfig
	secret []byte
}

// SessionClaims represents the claims in a session token
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// NewTokenService creates a TokenService after validating the signing secret.
func NewTokenService(cfg config.TokenConfig) (*TokenService, error) {
	if err := ValidateSecretStrength(cfg.SigningSecret, cfg.MinSecretLength, cfg.MinSecretEntropyBits); err != nil {
		return nil, fmt.Errorf("signing secret rejected: %w", err)
	}
	return &TokenService{
		cfg:    cfg,
		secret: []byte(cfg.SigningSecret),
	}, nil
}

// SignSessionToken creates a signed session token for the account.
func (s *TokenService) SignSessionToken(accountID, sessionID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.SessionTokenTTL)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, expiresAt, nil
}

// VerifySessionToken validates the token's signature and expiry and returns
// the claims. Expired tokens return ErrTokenExpired; any other failure
// returns ErrTokenInvalid.
func (s *TokenService) VerifySessionToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// GenerateRefreshToken creates an opaque random refresh token and returns
// the raw token along with its hash. Only the hash may be persisted.
func (s *TokenService) GenerateRefreshToken() (raw string, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	raw = hex.EncodeToString(b)
	return raw, HashToken(raw), nil
}

// HashToken creates a SHA-256 hash of a token for secure storage.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// SessionTokenTTL returns the configured session token TTL.
func (s *TokenService) SessionTokenTTL() time.Duration {
	return s.cfg.SessionTokenTTL
}

// RefreshTokenTTL returns the configured refresh token TTL.
func (s *TokenService) RefreshTokenTTL() time.Duration {
	return s.cfg.RefreshTokenTTL
}
