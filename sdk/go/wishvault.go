package wishvault

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config holds the configuration for the WishVault client.
type Config struct {
	// BaseURL is the root URL of the WishVault server.
	// Examples: "https://wishvault.example.com" or "https://wishvault.example.com/api/v1"
	// The "/api/v1" suffix is appended automatically if missing.
	BaseURL string

	// CookieName is the name of the session token cookie set by WishVault.
	// Default: "wishvault_session_token"
	CookieName string

	// CacheTTL controls how long validated tokens are cached in memory
	// to reduce calls to the WishVault server. Set to 0 to disable caching.
	// Default: 2 minutes
	CacheTTL time.Duration

	// HTTPClient is an optional custom HTTP client.
	// If nil, a default client with 10s timeout is used.
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.CookieName == "" {
		c.CookieName = "wishvault_session_token"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 2 * time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if !strings.HasSuffix(c.BaseURL, "/api/v1") {
		c.BaseURL = c.BaseURL + "/api/v1"
	}
}

// Client is the WishVault SDK client. It provides methods for calling
// WishVault APIs and Echo middleware for protecting routes.
type Client struct {
	cfg   Config
	cache *tokenCache
}

// NewClient creates a new WishVault client with the given configuration.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:   cfg,
		cache: newTokenCache(),
	}
}

// ValidateToken validates a session token by calling the WishVault server.
// Results are cached according to CacheTTL to reduce network calls.
func (c *Client) ValidateToken(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	// Check cache first
	if c.cfg.CacheTTL > 0 {
		if account, ok := c.cache.get(token); ok {
			return account, nil
		}
	}

	// Call WishVault to validate
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/accounts/me", nil)
	if err != nil {
		return nil, fmt.Errorf("wishvault: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wishvault: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wishvault: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrTokenInvalid
	}
	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrTokenForbidden
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wishvault: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var account Account
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("wishvault: failed to parse account: %w", err)
	}

	// Cache the result
	if c.cfg.CacheTTL > 0 {
		c.cache.set(token, &account, c.cfg.CacheTTL)
	}

	return &account, nil
}

// InvalidateToken removes a token from the local cache. Call this after
// logout to ensure stale tokens are not served from cache.
func (c *Client) InvalidateToken(token string) {
	c.cache.delete(token)
}

// Login authenticates an account with its identifier and password.
// Returns an AuthResult containing either a TokenPair or a
// TwoFactorRequiredResponse when the account has a second factor enabled.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	body, err := c.post(ctx, "/auth/login", req, "")
	if err != nil {
		return nil, err
	}

	var result AuthResult

	// Check if a second factor is required
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("wishvault: failed to parse response: %w", err)
	}

	if _, ok := raw["status"]; ok {
		var tf TwoFactorRequiredResponse
		if err := json.Unmarshal(body, &tf); err == nil && tf.Status == "two_factor_required" {
			result.TwoFactorRequired = &tf
			return &result, nil
		}
	}

	var tokens TokenPair
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("wishvault: failed to parse login response: %w", err)
	}
	result.Tokens = &tokens
	return &result, nil
}

// CompleteTwoFactorLogin finishes a login that paused for a second factor.
func (c *Client) CompleteTwoFactorLogin(ctx context.Context, req TwoFactorLoginRequest) (*TokenPair, error) {
	body, err := c.post(ctx, "/auth/login/2fa", req, "")
	if err != nil {
		return nil, err
	}

	var tokens TokenPair
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("wishvault: failed to parse two-factor response: %w", err)
	}
	return &tokens, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	body, err := c.post(ctx, "/auth/register", req, "")
	if err != nil {
		return nil, err
	}

	var account Account
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("wishvault: failed to parse register response: %w", err)
	}
	return &account, nil
}

// Logout revokes the current session. The token is the session token.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.post(ctx, "/auth/logout", nil, token)
	if err != nil {
		return err
	}
	c.cache.delete(token)
	return nil
}

// LogoutAll revokes every session belonging to the account.
func (c *Client) LogoutAll(ctx context.Context, token string) error {
	_, err := c.post(ctx, "/auth/logout/all", nil, token)
	if err != nil {
		return err
	}
	c.cache.clear()
	return nil
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body, err := c.post(ctx, "/auth/token/refresh", map[string]string{
		"refreshToken": refreshToken,
	}, "")
	if err != nil {
		return nil, err
	}

	var tokens TokenPair
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("wishvault: failed to parse refresh response: %w", err)
	}
	return &tokens, nil
}

// GetAccountByToken retrieves account info using a valid session token.
func (c *Client) GetAccountByToken(ctx context.Context, token string) (*Account, error) {
	return c.ValidateToken(ctx, token)
}

// post sends a POST request to the WishVault API.
func (c *Client) post(ctx context.Context, path string, payload interface{}, token string) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("wishvault: failed to marshal request: %w", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("wishvault: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wishvault: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wishvault: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	return body, nil
}

// tokenCache provides in-memory caching for validated tokens.
type tokenCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	account   *Account
	expiresAt time.Time
}

func newTokenCache() *tokenCache {
	tc := &tokenCache{
		entries: make(map[string]*cacheEntry),
	}
	go tc.cleanup()
	return tc
}

func (tc *tokenCache) get(token string) (*Account, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	entry, ok := tc.entries[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.account, true
}

func (tc *tokenCache) set(token string, account *Account, ttl time.Duration) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.entries[token] = &cacheEntry{
		account:   account,
		expiresAt: time.Now().Add(ttl),
	}
}

func (tc *tokenCache) delete(token string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	delete(tc.entries, token)
}

func (tc *tokenCache) clear() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.entries = make(map[string]*cacheEntry)
}

func (tc *tokenCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	for range ticker.C {
		tc.mu.Lock()
		now := time.Now()
		for k, v := range tc.entries {
			if now.After(v.expiresAt) {
				delete(tc.entries, k)
			}
		}
		tc.mu.Unlock()
	}
}
