package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server            ServerConfig            `mapstructure:"server"`
	Database          DatabaseConfig          `mapstructure:"database"`
	Redis             RedisConfig             `mapstructure:"redis"`
	Log               LogConfig               `mapstructure:"log"`
	Security          SecurityConfig          `mapstructure:"security"`
	WebAuthn          WebAuthnConfig          `mapstructure:"webauthn"`
	TOTP              TOTPConfig              `mapstructure:"totp"`
	Email             EmailConfig             `mapstructure:"email"`
	EmailVerification EmailVerificationConfig `mapstructure:"email_verification"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	TLS  struct {
		Enabled  bool   `mapstructure:"enabled"`
		CertFile string `mapstructure:"cert_file"`
		KeyFile  string `mapstructure:"key_file"`
	} `mapstructure:"tls"`
	// AllowedOrigins is the CORS allow-list for the SPA frontend
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Password     PasswordConfig     `mapstructure:"password"`
	Tokens       TokenConfig        `mapstructure:"tokens"`
	Lockout      LockoutConfig      `mapstructure:"lockout"`
	Encryption   EncryptionConfig   `mapstructure:"encryption"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
}

// PasswordConfig holds password hashing configuration
type PasswordConfig struct {
	MinLength         int    `mapstructure:"min_length"`
	Argon2Memory      uint32 `mapstructure:"argon2_memory"`
	Argon2Iterations  uint32 `mapstructure:"argon2_iterations"`
	Argon2Parallelism uint8  `mapstructure:"argon2_parallelism"`
}

// TokenConfig holds session token configuration.
// SigningSecret must pass the entropy check at startup; the server refuses
// to boot with a weak secret.
type TokenConfig struct {
	SigningSecret        string        `mapstructure:"signing_secret"`
	MinSecretLength      int           `mapstructure:"min_secret_length"`
	MinSecretEntropyBits float64       `mapstructure:"min_secret_entropy_bits"`
	SessionTokenTTL      time.Duration `mapstructure:"session_token_ttl"`
	RefreshTokenTTL      time.Duration `mapstructure:"refresh_token_ttl"`
	Issuer               string        `mapstructure:"issuer"`
}

// LockoutConfig holds account lockout policy configuration
type LockoutConfig struct {
	// MaxAttempts is the failed-attempt threshold that triggers the first lock
	MaxAttempts int `mapstructure:"max_attempts"`
	// BaseLockDuration is the lock applied when the threshold is first
	// reached; repeated failures escalate from there
	BaseLockDuration time.Duration `mapstructure:"base_lock_duration"`
}

// EncryptionConfig holds the key for encrypting TOTP secrets and recovery
// codes at rest. The key is hex-encoded and must decode to 32 bytes.
type EncryptionConfig struct {
	KeyHex string `mapstructure:"key_hex"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	DefaultLimit  int    `mapstructure:"default_limit"`
	DefaultWindow string `mapstructure:"default_window"`
}

// WebAuthnConfig holds relying-party configuration for WebAuthn ceremonies
type WebAuthnConfig struct {
	RPID             string        `mapstructure:"rp_id"`
	RPName           string        `mapstructure:"rp_name"`
	RPOrigins        []string      `mapstructure:"rp_origins"`
	ChallengeTTL     time.Duration `mapstructure:"challenge_ttl"`
	ChallengeByteLen int           `mapstructure:"challenge_byte_len"`
}

// TOTPConfig holds TOTP configuration
type TOTPConfig struct {
	Issuer string `mapstructure:"issuer"`
	Digits int    `mapstructure:"digits"`
	Period int    `mapstructure:"period"`
	// RecoveryCodeCount is the number of single-use recovery codes issued at setup
	RecoveryCodeCount int `mapstructure:"recovery_code_count"`
}

// EmailConfig holds email sending configuration
type EmailConfig struct {
	// Provider is the email provider to use: "gmail" or "none"
	Provider string `mapstructure:"provider"`
	// AppName is the application name shown in emails
	AppName string `mapstructure:"app_name"`
	// Gmail holds Gmail-specific configuration
	Gmail GmailEmailConfig `mapstructure:"gmail"`
}

// GmailEmailConfig holds Gmail API configuration
type GmailEmailConfig struct {
	// CredentialsJSON is the service account credentials JSON content
	CredentialsJSON string `mapstructure:"credentials_json"`
	// ClientID for OAuth2 token-based auth (alternative to service account)
	ClientID string `mapstructure:"client_id"`
	// ClientSecret for OAuth2 token-based auth
	ClientSecret string `mapstructure:"client_secret"`
	// RefreshToken for OAuth2 token-based auth
	RefreshToken string `mapstructure:"refresh_token"`
	// SenderAddress is the "From" email address
	SenderAddress string `mapstructure:"sender_address"`
	// SenderName is the display name for the sender
	SenderName string `mapstructure:"sender_name"`
}

// EmailVerificationConfig holds email verification settings
type EmailVerificationConfig struct {
	// Enabled controls whether email verification is required on registration
	Enabled bool `mapstructure:"enabled"`
	// OTPLength is the number of digits in the OTP code (default: 6)
	OTPLength int `mapstructure:"otp_length"`
	// OTPTTL is how long the OTP is valid (default: 10m)
	OTPTTL time.Duration `mapstructure:"otp_ttl"`
	// ResendCooldown is the minimum time between resend attempts (default: 60s)
	ResendCooldown time.Duration `mapstructure:"resend_cooldown"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/wishvault")

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Bind environment variables
	v.SetEnvPrefix("WISHVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "wishvault")
	v.SetDefault("database.user", "wishvault")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Security defaults
	v.SetDefault("security.password.min_length", 12)
	v.SetDefault("security.password.argon2_memory", 65536)
	v.SetDefault("security.password.argon2_iterations", 3)
	v.SetDefault("security.password.argon2_parallelism", 4)

	// No default for the signing secret: it must be provided and strong.
	v.SetDefault("security.tokens.signing_secret", "")
	v.SetDefault("security.tokens.min_secret_length", 32)
	v.SetDefault("security.tokens.min_secret_entropy_bits", 128)
	v.SetDefault("security.tokens.session_token_ttl", "1h")
	v.SetDefault("security.tokens.refresh_token_ttl", "720h")
	v.SetDefault("security.tokens.issuer", "wishvault")

	v.SetDefault("security.lockout.max_attempts", 5)
	v.SetDefault("security.lockout.base_lock_duration", "5m")

	v.SetDefault("security.encryption.key_hex", "")

	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.default_limit", 100)
	v.SetDefault("security.rate_limiting.default_window", "1m")

	// WebAuthn defaults
	v.SetDefault("webauthn.rp_id", "localhost")
	v.SetDefault("webauthn.rp_name", "WishVault")
	v.SetDefault("webauthn.rp_origins", []string{"http://localhost:3000"})
	v.SetDefault("webauthn.challenge_ttl", "5m")
	v.SetDefault("webauthn.challenge_byte_len", 32)

	// TOTP defaults
	v.SetDefault("totp.issuer", "WishVault")
	v.SetDefault("totp.digits", 6)
	v.SetDefault("totp.period", 30)
	v.SetDefault("totp.recovery_code_count", 10)

	// Email defaults
	v.SetDefault("email.provider", "none")
	v.SetDefault("email.app_name", "WishVault")
	v.SetDefault("email.gmail.sender_address", "")
	v.SetDefault("email.gmail.sender_name", "WishVault")

	// Email verification defaults
	v.SetDefault("email_verification.enabled", false)
	v.SetDefault("email_verification.otp_length", 6)
	v.SetDefault("email_verification.otp_ttl", "10m")
	v.SetDefault("email_verification.resend_cooldown", "60s")
}
