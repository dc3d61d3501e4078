package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wishvault/wishvault/internal/auth"
	"github.com/wishvault/wishvault/internal/config"
	"github.com/wishvault/wishvault/internal/database"
	"github.com/wishvault/wishvault/internal/email"
	"github.com/wishvault/wishvault/internal/handler"
	"github.com/wishvault/wishvault/internal/logger"
	"github.com/wishvault/wishvault/internal/middleware"
	"github.com/wishvault/wishvault/internal/repository"
	"github.com/wishvault/wishvault/internal/router"
	"github.com/wishvault/wishvault/internal/service"
	"github.com/wishvault/wishvault/internal/webauthn"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", "0.1.0").Msg("starting WishVault server")

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	// Connect to Redis
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("connected to Redis")

	// Token service refuses weak signing secrets
	tokenSvc, err := auth.NewTokenService(cfg.Security.Tokens)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token service")
	}
	log.Info().Msg("token service initialized")

	// Encryption for TOTP secrets and recovery codes at rest
	box, err := auth.NewSecretBox(cfg.Security.Encryption.KeyHex)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize encryption")
	}

	// WebAuthn relying party
	verifier, err := webauthn.NewVerifier(cfg.WebAuthn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize WebAuthn relying party")
	}
	log.Info().Str("rp_id", cfg.WebAuthn.RPID).Msg("WebAuthn relying party initialized")

	// Email sender
	sender := newEmailSender(cfg, log)

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	challengeRepo := repository.NewChallengeRepository(db)
	twoFactorRepo := repository.NewTwoFactorRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	eventRepo := repository.NewEventRepository(db)
	wishRepo := repository.NewWishRepository(db)

	// Initialize services
	audit := service.NewAuditRecorder(eventRepo, log)
	lockout := service.NewLockout(accountRepo, audit, cfg.Security.Lockout, log)
	challengeSvc := service.NewChallengeService(challengeRepo, cfg.WebAuthn.ChallengeTTL, log)
	sessionSvc := service.NewSessionService(sessionRepo, tokenSvc, audit, log)
	totpSvc := service.NewTOTPService(accountRepo, twoFactorRepo, box, audit, cfg.TOTP, log)
	webauthnSvc := service.NewWebAuthnService(accountRepo, credentialRepo, challengeSvc, verifier, lockout, audit, cfg.WebAuthn, log)
	authSvc := service.NewAuthService(accountRepo, eventRepo, sessionSvc, totpSvc, lockout, audit, rdb, cfg, log)
	verificationSvc := service.NewVerificationService(rdb, accountRepo, sender, cfg, log)
	wishSvc := service.NewWishService(wishRepo, log)

	// Initialize handlers
	h := handler.New(db, rdb, log, cfg, authSvc, webauthnSvc, totpSvc, sessionSvc, verificationSvc, wishSvc)

	// Initialize middleware
	mw := middleware.New(rdb, log, cfg)

	// Set up router
	r := router.New(h, mw, sessionSvc, cfg.Server.AllowedOrigins)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background cleanup of expired challenges and sessions
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go runCleanup(cleanupCtx, challengeSvc, sessionSvc, log)

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// newEmailSender builds the configured email provider, falling back to a
// no-op sender when none is configured
func newEmailSender(cfg *config.Config, log *logger.Logger) email.Sender {
	switch cfg.Email.Provider {
	case "gmail":
		g := cfg.Email.Gmail
		if g.CredentialsJSON != "" {
			sender, err := email.NewGmailSender(context.Background(), email.GmailConfig{
				CredentialsJSON: g.CredentialsJSON,
				SenderAddress:   g.SenderAddress,
				SenderName:      g.SenderName,
			})
			if err != nil {
				log.Fatal().Err(err).Msg("failed to initialize Gmail sender")
			}
			log.Info().Str("sender", g.SenderAddress).Msg("Gmail sender initialized")
			return sender
		}
		sender, err := email.NewGmailSenderWithToken(context.Background(), g.ClientID, g.ClientSecret, g.RefreshToken, g.SenderAddress, g.SenderName)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Gmail sender")
		}
		log.Info().Str("sender", g.SenderAddress).Msg("Gmail sender initialized (OAuth token)")
		return sender
	case "", "none":
		if cfg.EmailVerification.Enabled {
			log.Warn().Msg("email verification is enabled but no email provider is configured; codes will not be delivered")
		}
		return email.NoopSender{}
	default:
		log.Fatal().Str("provider", cfg.Email.Provider).Msg("unknown email provider")
		return nil
	}
}

// runCleanup periodically purges expired challenges and sessions
func runCleanup(ctx context.Context, challenges *service.ChallengeService, sessions *service.SessionService, log *logger.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := challenges.PurgeExpired(ctx); err != nil {
				log.Error().Err(err).Msg("challenge cleanup failed")
			} else if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged expired challenges")
			}
			if n, err := sessions.PurgeExpired(ctx); err != nil {
				log.Error().Err(err).Msg("session cleanup failed")
			} else if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged expired sessions")
			}
		}
	}
}
