package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"

	"tellerpos/backend/internal/cache"
	"tellerpos/backend/internal/config"
	"tellerpos/backend/internal/httpapi"
	"tellerpos/backend/internal/logging"
	"tellerpos/backend/internal/service"
	"tellerpos/backend/internal/store"
	"tellerpos/backend/internal/store/memory"
	pgstore "tellerpos/backend/internal/store/postgres"
)

func main() {
	cfg, cfgErr := config.Load()
	logCloser := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Pretty: !cfg.IsProduction(),
		File:   cfg.LogFile,
	})
	defer logCloser.Close()

	if cfgErr != nil {
		log.Fatal().Err(cfgErr).Msg("invalid configuration")
	}
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid TIME_ZONE")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("schema setup failed")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Msg("repository: postgres")
	} else {
		if cfg.IsProduction() {
			log.Warn().Msg("DATABASE_URL is not set in production; sales will not survive a restart")
		}
		repo = memory.NewSeeded()
		log.Info().Msg("repository: in-memory")
	}

	reports := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop report cache")
			_ = redisCache.Close()
		} else {
			reports = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Str("addr", cfg.RedisAddr).Msg("report cache: redis")
		}
	} else {
		log.Info().Msg("report cache: noop")
	}

	svc := service.New(repo, reports, service.Options{
		Location:       loc,
		ReportCacheTTL: cfg.ReportCacheTTL(),
	})

	if err := bootstrapAdmin(ctx, svc, cfg); err != nil {
		log.Fatal().Err(err).Msg("bootstrap admin failed")
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), svc)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Str("env", cfg.Env).Msg("tellerpos backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

type adminEnsurer interface {
	EnsureAdmin(ctx context.Context, username string, password string) (bool, error)
}

// bootstrapAdmin creates the configured admin account on first start.
func bootstrapAdmin(ctx context.Context, svc adminEnsurer, cfg config.Config) error {
	username := strings.TrimSpace(cfg.BootstrapAdminUsername)
	if username == "" && cfg.BootstrapAdminPassword == "" {
		return nil
	}
	if username == "" || cfg.BootstrapAdminPassword == "" {
		return fmt.Errorf("BOOTSTRAP_ADMIN_USERNAME and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	if err := validatePasswordStrength(cfg.BootstrapAdminPassword); err != nil {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD is too weak: %w", err)
	}

	created, err := svc.EnsureAdmin(ctx, username, cfg.BootstrapAdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.Info().Str("username", username).Msg("bootstrap admin created")
	}
	return nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}

// validatePasswordStrength rejects short passwords, passwords made of a
// single repeated character, known-weak values and passwords without both
// letters and digits.
func validatePasswordStrength(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("at least 12 characters required")
	}

	known := map[string]bool{
		"password1234": true, "admin1234567": true, "123456789abc": true,
		"qwerty123456": true, "changeme1234": true, "administrator1": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("repeated-character password not allowed")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("letters and digits required")
	}

	return nil
}
