package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tinoosan/vault/internal/events"
	kafkaevents "github.com/tinoosan/vault/internal/events/kafka"
	httpapi "github.com/tinoosan/vault/internal/httpapi/v1"
	"github.com/tinoosan/vault/internal/release"
	"github.com/tinoosan/vault/internal/storage/memory"
	pgstore "github.com/tinoosan/vault/internal/storage/postgres"
	"github.com/tinoosan/vault/internal/vault"
)

type config struct {
	Currency             string
	CapacityMinor        int64
	WithdrawalLimitMinor int64
	Addr                 string
	DatabaseURL          string
	KafkaBrokers         []string
	KafkaTopic           string
	ReleaseURL           string
}

func main() {
	// Local .env is a dev convenience; absence is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLoggerFromEnv()
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	params, err := vault.NewParams(cfg.Currency, cfg.CapacityMinor, cfg.WithdrawalLimitMinor)
	if err != nil {
		logger.Error("invalid vault parameters", "err", err)
		os.Exit(1)
	}

	var repo vault.Repo
	var writer vault.Writer
	var idem httpapi.IdempotencyStore
	var closeFns []func()

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFns = append(closeFns, pg.Close)
		repo, writer, idem = pg, pg, pg
		logger.Info("storage backend: postgres")
	} else {
		store := memory.New()
		repo, writer, idem = store, store, store
		logger.Info("storage backend: memory")
	}

	var releaser vault.Releaser = release.Nop{}
	if cfg.ReleaseURL != "" {
		releaser = release.NewWebhook(cfg.ReleaseURL)
		logger.Info("fund release: webhook", "url", cfg.ReleaseURL)
	} else {
		logger.Warn("fund release: nop (RELEASE_URL not set)")
	}

	var pub vault.Publisher = events.NewLog(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafkaevents.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		closeFns = append(closeFns, func() { _ = kp.Close() })
		pub = kp
		logger.Info("notifications: kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	svc, err := vault.New(params, repo, writer, releaser, pub, logger)
	if err != nil {
		logger.Error("failed to construct vault", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.New(svc, idem, logger).Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("vault service listening", "addr", srv.Addr,
			"currency", params.Currency,
			"capacity_minor", cfg.CapacityMinor,
			"withdrawal_limit_minor", cfg.WithdrawalLimitMinor,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	for _, fn := range closeFns {
		fn()
	}
}

// loadConfig reads and validates the environment. The capacity and
// withdrawal limit are required; a vault with missing or non-positive
// limits must not start.
func loadConfig() (config, error) {
	cfg := config{
		Currency:   strings.ToUpper(envOr("VAULT_CURRENCY", "USD")),
		Addr:       envOr("ADDR", ":8080"),
		KafkaTopic: envOr("KAFKA_TOPIC", "vault.notifications"),
	}
	var err error
	cfg.CapacityMinor, err = requiredInt64("VAULT_CAPACITY_MINOR")
	if err != nil {
		return config{}, err
	}
	cfg.WithdrawalLimitMinor, err = requiredInt64("VAULT_WITHDRAWAL_LIMIT_MINOR")
	if err != nil {
		return config{}, err
	}
	if cfg.CapacityMinor <= 0 {
		return config{}, fmt.Errorf("VAULT_CAPACITY_MINOR must be positive, got %d", cfg.CapacityMinor)
	}
	if cfg.WithdrawalLimitMinor <= 0 {
		return config{}, fmt.Errorf("VAULT_WITHDRAWAL_LIMIT_MINOR must be positive, got %d", cfg.WithdrawalLimitMinor)
	}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ReleaseURL = strings.TrimSpace(os.Getenv("RELEASE_URL"))
	if raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func requiredInt64(key string) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLoggerFromEnv() *slog.Logger {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
