// Package cli holds the bootstrapping shared by cmd/server,
// cmd/recurring-worker and cmd/sync-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"propledger/internal/amqp"
	"propledger/internal/config"
	"propledger/internal/log"
	"propledger/internal/services"
	"propledger/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default. Invalid values fall back to text at info.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.DefaultConfig().Level
	}
	logger, err := log.Setup(level, cfg.LogFormat, component)
	if err != nil {
		c := log.DefaultConfig()
		c.Level = level
		c.Component = component
		logger = log.New(c)
		log.SetDefault(logger)
	}
	return logger
}

// LoadAndValidateConfig loads configuration, sets up logging and validates the
// configuration. It exits the process on validation failure.
func LoadAndValidateConfig(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite opens the SQLite repository, applying migrations.
// It exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitPublisher returns the AMQP event publisher, or nil when AMQP is disabled
// or unavailable. Generation keeps working without it; only the mirror lags.
func InitPublisher(logger *log.Logger, cfg *config.Config) (services.EventPublisher, func()) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - generated transactions will not be mirrored")
		return nil, func() {}
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", log.FieldError, err)
		return nil, func() {}
	}
	logger.Info("AMQP client initialized - generated transactions will sync via sync-worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client, func() { _ = client.Close() }
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM that carries
// logger for log.FromContext.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return log.NewContext(ctx, logger), stop
}
