// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/carteira, cmd/carteira-worker and cmd/carteira-report.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"carteira/internal/backend"
	"carteira/internal/config"
	applog "carteira/internal/log"
)

// ShutdownTimeout bounds how long a command waits for its components to
// stop after a signal.
const ShutdownTimeout = 30 * time.Second

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Bootstrap loads .env and the configuration, then builds the logger the
// configuration asks for and makes it the default. It exits the process
// when the configuration is invalid.
func Bootstrap(component string) (*config.Config, *applog.Logger) {
	LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		Fatal(applog.New(applog.DefaultConfig()), "Failed to load configuration", err)
	}
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		Fatal(logger, "Configuration validation failed", err)
	}
	return cfg, logger
}

// SetupLogger builds a logger from the log level and format settings and
// sets it as the default slog logger.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// InitBackend creates the store selected by DATA_BACKEND and, when AMQP is
// configured, the event publisher. It exits the process on failure.
func InitBackend(ctx context.Context, cfg *config.Config, logger *applog.Logger) *backend.Result {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger).Create(ctx, bcfg)
	if err != nil {
		Fatal(logger, "Failed to initialize backend", err, "backend", bcfg.Type.String())
	}
	return res
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Fatal logs err and exits with status 1.
func Fatal(logger *applog.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{applog.FieldError, err}, args...)...)
	os.Exit(1)
}
