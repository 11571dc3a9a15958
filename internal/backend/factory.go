package backend

import (
	"context"
	"errors"
	"fmt"

	"carteira/internal/amqp"
	applog "carteira/internal/log"
	"carteira/internal/storage"
	"carteira/internal/storage/memory"
	"carteira/internal/storage/surrealdb"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) *DefaultFactory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// Create opens the configured store and, when AMQP is configured, the
// event publisher. An unreachable broker is logged and skipped.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &Result{}
	var closers []func() error

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		res.Store, res.Outbox = repo, repo
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	case SurrealDBBackend:
		store, err := surrealdb.Open(ctx, config.SurrealDB, f.logger.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SurrealDB store: %w", err)
		}
		res.Store = store

	case MemoryBackend:
		if config.DataDir == "" {
			res.Store = memory.New(nil)
			f.logger.Info("Initialized memory backend")
			break
		}
		store, err := memory.NewFromDir(config.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
		}
		res.Store = store
		f.logger.Info("Initialized memory backend", "data_directory", config.DataDir)
	}
	closers = append(closers, res.Store.Close)

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			res.Publisher = client
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	return res, nil
}
