package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gastos/internal/amqp"
	"gastos/internal/services"
	"gastos/internal/sheets"
	"gastos/internal/sheets/memory"
	"gastos/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the configured store and wraps it in an
// ExpenseService that publishes change events when AMQP is configured.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, closer, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{services.WithCloser(closer)}
	if config.ListCacheTTL > 0 {
		opts = append(opts, services.WithListCacheTTL(config.ListCacheTTL))
	}

	if config.AMQPURL != "" {
		publisher, err := amqp.NewPublisher(config.AMQPURL, config.AMQPExchange)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP publisher, continuing without change events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP publisher", "exchange", config.AMQPExchange)
			opts = append(opts, services.WithPublisher(publisher), services.WithCloser(publisher))
		}
	}

	service := services.NewExpenseService(store, opts...)

	return &BackendResult{
		Backend: service,
		Cleanup: service.Close,
	}, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (sheets.ExpenseStore, io.Closer, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, repo, nil

	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(ctx, config.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return repo, repo, nil

	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		store := memory.NewFromFiles(dataDir)
		f.logger.Info("Initialized memory backend", "data_directory", dataDir)
		return store, store, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
