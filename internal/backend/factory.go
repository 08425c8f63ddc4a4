package backend

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"yeardash/internal/amqp"
	"yeardash/internal/log"
	"yeardash/internal/metrics"
	"yeardash/internal/storage"
	"yeardash/internal/storage/postgres"
	"yeardash/internal/store"
	"yeardash/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger, m *metrics.Metrics) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger:  logger.WithComponent(log.ComponentBackend),
		metrics: m,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		b       Backend
		cleanup CleanupFunc
		err     error
	)
	switch config.Type {
	case SQLiteBackend:
		b, cleanup, err = f.createSQLiteBackend(config)
	case PostgresBackend:
		b, cleanup, err = f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		b, cleanup = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Backend: b, Store: b, Cleanup: cleanup}
	f.attachBroker(config, result)
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (Backend, CleanupFunc, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, repo.Close, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (Backend, CleanupFunc, error) {
	pg, err := postgres.Open(ctx, postgres.Config{DSN: config.DatabaseURL, MaxConns: int32(config.MaxConns)}, f.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL store: %w", err)
	}
	f.logger.Info("Initialized PostgreSQL backend", "max_conns", config.MaxConns)
	return pg, func() error { pg.Close(); return nil }, nil
}

func (f *DefaultFactory) createMemoryBackend() (Backend, CleanupFunc) {
	f.logger.Info("Initialized memory backend")
	return memory.New(f.logger), func() error { return nil }
}

// attachBroker connects to AMQP when configured. A broker that cannot be
// reached leaves the backend working on its own.
func (f *DefaultFactory) attachBroker(config Config, result *BackendResult) {
	if config.AMQPURL == "" {
		return
	}
	origin := config.Origin
	if origin == "" {
		origin = uuid.NewString()
	}
	client, err := amqp.NewClient(amqp.Config{
		URL:         config.AMQPURL,
		Exchange:    config.AMQPExchange,
		QueuePrefix: config.AMQPQueue,
		Origin:      origin,
	}, f.logger, f.metrics)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without fan-out", "error", err)
		return
	}

	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue,
		"origin", origin)

	result.Broker = client
	result.Store = store.WithPublisher(result.Backend, client, f.logger)
	inner := result.Cleanup
	result.Cleanup = func() error {
		brokerErr := client.Close()
		if err := inner(); err != nil {
			return err
		}
		return brokerErr
	}
}

var (
	_ Backend = (*storage.SQLiteRepository)(nil)
	_ Backend = (*postgres.Store)(nil)
	_ Backend = (*memory.Store)(nil)
)
