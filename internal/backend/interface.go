package backend

import (
	"context"

	"yeardash/internal/amqp"
	"yeardash/internal/store"
)

// Backend is a document store that can also hold accounts and session
// revocations and report health.
type Backend interface {
	store.Store
	store.Refresher
	store.UserStore
	store.RevocationStore
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function.
// Store is Backend wrapped so writes are announced on AMQP when Broker is set.
type BackendResult struct {
	Backend Backend
	Store   store.Store
	Broker  *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string
	MaxConns    int

	// Change fan-out, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// Origin tags the changes this process publishes; generated when empty.
	Origin string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
