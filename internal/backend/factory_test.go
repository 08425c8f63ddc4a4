package backend

import (
	"context"
	"path/filepath"
	"testing"

	"yeardash/internal/config"
	"yeardash/internal/core"
	"yeardash/internal/store"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://x", DBMaxConns: 3})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != PostgresBackend || cfg.MaxConns != 3 {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"amqp without exchange", Config{Type: MemoryBackend, AMQPURL: "amqp://localhost", AMQPQueue: "q"}, true},
		{"unknown type", Config{Type: "firestore"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		config Config
	}{
		{"memory", Config{Type: MemoryBackend}},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "yeardash.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewFactory(nil, nil).CreateBackend(ctx, tt.config)
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			defer result.Cleanup()

			if result.Broker != nil {
				t.Error("no broker expected without AMQP URL")
			}
			if err := result.Backend.Ping(ctx); err != nil {
				t.Fatalf("Ping() error = %v", err)
			}

			path := store.Path{UserID: "u1", Collection: core.CollectionGoals}
			id, err := result.Store.Create(ctx, path, map[string]any{"title": "Run"})
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			docs, err := result.Backend.List(ctx, path, nil)
			if err != nil || len(docs) != 1 || docs[0].ID != id {
				t.Fatalf("List() = %v, %v", docs, err)
			}
		})
	}
}
