//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"yeardash/internal/core"
	"yeardash/internal/store"
)

// Integration tests require a reachable PostgreSQL
// Run with: YEARDASH_TEST_DATABASE_URL=postgres://... go test -tags=integration ./internal/storage/postgres

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("YEARDASH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("YEARDASH_TEST_DATABASE_URL not set, skipping integration test")
	}
	s, err := Open(context.Background(), Config{DSN: dsn, DialTimeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestIntegration_Documents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	path := store.Path{UserID: uuid.NewString(), Collection: core.CollectionRecaps}

	id, err := s.Create(ctx, path, map[string]any{"title": "Week 1", "type": "Weekly", "createdAt": store.ServerTimestamp()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Update(ctx, path, id, map[string]any{"content": "done"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	docs, err := s.List(ctx, path, nil)
	if err != nil || len(docs) != 1 {
		t.Fatalf("list: %v %v", docs, err)
	}
	r := core.DecodeRecap(docs[0])
	if r.Title != "Week 1" || r.Content != "done" || r.CreatedAt.Kind() != core.TimestampNative {
		t.Fatalf("unexpected recap %+v", r)
	}
	if err := s.Update(ctx, path, "missing", map[string]any{"x": 1}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, path, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestIntegration_Users(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	email := uuid.NewString() + "@example.com"

	if err := s.CreateUser(ctx, store.User{ID: uuid.NewString(), Email: email}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.CreateUser(ctx, store.User{ID: uuid.NewString(), Email: email}); !errors.Is(err, store.ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
	if _, err := s.UserByEmail(ctx, email); err != nil {
		t.Fatalf("by email: %v", err)
	}
}
