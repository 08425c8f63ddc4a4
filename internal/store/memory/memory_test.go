package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"yeardash/internal/core"
	"yeardash/internal/store"
)

var goals = store.Path{UserID: "u1", Collection: core.CollectionGoals}

func fixedClock() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }

func TestMemoryStoreCreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := New(nil, WithClock(fixedClock))

	id, err := s.Create(ctx, goals, map[string]any{
		"title":     "Read 12 books",
		"year":      2024,
		"createdAt": store.ServerTimestamp(),
	})
	if err != nil || id == "" {
		t.Fatalf("unexpected create: id=%q err=%v", id, err)
	}

	if err := s.Update(ctx, goals, id, map[string]any{"status": "completed"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	docs, err := s.List(ctx, goals, nil)
	if err != nil || len(docs) != 1 {
		t.Fatalf("unexpected list: %v %v", docs, err)
	}
	g := core.DecodeGoal(docs[0])
	if g.Title != "Read 12 books" || g.Status != core.Completed || g.Year != 2024 {
		t.Fatalf("merged goal: %+v", g)
	}
	if at, ok := g.CreatedAt.Resolve(); !ok || !at.Equal(fixedClock()) {
		t.Fatalf("createdAt: %v", g.CreatedAt)
	}

	if err := s.Delete(ctx, goals, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, goals, id); err != nil {
		t.Fatalf("second delete must succeed: %v", err)
	}
	if docs, _ := s.List(ctx, goals, nil); len(docs) != 0 {
		t.Fatalf("expected empty collection, got %v", docs)
	}
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	s := New(nil)
	err := s.Update(context.Background(), goals, "nope", map[string]any{"title": "x"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	other := store.Path{UserID: "u2", Collection: core.CollectionGoals}

	if _, err := s.Create(ctx, goals, map[string]any{"title": "mine"}); err != nil {
		t.Fatal(err)
	}
	if docs, _ := s.List(ctx, other, nil); len(docs) != 0 {
		t.Fatalf("other user sees %v", docs)
	}
}

func TestMemoryStoreListenSeesWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(nil)

	ch, err := s.Listen(ctx, goals, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ev := <-ch; len(ev.Docs) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", ev)
	}

	if _, err := s.Create(ctx, goals, map[string]any{"title": "x"}); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-ch:
		if len(ev.Docs) != 1 {
			t.Fatalf("expected 1 doc, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot after create")
	}
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	u := store.User{ID: "1", Email: "a@example.com", PasswordHash: "h"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateUser(ctx, store.User{ID: "2", Email: "A@example.com"}); !errors.Is(err, store.ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
	got, err := s.UserByEmail(ctx, "a@example.com")
	if err != nil || got.ID != "1" {
		t.Fatalf("by email: %+v %v", got, err)
	}
	if _, err := s.UserByID(ctx, "missing"); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestMemoryRevokedTokens(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	now := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

	if err := s.RevokeToken(ctx, "t1", now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.RevokeToken(ctx, "t1", now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if revoked, _ := s.TokenRevoked(ctx, "t1", now.Add(30*time.Minute)); !revoked {
		t.Fatalf("later expiry was shortened")
	}
	if revoked, _ := s.TokenRevoked(ctx, "t1", now.Add(time.Hour)); revoked {
		t.Fatalf("revocation outlived its token")
	}
	if n, _ := s.PurgeRevokedTokens(ctx, now); n != 0 {
		t.Fatalf("purged %d live revocations", n)
	}
	if n, _ := s.PurgeRevokedTokens(ctx, now.Add(time.Hour)); n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}
}
