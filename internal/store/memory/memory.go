// Package memory is a process-local document store for development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"yeardash/internal/core"
	"yeardash/internal/log"
	"yeardash/internal/store"
)

type collection struct {
	ids  []string
	docs map[string]map[string]any
}

type Store struct {
	mu      sync.Mutex
	cols    map[store.Path]*collection
	users   map[string]store.User
	revoked map[string]time.Time
	now     func() time.Time
	hub     *store.Hub
}

type Option func(*Store)

// WithClock overrides the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(logger *log.Logger, opts ...Option) *Store {
	s := &Store{
		cols:    map[store.Path]*collection{},
		users:   map[string]store.User{},
		revoked: map[string]time.Time{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = store.NewHub(s.load, logger)
	return s
}

// Ping always succeeds; it lets the memory store stand in for a database.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) load(_ context.Context, path store.Path) ([]core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cols[path]
	if !ok {
		return []core.Document{}, nil
	}
	docs := make([]core.Document, 0, len(c.ids))
	for _, id := range c.ids {
		docs = append(docs, core.Document{ID: id, Fields: core.CloneFields(c.docs[id])})
	}
	return docs, nil
}

func (s *Store) Listen(ctx context.Context, path store.Path, cs store.Constraints) (<-chan store.Event, error) {
	return s.hub.Listen(ctx, path, cs)
}

func (s *Store) List(ctx context.Context, path store.Path, cs store.Constraints) ([]core.Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	docs, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return store.Apply(docs, cs), nil
}

func (s *Store) Refresh(ctx context.Context, path store.Path) {
	s.hub.Refresh(ctx, path)
}

// Create stores the document and returns its generated id.
func (s *Store) Create(ctx context.Context, path store.Path, fields map[string]any) (string, error) {
	if err := path.Validate(); err != nil {
		return "", err
	}
	stored, err := store.Normalize(store.ResolveFields(fields, s.now()))
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	c, ok := s.cols[path]
	if !ok {
		c = &collection{docs: map[string]map[string]any{}}
		s.cols[path] = c
	}
	c.ids = append(c.ids, id)
	c.docs[id] = stored
	s.mu.Unlock()

	s.hub.Refresh(ctx, path)
	return id, nil
}

func (s *Store) Update(ctx context.Context, path store.Path, id string, fields map[string]any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	changes, err := store.Normalize(store.ResolveFields(fields, s.now()))
	if err != nil {
		return err
	}

	s.mu.Lock()
	c, ok := s.cols[path]
	if !ok || c.docs[id] == nil {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", path, id, core.ErrNotFound)
	}
	merged := core.CloneFields(c.docs[id])
	for k, v := range changes {
		merged[k] = v
	}
	c.docs[id] = merged
	s.mu.Unlock()

	s.hub.Refresh(ctx, path)
	return nil
}

func (s *Store) Delete(ctx context.Context, path store.Path, id string) error {
	if err := path.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	c, ok := s.cols[path]
	if ok {
		if _, exists := c.docs[id]; exists {
			delete(c.docs, id)
			c.ids = slices.DeleteFunc(c.ids, func(v string) bool { return v == id })
		}
	}
	s.mu.Unlock()

	s.hub.Refresh(ctx, path)
	return nil
}

// CreateUser implements store.UserStore.
func (s *Store) CreateUser(_ context.Context, u store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrEmailInUse
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return store.User{}, store.ErrUserNotFound
}

func (s *Store) UserByID(_ context.Context, id string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.User{}, store.ErrUserNotFound
	}
	return u, nil
}

var (
	_ store.Store           = (*Store)(nil)
	_ store.Refresher       = (*Store)(nil)
	_ store.UserStore       = (*Store)(nil)
	_ store.RevocationStore = (*Store)(nil)
)

func (s *Store) RevokeToken(_ context.Context, tokenID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.revoked[tokenID]; !ok || expiresAt.After(exp) {
		s.revoked[tokenID] = expiresAt
	}
	return nil
}

func (s *Store) TokenRevoked(_ context.Context, tokenID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[tokenID]
	return ok && now.Before(exp), nil
}

func (s *Store) PurgeRevokedTokens(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, exp := range s.revoked {
		if !now.Before(exp) {
			delete(s.revoked, id)
			n++
		}
	}
	return n, nil
}
