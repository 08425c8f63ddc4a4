package auth

import (
	"time"

	"github.com/google/uuid"

	"yeardash/internal/cache"
)

const maxPendingStates = 1024

// StateStore remembers OAuth state values between the redirect and the
// callback. Each state can be consumed once.
type StateStore struct {
	pending *cache.LRUCache[string]
}

func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{pending: cache.NewLRUCache[string](maxPendingStates, ttl)}
}

// New returns a fresh state bound to the page to return to.
func (s *StateStore) New(returnTo string) string {
	state := uuid.NewString()
	s.pending.Set(state, returnTo)
	return state
}

// Consume checks state and returns the page it was issued for.
func (s *StateStore) Consume(state string) (string, bool) {
	if state == "" {
		return "", false
	}
	return s.pending.Take(state)
}

func (s *StateStore) CleanExpired() int { return s.pending.CleanExpired() }
