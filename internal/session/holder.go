// Package session holds the per-session identity, loading flag and theme.
//
// The Holder is the only state shared between the subscriber, the gateways
// and the HTTP layer. It is changed through its actions and observed
// through Observe.
package session

import (
	"sync"

	"yeardash/internal/core"
)

// Theme is the UI colour scheme preference.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"

	DefaultTheme = ThemeDark
)

func (t Theme) Valid() bool { return t == ThemeDark || t == ThemeLight }

// Toggled returns the other theme.
func (t Theme) Toggled() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// State is a snapshot of the holder.
type State struct {
	Identity *core.Identity
	Loading  bool
	Theme    Theme
}

// Holder stores the session state. The zero value is not usable; use New.
type Holder struct {
	mu        sync.RWMutex
	state     State
	themes    ThemeStore
	observers map[int]func(State)
	nextID    int
}

// New creates a holder in the loading state with the persisted theme.
func New(themes ThemeStore) *Holder {
	if themes == nil {
		themes = NewMemoryThemeStore(DefaultTheme)
	}
	theme := themes.LoadTheme()
	if !theme.Valid() {
		theme = DefaultTheme
	}
	return &Holder{
		state:     State{Loading: true, Theme: theme},
		themes:    themes,
		observers: map[int]func(State){},
	}
}

// Snapshot returns the latest state.
func (h *Holder) Snapshot() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.copyState()
}

// Identity returns the current identity or nil.
func (h *Holder) Identity() *core.Identity {
	return h.Snapshot().Identity
}

// SetIdentity replaces the identity and ends the loading phase.
func (h *Holder) SetIdentity(id *core.Identity) {
	h.update(func(s *State) {
		if id != nil {
			cp := *id
			id = &cp
		}
		s.Identity = id
		s.Loading = false
	})
}

func (h *Holder) SetLoading(loading bool) {
	h.update(func(s *State) { s.Loading = loading })
}

// SetTheme sets and persists the theme. Invalid themes are ignored.
func (h *Holder) SetTheme(t Theme) error {
	if !t.Valid() {
		return nil
	}
	h.update(func(s *State) { s.Theme = t })
	return h.themes.SaveTheme(t)
}

// ToggleTheme flips between dark and light and persists the result.
func (h *Holder) ToggleTheme() (Theme, error) {
	var next Theme
	h.update(func(s *State) {
		next = s.Theme.Toggled()
		s.Theme = next
	})
	return next, h.themes.SaveTheme(next)
}

// Observe registers fn to be called after every state change, outside the
// holder's lock. The returned function unregisters it.
func (h *Holder) Observe(fn func(State)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.observers[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.observers, id)
		h.mu.Unlock()
	}
}

func (h *Holder) update(apply func(*State)) {
	h.mu.Lock()
	apply(&h.state)
	state := h.copyState()
	observers := make([]func(State), 0, len(h.observers))
	for _, fn := range h.observers {
		observers = append(observers, fn)
	}
	h.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

func (h *Holder) copyState() State {
	s := h.state
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	return s
}
