package store

import (
	"context"
	"sync"

	"yeardash/internal/core"
	"yeardash/internal/log"
)

// Loader reads the full content of a path.
type Loader func(ctx context.Context, path Path) ([]core.Document, error)

// Hub keeps the listeners of every watched path and pushes snapshots to them.
// Snapshots for one path are produced one at a time, so a listener never
// receives an older snapshot after a newer one.
type Hub struct {
	load   Loader
	logger *log.Logger

	mu     sync.Mutex
	paths  map[Path]*watchers
	nextID int
}

type watchers struct {
	refresh   sync.Mutex
	listeners map[int]*listener
}

type listener struct {
	constraints Constraints

	mu     sync.Mutex
	closed bool
	ch     chan Event
}

func NewHub(load Loader, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Discard()
	}
	return &Hub{
		load:   load,
		logger: logger.WithComponent(log.ComponentStorage),
		paths:  map[Path]*watchers{},
	}
}

// Listen registers a listener on path and delivers the current snapshot.
// The channel is closed once ctx is done.
func (h *Hub) Listen(ctx context.Context, path Path, cs Constraints) (<-chan Event, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	if err := cs.Validate(); err != nil {
		return nil, err
	}

	l := &listener{constraints: cs, ch: make(chan Event, 1)}

	h.mu.Lock()
	w, ok := h.paths[path]
	if !ok {
		w = &watchers{listeners: map[int]*listener{}}
		h.paths[path] = w
	}
	id := h.nextID
	h.nextID++
	w.listeners[id] = l
	h.mu.Unlock()

	h.logger.Debug("Listener registered", log.FieldStorePath, path.String(), log.FieldConstraints, cs.Key())

	w.refresh.Lock()
	docs, err := h.load(ctx, path)
	if err != nil {
		l.deliver(Event{Err: err})
	} else {
		l.deliver(Event{Docs: Apply(docs, cs)})
	}
	w.refresh.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(path, id)
		l.close()
	}()

	return l.ch, nil
}

// Refresh reloads path and delivers the new snapshot to its listeners. The
// reload is not cancelled with ctx, so a write whose request ends early still
// reaches every listener.
func (h *Hub) Refresh(ctx context.Context, path Path) {
	ctx = context.WithoutCancel(ctx)
	h.mu.Lock()
	w, ok := h.paths[path]
	h.mu.Unlock()
	if !ok {
		return
	}

	w.refresh.Lock()
	defer w.refresh.Unlock()

	h.mu.Lock()
	targets := make([]*listener, 0, len(w.listeners))
	for _, l := range w.listeners {
		targets = append(targets, l)
	}
	h.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	docs, err := h.load(ctx, path)
	if err != nil {
		h.logger.WarnContext(ctx, "Snapshot reload failed", log.FieldStorePath, path.String(), log.FieldError, err)
	}
	for _, l := range targets {
		if err != nil {
			l.deliver(Event{Err: err})
			continue
		}
		l.deliver(Event{Docs: Apply(docs, l.constraints)})
	}
}

// Listeners returns how many listeners are registered on path.
func (h *Hub) Listeners(path Path) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if w, ok := h.paths[path]; ok {
		return len(w.listeners)
	}
	return 0
}

func (h *Hub) remove(path Path, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.paths[path]
	if !ok {
		return
	}
	delete(w.listeners, id)
	if len(w.listeners) == 0 {
		delete(h.paths, path)
	}
}

// deliver replaces any undelivered event with ev.
func (l *listener) deliver(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case <-l.ch:
	default:
	}
	l.ch <- ev
}

func (l *listener) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}
