package subscriber

import (
	"context"
	"sync"

	"yeardash/internal/core"
	"yeardash/internal/session"
	"yeardash/internal/store"
)

// Live keeps one subscription in step with the session identity and the
// current query. Any change of identity, collection or constraints stops
// the running subscription before the next one opens; setting an equal
// query again does nothing.
type Live[T any] struct {
	ctx    context.Context
	sub    *Subscriber
	holder *session.Holder
	decode func(core.Document) T

	mu          sync.Mutex
	identity    *core.Identity
	collection  string
	constraints store.Constraints
	current     *Subscription[T]
	stopped     bool
	unobserve   func()

	outMu    sync.Mutex
	state    State[T]
	updates  chan State[T]
	onChange func(State[T])
	closed   bool
}

// Bind starts a live subscription driven by holder. onChange may be nil.
func Bind[T any](ctx context.Context, s *Subscriber, holder *session.Holder, collection string, cs store.Constraints, decode func(core.Document) T, onChange func(State[T])) *Live[T] {
	l := &Live[T]{
		ctx:         ctx,
		sub:         s,
		holder:      holder,
		decode:      decode,
		collection:  collection,
		constraints: cs,
		updates:     make(chan State[T], 1),
		onChange:    onChange,
	}

	l.mu.Lock()
	l.unobserve = holder.Observe(func(session.State) { l.syncIdentity() })
	l.identity = holder.Identity()
	l.restart()
	l.mu.Unlock()
	return l
}

// SetQuery changes collection and constraints. Constraints are compared by
// content, not by identity.
func (l *Live[T]) SetQuery(collection string, cs store.Constraints) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || (collection == l.collection && cs.Equal(l.constraints)) {
		return
	}
	l.collection, l.constraints = collection, cs
	l.restart()
}

// State returns the latest state of the current subscription.
func (l *Live[T]) State() State[T] {
	l.outMu.Lock()
	defer l.outMu.Unlock()
	return l.state
}

// Updates delivers states of whichever subscription is current. The
// channel is closed by Stop.
func (l *Live[T]) Updates() <-chan State[T] { return l.updates }

// Stop ends the binding and its subscription.
func (l *Live[T]) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.unobserve()
	if l.current != nil {
		l.current.Stop()
		l.current = nil
	}
	l.mu.Unlock()

	l.outMu.Lock()
	l.closed = true
	close(l.updates)
	l.outMu.Unlock()
}

// syncIdentity follows the holder's current identity. Observer calls may
// arrive out of order, so the identity is read here under l.mu rather than
// taken from the notification.
func (l *Live[T]) syncIdentity() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	id := l.holder.Identity()
	if sameIdentity(l.identity, id) {
		return
	}
	l.identity = id
	l.restart()
}

// restart replaces the current subscription. Callers hold l.mu.
func (l *Live[T]) restart() {
	if l.current != nil {
		l.current.Stop()
	}
	l.current = Subscribe(l.ctx, l.sub, Request[T]{
		Identity:    l.identity,
		Collection:  l.collection,
		Constraints: l.constraints,
		Decode:      l.decode,
		OnChange:    l.forward,
	})
}

func (l *Live[T]) forward(st State[T]) {
	l.outMu.Lock()
	defer l.outMu.Unlock()
	if l.closed {
		return
	}
	l.state = st
	select {
	case <-l.updates:
	default:
	}
	l.updates <- st
	if l.onChange != nil {
		l.onChange(st)
	}
}

func sameIdentity(a, b *core.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
