// Package subscriber turns store listen streams into typed, cancellable
// collection subscriptions scoped to an identity.
package subscriber

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"yeardash/internal/core"
	"yeardash/internal/log"
	"yeardash/internal/metrics"
	"yeardash/internal/store"
)

// Source is the part of the store a subscription needs.
type Source interface {
	Listen(ctx context.Context, path store.Path, constraints store.Constraints) (<-chan store.Event, error)
}

// State is what a subscription currently holds. Err is the last store
// failure; Items are kept from the last good snapshot when it is set.
type State[T any] struct {
	Items   []T
	Loading bool
	Err     error
}

// Subscriber carries the dependencies shared by all subscriptions.
type Subscriber struct {
	src     Source
	logger  *log.Logger
	metrics *metrics.Metrics
}

func New(src Source, logger *log.Logger, m *metrics.Metrics) *Subscriber {
	if logger == nil {
		logger = log.Discard()
	}
	return &Subscriber{src: src, logger: logger.WithComponent(log.ComponentSubscriber), metrics: m}
}

// Request describes one subscription.
type Request[T any] struct {
	Identity    *core.Identity
	Collection  string
	Constraints store.Constraints
	Decode      func(core.Document) T
	// OnChange is called with every new state, one call at a time. It must
	// not call Stop on the same subscription.
	OnChange func(State[T])
}

// Subscription is a live view of one collection.
type Subscription[T any] struct {
	id         string
	collection string
	decode     func(core.Document) T
	onChange   func(State[T])
	sub        *Subscriber

	mu      sync.Mutex
	state   State[T]
	stopped bool
	updates chan State[T]
	cancel  context.CancelFunc
	done    chan struct{}
}

// Subscribe opens a subscription. Without an identity it settles at once on
// an empty, non-loading state and never touches the store. Otherwise it
// starts in the loading state and follows the store until Stop.
func Subscribe[T any](ctx context.Context, s *Subscriber, req Request[T]) *Subscription[T] {
	sub := &Subscription[T]{
		id:         uuid.NewString(),
		collection: req.Collection,
		decode:     req.Decode,
		onChange:   req.OnChange,
		sub:        s,
		updates:    make(chan State[T], 1),
		done:       make(chan struct{}),
	}

	if req.Identity == nil {
		sub.cancel = func() {}
		sub.mu.Lock()
		sub.publish(State[T]{Items: []T{}})
		sub.mu.Unlock()
		close(sub.done)
		return sub
	}

	ctx, cancel := context.WithCancel(ctx)
	sub.cancel = cancel

	sub.mu.Lock()
	sub.publish(State[T]{Items: []T{}, Loading: true})
	sub.mu.Unlock()

	path := store.Path{UserID: req.Identity.ID, Collection: req.Collection}
	events, err := s.src.Listen(ctx, path, req.Constraints)
	if err != nil {
		s.logger.WarnContext(ctx, "Subscription failed to start",
			log.FieldSubscription, sub.id, log.FieldStorePath, path.String(), log.FieldError, err)
		sub.apply(store.Event{Err: err})
		close(sub.done)
		return sub
	}

	s.metrics.SubscriptionOpened()
	s.logger.DebugContext(ctx, "Subscription opened",
		log.FieldSubscription, sub.id, log.FieldStorePath, path.String(), log.FieldConstraints, req.Constraints.Key())

	go func() {
		defer close(sub.done)
		defer s.metrics.SubscriptionClosed()
		for ev := range events {
			sub.apply(ev)
		}
	}()
	return sub
}

// ID identifies the subscription in logs.
func (s *Subscription[T]) ID() string { return s.id }

// State returns the latest state.
func (s *Subscription[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Updates delivers states as they change. A slow reader only sees the
// newest one. The channel is closed by Stop.
func (s *Subscription[T]) Updates() <-chan State[T] { return s.updates }

// Done is closed once the subscription no longer reads from the store.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

// Stop releases the store listener. Once it returns no further state is
// applied or delivered; late snapshots are dropped.
func (s *Subscription[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.cancel()
	close(s.updates)
	s.sub.logger.Debug("Subscription stopped", log.FieldSubscription, s.id, log.FieldCollection, s.collection)
}

func (s *Subscription[T]) apply(ev store.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.sub.metrics.SnapshotDiscarded()
		return
	}

	next := State[T]{Items: s.state.Items}
	if ev.Err != nil {
		next.Err = ev.Err
		s.sub.logger.Warn("Subscription error, keeping last items",
			log.FieldSubscription, s.id, log.FieldCollection, s.collection, log.FieldError, ev.Err)
	} else {
		items := make([]T, 0, len(ev.Docs))
		for _, d := range ev.Docs {
			items = append(items, s.decode(d))
		}
		next.Items = items
	}
	s.sub.metrics.SnapshotDelivered(s.collection, ev.Err)
	s.publish(next)
}

// publish stores and delivers st. Callers hold s.mu.
func (s *Subscription[T]) publish(st State[T]) {
	s.state = st
	select {
	case <-s.updates:
	default:
	}
	s.updates <- st
	if s.onChange != nil {
		s.onChange(st)
	}
}
