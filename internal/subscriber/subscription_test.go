package subscriber

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"yeardash/internal/core"
	"yeardash/internal/session"
	"yeardash/internal/store"
)

// fakeSource hands out a channel per Listen call that the test feeds by hand.
type fakeSource struct {
	mu      sync.Mutex
	calls   []store.Path
	queries []store.Constraints
	streams []chan store.Event
	ctxs    []context.Context
	err     error
}

func (f *fakeSource) Listen(ctx context.Context, path store.Path, cs store.Constraints) (<-chan store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	f.queries = append(f.queries, cs)
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan store.Event)
	f.streams = append(f.streams, ch)
	f.ctxs = append(f.ctxs, ctx)
	return ch, nil
}

func (f *fakeSource) stream(i int) chan store.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

func (f *fakeSource) ctx(i int) context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctxs[i]
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder[T any] struct {
	mu     sync.Mutex
	states []State[T]
}

func (r *recorder[T]) record(st State[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *recorder[T]) all() []State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State[T](nil), r.states...)
}

func docs(ids ...string) []core.Document {
	out := make([]core.Document, len(ids))
	for i, id := range ids {
		out[i] = core.Document{ID: id, Fields: map[string]any{"title": id}}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

var user = &core.Identity{ID: "u1", Email: "u1@example.com"}

func TestSubscribeWithoutIdentity(t *testing.T) {
	src := &fakeSource{}
	rec := &recorder[core.Goal]{}

	sub := Subscribe(context.Background(), New(src, nil, nil), Request[core.Goal]{
		Collection: core.CollectionGoals,
		Decode:     core.DecodeGoal,
		OnChange:   rec.record,
	})
	defer sub.Stop()

	st := sub.State()
	if st.Loading || len(st.Items) != 0 || st.Err != nil {
		t.Fatalf("expected empty settled state, got %+v", st)
	}
	if src.callCount() != 0 {
		t.Fatalf("store must not be called without identity")
	}
	if len(rec.all()) != 1 {
		t.Fatalf("expected one notification, got %d", len(rec.all()))
	}
}

func TestSubscribeLoadingThenSnapshots(t *testing.T) {
	src := &fakeSource{}
	rec := &recorder[core.Goal]{}

	sub := Subscribe(context.Background(), New(src, nil, nil), Request[core.Goal]{
		Identity:    user,
		Collection:  core.CollectionGoals,
		Constraints: store.Constraints{store.Where("year", store.OpEq, 2024)},
		Decode:      core.DecodeGoal,
		OnChange:    rec.record,
	})
	defer sub.Stop()

	if st := sub.State(); !st.Loading {
		t.Fatalf("expected loading state first, got %+v", st)
	}
	if got := src.calls[0]; got.UserID != "u1" || got.Collection != core.CollectionGoals {
		t.Fatalf("wrong path %+v", got)
	}
	if !src.queries[0].Equal(store.Constraints{store.Where("year", store.OpEq, 2024)}) {
		t.Fatalf("constraints not passed through: %s", src.queries[0].Key())
	}

	src.stream(0) <- store.Event{Docs: docs("a", "b")}
	waitFor(t, func() bool { return len(sub.State().Items) == 2 })

	st := sub.State()
	if st.Loading || st.Err != nil || st.Items[0].Title != "a" {
		t.Fatalf("unexpected state %+v", st)
	}
	states := rec.all()
	if len(states) != 2 || !states[0].Loading {
		t.Fatalf("expected loading then snapshot, got %+v", states)
	}
}

func TestSubscribeErrorKeepsItems(t *testing.T) {
	src := &fakeSource{}
	sub := Subscribe(context.Background(), New(src, nil, nil), Request[core.Goal]{
		Identity: user, Collection: core.CollectionGoals, Decode: core.DecodeGoal,
	})
	defer sub.Stop()

	src.stream(0) <- store.Event{Docs: docs("a")}
	waitFor(t, func() bool { return len(sub.State().Items) == 1 })

	boom := errors.New("backend unavailable")
	src.stream(0) <- store.Event{Err: boom}
	waitFor(t, func() bool { return sub.State().Err != nil })

	st := sub.State()
	if !errors.Is(st.Err, boom) || len(st.Items) != 1 || st.Items[0].ID != "a" {
		t.Fatalf("expected items kept alongside error, got %+v", st)
	}

	src.stream(0) <- store.Event{Docs: docs("a", "b")}
	waitFor(t, func() bool { return len(sub.State().Items) == 2 })
	if sub.State().Err != nil {
		t.Fatalf("good snapshot should clear the error")
	}
}

func TestSubscribeListenFailure(t *testing.T) {
	boom := errors.New("offline")
	src := &fakeSource{err: boom}
	sub := Subscribe(context.Background(), New(src, nil, nil), Request[core.Goal]{
		Identity: user, Collection: core.CollectionGoals, Decode: core.DecodeGoal,
	})
	defer sub.Stop()

	<-sub.Done()
	st := sub.State()
	if !errors.Is(st.Err, boom) || st.Loading {
		t.Fatalf("expected settled error state, got %+v", st)
	}
}

// A snapshot arriving after Stop must not change what the consumer holds.
func TestStopDiscardsLateSnapshot(t *testing.T) {
	src := &fakeSource{}
	rec := &recorder[core.Goal]{}
	sub := Subscribe(context.Background(), New(src, nil, nil), Request[core.Goal]{
		Identity: user, Collection: core.CollectionGoals, Decode: core.DecodeGoal, OnChange: rec.record,
	})

	src.stream(0) <- store.Event{Docs: docs("s1")}
	waitFor(t, func() bool { return len(sub.State().Items) == 1 })

	sub.Stop()
	if err := src.ctx(0).Err(); err == nil {
		t.Fatalf("store listener context must be cancelled by Stop")
	}

	src.stream(0) <- store.Event{Docs: docs("s2", "extra")}
	close(src.stream(0))
	<-sub.Done()

	st := sub.State()
	if len(st.Items) != 1 || st.Items[0].ID != "s1" {
		t.Fatalf("late snapshot applied: %+v", st)
	}
	states := rec.all()
	if last := states[len(states)-1]; len(last.Items) != 1 || last.Items[0].ID != "s1" {
		t.Fatalf("late snapshot delivered: %+v", last)
	}

	var final []State[core.Goal]
	for st := range sub.Updates() {
		final = append(final, st)
	}
	for _, st := range final {
		if len(st.Items) == 2 {
			t.Fatalf("late snapshot reached updates channel")
		}
	}
}

func TestUpdatesKeepsNewest(t *testing.T) {
	src := &fakeSource{}
	sub := Subscribe(context.Background(), New(src, nil, nil), Request[core.Goal]{
		Identity: user, Collection: core.CollectionGoals, Decode: core.DecodeGoal,
	})
	defer sub.Stop()

	src.stream(0) <- store.Event{Docs: docs("a")}
	src.stream(0) <- store.Event{Docs: docs("a", "b")}
	waitFor(t, func() bool { return len(sub.State().Items) == 2 })

	st := <-sub.Updates()
	if len(st.Items) != 2 {
		t.Fatalf("expected newest state, got %+v", st)
	}
}

func TestLiveResubscribesOnIdentityChange(t *testing.T) {
	src := &fakeSource{}
	holder := session.New(nil)
	live := Bind(context.Background(), New(src, nil, nil), holder, core.CollectionGoals, nil, core.DecodeGoal, nil)
	defer live.Stop()

	if src.callCount() != 0 || live.State().Loading {
		t.Fatalf("no identity yet: expected no store call and settled state")
	}

	holder.SetIdentity(&core.Identity{ID: "alice"})
	if src.callCount() != 1 || src.calls[0].UserID != "alice" {
		t.Fatalf("expected subscription for alice, calls=%v", src.calls)
	}
	src.stream(0) <- store.Event{Docs: docs("alice-goal")}
	waitFor(t, func() bool { return len(live.State().Items) == 1 })

	holder.SetIdentity(&core.Identity{ID: "alice", Email: "new@example.com"})
	if src.callCount() != 1 {
		t.Fatalf("same identity must not resubscribe")
	}

	holder.SetIdentity(&core.Identity{ID: "bob"})
	if src.callCount() != 2 || src.calls[1].UserID != "bob" {
		t.Fatalf("expected subscription for bob, calls=%v", src.calls)
	}
	if src.ctx(0).Err() == nil {
		t.Fatalf("alice's listener must be released")
	}
	if st := live.State(); len(st.Items) != 0 || !st.Loading {
		t.Fatalf("bob must not see alice's items: %+v", st)
	}

	holder.SetIdentity(nil)
	if src.ctx(1).Err() == nil {
		t.Fatalf("bob's listener must be released on sign out")
	}
	if st := live.State(); st.Loading || len(st.Items) != 0 {
		t.Fatalf("expected empty settled state after sign out: %+v", st)
	}
}

func TestLiveFollowsLatestIdentityUnderConcurrentChanges(t *testing.T) {
	alice := &core.Identity{ID: "alice"}
	bob := &core.Identity{ID: "bob"}

	for run := 0; run < 200; run++ {
		src := &fakeSource{}
		holder := session.New(nil)
		sub := New(src, nil, nil)
		lives := []*Live[core.Goal]{
			Bind(context.Background(), sub, holder, core.CollectionGoals, nil, core.DecodeGoal, nil),
			Bind(context.Background(), sub, holder, core.CollectionTransactions, nil, core.DecodeGoal, nil),
			Bind(context.Background(), sub, holder, core.CollectionRecaps, nil, core.DecodeGoal, nil),
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); holder.SetIdentity(alice) }()
		go func() { defer wg.Done(); holder.SetIdentity(bob) }()
		wg.Wait()

		want := holder.Identity().ID
		src.mu.Lock()
		open := 0
		for i, path := range src.calls {
			if src.ctxs[i].Err() != nil {
				continue
			}
			open++
			if path.UserID != want {
				src.mu.Unlock()
				t.Fatalf("run %d: %s still subscribed for %s, session holds %s", run, path.Collection, path.UserID, want)
			}
		}
		src.mu.Unlock()
		if open != len(lives) {
			t.Fatalf("run %d: %d open subscriptions, want %d", run, open, len(lives))
		}

		for _, l := range lives {
			l.Stop()
		}
	}
}

func TestLiveSetQueryComparesStructurally(t *testing.T) {
	src := &fakeSource{}
	holder := session.New(nil)
	holder.SetIdentity(user)
	live := Bind(context.Background(), New(src, nil, nil), holder, core.CollectionGoals,
		store.Constraints{store.Where("year", store.OpEq, 2024)}, core.DecodeGoal, nil)
	defer live.Stop()

	live.SetQuery(core.CollectionGoals, store.Constraints{store.Where("year", store.OpEq, 2024)})
	if src.callCount() != 1 {
		t.Fatalf("equal constraints must not resubscribe, calls=%d", src.callCount())
	}

	live.SetQuery(core.CollectionGoals, store.Constraints{store.Where("year", store.OpEq, 2025)})
	if src.callCount() != 2 || src.ctx(0).Err() == nil {
		t.Fatalf("changed constraints must replace the subscription")
	}

	live.SetQuery(core.CollectionRecaps, store.Constraints{store.Where("year", store.OpEq, 2025)})
	if src.callCount() != 3 || src.calls[2].Collection != core.CollectionRecaps {
		t.Fatalf("changed collection must replace the subscription")
	}
}

func TestLiveStopClosesUpdates(t *testing.T) {
	src := &fakeSource{}
	holder := session.New(nil)
	holder.SetIdentity(user)
	live := Bind(context.Background(), New(src, nil, nil), holder, core.CollectionGoals, nil, core.DecodeGoal, nil)

	live.Stop()
	live.Stop()
	if src.ctx(0).Err() == nil {
		t.Fatalf("listener not released")
	}
	for range live.Updates() {
	}

	holder.SetIdentity(&core.Identity{ID: "other"})
	if src.callCount() != 1 {
		t.Fatalf("stopped binding must ignore identity changes")
	}
}
