package services

import (
	"context"
	"sync"
	"time"

	"yeardash/internal/aggregate"
	"yeardash/internal/core"
	"yeardash/internal/log"
	"yeardash/internal/session"
	"yeardash/internal/store"
	"yeardash/internal/subscriber"
)

// DashboardState is the dashboard plus the state of the subscriptions it
// is built from.
type DashboardState struct {
	aggregate.Dashboard
	Loading bool              `json:"loading"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// yearCheckInterval is how often a watcher looks for a new calendar year.
const yearCheckInterval = time.Minute

// DashboardService builds live dashboards from collection subscriptions.
type DashboardService struct {
	sub       *subscriber.Subscriber
	logger    *log.Logger
	now       func() time.Time
	yearCheck time.Duration
}

func NewDashboardService(sub *subscriber.Subscriber, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	return &DashboardService{
		sub:       sub,
		logger:    logger.WithComponent(log.ComponentDashboard),
		now:       time.Now,
		yearCheck: yearCheckInterval,
	}
}

// InLocation makes the dashboard month and year follow loc.
func (s *DashboardService) InLocation(loc *time.Location) *DashboardService {
	s.now = func() time.Time { return time.Now().In(loc) }
	return s
}

// Watcher follows one session's goals, transactions and recaps.
type Watcher struct {
	fn     func(DashboardState)
	now    func() time.Time
	logger *log.Logger

	goals  *subscriber.Live[core.Goal]
	txs    *subscriber.Live[core.Transaction]
	recaps *subscriber.Live[core.Recap]
	year   int
	done   chan struct{}

	mu       sync.Mutex
	goalSt   subscriber.State[core.Goal]
	txSt     subscriber.State[core.Transaction]
	recapSt  subscriber.State[core.Recap]
	reported uint8
	stopped  bool
	stopOnce sync.Once
}

// Watch opens the three subscriptions for holder's identity and calls fn
// with a recomputed dashboard whenever any of them changes. Goals are
// limited to the current year and follow it across New Year. fn is called
// one at a time and must not call Stop.
func (s *DashboardService) Watch(ctx context.Context, holder *session.Holder, fn func(DashboardState)) *Watcher {
	w := &Watcher{fn: fn, now: s.now, logger: s.logger, done: make(chan struct{})}

	year := s.now().Year()
	w.year = year
	w.goals = subscriber.Bind(ctx, s.sub, holder, core.CollectionGoals, goalsOfYear(year), core.DecodeGoal,
		func(st subscriber.State[core.Goal]) { w.update(goalsReported, func() { w.goalSt = st }) })
	w.txs = subscriber.Bind(ctx, s.sub, holder, core.CollectionTransactions, nil, core.DecodeTransaction,
		func(st subscriber.State[core.Transaction]) { w.update(txsReported, func() { w.txSt = st }) })
	w.recaps = subscriber.Bind(ctx, s.sub, holder, core.CollectionRecaps, nil, core.DecodeRecap,
		func(st subscriber.State[core.Recap]) { w.update(recapsReported, func() { w.recapSt = st }) })

	go w.followYear(ctx, s.yearCheck)

	s.logger.DebugContext(ctx, "Dashboard watch started", log.FieldYear, year)
	return w
}

func goalsOfYear(year int) store.Constraints {
	return store.Constraints{store.Where("year", store.OpEq, year)}
}

// followYear moves the goals subscription to the new year once the clock
// passes New Year. It runs until Stop or ctx is done.
func (w *Watcher) followYear(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			year := w.now().Year()
			if year == w.year {
				continue
			}
			w.year = year
			w.logger.InfoContext(ctx, "Dashboard year changed", log.FieldYear, year)
			w.goals.SetQuery(core.CollectionGoals, goalsOfYear(year))
		}
	}
}

// Stop releases the subscriptions. No call to fn starts after Stop returns.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		close(w.done)
		w.goals.Stop()
		w.txs.Stop()
		w.recaps.Stop()
	})
}

const (
	goalsReported uint8 = 1 << iota
	txsReported
	recapsReported

	allReported = goalsReported | txsReported | recapsReported
)

// update applies one subscription change and emits once all three
// bindings have reported at least once.
func (w *Watcher) update(from uint8, apply func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	apply()
	w.reported |= from
	if w.reported == allReported {
		w.fn(w.build())
	}
}

func (w *Watcher) build() DashboardState {
	st := DashboardState{
		Dashboard: aggregate.BuildDashboard(w.goalSt.Items, w.txSt.Items, w.recapSt.Items, w.now()),
		Loading:   w.goalSt.Loading || w.txSt.Loading || w.recapSt.Loading,
	}
	for name, err := range map[string]error{
		core.CollectionGoals:        w.goalSt.Err,
		core.CollectionTransactions: w.txSt.Err,
		core.CollectionRecaps:       w.recapSt.Err,
	} {
		if err != nil {
			if st.Errors == nil {
				st.Errors = map[string]string{}
			}
			st.Errors[name] = err.Error()
		}
	}
	return st
}
