package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"yeardash/internal/aggregate"
	"yeardash/internal/core"
	"yeardash/internal/store"
)

// Lister is the read side of the store.
type Lister interface {
	List(ctx context.Context, path store.Path, constraints store.Constraints) ([]core.Document, error)
}

// ViewService computes page view models from one read of the collections
// they need.
type ViewService struct {
	store Lister
	now   func() time.Time
}

func NewViewService(s Lister) *ViewService {
	return &ViewService{store: s, now: time.Now}
}

// InLocation makes "now" and the current month follow loc.
func (s *ViewService) InLocation(loc *time.Location) *ViewService {
	s.now = func() time.Time { return time.Now().In(loc) }
	return s
}

// Decoder returns the typed decoder of a collection.
func Decoder(collection string) (func(core.Document) any, bool) {
	switch collection {
	case core.CollectionGoals:
		return func(d core.Document) any { return core.DecodeGoal(d) }, true
	case core.CollectionTransactions:
		return func(d core.Document) any { return core.DecodeTransaction(d) }, true
	case core.CollectionRecaps:
		return func(d core.Document) any { return core.DecodeRecap(d) }, true
	}
	return nil, false
}

func list[T any](ctx context.Context, s Lister, id *core.Identity, collection string, cs store.Constraints, decode func(core.Document) T) ([]T, error) {
	if id == nil {
		return nil, core.ErrUnauthenticated
	}
	docs, err := s.List(ctx, store.Path{UserID: id.ID, Collection: collection}, cs)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	out := make([]T, len(docs))
	for i, d := range docs {
		out[i] = decode(d)
	}
	return out, nil
}

// Collection returns the decoded documents of a collection, newest first
// for dated collections.
func (s *ViewService) Collection(ctx context.Context, id *core.Identity, collection string) (any, error) {
	switch collection {
	case core.CollectionGoals:
		goals, err := list(ctx, s.store, id, collection, nil, core.DecodeGoal)
		return aggregate.SortGoalsByCreated(goals), err
	case core.CollectionTransactions:
		txs, err := list(ctx, s.store, id, collection, nil, core.DecodeTransaction)
		return aggregate.SortTransactions(txs), err
	case core.CollectionRecaps:
		recaps, err := list(ctx, s.store, id, collection, nil, core.DecodeRecap)
		return aggregate.SortRecaps(recaps), err
	}
	return nil, fmt.Errorf("collection %q: %w", collection, core.ErrNotFound)
}

func (s *ViewService) Transactions(ctx context.Context, id *core.Identity) ([]core.Transaction, error) {
	return list(ctx, s.store, id, core.CollectionTransactions, nil, core.DecodeTransaction)
}

func (s *ViewService) Finance(ctx context.Context, id *core.Identity, p aggregate.Period, f aggregate.TypeFilter) (aggregate.FinanceView, error) {
	txs, err := s.Transactions(ctx, id)
	if err != nil {
		return aggregate.FinanceView{}, err
	}
	return aggregate.BuildFinanceView(txs, p, f), nil
}

func (s *ViewService) Goals(ctx context.Context, id *core.Identity, year int) (aggregate.GoalsView, error) {
	goals, err := list(ctx, s.store, id, core.CollectionGoals,
		store.Constraints{store.Where("year", store.OpEq, year)}, core.DecodeGoal)
	if err != nil {
		return aggregate.GoalsView{}, err
	}
	return aggregate.BuildGoalsView(goals, year), nil
}

func (s *ViewService) Recaps(ctx context.Context, id *core.Identity, t core.RecapType) (aggregate.RecapsView, error) {
	recaps, err := list(ctx, s.store, id, core.CollectionRecaps, nil, core.DecodeRecap)
	if err != nil {
		return aggregate.RecapsView{}, err
	}
	return aggregate.BuildRecapsView(recaps, t), nil
}

// Dashboard reads the three collections concurrently.
func (s *ViewService) Dashboard(ctx context.Context, id *core.Identity) (aggregate.Dashboard, error) {
	if id == nil {
		return aggregate.Dashboard{}, core.ErrUnauthenticated
	}
	now := s.now()

	var (
		goals  []core.Goal
		txs    []core.Transaction
		recaps []core.Recap
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		goals, err = list(gctx, s.store, id, core.CollectionGoals,
			store.Constraints{store.Where("year", store.OpEq, now.Year())}, core.DecodeGoal)
		return err
	})
	g.Go(func() (err error) {
		txs, err = list(gctx, s.store, id, core.CollectionTransactions, nil, core.DecodeTransaction)
		return err
	})
	g.Go(func() (err error) {
		recaps, err = list(gctx, s.store, id, core.CollectionRecaps, nil, core.DecodeRecap)
		return err
	})
	if err := g.Wait(); err != nil {
		return aggregate.Dashboard{}, err
	}
	return aggregate.BuildDashboard(goals, txs, recaps, now), nil
}
