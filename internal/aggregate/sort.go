// Package aggregate turns unordered collection snapshots into view models.
//
// Every function here is pure: inputs are never modified and the same input
// always yields the same output.
package aggregate

import (
	"slices"
	"time"

	"yeardash/internal/core"
)

type dated[T any] struct {
	item T
	at   time.Time
	ok   bool
}

// SortByRecency returns a copy of items ordered newest first by dateOf.
// Items with equal dates keep their input order; items whose date cannot be
// resolved go last, also in input order.
func SortByRecency[T any](items []T, dateOf func(T) core.Timestamp) []T {
	keyed := make([]dated[T], len(items))
	for i, item := range items {
		at, ok := dateOf(item).Resolve()
		keyed[i] = dated[T]{item: item, at: at, ok: ok}
	}

	slices.SortStableFunc(keyed, func(a, b dated[T]) int {
		switch {
		case a.ok && b.ok:
			return b.at.Compare(a.at)
		case a.ok:
			return -1
		case b.ok:
			return 1
		}
		return 0
	})

	out := make([]T, len(keyed))
	for i, k := range keyed {
		out[i] = k.item
	}
	return out
}

func transactionDate(t core.Transaction) core.Timestamp { return t.Date }
func recapDate(r core.Recap) core.Timestamp             { return r.Date }
func goalCreated(g core.Goal) core.Timestamp            { return g.CreatedAt }

func SortTransactions(txs []core.Transaction) []core.Transaction {
	return SortByRecency(txs, transactionDate)
}

func SortRecaps(recaps []core.Recap) []core.Recap {
	return SortByRecency(recaps, recapDate)
}

// SortGoalsByCreated orders goals newest first by creation time.
func SortGoalsByCreated(goals []core.Goal) []core.Goal {
	return SortByRecency(goals, goalCreated)
}

// Recent returns at most the first n items.
func Recent[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(items) < n {
		n = len(items)
	}
	return slices.Clone(items[:n])
}
