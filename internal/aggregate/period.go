package aggregate

import (
	"fmt"
	"time"

	"yeardash/internal/core"
)

// Period is one calendar month in a location.
type Period struct {
	Year     int
	Month    time.Month
	Location *time.Location
}

// MonthOf returns the period containing t, in t's location.
func MonthOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month(), Location: t.Location()}
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string, loc *time.Location) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("parse period %q: %w", s, err)
	}
	return Period{Year: t.Year(), Month: t.Month(), Location: loc}, nil
}

func (p Period) loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Bounds returns the first and the last instant of the month, both inclusive.
func (p Period) Bounds() (time.Time, time.Time) {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, p.loc())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// Contains reports whether ts resolves to an instant inside the month.
// Unresolvable timestamps are never contained.
func (p Period) Contains(ts core.Timestamp) bool {
	at, ok := ts.ResolveIn(p.loc())
	if !ok {
		return false
	}
	start, end := p.Bounds()
	return !at.Before(start) && !at.After(end)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// FilterPeriod keeps the items whose date falls inside p.
func FilterPeriod[T any](items []T, p Period, dateOf func(T) core.Timestamp) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if p.Contains(dateOf(item)) {
			out = append(out, item)
		}
	}
	return out
}

func TransactionsInPeriod(txs []core.Transaction, p Period) []core.Transaction {
	return FilterPeriod(txs, p, transactionDate)
}
