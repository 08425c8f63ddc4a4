// Package memory keeps exported rows in memory, for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"yeardash/internal/aggregate"
	"yeardash/internal/core"
	"yeardash/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	tabs map[string][][]string
}

var _ sheets.TransactionAppender = (*Store)(nil)

func New() *Store {
	return &Store{tabs: map[string][][]string{}}
}

// AppendTransactions stores the rows under the year's tab and returns a
// synthetic row reference.
func (s *Store) AppendTransactions(_ context.Context, p aggregate.Period, txs []core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := fmt.Sprintf("%d", p.Year)
	first := len(s.tabs[tab]) + 1
	for _, t := range txs {
		s.tabs[tab] = append(s.tabs[tab], sheets.Row(t, p.Location))
	}
	return fmt.Sprintf("mem:%s!%d:%d", tab, first, len(s.tabs[tab])), nil
}

// Rows returns a copy of the rows written for year.
func (s *Store) Rows(year int) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tabs[fmt.Sprintf("%d", year)]
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
