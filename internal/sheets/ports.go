package sheets

import (
	"context"
	"time"

	"yeardash/internal/aggregate"
	"yeardash/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionAppender copies a month of transactions to a spreadsheet.
	TransactionAppender interface {
		// AppendTransactions adds one row per transaction and returns a
		// reference to the written range.
		AppendTransactions(ctx context.Context, p aggregate.Period, txs []core.Transaction) (rowRef string, err error)
	}
)

// Header is the column layout of exported rows.
var Header = []string{"Date", "Description", "Type", "Category", "Currency", "Amount"}

// Row renders one transaction in Header order.
func Row(t core.Transaction, loc *time.Location) []string {
	date := ""
	if tm, ok := t.Date.ResolveIn(loc); ok {
		if loc != nil {
			tm = tm.In(loc)
		}
		date = tm.Format("2006-01-02")
	}
	return []string{
		date,
		t.Description,
		string(t.Type),
		t.Category,
		string(t.Currency.OrDefault()),
		t.Amount.StringFixed(2),
	}
}
