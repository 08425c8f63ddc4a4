package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"yeardash/internal/aggregate"
	"yeardash/internal/core"
)

func TestAppendTransactions(t *testing.T) {
	s := New()
	p := aggregate.Period{Year: 2024, Month: time.March, Location: time.UTC}
	txs := []core.Transaction{
		{Description: "Rent", Amount: decimal.NewFromInt(900), Type: core.Expense, Category: "Bills", Date: core.TextTimestamp("2024-03-01")},
		{Description: "Bonus", Amount: decimal.NewFromInt(50), Type: core.Income, Category: "Gift", Currency: core.MMK},
	}

	ref, err := s.AppendTransactions(context.Background(), p, txs)
	if err != nil {
		t.Fatal(err)
	}
	if ref != "mem:2024!1:2" {
		t.Errorf("ref = %q", ref)
	}

	rows := s.Rows(2024)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "2024-03-01" || rows[0][4] != "USD" || rows[0][5] != "900.00" {
		t.Errorf("unexpected first row %v", rows[0])
	}
	if rows[1][0] != "" || rows[1][4] != "MMK" {
		t.Errorf("undated row should keep an empty date: %v", rows[1])
	}

	ref, _ = s.AppendTransactions(context.Background(), p, txs[:1])
	if ref != "mem:2024!3:3" {
		t.Errorf("second append ref = %q", ref)
	}
}
