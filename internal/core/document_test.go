package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDecodeTransactionDefaults(t *testing.T) {
	tx := DecodeTransaction(Document{ID: "t1", Fields: map[string]any{
		"description": "Coffee",
		"amount":      "oops",
		"type":        "expense",
		"date":        "2024-03-05",
	}})
	if tx.Currency != USD {
		t.Fatalf("expected USD default, got %q", tx.Currency)
	}
	if !tx.Amount.IsZero() {
		t.Fatalf("expected malformed amount to coerce to 0, got %s", tx.Amount)
	}
	if tx.Date.Kind() != TimestampText {
		t.Fatalf("expected text timestamp, got %v", tx.Date.Kind())
	}
	if !tx.CreatedAt.IsMissing() {
		t.Fatalf("expected missing createdAt")
	}
}

func TestDecodeGoalYearForms(t *testing.T) {
	for _, raw := range []any{2024, int64(2024), float64(2024), json.Number("2024"), "2024"} {
		g := DecodeGoal(Document{ID: "g", Fields: map[string]any{"year": raw}})
		if g.Year != 2024 {
			t.Fatalf("year %T decoded to %d", raw, g.Year)
		}
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	tx := Transaction{
		Description: "Salary",
		Amount:      decimal.RequireFromString("1234.56"),
		Type:        Income,
		Category:    "Salary",
		Currency:    THB,
		Date:        TextTimestamp("2024-03-01"),
	}
	fields := tx.Fields()
	fields["createdAt"] = StoreTime{Time: created}

	data, err := EncodeFields(fields)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeFields(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := DecodeTransaction(Document{ID: "x", Fields: back})
	if !got.Amount.Equal(tx.Amount) {
		t.Fatalf("amount lost precision: %s", got.Amount)
	}
	if got.Currency != THB {
		t.Fatalf("currency: %s", got.Currency)
	}
	if got.CreatedAt.Kind() != TimestampNative {
		t.Fatalf("expected createdAt to come back as a store time, got %v", got.CreatedAt.Kind())
	}
	if at, _ := got.CreatedAt.Resolve(); !at.Equal(created) {
		t.Fatalf("createdAt: %v", at)
	}
}
