package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"yeardash/internal/aggregate"
	"yeardash/internal/amqp"
	"yeardash/internal/core"
	sheetsmem "yeardash/internal/sheets/memory"
	"yeardash/internal/store"
	"yeardash/internal/store/memory"
)

type failingAppender struct{ calls int }

func (f *failingAppender) AppendTransactions(context.Context, aggregate.Period, []core.Transaction) (string, error) {
	f.calls++
	return "", errors.New("sheets unavailable")
}

func seedTransaction(t *testing.T, st *memory.Store, date string) (store.Path, string) {
	t.Helper()
	path := store.Path{UserID: "u1", Collection: core.CollectionTransactions}
	id, err := st.Create(context.Background(), path, map[string]any{
		"description": "Groceries",
		"amount":      "42.5",
		"type":        "expense",
		"category":    "Food",
		"currency":    "THB",
		"date":        date,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return path, id
}

func created(path store.Path, id string) *amqp.ChangeMessage {
	return &amqp.ChangeMessage{
		Origin:     "api-1",
		UserID:     path.UserID,
		Collection: path.Collection,
		DocID:      id,
		Op:         string(store.ChangeCreate),
	}
}

func TestHandleChangeAppendsCreatedTransaction(t *testing.T) {
	st := memory.New(nil)
	sh := sheetsmem.New()
	w := NewSyncWorker(st, sh, time.UTC, nil, nil)

	path, id := seedTransaction(t, st, "2024-03-15")
	if err := w.HandleChange(context.Background(), created(path, id)); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}

	rows := sh.Rows(2024)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	want := []string{"2024-03-15", "Groceries", "expense", "Food", "THB", "42.50"}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Errorf("cell %d = %q, want %q", i, rows[0][i], cell)
		}
	}
}

func TestHandleChangeIgnoresOtherChanges(t *testing.T) {
	st := memory.New(nil)
	sh := sheetsmem.New()
	w := NewSyncWorker(st, sh, time.UTC, nil, nil)
	path, id := seedTransaction(t, st, "2024-03-15")

	tests := []struct {
		name string
		msg  *amqp.ChangeMessage
	}{
		{"update", &amqp.ChangeMessage{UserID: "u1", Collection: path.Collection, DocID: id, Op: string(store.ChangeUpdate)}},
		{"delete", &amqp.ChangeMessage{UserID: "u1", Collection: path.Collection, DocID: id, Op: string(store.ChangeDelete)}},
		{"goals", &amqp.ChangeMessage{UserID: "u1", Collection: core.CollectionGoals, DocID: "g1", Op: string(store.ChangeCreate)}},
		{"no doc id", &amqp.ChangeMessage{UserID: "u1", Collection: path.Collection, Op: string(store.ChangeCreate)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.HandleChange(context.Background(), tt.msg); err != nil {
				t.Fatalf("HandleChange: %v", err)
			}
		})
	}
	if rows := sh.Rows(2024); len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestHandleChangeSkipsMissingTransaction(t *testing.T) {
	st := memory.New(nil)
	sh := sheetsmem.New()
	w := NewSyncWorker(st, sh, time.UTC, nil, nil)

	path, id := seedTransaction(t, st, "2024-03-15")
	if err := st.Delete(context.Background(), path, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := w.HandleChange(context.Background(), created(path, id)); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}
	if rows := sh.Rows(2024); len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestHandleChangeSkipsUndatedTransaction(t *testing.T) {
	st := memory.New(nil)
	app := &failingAppender{}
	w := NewSyncWorker(st, app, time.UTC, nil, nil)

	path, id := seedTransaction(t, st, "")
	if err := w.HandleChange(context.Background(), created(path, id)); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}
	if app.calls != 0 {
		t.Errorf("appender called %d times, want 0", app.calls)
	}
}

func TestHandleChangeReportsAppendFailure(t *testing.T) {
	st := memory.New(nil)
	app := &failingAppender{}
	w := NewSyncWorker(st, app, time.UTC, nil, nil)

	path, id := seedTransaction(t, st, "2024-03-15")
	if err := w.HandleChange(context.Background(), created(path, id)); err == nil {
		t.Fatal("expected error when the sheet rejects the row")
	}
	if app.calls != 1 {
		t.Errorf("appender called %d times, want 1", app.calls)
	}
}
