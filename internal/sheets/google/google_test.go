package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"yeardash/internal/aggregate"
	"yeardash/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_InvalidCredentialsJSON(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sid", CredentialsJSON: "invalid-json"}, nil)
	if err == nil {
		t.Fatal("expected error with invalid JSON")
	}
}

// Test year prefixed name function
func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Transactions", 2025, "2025 Transactions"},
		{"Finance", 2024, "2024 Finance"},
		{"", 2023, ""},
		{"Test Sheet", 2022, "2022 Test Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestDefaultSheetName(t *testing.T) {
	c := NewWithService(nil, "sid", "", nil)
	if got := c.SheetName(2024); got != "2024 Transactions" {
		t.Errorf("SheetName() = %q", got)
	}
}

func TestAppendTransactions_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	_, err := c.AppendTransactions(context.Background(), aggregate.Period{Year: 2024, Month: time.March, Location: time.UTC},
		[]core.Transaction{{Description: "x"}})
	if err == nil {
		t.Fatal("expected error when service is not initialized")
	}
}

func TestAppendTransactions(t *testing.T) {
	var gotPath string
	var gotBody gsheet.ValueRange
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"'2024 Transactions'!A10:F11","updatedRows":2}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(), goption.WithEndpoint(srv.URL+"/"), goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	c := NewWithService(svc, "sid", "Transactions", nil)

	p := aggregate.Period{Year: 2024, Month: time.March, Location: time.UTC}
	txs := []core.Transaction{
		{Description: "Salary", Amount: decimal.NewFromInt(100), Type: core.Income, Category: "Salary",
			Date: core.TextTimestamp("2024-03-05")},
		{Description: "Lunch", Amount: decimal.RequireFromString("12.5"), Type: core.Expense, Category: "Food",
			Currency: core.THB, Date: core.TextTimestamp("2024-03-06")},
	}

	ref, err := c.AppendTransactions(context.Background(), p, txs)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "'2024 Transactions'!A10:F11" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.HasPrefix(gotPath, "/v4/spreadsheets/sid/values/") || !strings.HasSuffix(gotPath, ":append") ||
		!strings.Contains(gotPath, "2024 Transactions") {
		t.Errorf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotQuery, "valueInputOption=USER_ENTERED") {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if len(gotBody.Values) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(gotBody.Values))
	}
	want := []any{"2024-03-06", "Lunch", "expense", "Food", "THB", "12.50"}
	for i, v := range want {
		if gotBody.Values[1][i] != v {
			t.Errorf("cell %d = %v, want %v", i, gotBody.Values[1][i], v)
		}
	}
	if gotBody.Values[0][4] != "USD" {
		t.Errorf("missing currency should export as USD, got %v", gotBody.Values[0][4])
	}
}
