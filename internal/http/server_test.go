package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"yeardash/internal/auth"
	"yeardash/internal/export"
	sheetsmem "yeardash/internal/sheets/memory"
	"yeardash/internal/store/memory"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type testEnv struct {
	srv    *Server
	store  *memory.Store
	sheets *sheetsmem.Store
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	st := memory.New(nil)
	sh := sheetsmem.New()
	deps := Deps{
		Store:       st,
		Pinger:      st,
		Provider:    auth.NewLocalProvider(st),
		Tokens:      auth.NewTokens("test-secret-0123456789", time.Hour, st),
		States:      auth.NewStateStore(time.Minute),
		Sheets:      sh,
		Location:    time.UTC,
		CORSOrigins: []string{"http://localhost:5173"},
		RateLimit:   1000,
	}
	if mutate != nil {
		mutate(&deps)
	}
	return &testEnv{srv: NewServer(":0", deps), store: st, sheets: sh}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

// signUp registers a user and returns its session token.
func (e *testEnv) signUp(t *testing.T, email string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/auth/signup", "",
		`{"email":"`+email+`","password":"correct horse","displayName":"Ada"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp SessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if resp.Token == "" || resp.Identity.Email != email {
		t.Fatalf("unexpected session: %+v", resp)
	}
	return resp.Token
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing X-Request-ID", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}
}

func TestReadyFailsWhenStoreDown(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Pinger = fakePinger{err: errors.New("connection refused")} })

	rr := env.do(t, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "connection refused") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signUp(t, "ada@example.com")

	rr := env.do(t, http.MethodGet, "/api/auth/me", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("me status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "ada@example.com") {
		t.Errorf("me body = %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/auth/signup", "", `{"email":"ada@example.com","password":"another one"}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate signup status=%d, want 409", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/auth/signin", "", `{"email":"ada@example.com","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad signin status=%d, want 401", rr.Code)
	}
	if body := decodeBody[ErrorBody](t, rr); body.Error != auth.ErrInvalidCredentials.Error() {
		t.Errorf("bad signin message = %q", body.Error)
	}

	rr = env.do(t, http.MethodPost, "/api/auth/signin", "", `{"email":"ADA@example.com","password":"correct horse"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("signin status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("Set-Cookie"), SessionCookie+"=") {
		t.Errorf("signin did not set the session cookie")
	}

	rr = env.do(t, http.MethodPost, "/api/auth/signout", token, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("signout status=%d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/auth/me", token, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("revoked token still accepted: status=%d", rr.Code)
	}
}

func TestSignUpProviderMessages(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"weak password", `{"email":"bob@example.com","password":"123"}`, auth.ErrWeakPassword.Error()},
		{"invalid email", `{"email":"not-an-email","password":"long enough"}`, auth.ErrInvalidEmail.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/auth/signup", "", tt.body)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status=%d, want 422", rr.Code)
			}
			if body := decodeBody[ErrorBody](t, rr); body.Error != tt.want {
				t.Errorf("message = %q, want %q", body.Error, tt.want)
			}
		})
	}
}

func TestGoogleSignInDisabled(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/api/auth/google", "", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status=%d, want 404", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/auth/google/callback?state=unknown&code=x", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("callback status=%d, want 400", rr.Code)
	}
}

func TestMutationsRequireIdentity(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/collections/goals", `{"title":"x","category":"Health","status":"not-started","year":2024}`},
		{http.MethodPut, "/api/collections/goals/abc", `{"status":"completed"}`},
		{http.MethodDelete, "/api/collections/goals/abc", ""},
		{http.MethodGet, "/api/dashboard", ""},
	}
	for _, tt := range tests {
		rr := env.do(t, tt.method, tt.path, "", tt.body)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status=%d, want 401", tt.method, tt.path, rr.Code)
		}
	}
}

func TestUnknownCollection(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signUp(t, "ada@example.com")

	rr := env.do(t, http.MethodGet, "/api/collections/habits", token, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status=%d, want 404", rr.Code)
	}
}

func TestGoalLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signUp(t, "ada@example.com")

	rr := env.do(t, http.MethodPost, "/api/collections/goals", token,
		`{"title":"Run a marathon","category":"Health","status":"in-progress","year":2024,"createdAt":"1999-01-01"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("client timestamps must be rejected as unknown fields: status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/collections/goals", token,
		`{"title":"Run a marathon","category":"Health","status":"in-progress","year":2024}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	id := decodeBody[map[string]string](t, rr)["id"]
	if id == "" {
		t.Fatal("create returned no id")
	}

	rr = env.do(t, http.MethodPut, "/api/collections/goals/"+id, token, `{"status":"completed"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/goals/progress?year=2024", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("progress status=%d", rr.Code)
	}
	view := decodeBody[struct {
		Year     int `json:"year"`
		Progress int `json:"progress"`
	}](t, rr)
	if view.Year != 2024 || view.Progress != 100 {
		t.Errorf("progress view = %+v, want year 2024 at 100", view)
	}

	rr = env.do(t, http.MethodDelete, "/api/collections/goals/"+id, token, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/collections/goals", token, "")
	items := decodeBody[struct {
		Items []map[string]any `json:"items"`
	}](t, rr).Items
	if len(items) != 0 {
		t.Errorf("goals after delete = %v", items)
	}
}

func TestUpdateValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signUp(t, "ada@example.com")

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"empty patch", "/api/collections/goals/x", `{}`, http.StatusUnprocessableEntity},
		{"bad status", "/api/collections/goals/x", `{"status":"done"}`, http.StatusUnprocessableEntity},
		{"category without type", "/api/collections/transactions/x", `{"category":"Food"}`, http.StatusUnprocessableEntity},
		{"bad date", "/api/collections/recaps/x", `{"date":"yesterday"}`, http.StatusUnprocessableEntity},
		{"missing document", "/api/collections/goals/missing", `{"status":"completed"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPut, tt.path, token, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status=%d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func createTransactions(t *testing.T, env *testEnv, token string) {
	t.Helper()
	for _, body := range []string{
		`{"description":"Salary","amount":100,"type":"income","category":"Salary","currency":"USD","date":"2024-03-05"}`,
		`{"description":"Groceries","amount":"40","type":"expense","category":"Food","date":"2024-03-10"}`,
		`{"description":"Consulting","amount":"500","type":"income","category":"Freelance","currency":"THB","date":"2024-03-12"}`,
		`{"description":"Rent","amount":"900","type":"expense","category":"Bills","currency":"USD","date":"2024-04-01"}`,
	} {
		rr := env.do(t, http.MethodPost, "/api/collections/transactions", token, body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("create transaction status=%d body=%s", rr.Code, rr.Body.String())
		}
	}
}

func TestFinanceView(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signUp(t, "ada@example.com")
	createTransactions(t, env, token)

	rr := env.do(t, http.MethodGet, "/api/finance?month=2024-03", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("finance status=%d body=%s", rr.Code, rr.Body.String())
	}
	view := decodeBody[struct {
		Period  string `json:"period"`
		Summary struct {
			Count      int `json:"count"`
			ByCurrency map[string]struct {
				Income   string `json:"income"`
				Expenses string `json:"expenses"`
				Balance  string `json:"balance"`
			} `json:"byCurrency"`
		} `json:"summary"`
		Transactions []map[string]any `json:"transactions"`
	}](t, rr)

	if view.Period != "2024-03" || view.Summary.Count != 3 {
		t.Fatalf("view = %+v", view)
	}
	if usd := view.Summary.ByCurrency["USD"]; usd.Balance != "60" {
		t.Errorf("USD balance = %q, want 60", usd.Balance)
	}
	if thb := view.Summary.ByCurrency["THB"]; thb.Income != "500" {
		t.Errorf("THB income = %q, want 500", thb.Income)
	}
	if len(view.Transactions) != 3 {
		t.Errorf("transactions = %d, want 3", len(view.Transactions))
	}

	rr = env.do(t, http.MethodGet, "/api/finance?month=2024-03&type=expense", token, "")
	filtered := decodeBody[struct {
		Transactions []map[string]any `json:"transactions"`
	}](t, rr)
	if len(filtered.Transactions) != 1 {
		t.Errorf("expense filter = %d transactions, want 1", len(filtered.Transactions))
	}

	for _, q := range []string{"month=2024-13", "type=transfer"} {
		rr := env.do(t, http.MethodGet, "/api/finance?"+q, token, "")
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s status=%d, want 422", q, rr.Code)
		}
	}
}

func TestTransactionValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signUp(t, "ada@example.com")

	tests := []struct {
		name string
		body string
	}{
		{"category of other type", `{"description":"x","amount":"1","type":"income","category":"Food","date":"2024-03-05"}`},
		{"negative amount", `{"description":"x","amount":"-1","type":"expense","category":"Food","date":"2024-03-05"}`},
		{"unknown currency", `{"description":"x","amount":"1","type":"expense","category":"Food","currency":"EUR","date":"2024-03-05"}`},
		{"missing date", `{"description":"x","amount":"1","type":"expense","category":"Food"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/collections/transactions", token, tt.body)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Errorf("status=%d, want 422 (body %s)", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRecapsView(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signUp(t, "ada@example.com")

	for _, body := range []string{
		`{"title":"Week 1","content":"Started running","type":"Weekly","date":"2024-01-07"}`,
		`{"title":"January","content":"Good month","type":"Monthly","date":"2024-01-31"}`,
		`{"title":"Week 2","content":"Kept running","type":"Weekly","date":"2024-01-14"}`,
	} {
		if rr := env.do(t, http.MethodPost, "/api/collections/recaps", token, body); rr.Code != http.StatusCreated {
			t.Fatalf("create recap status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := env.do(t, http.MethodGet, "/api/recaps/view?type=Weekly", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	view := decodeBody[struct {
		Recaps []struct {
			Title string `json:"title"`
		} `json:"recaps"`
	}](t, rr)
	if len(view.Recaps) != 2 || view.Recaps[0].Title != "Week 2" {
		t.Errorf("weekly recaps = %+v, want Week 2 first", view.Recaps)
	}

	if rr := env.do(t, http.MethodGet, "/api/recaps/view?type=Hourly", token, ""); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad type status=%d, want 422", rr.Code)
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signUp(t, "ada@example.com")
	createTransactions(t, env, token)

	rr := env.do(t, http.MethodGet, "/api/dashboard", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Groceries") {
		t.Errorf("dashboard should list recent transactions: %s", rr.Body.String())
	}
}

func TestExportXLSX(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signUp(t, "ada@example.com")
	createTransactions(t, env, token)

	rr := env.do(t, http.MethodGet, "/api/finance/export.xlsx?month=2024-03", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "finance-2024-03.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), "PK") {
		t.Error("body is not a zip container")
	}
}

func TestExportSheets(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signUp(t, "ada@example.com")
	createTransactions(t, env, token)

	rr := env.do(t, http.MethodPost, "/api/finance/export/sheets?month=2024-03", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[struct {
		Ref  string `json:"ref"`
		Rows int    `json:"rows"`
	}](t, rr)
	if resp.Rows != 3 || resp.Ref == "" {
		t.Errorf("response = %+v", resp)
	}
	if rows := env.sheets.Rows(2024); len(rows) != 3 {
		t.Errorf("sheet rows = %d, want 3", len(rows))
	}
}

func TestExportSheetsNotConfigured(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Sheets = nil })
	token := env.signUp(t, "ada@example.com")

	rr := env.do(t, http.MethodPost, "/api/finance/export/sheets", token, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status=%d, want 404", rr.Code)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	env := newTestEnv(t, nil)
	ada := env.signUp(t, "ada@example.com")
	bob := env.signUp(t, "bob@example.com")
	createTransactions(t, env, ada)

	rr := env.do(t, http.MethodGet, "/api/collections/transactions", bob, "")
	items := decodeBody[struct {
		Items []map[string]any `json:"items"`
	}](t, rr).Items
	if len(items) != 0 {
		t.Errorf("bob sees %d of ada's transactions", len(items))
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.RateLimit = 2 })

	var last int
	for range 3 {
		last = env.do(t, http.MethodGet, "/api/auth/me", "", "").Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status=%d, want 429", last)
	}
	// Health checks are not rate limited.
	if rr := env.do(t, http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK {
		t.Errorf("healthz status=%d", rr.Code)
	}
}

func TestCollectionSocket(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signUp(t, "ada@example.com")
	ts := httptest.NewServer(env.srv.Handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/collections/recaps"
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readUntil := func(match func(CollectionMessage, []map[string]any) bool) {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			var raw struct {
				Items   []map[string]any `json:"items"`
				Loading bool             `json:"loading"`
				Error   string           `json:"error"`
			}
			if err := conn.ReadJSON(&raw); err != nil {
				t.Fatalf("read: %v", err)
			}
			if match(CollectionMessage{Loading: raw.Loading, Error: raw.Error}, raw.Items) {
				return
			}
		}
	}

	readUntil(func(m CollectionMessage, items []map[string]any) bool { return !m.Loading && len(items) == 0 })

	rr := env.do(t, http.MethodPost, "/api/collections/recaps", token,
		`{"title":"Week 1","content":"Started running","type":"Weekly","date":"2024-01-07"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}

	readUntil(func(m CollectionMessage, items []map[string]any) bool {
		return len(items) == 1 && items[0]["title"] == "Week 1"
	})
}

func TestSocketClosesAfterSignOut(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.sessionCheck = 10 * time.Millisecond
	token := env.signUp(t, "ada@example.com")
	ts := httptest.NewServer(env.srv.Handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/dashboard"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Authorization": {"Bearer " + token}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("first dashboard state: %v", err)
	}

	if rr := env.do(t, http.MethodPost, "/api/auth/signout", token, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("signout status=%d", rr.Code)
	}

	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			t.Fatalf("expected policy violation close, got %v", err)
		}
		return
	}
}

func TestSocketRequiresIdentity(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.Handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/dashboard"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %v, want 401", resp)
	}
}
