package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/log"
	ports "fintrack/internal/sheets"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type recordedCall struct {
	method string
	path   string
	query  string
	values [][]any
}

// fakeSheets serves the subset of the Sheets values API the client uses.
type fakeSheets struct {
	mu       sync.Mutex
	calls    []recordedCall
	existing [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := recordedCall{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
	if r.Body != nil {
		var vr gsheet.ValueRange
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &vr)
			call.values = vr.Values
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(gsheet.ValueRange{Values: f.existing})
	case r.Method == http.MethodPut:
		_ = json.NewEncoder(w).Encode(gsheet.UpdateValuesResponse{UpdatedRows: 1})
	case strings.HasSuffix(r.URL.Path, ":append"):
		_ = json.NewEncoder(w).Encode(gsheet.AppendValuesResponse{
			Updates: &gsheet.UpdateValuesResponse{UpdatedRange: "Transactions!A5:G5"},
		})
	default:
		http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake http.Handler, sheet string) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	lc := log.DefaultConfig()
	lc.Output = io.Discard
	return newClient(svc, "sheet-id", sheet, log.New(lc))
}

func sampleRow() ports.Row {
	desc := "weekly groceries"
	category := uuid.New()
	tx := core.Transaction{
		ID:              uuid.MustParse("5b0c2f8e-6f6e-4a55-9a1e-0c5d1a9c7f10"),
		CategoryID:      &category,
		Amount:          core.Money{Cents: 4550},
		TransactionType: core.TransactionExpense,
		Date:            core.NewDate(2024, 3, 10),
		Description:     &desc,
	}
	return ports.NewRow(tx, core.Account{Name: "Checking"}, "Food")
}

func TestClient_AppendRow(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake, "")

	ref, err := c.AppendRow(context.Background(), sampleRow())
	if err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if ref != "Transactions!A5:G5" {
		t.Errorf("ref = %q, want updated range", ref)
	}

	if len(fake.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(fake.calls))
	}
	call := fake.calls[0]
	if call.method != http.MethodPost || !strings.HasSuffix(call.path, "/values/Transactions!A:G:append") {
		t.Errorf("unexpected request %s %s", call.method, call.path)
	}
	if !strings.Contains(call.query, "valueInputOption=USER_ENTERED") || !strings.Contains(call.query, "insertDataOption=INSERT_ROWS") {
		t.Errorf("unexpected query %q", call.query)
	}

	want := []any{"2024-03-10", "Checking", "Food", "Expense", "45.50", "weekly groceries", "5b0c2f8e-6f6e-4a55-9a1e-0c5d1a9c7f10"}
	if len(call.values) != 1 || len(call.values[0]) != len(want) {
		t.Fatalf("unexpected values %v", call.values)
	}
	for i, v := range want {
		if call.values[0][i] != v {
			t.Errorf("column %d = %v, want %v", i, call.values[0][i], v)
		}
	}
}

func TestClient_AppendRowQuotesSheetName(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake, "2024 Ledger")

	if _, err := c.AppendRow(context.Background(), sampleRow()); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if !strings.Contains(fake.calls[0].path, "'2024 Ledger'!A:G") {
		t.Errorf("sheet name not quoted in %q", fake.calls[0].path)
	}
}

func TestClient_EnsureHeader(t *testing.T) {
	t.Run("empty sheet gets header", func(t *testing.T) {
		fake := &fakeSheets{}
		c := newTestClient(t, fake, "Transactions")

		if err := c.EnsureHeader(context.Background()); err != nil {
			t.Fatalf("EnsureHeader: %v", err)
		}
		if len(fake.calls) != 2 || fake.calls[1].method != http.MethodPut {
			t.Fatalf("expected read then write, got %+v", fake.calls)
		}
		if got := fake.calls[1].values[0][0]; got != "Date" {
			t.Errorf("first header cell = %v", got)
		}
	})

	t.Run("existing header is kept", func(t *testing.T) {
		fake := &fakeSheets{existing: [][]any{{"Date", "Account"}}}
		c := newTestClient(t, fake, "Transactions")

		if err := c.EnsureHeader(context.Background()); err != nil {
			t.Fatalf("EnsureHeader: %v", err)
		}
		if len(fake.calls) != 1 {
			t.Fatalf("expected a single read, got %+v", fake.calls)
		}
	})
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}), "Transactions")

	if _, err := c.AppendRow(context.Background(), sampleRow()); err == nil || !strings.Contains(err.Error(), "append to sheet Transactions") {
		t.Fatalf("expected wrapped append error, got %v", err)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.AppendRow(context.Background(), ports.Row{}); err == nil {
		t.Fatal("expected error for nil service")
	}
	if err := c.EnsureHeader(context.Background()); err == nil {
		t.Fatal("expected error for nil service")
	}
}

func TestNew_ConfigErrors(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	lc := log.DefaultConfig()
	lc.Output = io.Discard
	logger := log.New(lc)

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "missing spreadsheet", cfg: Config{}, wantErr: "missing spreadsheet id"},
		{name: "missing credentials", cfg: Config{SpreadsheetID: "id"}, wantErr: "missing service account credentials"},
		{
			name:    "unreadable file",
			cfg:     Config{SpreadsheetID: "id", CredentialsFile: filepath.Join(t.TempDir(), "missing.json")},
			wantErr: "read service account file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg, logger)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewRow_Uncategorized(t *testing.T) {
	r := ports.NewRow(core.Transaction{TransactionType: core.TransactionTransfer}, core.Account{Name: "Savings"}, "")
	values := r.Values()
	if values[2] != core.UncategorizedLabel || values[3] != "Transfer" || values[5] != "" {
		t.Errorf("unexpected values %v", values)
	}
}
