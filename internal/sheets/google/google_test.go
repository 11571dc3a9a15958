package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"carteira/internal/core"

	goption "google.golang.org/api/option"
)

// fakeSheets implements the handful of Sheets v4 endpoints the client uses
// over a single in-memory grid.
type fakeSheets struct {
	mu   sync.Mutex
	rows [][]any
}

var rowRange = regexp.MustCompile(`!A(\d+):G\d+$`)

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	reply := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				DeleteDimension struct {
					Range struct {
						StartIndex int `json:"startIndex"`
						EndIndex   int `json:"endIndex"`
					} `json:"range"`
				} `json:"deleteDimension"`
			} `json:"requests"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			d := rq.DeleteDimension.Range
			f.rows = append(f.rows[:d.StartIndex], f.rows[d.EndIndex:]...)
		}
		reply(map[string]any{"replies": []any{map[string]any{}}})
	case strings.HasSuffix(path, ":append"):
		var vr struct {
			Values [][]any `json:"values"`
		}
		json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(f.rows, vr.Values...)
		reply(map[string]any{"updates": map[string]any{"updatedRange": fmt.Sprintf("Transactions!A%d:G%d", len(f.rows), len(f.rows))}})
	case strings.HasSuffix(path, ":clear"):
		if len(f.rows) > 1 {
			f.rows = f.rows[:1]
		}
		reply(map[string]any{})
	case strings.Contains(path, "/values/") && r.Method == http.MethodPut:
		var vr struct {
			Values [][]any `json:"values"`
		}
		json.NewDecoder(r.Body).Decode(&vr)
		row := 1
		if m := rowRange.FindStringSubmatch(path); m != nil {
			row, _ = strconv.Atoi(m[1])
		}
		for len(f.rows) < row {
			f.rows = append(f.rows, nil)
		}
		f.rows[row-1] = vr.Values[0]
		reply(map[string]any{})
	case strings.HasSuffix(path, "!A1:G1"):
		reply(map[string]any{"values": f.rows[:min(1, len(f.rows))]})
	case strings.HasSuffix(path, "!A:A"):
		col := make([][]any, len(f.rows))
		for i, row := range f.rows {
			if len(row) > 0 {
				col[i] = []any{row[0]}
			}
		}
		reply(map[string]any{"values": col})
	case r.Method == http.MethodGet:
		reply(map[string]any{"sheets": []any{
			map[string]any{"properties": map[string]any{"sheetId": 42, "title": "Transactions"}},
		}})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusBadRequest)
	}
}

func (f *fakeSheets) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, row := range f.rows[1:] {
		out = append(out, fmt.Sprint(row[0]))
	}
	return out
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		SpreadsheetID: "sheet-id",
		clientOptions: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithoutAuthentication(),
			goption.WithHTTPClient(srv.Client()),
		},
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, fake
}

func tx(id int64, desc string) core.Transaction {
	return core.Transaction{
		ID:            id,
		Description:   desc,
		Amount:        core.Cents(1250),
		Kind:          core.Expense,
		PaymentMethod: core.Pix,
		Category:      "Food",
		Timestamp:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestClient_MirrorLifecycle(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Upsert(ctx, tx(1, "Lunch")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if got := fmt.Sprint(fake.rows[0][0]); got != "ID" {
		t.Errorf("header not written, first cell = %q", got)
	}

	ref, err := c.Upsert(ctx, tx(1, "Dinner"))
	if err != nil {
		t.Fatalf("Upsert() update error = %v", err)
	}
	if ref != "Transactions!A2:G2" {
		t.Errorf("update ref = %q", ref)
	}
	if got := fmt.Sprint(fake.rows[1][2]); got != "Dinner" {
		t.Errorf("row not rewritten, description = %q", got)
	}

	if _, err := c.Upsert(ctx, tx(2, "Bus")); err != nil {
		t.Fatalf("Upsert() second error = %v", err)
	}
	if got := fake.ids(); strings.Join(got, ",") != "1,2" {
		t.Fatalf("ids = %v", got)
	}

	if err := c.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := fake.ids(); strings.Join(got, ",") != "2" {
		t.Errorf("ids after delete = %v", got)
	}
	if err := c.Delete(ctx, 99); err != nil {
		t.Errorf("Delete() of missing row should be a no-op, got %v", err)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if len(fake.rows) != 1 {
		t.Errorf("rows after clear = %d, want header only", len(fake.rows))
	}
}

func TestNew_Errors(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := New(context.Background(), Config{}, nil); err == nil {
		t.Error("expected error for missing spreadsheet ID")
	}

	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected missing credentials error, got %v", err)
	}

	_, err = New(context.Background(), Config{SpreadsheetID: "x", ServiceAccountFile: "/nonexistent/sa.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{float64(1741000000000), 1741000000000, true},
		{"42", 42, true},
		{" 7 ", 7, true},
		{"ID", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseID(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseID(%v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
