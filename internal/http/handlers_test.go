package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"carteira/internal/services"
	"carteira/internal/storage/memory"
)

func newAPI(t *testing.T) *Server {
	t.Helper()
	ledger := services.NewLedger(memory.New(nil), services.Options{Now: func() time.Time { return march }})
	return newServer(t, ledger)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func mustServe(t *testing.T, srv *Server, method, path, body string, want int) *httptest.ResponseRecorder {
	t.Helper()
	rr := serve(srv, method, path, body)
	require.Equal(t, want, rr.Code, "%s %s: %s", method, path, rr.Body.String())
	return rr
}

func TestTransactionsAPI(t *testing.T) {
	srv := newAPI(t)

	rr := mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Pay","amount":"5000","kind":"income","paymentMethod":"pix","category":"Salary"}`, http.StatusCreated)
	income := decode[map[string]any](t, rr)
	assert.Equal(t, "not-applicable", income["paymentMethod"], "income has no payment method")

	rr = mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Market","amount":"120,50","kind":"expense","paymentMethod":"debit","category":"Food"}`, http.StatusCreated)
	id := int64(decode[map[string]any](t, rr)["id"].(float64))

	rr = mustServe(t, srv, http.MethodGet, "/api/transactions?kind=expense", "", http.StatusOK)
	page := decode[services.Page](t, rr)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Market", page.Items[0].Description)
	assert.Equal(t, int64(12050), page.Items[0].Amount.Cents)

	mustServe(t, srv, http.MethodGet, "/api/transactions/"+itoa(id), "", http.StatusOK)
	mustServe(t, srv, http.MethodGet, "/api/transactions/999", "", http.StatusNotFound)
	mustServe(t, srv, http.MethodGet, "/api/transactions/abc", "", http.StatusBadRequest)

	rr = mustServe(t, srv, http.MethodPut, "/api/transactions/"+itoa(id),
		`{"description":"Market","amount":80,"kind":"expense","paymentMethod":"debit","category":"Food"}`, http.StatusOK)
	assert.EqualValues(t, 80, decode[map[string]any](t, rr)["amount"])
}

func TestTransactionsAPI_Validation(t *testing.T) {
	srv := newAPI(t)

	mustServe(t, srv, http.MethodPost, "/api/transactions", `{"description":`, http.StatusBadRequest)
	mustServe(t, srv, http.MethodPost, "/api/transactions", ``, http.StatusBadRequest)
	mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"x","amount":"-5","kind":"income","category":"Salary"}`, http.StatusUnprocessableEntity)
	mustServe(t, srv, http.MethodGet, "/api/transactions?kind=transfer", "", http.StatusUnprocessableEntity)

	rr := mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"TV","amount":"100","kind":"expense","paymentMethod":"debit","category":"Electronics"}`, http.StatusUnprocessableEntity)
	assert.Contains(t, rr.Body.String(), "error")
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	srv := newAPI(t)
	rr := mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Pay","amount":"10","kind":"income","category":"Salary"}`, http.StatusCreated)
	path := "/api/transactions/" + itoa(int64(decode[map[string]any](t, rr)["id"].(float64)))

	mustServe(t, srv, http.MethodDelete, path, "", http.StatusConflict)
	mustServe(t, srv, http.MethodDelete, path+"?confirm=true", "", http.StatusNoContent)
	mustServe(t, srv, http.MethodDelete, path+"?confirm=true", "", http.StatusNotFound)
}

func TestClearAll(t *testing.T) {
	srv := newAPI(t)
	for i := 0; i < 3; i++ {
		mustServe(t, srv, http.MethodPost, "/api/transactions",
			`{"description":"Pay","amount":"10","kind":"income","category":"Salary"}`, http.StatusCreated)
	}

	mustServe(t, srv, http.MethodDelete, "/api/transactions", "", http.StatusConflict)
	rr := mustServe(t, srv, http.MethodDelete, "/api/transactions?confirm=1", "", http.StatusOK)
	assert.Equal(t, 3, decode[map[string]int](t, rr)["removed"])
}

func TestPayBillAndMetrics(t *testing.T) {
	srv := newAPI(t)
	mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Pay","amount":"5000","kind":"income","category":"Salary"}`, http.StatusCreated)
	mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Phone","amount":"1000","kind":"expense","paymentMethod":"credit","category":"Electronics"}`, http.StatusCreated)

	mustServe(t, srv, http.MethodPost, "/api/bill-payments", `{"amount":"9000"}`, http.StatusUnprocessableEntity)
	mustServe(t, srv, http.MethodPost, "/api/bill-payments", `{"amount":"1000"}`, http.StatusCreated)

	rr := mustServe(t, srv, http.MethodGet, "/api/metrics", "", http.StatusOK)
	var m struct {
		Month              string            `json:"month"`
		AccountBalance     float64           `json:"accountBalance"`
		CardDebt           float64           `json:"cardDebt"`
		TopExpenseCategory string            `json:"topExpenseCategory"`
		HealthLabel        string            `json:"healthLabel"`
		Colors             map[string]string `json:"colors"`
		ExpensesByValue    []struct {
			Name string `json:"name"`
		} `json:"expensesByValue"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	assert.Equal(t, "2025-03", m.Month)
	assert.InDelta(t, 4000, m.AccountBalance, 0.001)
	assert.Zero(t, m.CardDebt)
	assert.Equal(t, "Electronics", m.TopExpenseCategory)
	assert.NotEmpty(t, m.HealthLabel)
	require.Len(t, m.ExpensesByValue, 1, "bill payments are not an expense category")
	assert.Contains(t, m.Colors, "Electronics")

	mustServe(t, srv, http.MethodGet, "/api/insights", "", http.StatusOK)
}

func TestBudgetsAPI(t *testing.T) {
	srv := newAPI(t)
	mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Pay","amount":"1000","kind":"income","category":"Salary"}`, http.StatusCreated)
	mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Market","amount":"80","kind":"expense","paymentMethod":"pix","category":"Food"}`, http.StatusCreated)

	mustServe(t, srv, http.MethodPut, "/api/budgets", `{"category":"Food","limit":"100"}`, http.StatusOK)
	mustServe(t, srv, http.MethodPut, "/api/budgets", `{"category":"Food","limit":"0"}`, http.StatusUnprocessableEntity)

	rr := mustServe(t, srv, http.MethodGet, "/api/budgets/progress", "", http.StatusOK)
	progress := decode[[]map[string]any](t, rr)
	require.Len(t, progress, 1)
	assert.Equal(t, "warn", progress[0]["level"])

	mustServe(t, srv, http.MethodDelete, "/api/budgets/Food", "", http.StatusNoContent)
	mustServe(t, srv, http.MethodDelete, "/api/budgets/Food", "", http.StatusNotFound)
}

func TestCategoriesAPI(t *testing.T) {
	srv := newAPI(t)

	rr := mustServe(t, srv, http.MethodPost, "/api/categories", `{"name":" Pets "}`, http.StatusOK)
	assert.Contains(t, decode[[]string](t, rr), "Pets")
	mustServe(t, srv, http.MethodPost, "/api/categories", `{"name":"Bill Payment"}`, http.StatusUnprocessableEntity)

	mustServe(t, srv, http.MethodDelete, "/api/categories/Pets", "", http.StatusNoContent)
	rr = mustServe(t, srv, http.MethodGet, "/api/categories", "", http.StatusOK)
	assert.NotContains(t, decode[[]string](t, rr), "Pets")
}

func TestGoalsAPI(t *testing.T) {
	srv := newAPI(t)
	mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Pay","amount":"1000","kind":"income","category":"Salary"}`, http.StatusCreated)

	rr := mustServe(t, srv, http.MethodPost, "/api/goals", `{"name":"Trip","target":"2000","type":"savings"}`, http.StatusCreated)
	id := decode[map[string]any](t, rr)["id"].(string)

	rr = mustServe(t, srv, http.MethodPost, "/api/goals/"+id+"/fund", `{"amount":"500"}`, http.StatusCreated)
	funded := decode[struct {
		Goal struct {
			Progress float64 `json:"progress"`
		} `json:"goal"`
		Transaction struct {
			Description string `json:"description"`
		} `json:"transaction"`
	}](t, rr)
	assert.InDelta(t, 25, funded.Goal.Progress, 0.001)
	assert.Equal(t, "Contribution: Trip", funded.Transaction.Description)

	mustServe(t, srv, http.MethodPost, "/api/goals/"+id+"/fund", `{"amount":"900"}`, http.StatusUnprocessableEntity)
	mustServe(t, srv, http.MethodPut, "/api/goals/order", `{"ids":["nope"]}`, http.StatusUnprocessableEntity)
	mustServe(t, srv, http.MethodPut, "/api/goals/"+id, `{"name":"Trip 2026","target":"3000","type":"investment"}`, http.StatusOK)

	mustServe(t, srv, http.MethodDelete, "/api/goals/"+id, "", http.StatusConflict)
	mustServe(t, srv, http.MethodDelete, "/api/goals/"+id+"?confirm=true", "", http.StatusNoContent)
}

func TestMainGoalAPI(t *testing.T) {
	srv := newAPI(t)

	mustServe(t, srv, http.MethodGet, "/api/main-goal", "", http.StatusNoContent)
	mustServe(t, srv, http.MethodPut, "/api/main-goal", `{"name":"","target":"10"}`, http.StatusUnprocessableEntity)
	mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Pay","amount":"250","kind":"income","category":"Salary"}`, http.StatusCreated)

	rr := mustServe(t, srv, http.MethodPut, "/api/main-goal", `{"name":"House","target":"1000"}`, http.StatusOK)
	g := decode[map[string]any](t, rr)
	assert.EqualValues(t, 250, g["saved"])
	assert.EqualValues(t, 25, g["progress"])

	mustServe(t, srv, http.MethodDelete, "/api/main-goal", "", http.StatusNoContent)
	mustServe(t, srv, http.MethodGet, "/api/main-goal", "", http.StatusNoContent)
}

func TestChartsAndExports(t *testing.T) {
	srv := newAPI(t)

	mustServe(t, srv, http.MethodGet, "/api/charts/monthly-flow.png", "", http.StatusNotFound)

	mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Pay","amount":"1000","kind":"income","category":"Salary"}`, http.StatusCreated)
	mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Bus","amount":"10","kind":"expense","paymentMethod":"pix","category":"Transport"}`, http.StatusCreated)

	for _, path := range []string{"/api/charts/monthly-flow.png", "/api/charts/categories.png"} {
		rr := mustServe(t, srv, http.MethodGet, path, "", http.StatusOK)
		assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")), path)
	}

	rr := mustServe(t, srv, http.MethodGet, "/api/export/html", "", http.StatusOK)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "relatorio-financeiro-2025-03-15.html")
	assert.Contains(t, rr.Body.String(), "Transport")

	rr = mustServe(t, srv, http.MethodGet, "/api/export/xls", "", http.StatusOK)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "application/vnd.ms-excel"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xls")
}

func TestWebsocketPushesUpdates(t *testing.T) {
	srv := newAPI(t)
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	type update struct {
		Kind     services.EventKind `json:"kind"`
		Revision uint64             `json:"revision"`
		Metrics  struct {
			TotalIncome float64 `json:"totalIncome"`
		} `json:"metrics"`
	}

	var first update
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	assert.Zero(t, first.Revision)

	require.Eventually(t, func() bool { return srv.Hub().Clients() == 1 }, time.Second, 10*time.Millisecond)

	mustServe(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Pay","amount":"1000","kind":"income","category":"Salary"}`, http.StatusCreated)

	var next update
	require.NoError(t, wsjson.Read(ctx, conn, &next))
	assert.Equal(t, uint64(1), next.Revision)
	assert.Equal(t, services.EventTransactions, next.Kind)
	assert.InDelta(t, 1000, next.Metrics.TotalIncome, 0.001)
}

func TestWebsocketAllowedOrigins(t *testing.T) {
	ledger := services.NewLedger(memory.New(nil), services.Options{Now: func() time.Time { return march }})
	srv := NewServer(Config{
		Addr:               ":0",
		RateLimitRPM:       600,
		CORSAllowedOrigins: []string{"http://a.test"},
		Now:                func() time.Time { return march },
	}, ledger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
		_ = ledger.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	dial := func(origin string) (*websocket.Conn, *http.Response, error) {
		return websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: http.Header{"Origin": {origin}}})
	}

	conn, _, err := dial("http://a.test")
	require.NoError(t, err)
	var first struct {
		Revision uint64 `json:"revision"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	conn.Close(websocket.StatusNormalClosure, "")

	_, resp, err := dial("http://b.test")
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"http://a.test", "https://app.example:8443", "*", " ", "*.example.org", "://bad"})
	assert.Equal(t, []string{"a.test", "app.example:8443", "*", "*.example.org"}, got)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
