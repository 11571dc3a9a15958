package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carteira/internal/services"
	"carteira/internal/storage/memory"
)

var march = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type pingFailStore struct {
	*memory.Store
}

func (pingFailStore) Ping(context.Context) error { return errors.New("unreachable") }

func newServer(t *testing.T, ledger *services.Ledger) *Server {
	t.Helper()
	srv := NewServer(Config{Addr: ":0", RateLimitRPM: 600, Now: func() time.Time { return march }}, ledger)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = ledger.Close()
	})
	return srv
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv := newServer(t, services.NewLedger(memory.New(nil), services.Options{}))

	rr := serve(srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "<title>Carteira</title>") {
		t.Fatalf("index body missing title")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := serve(srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestSPAFallbackAndAssets(t *testing.T) {
	srv := newServer(t, services.NewLedger(memory.New(nil), services.Options{}))

	rr := serve(srv, http.MethodGet, "/goals/settings", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "<title>Carteira</title>") {
		t.Fatalf("client route not served index: status=%d", rr.Code)
	}

	rr = serve(srv, http.MethodGet, "/app.js", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("app.js status=%d", rr.Code)
	}
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
		t.Errorf("app.js Cache-Control = %q", cc)
	}

	rr = serve(srv, http.MethodGet, "/api/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown api path status=%d, want 404", rr.Code)
	}
}

func TestSPAOffersEditing(t *testing.T) {
	srv := newServer(t, services.NewLedger(memory.New(nil), services.Options{}))

	index := serve(srv, http.MethodGet, "/", "").Body.String()
	for _, id := range []string{`id="tx-cancel"`, `id="main-goal-form"`, `name="id" type="hidden"`} {
		if !strings.Contains(index, id) {
			t.Errorf("index missing %s", id)
		}
	}

	app := serve(srv, http.MethodGet, "/app.js", "").Body.String()
	for _, call := range []string{"`/api/transactions/${id}`", `url: "/api/main-goal"`} {
		if !strings.Contains(app, call) {
			t.Errorf("app.js missing %s", call)
		}
	}
}

func TestReadyzReportsStoreFailure(t *testing.T) {
	ledger := services.NewLedger(pingFailStore{memory.New(nil)}, services.Options{})
	srv := newServer(t, ledger)

	rr := serve(srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newServer(t, services.NewLedger(memory.New(nil), services.Options{}))

	rr := serve(srv, http.MethodGet, "/api/transactions", "")
	for _, h := range []string{"Content-Security-Policy", "X-Content-Type-Options", "X-Frame-Options"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestRateLimitAppliesToWritesOnly(t *testing.T) {
	ledger := services.NewLedger(memory.New(nil), services.Options{})
	srv := NewServer(Config{Addr: ":0", RateLimitRPM: 1}, ledger)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = ledger.Close()
	})

	body := `{"description":"Pay","amount":"100","kind":"income","category":"Salary"}`
	limited := false
	for i := 0; i < 40; i++ {
		if rr := serve(srv, http.MethodPost, "/api/transactions", body); rr.Code == http.StatusTooManyRequests {
			limited = true
			if rr.Header().Get("Retry-After") == "" {
				t.Error("missing Retry-After")
			}
			break
		}
	}
	if !limited {
		t.Fatal("expected a 429 for repeated writes")
	}

	for i := 0; i < 20; i++ {
		if rr := serve(srv, http.MethodGet, "/api/transactions", ""); rr.Code != http.StatusOK {
			t.Fatalf("read %d status=%d", i, rr.Code)
		}
	}
}

func TestShutdownIdempotent(t *testing.T) {
	ledger := services.NewLedger(memory.New(nil), services.Options{})
	srv := NewServer(Config{Addr: ":0"}, ledger)
	defer ledger.Close()

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
