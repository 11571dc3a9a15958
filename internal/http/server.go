package http

import (
	"context"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	applog "carteira/internal/log"
	"carteira/internal/middleware/ratelimit"
	"carteira/internal/middleware/security"
	"carteira/internal/middleware/trace"
	"carteira/internal/services"
	appweb "carteira/web"
)

const (
	readHeaderTimeout = 10 * time.Second
	staticMaxAge      = 3600
)

type Config struct {
	Addr               string
	RateLimitRPM       int
	CORSAllowedOrigins []string
	Logger             *applog.Logger
	// Now is the clock used for month-scoped metrics. Defaults to time.Now.
	Now func() time.Time
}

// Server exposes the ledger as a JSON API and serves the embedded SPA.
type Server struct {
	http.Server
	ledger   *services.Ledger
	logger   *applog.Logger
	now      func() time.Time
	limiter  *ratelimit.Limiter
	detector *security.Detector
	hub      *Hub

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(cfg Config, ledger *services.Ledger) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	rl := ratelimit.DefaultConfig()
	if cfg.RateLimitRPM > 0 {
		rl.RequestsPerMinute = cfg.RateLimitRPM
	}

	s := &Server{
		ledger:   ledger,
		logger:   logger,
		now:      cfg.Now,
		limiter:  ratelimit.NewLimiter(rl),
		detector: security.NewDetector(),
	}
	s.hub = NewHub(ledger, cfg.Now, cfg.CORSAllowedOrigins, logger)
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(trace.NewMiddleware(s.detector.ExtractClientIP, s.logger).Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		if len(origins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: origins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Content-Type"},
				MaxAge:         300,
			}))
		}
		r.Use(s.limitWrites)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Delete("/", s.handleClearTransactions)
			r.Get("/{id}", s.handleGetTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})
		r.Post("/bill-payments", s.handlePayBill)

		r.Get("/metrics", s.handleMetrics)
		r.Get("/insights", s.handleInsights)

		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", s.handleListBudgets)
			r.Put("/", s.handleSetBudget)
			r.Get("/progress", s.handleBudgetProgress)
			r.Delete("/{category}", s.handleRemoveBudget)
		})
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleAddCategory)
			r.Delete("/{name}", s.handleRemoveCategory)
		})
		r.Route("/goals", func(r chi.Router) {
			r.Get("/", s.handleListGoals)
			r.Post("/", s.handleCreateGoal)
			r.Put("/order", s.handleReorderGoals)
			r.Put("/{id}", s.handleUpdateGoal)
			r.Delete("/{id}", s.handleDeleteGoal)
			r.Post("/{id}/fund", s.handleFundGoal)
		})
		r.Route("/main-goal", func(r chi.Router) {
			r.Get("/", s.handleGetMainGoal)
			r.Put("/", s.handleSetMainGoal)
			r.Delete("/", s.handleClearMainGoal)
		})

		r.Get("/charts/monthly-flow.png", s.handleMonthlyFlowChart)
		r.Get("/charts/categories.png", s.handleCategoriesChart)
		r.Get("/export/html", s.handleExportHTML)
		r.Get("/export/xls", s.handleExportSpreadsheet)

		r.Get("/ws", s.hub.ServeHTTP)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			NotFoundError("no such endpoint").Write(w)
		})
	})

	r.Handle("/*", s.spa())
	return r
}

// limitWrites applies the rate limiter to mutating requests only.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

// spa serves embedded static files, falling back to index.html for client
// routes.
func (s *Server) spa() http.Handler {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
		return http.NotFoundHandler()
	}
	files := http.FileServer(http.FS(sub))
	cached := security.StaticAssetMiddleware(staticMaxAge)(files)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name != "" {
			if _, err := fs.Stat(sub, name); err == nil {
				cached.ServeHTTP(w, r)
				return
			}
		}
		index, err := fs.ReadFile(sub, "index.html")
		if err != nil {
			InternalServerError("index not available").Write(w)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(index)
	})
}

// Hub returns the live-update hub so callers can run it alongside the
// server.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.hub.Close()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ledger.Ping(ctx); err != nil {
		s.logger.ErrorContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// fail writes err and logs it when it is not a client error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if StatusFor(err) == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Request failed",
			applog.FieldOperation, op,
			applog.FieldRequestID, trace.GetRequestID(r.Context()),
			applog.FieldError, err)
	}
	FromError(err).Write(w)
}
