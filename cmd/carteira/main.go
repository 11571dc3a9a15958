package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"carteira/internal/cache"
	"carteira/internal/cli"
	apphttp "carteira/internal/http"
	applog "carteira/internal/log"
	"carteira/internal/metrics"
	"carteira/internal/scheduler"
	"carteira/internal/services"
)

const (
	snapshotCacheSize = 32
	snapshotCacheTTL  = 10 * time.Minute
	jobTimeout        = 2 * time.Minute
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)

	ctx, stop := cli.SignalContext()
	defer stop()

	res := cli.InitBackend(ctx, cfg, logger)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	snapshots := cache.NewLRUCache[metrics.Snapshot](snapshotCacheSize, snapshotCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register("snapshots", snapshots)

	ledger := services.NewLedger(res.Store, services.Options{
		Publisher: res.Publisher,
		Logger:    logger,
		Snapshots: snapshots,
	})

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitRPM:       cfg.RateLimitRPM,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
	}, ledger)
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	sched := scheduler.New(logger, jobTimeout)
	mustAdd(logger, sched, "@every 10m", scheduler.NewCacheCleanupJob(caches))
	mustAdd(logger, sched, "@hourly", scheduler.NewBudgetAlertJob(ledger, nil, logger))
	if cfg.ReportDir != "" {
		mustAdd(logger, sched, cfg.ReportSchedule, scheduler.NewReportArchiveJob(ledger, cfg.ReportDir, nil, logger))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting carteira server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return srv.Hub().Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		return ledger.Close()
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", applog.FieldError, err)
		return
	}
	logger.Info("Server stopped gracefully")
}

func mustAdd(logger *applog.Logger, s *scheduler.Scheduler, spec string, job scheduler.Job) {
	if err := s.AddJob(spec, job); err != nil {
		cli.Fatal(logger, "Invalid job schedule", err, "job", job.Name(), "schedule", spec)
	}
}
