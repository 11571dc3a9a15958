package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"carteira/internal/amqp"
	"carteira/internal/cli"
	"carteira/internal/config"
	applog "carteira/internal/log"
	"carteira/internal/scheduler"
	"carteira/internal/sheets"
	gsheet "carteira/internal/sheets/google"
	memsheet "carteira/internal/sheets/memory"
	"carteira/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	logger.Info("Starting carteira-worker")

	ctx, stop := cli.SignalContext()
	defer stop()

	// The worker consumes events; it never publishes them.
	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	res := cli.InitBackend(ctx, &storeCfg, logger)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()
	if res.Outbox == nil {
		logger.Info("Backend has no outbox, periodic sweep disabled", "backend", cfg.DataBackend)
	}

	mirror, err := newMirror(ctx, cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize sheet mirror", err)
	}

	syncWorker := worker.NewSyncWorker(mirror, res.Store, res.Outbox, cfg.SyncBatchSize, logger)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", applog.FieldError, err)
	}

	sched := scheduler.New(logger, cfg.SyncInterval)
	spec := fmt.Sprintf("@every %s", cfg.SyncInterval)
	if err := sched.AddJob(spec, scheduler.NewOutboxSweepJob(syncWorker, logger)); err != nil {
		cli.Fatal(logger, "Invalid sync interval", err, "interval", cfg.SyncInterval.String())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
		defer client.Close()
		g.Go(func() error {
			err := client.Run(gctx, syncWorker.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled, relying on the outbox sweep only")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
	}
	stats := syncWorker.Stats()
	logger.Info("Worker stopped", "synced", stats.Synced, "failed", stats.Failed)
}

// newMirror returns the Google Sheets mirror when a spreadsheet is
// configured, or an in-memory one otherwise.
func newMirror(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.Mirror, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled, mirroring in memory")
		return memsheet.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}
