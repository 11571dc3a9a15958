package main

import (
	"context"
	"flag"
	"time"

	"carteira/internal/cli"
	"carteira/internal/config"
	applog "carteira/internal/log"
	"carteira/internal/scheduler"
	"carteira/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentExport)

	dir := flag.String("dir", cfg.ReportDir, "Directory the dated report folder is written to")
	at := flag.String("at", "", "Reference date in YYYY-MM-DD format (default: today)")
	flag.Parse()

	now := time.Now()
	if *at != "" {
		d, err := time.ParseInLocation("2006-01-02", *at, time.Local)
		if err != nil {
			cli.Fatal(logger, "Invalid -at date, expected YYYY-MM-DD", err, "at", *at)
		}
		now = d.Add(12 * time.Hour)
	}

	if err := run(cfg, logger, *dir, now); err != nil {
		cli.Fatal(logger, "Report generation failed", err)
	}
}

// run keeps the deferred cleanups ahead of the exit in main.
func run(cfg *config.Config, logger *applog.Logger, dir string, now time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	res := cli.InitBackend(ctx, &storeCfg, logger)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	ledger := services.NewLedger(res.Store, services.Options{Logger: logger})
	defer ledger.Close()

	job := scheduler.NewReportArchiveJob(ledger, dir, func() time.Time { return now }, logger)
	paths, err := job.Archive(ctx)
	if err != nil {
		return err
	}
	for _, p := range paths {
		logger.Info("Report written", "path", p)
	}
	return nil
}
