package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"carteira/internal/cache"
	"carteira/internal/export"
	"carteira/internal/insights"
	applog "carteira/internal/log"
	"carteira/internal/services"
)

// Sweeper re-delivers outbox rows that never got acknowledged.
type Sweeper interface {
	ProcessPending(ctx context.Context) (int, error)
}

type BudgetSource interface {
	BudgetProgress(ctx context.Context, now time.Time) ([]insights.BudgetProgress, error)
}

type OverviewSource interface {
	Overview(ctx context.Context, now time.Time) (services.Overview, error)
}

// OutboxSweepJob pushes pending outbox rows downstream.
type OutboxSweepJob struct {
	sweeper Sweeper
	logger  *applog.Logger
}

func NewOutboxSweepJob(sweeper Sweeper, logger *applog.Logger) *OutboxSweepJob {
	return &OutboxSweepJob{sweeper: sweeper, logger: orDiscard(logger)}
}

func (j *OutboxSweepJob) Name() string { return "outbox_sweep" }

func (j *OutboxSweepJob) Run(ctx context.Context) error {
	n, err := j.sweeper.ProcessPending(ctx)
	if n > 0 {
		j.logger.InfoContext(ctx, "Outbox sweep synced rows", applog.FieldCount, n)
	}
	return err
}

// CacheCleanupJob drops expired entries from every registered cache.
type CacheCleanupJob struct {
	manager *cache.Manager
}

func NewCacheCleanupJob(manager *cache.Manager) *CacheCleanupJob {
	return &CacheCleanupJob{manager: manager}
}

func (j *CacheCleanupJob) Name() string { return "cache_cleanup" }

func (j *CacheCleanupJob) Run(context.Context) error {
	j.manager.CleanAll()
	return nil
}

// BudgetAlertJob logs a warning the first time a budget is exceeded in a
// month.
type BudgetAlertJob struct {
	source BudgetSource
	now    func() time.Time
	logger *applog.Logger

	mu      sync.Mutex
	alerted map[string]bool
}

func NewBudgetAlertJob(source BudgetSource, now func() time.Time, logger *applog.Logger) *BudgetAlertJob {
	if now == nil {
		now = time.Now
	}
	return &BudgetAlertJob{source: source, now: now, logger: orDiscard(logger), alerted: map[string]bool{}}
}

func (j *BudgetAlertJob) Name() string { return "budget_alerts" }

func (j *BudgetAlertJob) Run(ctx context.Context) error {
	_, err := j.Check(ctx)
	return err
}

// Check returns the budgets that crossed their limit since the last check.
func (j *BudgetAlertJob) Check(ctx context.Context) ([]insights.BudgetProgress, error) {
	now := j.now()
	progress, err := j.source.BudgetProgress(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("budget progress: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	month := now.Format("2006-01")
	var fresh []insights.BudgetProgress
	for _, p := range insights.Exceeded(progress) {
		key := month + ":" + p.Category
		if j.alerted[key] {
			continue
		}
		j.alerted[key] = true
		fresh = append(fresh, p)
		j.logger.WarnContext(ctx, "Budget exceeded",
			applog.FieldCategory, p.Category,
			applog.FieldMonth, month,
			"limit_cents", p.Limit.Cents,
			"spent_cents", p.Spent.Cents,
			"percent", p.Percent)
	}
	return fresh, nil
}

// ReportArchiveJob writes the HTML, spreadsheet and chart reports into a
// dated directory under dir.
type ReportArchiveJob struct {
	source OverviewSource
	dir    string
	now    func() time.Time
	logger *applog.Logger
}

func NewReportArchiveJob(source OverviewSource, dir string, now func() time.Time, logger *applog.Logger) *ReportArchiveJob {
	if now == nil {
		now = time.Now
	}
	return &ReportArchiveJob{source: source, dir: dir, now: now, logger: orDiscard(logger)}
}

func (j *ReportArchiveJob) Name() string { return "report_archive" }

func (j *ReportArchiveJob) Run(ctx context.Context) error {
	_, err := j.Archive(ctx)
	return err
}

// Archive renders the reports once and returns the written paths.
func (j *ReportArchiveJob) Archive(ctx context.Context) ([]string, error) {
	o, err := j.source.Overview(ctx, j.now())
	if err != nil {
		return nil, fmt.Errorf("load overview: %w", err)
	}
	dir := filepath.Join(j.dir, o.GeneratedAt.Format("2006-01-02"))
	paths, err := export.WriteArchive(dir, export.Report{
		Snapshot:     o.Snapshot,
		Transactions: o.Transactions,
		GeneratedAt:  o.GeneratedAt,
	})
	if err != nil {
		return paths, err
	}
	j.logger.InfoContext(ctx, "Report archived", "dir", dir, applog.FieldCount, len(paths))
	return paths, nil
}

func orDiscard(logger *applog.Logger) *applog.Logger {
	if logger == nil {
		return applog.Discard().WithComponent(applog.ComponentScheduler)
	}
	return logger.WithComponent(applog.ComponentScheduler)
}
