// Package scheduler runs the periodic background jobs: outbox sweeps,
// cache cleanup, budget alerts and the report archive.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	applog "carteira/internal/log"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron    *cron.Cron
	logger  *applog.Logger
	timeout time.Duration
	ctx     context.Context
}

// New creates a scheduler using standard five-field cron specs. Each run
// gets its own context bounded by timeout.
func New(logger *applog.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = applog.Discard()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger.WithComponent(applog.ComponentScheduler),
		timeout: timeout,
		ctx:     context.Background(),
	}
}

// AddJob registers a job. Schedule examples:
//   - "@every 30s"  every 30 seconds
//   - "@hourly"     every hour
//   - "0 6 1 * *"   06:00 on the first day of each month
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		_ = s.run(s.ctx, job)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Job registered", "schedule", schedule, "job", job.Name())
	return nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("Scheduler started", applog.FieldCount, len(s.cron.Entries()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.logger.Info("Running job immediately", "job", job.Name())
	return s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Debug("Running job", "job", job.Name())
	if err := job.Run(ctx); err != nil {
		s.logger.Error("Job failed", "job", job.Name(), applog.FieldError, err)
		return err
	}
	s.logger.Debug("Job completed", "job", job.Name(), applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}
