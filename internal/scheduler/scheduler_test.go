package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/services"
	"carteira/internal/storage/memory"
)

var march = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

type sweeperFunc func(ctx context.Context) (int, error)

func (f sweeperFunc) ProcessPending(ctx context.Context) (int, error) { return f(ctx) }

func newLedger(t *testing.T) *services.Ledger {
	t.Helper()
	l := services.NewLedger(memory.New(nil), services.Options{Now: func() time.Time { return march }})
	t.Cleanup(func() { l.Close() })
	return l
}

func TestScheduler_AddJobInvalidSpec(t *testing.T) {
	s := New(nil, time.Second)
	require.Error(t, s.AddJob("not a cron spec", &countingJob{}))
	require.NoError(t, s.AddJob("@every 1h", &countingJob{}))
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(nil, time.Second)
	job := &countingJob{err: errors.New("boom")}

	require.Error(t, s.RunNow(context.Background(), job))
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestScheduler_RunStopsWithContext(t *testing.T) {
	s := New(nil, time.Second)
	job := &countingJob{}
	require.NoError(t, s.AddJob("@every 1s", job))

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.GreaterOrEqual(t, job.runs.Load(), int32(1))
}

func TestOutboxSweepJob(t *testing.T) {
	calls := 0
	job := NewOutboxSweepJob(sweeperFunc(func(context.Context) (int, error) {
		calls++
		return 2, nil
	}), nil)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "outbox_sweep", job.Name())
}

func TestCacheCleanupJob(t *testing.T) {
	m := cache.NewManager(nil)
	c := cache.NewLRUCache[int](4, time.Nanosecond)
	c.Set("a", 1)
	m.Register("test", c)
	time.Sleep(time.Millisecond)

	require.NoError(t, NewCacheCleanupJob(m).Run(context.Background()))
	assert.Zero(t, c.Size())
}

func TestBudgetAlertJob_AlertsOncePerMonth(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	_, err := l.AddTransaction(ctx, core.Draft{Description: "Pay", Amount: "1000", Kind: core.Income, Category: "Salary"})
	require.NoError(t, err)
	_, err = l.AddTransaction(ctx, core.Draft{Description: "Market", Amount: "120", Kind: core.Expense, PaymentMethod: core.Pix, Category: "Food"})
	require.NoError(t, err)
	_, err = l.SetBudget(ctx, "Food", "100")
	require.NoError(t, err)
	_, err = l.SetBudget(ctx, "Transport", "100")
	require.NoError(t, err)

	now := march
	job := NewBudgetAlertJob(l, func() time.Time { return now }, nil)

	alerts, err := job.Check(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Food", alerts[0].Category)

	alerts, err = job.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts, "already alerted this month")
}

func TestReportArchiveJob(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, err := l.AddTransaction(ctx, core.Draft{Description: "Pay", Amount: "1000", Kind: core.Income, Category: "Salary"})
	require.NoError(t, err)

	job := NewReportArchiveJob(l, t.TempDir(), func() time.Time { return march }, nil)
	paths, err := job.Archive(ctx)
	require.NoError(t, err)
	assert.Len(t, paths, 3, "html, xls and the monthly flow chart")
	for _, p := range paths {
		assert.FileExists(t, p)
		assert.Contains(t, p, "2025-03-15")
	}
}
