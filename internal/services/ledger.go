package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"carteira/internal/amqp"
	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/insights"
	applog "carteira/internal/log"
	"carteira/internal/metrics"
	"carteira/internal/palette"
	"carteira/internal/storage"
)

const (
	publishTimeout   = 15 * time.Second
	publishQueueSize = 256
)

// Ledger is the single entry point for reads and mutations of the
// transaction list and the user state. Mutations are serialized by mu and
// reads of the store happen under the same lock.
type Ledger struct {
	mu        sync.Mutex
	store     storage.Store
	publisher Publisher
	gate      *ConfirmationGate
	logger    *applog.Logger
	now       func() time.Time
	newID     func() string

	revision  atomic.Uint64
	snapshots *cache.LRUCache[metrics.Snapshot]
	group     singleflight.Group
	events    *broadcaster

	// outbound keeps events in commit order; one goroutine drains it.
	outbound chan *amqp.TransactionEvent
	closed   bool
	drained  sync.WaitGroup
}

type Options struct {
	Publisher Publisher
	Gate      *ConfirmationGate
	Logger    *applog.Logger
	Now       func() time.Time
	NewID     func() string
	Snapshots *cache.LRUCache[metrics.Snapshot]
}

// Overview is a consistent view of everything a report needs.
type Overview struct {
	Snapshot     metrics.Snapshot
	Transactions []core.Transaction
	State        core.State
	GeneratedAt  time.Time
}

// versioned is implemented by stores that track an outbox version.
type versioned interface {
	SyncStatus(ctx context.Context, id int64) (string, int64, error)
}

func NewLedger(store storage.Store, opts Options) *Ledger {
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.Gate == nil {
		opts.Gate = NewConfirmationGate()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newGoalID
	}
	if opts.Snapshots == nil {
		opts.Snapshots = cache.NewLRUCache[metrics.Snapshot](16, 10*time.Minute)
	}
	l := &Ledger{
		store:     store,
		publisher: opts.Publisher,
		gate:      opts.Gate,
		logger:    opts.Logger.WithComponent(applog.ComponentLedger),
		now:       opts.Now,
		newID:     opts.NewID,
		snapshots: opts.Snapshots,
		events:    newBroadcaster(),
	}
	if l.publisher != nil {
		l.outbound = make(chan *amqp.TransactionEvent, publishQueueSize)
		l.drained.Add(1)
		go l.drain()
	}
	return l
}

// Revision increases by one with every committed mutation.
func (l *Ledger) Revision() uint64 {
	return l.revision.Load()
}

// Subscribe returns a channel of change notifications and a function that
// cancels the subscription.
func (l *Ledger) Subscribe() (<-chan Event, func()) {
	return l.events.subscribe()
}

func (l *Ledger) Subscribers() int {
	return l.events.count()
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}

// Close flushes queued event publishes and ends all subscriptions. The
// store is owned by the caller.
func (l *Ledger) Close() error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		if l.outbound != nil {
			close(l.outbound)
		}
	}
	l.mu.Unlock()
	l.drained.Wait()
	l.events.close()
	return nil
}

// committed must be called with mu held.
func (l *Ledger) committed(kind EventKind) {
	rev := l.revision.Add(1)
	l.events.send(Event{Kind: kind, Revision: rev})
}

// publish queues ev behind every earlier event. It must be called with mu
// held so queue order matches commit order.
func (l *Ledger) publish(ev *amqp.TransactionEvent) {
	if l.outbound == nil || l.closed {
		return
	}
	l.outbound <- ev
}

func (l *Ledger) drain() {
	defer l.drained.Done()
	for ev := range l.outbound {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := l.publisher.Publish(ctx, ev); err != nil {
			l.logger.Error("Failed to publish transaction event",
				"type", ev.Type,
				applog.FieldTransactionID, ev.ID,
				applog.FieldError, err)
		}
		cancel()
	}
}

func (l *Ledger) version(ctx context.Context, id int64) int64 {
	v, ok := l.store.(versioned)
	if !ok {
		return 0
	}
	_, version, err := v.SyncStatus(ctx, id)
	if err != nil {
		l.logger.WarnContext(ctx, "Failed to read outbox version", applog.FieldTransactionID, id, applog.FieldError, err)
		return 0
	}
	return version
}

func (l *Ledger) logTransaction(ctx context.Context, op string, t core.Transaction) {
	l.logger.InfoContext(ctx, "Transaction "+op,
		applog.FieldTransactionID, t.ID,
		applog.FieldKind, t.Kind,
		applog.FieldPaymentMethod, t.PaymentMethod,
		applog.FieldCategory, t.Category,
		applog.FieldAmountCents, t.Amount.Cents)
}

// Transactions returns one page of the newest-first list.
func (l *Ledger) Transactions(ctx context.Context, filter Filter) (Page, error) {
	f, err := filter.normalize()
	if err != nil {
		return Page{}, err
	}
	l.mu.Lock()
	txs, err := l.store.List(ctx)
	l.mu.Unlock()
	if err != nil {
		return Page{}, fmt.Errorf("list transactions: %w", err)
	}
	return f.apply(txs), nil
}

func (l *Ledger) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Get(ctx, id)
}

// AddTransaction validates the draft, checks the account balance and
// stores the transaction.
func (l *Ledger) AddTransaction(ctx context.Context, d core.Draft) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := d.Build(l.now())
	if err != nil {
		return core.Transaction{}, err
	}
	return l.createLocked(ctx, t)
}

func (l *Ledger) createLocked(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	txs, err := l.store.List(ctx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("list transactions: %w", err)
	}
	if err := core.CheckBalance(txs, nil, t); err != nil {
		return core.Transaction{}, err
	}

	created, err := l.store.Create(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	l.committed(EventTransactions)
	l.logTransaction(ctx, "created", created)
	l.publish(amqp.NewCreatedEvent(created, l.version(ctx, created.ID)))
	return created, nil
}

// UpdateTransaction replaces the transaction with id. The balance guard
// reverts the prior version before applying the new one.
func (l *Ledger) UpdateTransaction(ctx context.Context, id int64, d core.Draft) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prior, err := l.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	t, err := d.Build(prior.Timestamp)
	if err != nil {
		return core.Transaction{}, err
	}
	t.ID = id

	txs, err := l.store.List(ctx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("list transactions: %w", err)
	}
	if err := core.CheckBalance(txs, &prior, t); err != nil {
		return core.Transaction{}, err
	}

	updated, err := l.store.Update(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	l.committed(EventTransactions)
	l.logTransaction(ctx, "updated", updated)
	l.publish(amqp.NewUpdatedEvent(updated, l.version(ctx, updated.ID)))
	return updated, nil
}

// DeleteTransaction removes one transaction after confirmation. Deletions
// are not balance-guarded.
func (l *Ledger) DeleteTransaction(ctx context.Context, id int64, c Confirmer) error {
	l.mu.Lock()
	t, err := l.store.Get(ctx, id)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	if err := l.gate.require(ctx, fmt.Sprintf("Delete %q?", t.Description), c); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.Delete(ctx, id); err != nil {
		return err
	}
	l.committed(EventTransactions)
	l.logTransaction(ctx, "deleted", t)
	l.publish(amqp.NewDeletedEvent(id, l.version(ctx, id)))
	return nil
}

// ClearAll removes every transaction after confirmation and returns how
// many were removed.
func (l *Ledger) ClearAll(ctx context.Context, c Confirmer) (int, error) {
	if err := l.gate.require(ctx, "Delete all transactions?", c); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	n, err := l.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear transactions: %w", err)
	}
	l.committed(EventTransactions)
	l.logger.InfoContext(ctx, "Transactions cleared", applog.FieldCount, n)
	l.publish(amqp.NewClearedEvent(n))
	return n, nil
}

// PayBill records a debit payment of the credit card bill. Amounts above
// the account balance are rejected.
func (l *Ledger) PayBill(ctx context.Context, amount string) (core.Transaction, error) {
	m, err := core.ParseAmount(amount)
	if err != nil {
		return core.Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	txs, err := l.store.List(ctx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("list transactions: %w", err)
	}
	if err := core.CheckFunds(txs, m); err != nil {
		return core.Transaction{}, err
	}
	return l.createLocked(ctx, core.NewBillPayment(m, l.now()))
}

// Snapshot returns the metrics for the current list as of now. Results are
// cached per revision and month; concurrent identical requests share one
// computation.
func (l *Ledger) Snapshot(ctx context.Context, now time.Time) (metrics.Snapshot, error) {
	key := fmt.Sprintf("%d:%s:%s", l.Revision(), core.MonthKey(now), now.Location())
	if s, ok := l.snapshots.Get(key); ok {
		return s, nil
	}

	// The flight is shared, so one caller's cancellation must not fail the rest.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := l.group.Do(key, func() (any, error) {
		l.mu.Lock()
		txs, err := l.store.List(flightCtx)
		rev := l.revision.Load()
		l.mu.Unlock()
		if err != nil {
			return metrics.Snapshot{}, fmt.Errorf("list transactions: %w", err)
		}
		s := metrics.Compute(txs, now)
		l.snapshots.Set(fmt.Sprintf("%d:%s:%s", rev, core.MonthKey(now), now.Location()), s)
		return s, nil
	})
	if err != nil {
		return metrics.Snapshot{}, err
	}
	return v.(metrics.Snapshot), nil
}

// Overview gathers the snapshot, the full list and the state under one
// lock so they agree with each other.
func (l *Ledger) Overview(ctx context.Context, now time.Time) (Overview, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	txs, err := l.store.List(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("list transactions: %w", err)
	}
	state, err := l.store.LoadState(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("load state: %w", err)
	}
	return Overview{
		Snapshot:     metrics.Compute(txs, now),
		Transactions: txs,
		State:        state,
		GeneratedAt:  now,
	}, nil
}

// Insights summarizes the monthly flow.
func (l *Ledger) Insights(ctx context.Context, now time.Time) (insights.Stats, error) {
	s, err := l.Snapshot(ctx, now)
	if err != nil {
		return insights.Stats{}, err
	}
	return insights.Analyze(s, now), nil
}

// BudgetProgress grades every budget against current-month spending.
func (l *Ledger) BudgetProgress(ctx context.Context, now time.Time) ([]insights.BudgetProgress, error) {
	s, err := l.Snapshot(ctx, now)
	if err != nil {
		return nil, err
	}
	state, err := l.state(ctx)
	if err != nil {
		return nil, err
	}
	return insights.Budgets(state.Budgets, s, palette.Colors.For), nil
}

func (l *Ledger) state(ctx context.Context) (core.State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.store.LoadState(ctx)
	if err != nil {
		return core.State{}, fmt.Errorf("load state: %w", err)
	}
	return s, nil
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
}

// IsValidation reports whether err is a rejected input rather than a
// failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount,
		core.ErrEmptyDescription,
		core.ErrDescriptionTooLong,
		core.ErrInvalidKind,
		core.ErrInvalidPaymentMethod,
		core.ErrInsufficientBalance,
		core.ErrEmptyCategory,
		core.ErrReservedCategory,
		core.ErrEmptyGoalName,
		core.ErrInvalidGoalType,
		ErrInvalidGoalOrder,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
