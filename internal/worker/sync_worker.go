package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"carteira/internal/amqp"
	applog "carteira/internal/log"
	"carteira/internal/sheets"
	"carteira/internal/storage"
)

// SyncWorker mirrors transaction events into a sheet. When the source is
// the SQLite store it also acknowledges outbox rows and sweeps the ones
// whose events were lost.
type SyncWorker struct {
	mirror    sheets.Mirror
	store     storage.TransactionStore
	outbox    storage.Outbox
	batchSize int
	logger    *applog.Logger

	synced atomic.Int64
	failed atomic.Int64
}

type Stats struct {
	Synced int64 `json:"synced"`
	Failed int64 `json:"failed"`
}

// NewSyncWorker builds a worker. outbox may be nil, in which case the
// periodic sweep is a no-op.
func NewSyncWorker(mirror sheets.Mirror, store storage.TransactionStore, outbox storage.Outbox, batchSize int, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		mirror:    mirror,
		store:     store,
		outbox:    outbox,
		batchSize: batchSize,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent applies one event to the mirror. An error makes the consumer
// requeue the delivery.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	w.logger.DebugContext(ctx, "Processing transaction event",
		"type", ev.Type,
		applog.FieldTransactionID, ev.ID,
		"version", ev.Version)

	var err error
	switch ev.Type {
	case amqp.EventCreated, amqp.EventUpdated:
		var ref string
		ref, err = w.mirror.Upsert(ctx, *ev.Transaction)
		if err == nil {
			w.ack(ctx, ev.ID, ev.Version)
			w.logger.InfoContext(ctx, "Mirrored transaction", applog.FieldTransactionID, ev.ID, "ref", ref)
		}
	case amqp.EventDeleted:
		err = w.mirror.Delete(ctx, ev.ID)
		if err == nil {
			w.ack(ctx, ev.ID, ev.Version)
		}
	case amqp.EventCleared:
		err = w.mirror.Clear(ctx)
	default:
		err = fmt.Errorf("unknown event type %q", ev.Type)
	}

	if err != nil {
		w.failed.Add(1)
		if w.outbox != nil && ev.ID != 0 {
			if markErr := w.outbox.MarkSyncError(ctx, ev.ID, err); markErr != nil {
				w.logger.ErrorContext(ctx, "Failed to mark sync error", applog.FieldTransactionID, ev.ID, applog.FieldError, markErr)
			}
		}
		return fmt.Errorf("mirror %s event: %w", ev.Type, err)
	}
	w.synced.Add(1)
	return nil
}

func (w *SyncWorker) ack(ctx context.Context, id, version int64) {
	if w.outbox == nil || version == 0 {
		return
	}
	if err := w.outbox.MarkSynced(ctx, id, version); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced", applog.FieldTransactionID, id, applog.FieldError, err)
	}
}

// ProcessPending mirrors up to one batch of unacknowledged outbox rows and
// returns how many were synced.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep to catch up after downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", applog.FieldCount, n)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	if w.outbox == nil {
		return 0, nil
	}
	pending, err := w.outbox.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending transactions", applog.FieldCount, len(pending))

	synced := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.mirrorPending(ctx, p); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			w.failed.Add(1)
			w.logger.ErrorContext(ctx, "Failed to sync transaction", applog.FieldTransactionID, p.ID, applog.FieldError, err)
			if markErr := w.outbox.MarkSyncError(ctx, p.ID, err); markErr != nil {
				w.logger.ErrorContext(ctx, "Failed to mark sync error", applog.FieldTransactionID, p.ID, applog.FieldError, markErr)
			}
			continue
		}
		w.ack(ctx, p.ID, p.Version)
		w.synced.Add(1)
		synced++
	}
	return synced, nil
}

// mirrorPending replays one outbox row: tombstones become mirror deletes,
// live rows are upserted.
func (w *SyncWorker) mirrorPending(ctx context.Context, p storage.PendingSync) error {
	if p.Deleted {
		return w.mirror.Delete(ctx, p.ID)
	}
	t, err := w.store.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	_, err = w.mirror.Upsert(ctx, t)
	return err
}

func (w *SyncWorker) Stats() Stats {
	return Stats{Synced: w.synced.Load(), Failed: w.failed.Load()}
}
