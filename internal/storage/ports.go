package storage

import (
	"context"
	"errors"

	"carteira/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Ports implemented by every backend.
type (
	// TransactionStore holds the canonical transaction list. List returns
	// the newest transaction first.
	TransactionStore interface {
		List(ctx context.Context) ([]core.Transaction, error)
		Get(ctx context.Context, id int64) (core.Transaction, error)
		Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
		Update(ctx context.Context, t core.Transaction) (core.Transaction, error)
		Delete(ctx context.Context, id int64) error
		DeleteAll(ctx context.Context) (int, error)
	}

	// StateStore persists the user data kept next to the transactions,
	// one document per key.
	StateStore interface {
		LoadState(ctx context.Context) (core.State, error)
		SaveBudgets(ctx context.Context, budgets []core.Budget) error
		SaveCategories(ctx context.Context, categories []string) error
		SaveGoals(ctx context.Context, goals []core.Goal) error
		SaveMainGoal(ctx context.Context, goal *core.MainGoal) error
	}

	Store interface {
		TransactionStore
		StateStore
		Ping(ctx context.Context) error
		Close() error
	}

	// Outbox tracks transactions whose change event has not been mirrored
	// downstream yet.
	Outbox interface {
		PendingSync(ctx context.Context, limit int) ([]PendingSync, error)
		MarkSynced(ctx context.Context, id, version int64) error
		MarkSyncError(ctx context.Context, id int64, cause error) error
	}
)
