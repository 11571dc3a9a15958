package backend

import (
	"context"

	"carteira/internal/services"
	"carteira/internal/storage"
	"carteira/internal/storage/surrealdb"
)

// CleanupFunc releases everything a Result holds.
type CleanupFunc func() error

// Result is a ready store plus the optional collaborators that come with
// it. Outbox is set only for backends that track sync status; Publisher
// only when AMQP is configured and reachable.
type Result struct {
	Store     storage.Store
	Outbox    storage.Outbox
	Publisher services.Publisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type Type

	// Memory: transactions and state are written as JSON files under
	// DataDir. Empty keeps everything in memory.
	DataDir string

	SQLiteDBPath string

	SurrealDB surrealdb.Config

	// AMQP is optional for every backend.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type Type string

const (
	MemoryBackend    Type = "memory"
	SQLiteBackend    Type = "sqlite"
	SurrealDBBackend Type = "surrealdb"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, SurrealDBBackend:
		return true
	default:
		return false
	}
}
