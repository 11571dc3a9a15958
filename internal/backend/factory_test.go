package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/config"
	"carteira/internal/core"
	"carteira/internal/storage/surrealdb"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	require.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:        "surrealdb",
		SurrealDBURL:       "ws://db:8000/rpc",
		SurrealDBNamespace: "ns",
		SurrealDBDatabase:  "db",
	})
	require.NoError(t, err)
	assert.Equal(t, SurrealDBBackend, cfg.Type)
	assert.Equal(t, "ws://db:8000/rpc", cfg.SurrealDB.Address)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"surrealdb without namespace", Config{Type: SurrealDBBackend, SurrealDB: surrealdb.Config{Address: "ws://x"}}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://x", AMQPExchange: "e"}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFactory_Memory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	res, err := NewFactory(nil).Create(ctx, Config{Type: MemoryBackend, DataDir: dir})
	require.NoError(t, err)
	assert.Nil(t, res.Outbox)
	assert.Nil(t, res.Publisher)

	_, err = res.Store.Create(ctx, core.Transaction{
		Description: "Salary", Amount: core.Cents(100), Kind: core.Income,
		PaymentMethod: core.NotApplicable, Category: "Salary",
	})
	require.NoError(t, err)
	require.NoError(t, res.Cleanup())
	assert.FileExists(t, filepath.Join(dir, "transactions.json"))
}

func TestFactory_SQLite(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).Create(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "carteira.db"),
	})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.NotNil(t, res.Outbox)
	require.NoError(t, res.Store.Ping(ctx))
}
