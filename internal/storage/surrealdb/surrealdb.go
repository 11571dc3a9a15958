// Package surrealdb stores transactions and state documents in a remote
// SurrealDB instance.
package surrealdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"carteira/internal/core"
	"carteira/internal/storage"
)

const (
	transactionTable = "transaction"
	stateTable       = "app_state"
)

type Config struct {
	Address   string
	Username  string
	Password  string
	Namespace string
	Database  string
}

// record is the stored form of a transaction, amounts in cents.
type record struct {
	TxID          int64  `json:"tx_id"`
	Description   string `json:"description"`
	AmountCents   int64  `json:"amount_cents"`
	Kind          string `json:"kind"`
	PaymentMethod string `json:"payment_method"`
	Category      string `json:"category"`
	OccurredAt    string `json:"occurred_at"`
}

type stateDoc struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Store struct {
	db     *surrealdb.DB
	ids    *storage.IDSequence
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open connects, signs in and defines the tables the store uses.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]any{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("select namespace/database: %w", err)
	}

	s, err := newStore(ctx, db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info("SurrealDB storage initialized",
		"address", cfg.Address,
		"namespace", cfg.Namespace,
		"database", cfg.Database)
	return s, nil
}

func newStore(ctx context.Context, db *surrealdb.DB, logger *slog.Logger) (*Store, error) {
	// Querying an undefined table is an error on SurrealDB v3.
	for _, table := range []string{transactionTable, stateTable} {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("define table %s: %w", table, err)
		}
	}

	s := &Store{db: db, ids: storage.NewIDSequence(), logger: logger}

	res, err := surrealdb.Query[[]record](ctx, db,
		"SELECT * FROM type::table($tb) ORDER BY tx_id DESC LIMIT 1",
		map[string]any{"tb": transactionTable})
	if err != nil {
		return nil, fmt.Errorf("read last id: %w", err)
	}
	if res != nil && len(*res) > 0 && len((*res)[0].Result) > 0 {
		s.ids.Seed((*res)[0].Result[0].TxID)
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := surrealdb.Query[any](ctx, s.db, "RETURN true", nil)
	return err
}

func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

func recordID(id int64) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(transactionTable, strconv.FormatInt(id, 10))
}

func toRecord(t core.Transaction) record {
	return record{
		TxID:          t.ID,
		Description:   t.Description,
		AmountCents:   t.Amount.Cents,
		Kind:          string(t.Kind),
		PaymentMethod: string(t.PaymentMethod),
		Category:      t.Category,
		OccurredAt:    t.Timestamp.Format(time.RFC3339Nano),
	}
}

func (r record) transaction() (core.Transaction, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.OccurredAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse timestamp of %d: %w", r.TxID, err)
	}
	return core.Transaction{
		ID:            r.TxID,
		Description:   r.Description,
		Amount:        core.Cents(r.AmountCents),
		Kind:          core.Kind(r.Kind),
		PaymentMethod: core.PaymentMethod(r.PaymentMethod),
		Category:      r.Category,
		Timestamp:     ts,
	}, nil
}

func (s *Store) List(ctx context.Context) ([]core.Transaction, error) {
	res, err := surrealdb.Query[[]record](ctx, s.db,
		"SELECT * FROM type::table($tb) ORDER BY tx_id DESC",
		map[string]any{"tb": transactionTable})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	rows := (*res)[0].Result
	out := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.transaction()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (core.Transaction, error) {
	r, err := surrealdb.Select[record](ctx, s.db, recordID(id))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	if r == nil || r.TxID == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	return r.transaction()
}

func (s *Store) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = s.ids.Next()
	if err := s.upsert(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.logger.DebugContext(ctx, "Transaction saved to SurrealDB", "id", t.ID, "amount_cents", t.Amount.Cents)
	return t, nil
}

func (s *Store) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if _, err := s.Get(ctx, t.ID); err != nil {
		return core.Transaction{}, err
	}
	if err := s.upsert(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	return t, nil
}

func (s *Store) upsert(ctx context.Context, t core.Transaction) error {
	_, err := surrealdb.Query[[]record](ctx, s.db,
		"UPSERT $rid CONTENT $doc",
		map[string]any{"rid": recordID(t.ID), "doc": toRecord(t)})
	return err
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if _, err := surrealdb.Delete[record](ctx, s.db, recordID(id)); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) (int, error) {
	res, err := surrealdb.Query[[]record](ctx, s.db,
		"DELETE type::table($tb) RETURN BEFORE",
		map[string]any{"tb": transactionTable})
	if err != nil {
		return 0, fmt.Errorf("delete all transactions: %w", err)
	}
	if res == nil || len(*res) == 0 {
		return 0, nil
	}
	return len((*res)[0].Result), nil
}

func (s *Store) LoadState(ctx context.Context) (core.State, error) {
	res, err := surrealdb.Query[[]stateDoc](ctx, s.db,
		"SELECT key, value FROM type::table($tb)",
		map[string]any{"tb": stateTable})
	if err != nil {
		return core.State{}, fmt.Errorf("load state: %w", err)
	}
	docs := make(map[string][]byte)
	if res != nil && len(*res) > 0 {
		for _, d := range (*res)[0].Result {
			docs[d.Key] = []byte(d.Value)
		}
	}
	return storage.DecodeState(docs)
}

func (s *Store) SaveBudgets(ctx context.Context, budgets []core.Budget) error {
	return s.saveDoc(ctx, storage.KeyBudgets, budgets)
}

func (s *Store) SaveCategories(ctx context.Context, categories []string) error {
	return s.saveDoc(ctx, storage.KeyCategories, categories)
}

func (s *Store) SaveGoals(ctx context.Context, goals []core.Goal) error {
	return s.saveDoc(ctx, storage.KeyGoals, goals)
}

func (s *Store) SaveMainGoal(ctx context.Context, goal *core.MainGoal) error {
	if goal == nil {
		_, err := surrealdb.Delete[stateDoc](ctx, s.db, surrealmodels.NewRecordID(stateTable, storage.KeyMainGoal))
		if err != nil {
			return fmt.Errorf("clear %s: %w", storage.KeyMainGoal, err)
		}
		return nil
	}
	return s.saveDoc(ctx, storage.KeyMainGoal, goal)
}

// saveDoc stores v as a JSON string so Money keeps its decimal form.
func (s *Store) saveDoc(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = surrealdb.Query[[]stateDoc](ctx, s.db,
		"UPSERT type::record($tb, $id) CONTENT $doc",
		map[string]any{"tb": stateTable, "id": key, "doc": stateDoc{Key: key, Value: string(raw)}})
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
