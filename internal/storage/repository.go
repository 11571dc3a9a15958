package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"carteira/internal/core"

	_ "modernc.org/sqlite"
)

// Sync states of a transaction row in the outbox.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// PendingSync is the minimal data needed to re-announce a row downstream.
// Deleted rows are tombstones whose removal has not reached the mirror.
type PendingSync struct {
	ID        int64
	Version   int64
	Deleted   bool
	UpdatedAt time.Time
}

type SQLiteRepository struct {
	db  *sql.DB
	ids *IDSequence
}

var _ Store = (*SQLiteRepository)(nil)
var _ Outbox = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db, ids: NewIDSequence()}

	var last sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(id) FROM transactions`).Scan(&last); err != nil {
		db.Close()
		return nil, fmt.Errorf("read last id: %w", err)
	}
	repo.ids.Seed(last.Int64)

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Tombstoned rows stay in the table until the mirror acknowledges them.
const selectTransaction = `SELECT id, description, amount_cents, kind, payment_method, category, occurred_at
	FROM transactions WHERE deleted_at IS NULL`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t        core.Transaction
		kind     string
		method   string
		occurred string
	)
	if err := s.Scan(&t.ID, &t.Description, &t.Amount.Cents, &kind, &method, &t.Category, &occurred); err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	t.PaymentMethod = core.PaymentMethod(method)
	ts, err := time.Parse(time.RFC3339Nano, occurred)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse timestamp of %d: %w", t.ID, err)
	}
	t.Timestamp = ts
	return t, nil
}

// List returns every transaction, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransaction+` ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, selectTransaction+` AND id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = r.ids.Next()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, description, amount_cents, kind, payment_method, category, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Description, t.Amount.Cents, string(t.Kind), string(t.PaymentMethod), t.Category,
		t.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"kind", t.Kind,
		"amount_cents", t.Amount.Cents,
		"category", t.Category)
	return t, nil
}

// Update replaces the row and queues it for another sync round.
func (r *SQLiteRepository) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET description = ?, amount_cents = ?, kind = ?, payment_method = ?, category = ?, occurred_at = ?,
		     version = version + 1, sync_status = 'pending', sync_error = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		t.Description, t.Amount.Cents, string(t.Kind), string(t.PaymentMethod), t.Category,
		t.Timestamp.Format(time.RFC3339Nano), t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, ErrNotFound)
	}
	return t, nil
}

// tombstone marks live rows deleted and queues them so the mirror drops
// them even when the delete event is lost.
const tombstone = `UPDATE transactions
	SET deleted_at = CURRENT_TIMESTAMP, version = version + 1, sync_status = 'pending',
	    sync_error = NULL, updated_at = CURRENT_TIMESTAMP
	WHERE deleted_at IS NULL`

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, tombstone+` AND id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, tombstone)
	if err != nil {
		return 0, fmt.Errorf("delete all transactions: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Transactions cleared", "count", n)
	return int(n), nil
}

func (r *SQLiteRepository) LoadState(ctx context.Context) (core.State, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM app_state`)
	if err != nil {
		return core.State{}, fmt.Errorf("load state: %w", err)
	}
	defer rows.Close()

	docs := make(map[string][]byte)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return core.State{}, fmt.Errorf("scan state: %w", err)
		}
		docs[key] = []byte(value)
	}
	if err := rows.Err(); err != nil {
		return core.State{}, fmt.Errorf("iterate state: %w", err)
	}
	return DecodeState(docs)
}

func (r *SQLiteRepository) SaveBudgets(ctx context.Context, budgets []core.Budget) error {
	return r.saveDoc(ctx, KeyBudgets, budgets)
}

func (r *SQLiteRepository) SaveCategories(ctx context.Context, categories []string) error {
	return r.saveDoc(ctx, KeyCategories, categories)
}

func (r *SQLiteRepository) SaveGoals(ctx context.Context, goals []core.Goal) error {
	return r.saveDoc(ctx, KeyGoals, goals)
}

func (r *SQLiteRepository) SaveMainGoal(ctx context.Context, goal *core.MainGoal) error {
	if goal == nil {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM app_state WHERE key = ?`, KeyMainGoal); err != nil {
			return fmt.Errorf("clear %s: %w", KeyMainGoal, err)
		}
		return nil
	}
	return r.saveDoc(ctx, KeyMainGoal, goal)
}

func (r *SQLiteRepository) saveDoc(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO app_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(raw))
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// PendingSync returns rows not yet acknowledged by the mirror, oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version, deleted_at IS NOT NULL, updated_at FROM transactions
		 WHERE sync_status IN ('pending', 'error')
		 ORDER BY updated_at ASC, id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	defer rows.Close()

	var out []PendingSync
	for rows.Next() {
		var p PendingSync
		if err := rows.Scan(&p.ID, &p.Version, &p.Deleted, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced acknowledges a row unless it changed after version was sent.
// An acknowledged tombstone is purged.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, version int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND version = ? AND deleted_at IS NOT NULL`, id, version)
	if err != nil {
		return fmt.Errorf("purge tombstone: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.DebugContext(ctx, "Tombstone purged", "id", id, "version", version)
		return nil
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'synced', sync_error = NULL, synced_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.DebugContext(ctx, "Transaction marked as synced", "id", id, "version", version)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'error', sync_error = ? WHERE id = ?`, msg, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id, "error", msg)
	return nil
}

// SyncStatus reports the outbox state of one row, tombstones included.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id int64) (status string, version int64, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT sync_status, version FROM transactions WHERE id = ?`, id).Scan(&status, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", 0, fmt.Errorf("get sync status: %w", err)
	}
	return status, version, nil
}
