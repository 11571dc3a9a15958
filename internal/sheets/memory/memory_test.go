package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"carteira/internal/core"
)

func sample(id int64, desc string) core.Transaction {
	return core.Transaction{
		ID:            id,
		Description:   desc,
		Amount:        core.Cents(123),
		Kind:          core.Expense,
		PaymentMethod: core.Debit,
		Category:      "Food",
		Timestamp:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMirrorUpsertDeleteClear(t *testing.T) {
	ctx := context.Background()
	m := New()

	ref, err := m.Upsert(ctx, sample(1, "a"))
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected upsert: ref=%q err=%v", ref, err)
	}
	m.Upsert(ctx, sample(2, "b"))
	m.Upsert(ctx, sample(1, "a2"))

	rows := m.Rows()
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[1][2] != "a2" || rows[2][2] != "b" {
		t.Errorf("upsert should keep position and replace content: %v", rows)
	}
	if rows[1][6] != "-1.23" {
		t.Errorf("amount cell = %v, want signed -1.23", rows[1][6])
	}

	if err := m.Delete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, 1); err != nil {
		t.Errorf("second delete should be a no-op: %v", err)
	}
	if rows := m.Rows(); len(rows) != 2 || rows[1][0] != int64(2) {
		t.Errorf("unexpected rows after delete: %v", rows)
	}

	m.Clear(ctx)
	if rows := m.Rows(); len(rows) != 1 {
		t.Errorf("clear left %d rows", len(rows)-1)
	}
}

func TestMirrorRejectsInvalid(t *testing.T) {
	bad := sample(3, "")
	if _, err := New().Upsert(context.Background(), bad); !errors.Is(err, core.ErrEmptyDescription) {
		t.Errorf("expected ErrEmptyDescription, got %v", err)
	}
}
