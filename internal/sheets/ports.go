package sheets

import (
	"context"

	"carteira/internal/core"
)

// Mirror is a downstream copy of the transaction list, one row per
// transaction keyed by ID. All operations are idempotent so events can be
// replayed.
type Mirror interface {
	Upsert(ctx context.Context, t core.Transaction) (rowRef string, err error)
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
}

// Header is the first row of the mirrored sheet.
var Header = []any{"ID", "Date", "Description", "Category", "Kind", "Payment Method", "Amount"}

// Row renders a transaction in Header order. The amount is signed so the
// column sums to the net flow.
func Row(t core.Transaction) []any {
	return []any{
		t.ID,
		t.Timestamp.Format("2006-01-02 15:04"),
		t.Description,
		t.Category,
		string(t.Kind),
		string(t.PaymentMethod),
		t.Signed().String(),
	}
}
