package charts

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/core"
	"carteira/internal/metrics"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func snapshot() metrics.Snapshot {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		{ID: 1, Description: "Salary", Amount: core.Cents(300000), Kind: core.Income, PaymentMethod: core.NotApplicable, Category: "Salary", Timestamp: now.AddDate(0, -1, 0)},
		{ID: 2, Description: "Rent", Amount: core.Cents(120000), Kind: core.Expense, PaymentMethod: core.Pix, Category: "Housing", Timestamp: now},
		{ID: 3, Description: "Dinner", Amount: core.Cents(8000), Kind: core.Expense, PaymentMethod: core.Credit, Category: "Food", Timestamp: now},
	}
	return metrics.Compute(txs, now)
}

func TestMonthlyFlow(t *testing.T) {
	png, err := MonthlyFlow(snapshot())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestCategories(t *testing.T) {
	png, err := Categories(snapshot())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestNoData(t *testing.T) {
	empty := metrics.Compute(nil, time.Now())

	_, err := MonthlyFlow(empty)
	assert.ErrorIs(t, err, ErrNoData)
	_, err = Categories(empty)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "Mar 25", monthLabel("2025-03"))
	assert.Equal(t, "garbage", monthLabel("garbage"))
}
