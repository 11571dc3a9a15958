package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/core"
	"carteira/internal/metrics"
)

var now = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

func spend(cents int64, category string, at time.Time) core.Transaction {
	return core.Transaction{Description: category, Amount: core.Cents(cents), Kind: core.Expense, PaymentMethod: core.Debit, Category: category, Timestamp: at}
}

func earn(cents int64, at time.Time) core.Transaction {
	return core.Transaction{Description: "pay", Amount: core.Cents(cents), Kind: core.Income, PaymentMethod: core.NotApplicable, Category: "Salary", Timestamp: at}
}

func TestLevelFor(t *testing.T) {
	cases := map[float64]Level{
		0:     LevelOK,
		70:    LevelOK,
		70.01: LevelWarn,
		90:    LevelWarn,
		90.5:  LevelDanger,
		150:   LevelDanger,
	}
	for pct, want := range cases {
		assert.Equal(t, want, LevelFor(pct), "percent %v", pct)
	}
}

func TestBudgets(t *testing.T) {
	snap := metrics.Compute([]core.Transaction{
		earn(500000, now),
		spend(8000, "Food", now),
		spend(12000, "Leisure", now),
		spend(99999, "Food", now.AddDate(0, -1, 0)),
	}, now)

	progress := Budgets([]core.Budget{
		{Category: "Food", Limit: core.Cents(10000)},
		{Category: "Leisure", Limit: core.Cents(10000)},
		{Category: "Health", Limit: core.Cents(10000)},
	}, snap, func(string) string { return "red" })

	require.Len(t, progress, 3)
	assert.Equal(t, int64(8000), progress[0].Spent.Cents, "only current month counts")
	assert.Equal(t, LevelWarn, progress[0].Level)
	assert.False(t, progress[0].Exceeded)
	assert.Equal(t, LevelDanger, progress[1].Level)
	assert.True(t, progress[1].Exceeded)
	assert.Equal(t, LevelOK, progress[2].Level)
	assert.Equal(t, "red", progress[2].Color)

	exceeded := Exceeded(progress)
	require.Len(t, exceeded, 1)
	assert.Equal(t, "Leisure", exceeded[0].Category)
}

func TestAnalyze(t *testing.T) {
	snap := metrics.Compute([]core.Transaction{
		earn(300000, now.AddDate(0, -2, 0)),
		spend(100000, "Rent", now.AddDate(0, -2, 0)),
		earn(300000, now.AddDate(0, -1, 0)),
		spend(200000, "Rent", now.AddDate(0, -1, 0)),
		earn(300000, now),
		spend(50000, "Food", now),
	}, now)

	s := Analyze(snap, now)
	assert.Equal(t, 3, s.Months)
	assert.InDelta(t, 3000, s.AvgMonthlyIncome, 1e-9)
	assert.InDelta(t, 1166.6667, s.AvgMonthlyExpense, 1e-3)
	assert.InDelta(t, 763.7626, s.ExpenseStdDev, 1e-3)
	assert.InDelta(t, 61.1111, s.SavingsRate, 1e-3)
	assert.InDelta(t, 50, s.DailyAverage, 1e-9)
	assert.InDelta(t, 1500, s.ProjectedMonthExpense, 1e-9)
	assert.Equal(t, 20, s.DaysRemaining)
	assert.InDelta(t, 0, s.BurnRateChange, 1e-9)
}

func TestAnalyze_Empty(t *testing.T) {
	s := Analyze(metrics.Compute(nil, now), now)
	assert.Zero(t, s.Months)
	assert.Zero(t, s.ExpenseStdDev)
}
