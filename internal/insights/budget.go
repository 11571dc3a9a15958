// Package insights derives budget progress and spending statistics from a
// metrics snapshot.
package insights

import (
	"carteira/internal/core"
	"carteira/internal/metrics"
)

// Level grades how much of a budget has been used.
type Level string

const (
	LevelOK     Level = "ok"
	LevelWarn   Level = "warn"
	LevelDanger Level = "danger"
)

const (
	warnPercent   = 70
	dangerPercent = 90
)

// BudgetProgress is current-month spending against one budget.
type BudgetProgress struct {
	Category string     `json:"category"`
	Limit    core.Money `json:"limit"`
	Spent    core.Money `json:"spent"`
	Percent  float64    `json:"percent"`
	Level    Level      `json:"level"`
	Exceeded bool       `json:"exceeded"`
	Color    string     `json:"color"`
}

// Budgets grades every budget against the snapshot's current-month expense
// breakdown, in the order budgets were configured.
func Budgets(budgets []core.Budget, snap metrics.Snapshot, colorFor func(string) string) []BudgetProgress {
	out := make([]BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		spent, _ := snap.ExpenseByCategory.Get(b.Category)
		p := BudgetProgress{
			Category: b.Category,
			Limit:    b.Limit,
			Spent:    spent,
		}
		if b.Limit.Cents > 0 {
			p.Percent = float64(spent.Cents) / float64(b.Limit.Cents) * 100
		}
		p.Level = LevelFor(p.Percent)
		p.Exceeded = p.Percent >= 100
		if colorFor != nil {
			p.Color = colorFor(b.Category)
		}
		out = append(out, p)
	}
	return out
}

// LevelFor maps a usage percentage to its level.
func LevelFor(percent float64) Level {
	switch {
	case percent > dangerPercent:
		return LevelDanger
	case percent > warnPercent:
		return LevelWarn
	default:
		return LevelOK
	}
}

// Exceeded filters the budgets that reached their limit.
func Exceeded(progress []BudgetProgress) []BudgetProgress {
	var out []BudgetProgress
	for _, p := range progress {
		if p.Exceeded {
			out = append(out, p)
		}
	}
	return out
}
