package insights

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"carteira/internal/metrics"
)

// Stats summarizes the monthly flow series.
type Stats struct {
	Months                int     `json:"months"`
	AvgMonthlyIncome      float64 `json:"avgMonthlyIncome"`
	AvgMonthlyExpense     float64 `json:"avgMonthlyExpense"`
	ExpenseStdDev         float64 `json:"expenseStdDev"`
	SavingsRate           float64 `json:"savingsRate"`
	DailyAverage          float64 `json:"dailyAverage"`
	ProjectedMonthExpense float64 `json:"projectedMonthExpense"`
	DaysRemaining         int     `json:"daysRemaining"`
	// BurnRateChange is the projected month expense against the average of
	// previous months, in percent.
	BurnRateChange float64 `json:"burnRateChange"`
}

// Analyze computes Stats from snap as of now.
func Analyze(snap metrics.Snapshot, now time.Time) Stats {
	keys := snap.MonthKeys()
	var s Stats
	s.Months = len(keys)
	if len(keys) == 0 {
		return s
	}

	incomes := make([]float64, len(keys))
	expenses := make([]float64, len(keys))
	var previous []float64
	for i, k := range keys {
		f := snap.MonthlyFlow[k]
		incomes[i] = f.Income.Float()
		expenses[i] = f.Expense.Float()
		if k < snap.Month {
			previous = append(previous, expenses[i])
		}
	}

	s.AvgMonthlyIncome = mean(incomes)
	s.AvgMonthlyExpense = mean(expenses)
	s.ExpenseStdDev = stdDev(expenses)
	if total := sum(incomes); total > 0 {
		s.SavingsRate = (total - sum(expenses)) / total * 100
	}

	spent := snap.MonthlyFlow[snap.Month].Expense
	day := now.Day()
	days := daysIn(now)
	s.DailyAverage = spent.Float() / float64(day)
	s.ProjectedMonthExpense = s.DailyAverage * float64(days)
	s.DaysRemaining = days - day
	if hist := mean(previous); hist > 0 {
		s.BurnRateChange = (s.ProjectedMonthExpense - hist) / hist * 100
	}
	return s
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// stdDev is the sample standard deviation; zero below two samples.
func stdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.StdDev(x, nil)
}

func sum(x []float64) float64 {
	var total float64
	for _, v := range x {
		total += v
	}
	return total
}
