// Package metrics reduces a transaction list into balances, category
// breakdowns, a monthly flow series and a health classification.
//
// Compute is a pure function of its inputs; it never mutates the slice it
// is given and is safe for concurrent use.
package metrics

import (
	"sort"
	"time"

	"carteira/internal/core"
)

// NoCategory is reported as the top expense category when there is none.
const NoCategory = "N/A"

// Flow is the income and non-credit expense of one calendar month.
type Flow struct {
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
}

// Snapshot is the full set of aggregates for a list at a point in time.
type Snapshot struct {
	Month string `json:"month"`

	TotalIncome       core.Money `json:"totalIncome"`
	AccountExpenses   core.Money `json:"accountExpenses"`
	CreditCardSpend   core.Money `json:"creditCardSpend"`
	BillPaymentsTotal core.Money `json:"billPaymentsTotal"`
	TotalExpenses     core.Money `json:"totalExpenses"`
	MonthlyDebitSpend core.Money `json:"monthlyDebitSpend"`
	MonthlyPixSpend   core.Money `json:"monthlyPixSpend"`

	AccountBalance core.Money `json:"accountBalance"`
	CardDebt       core.Money `json:"cardDebt"`

	ExpenseByCategory *CategoryTotals `json:"expenseByCategory"`
	IncomeByCategory  *CategoryTotals `json:"incomeByCategory"`

	TopExpenseCategory string     `json:"topExpenseCategory"`
	TopExpenseValue    core.Money `json:"topExpenseValue"`

	MonthlyFlow map[string]Flow `json:"monthlyFlow"`

	Health      Health  `json:"health"`
	HealthRatio float64 `json:"healthRatio"`
}

// Compute reduces txs into a Snapshot. Month-scoped aggregates use the
// calendar month of now, in now's location.
func Compute(txs []core.Transaction, now time.Time) Snapshot {
	s := Snapshot{
		Month:              core.MonthKey(now),
		ExpenseByCategory:  NewCategoryTotals(),
		IncomeByCategory:   NewCategoryTotals(),
		TopExpenseCategory: NoCategory,
		MonthlyFlow:        make(map[string]Flow),
	}

	for _, t := range txs {
		current := core.SameMonth(t.Timestamp, now)

		if t.Category == core.CategoryBillPayment {
			s.BillPaymentsTotal = s.BillPaymentsTotal.Add(t.Amount)
		}

		switch t.Kind {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
			if current {
				s.IncomeByCategory.Add(t.Category, t.Amount)
			}
		case core.Expense:
			s.TotalExpenses = s.TotalExpenses.Add(t.Amount)
			if t.PaymentMethod == core.Credit {
				s.CreditCardSpend = s.CreditCardSpend.Add(t.Amount)
			} else {
				s.AccountExpenses = s.AccountExpenses.Add(t.Amount)
			}
			if !current {
				continue
			}
			switch t.PaymentMethod {
			case core.Debit:
				s.MonthlyDebitSpend = s.MonthlyDebitSpend.Add(t.Amount)
			case core.Pix:
				s.MonthlyPixSpend = s.MonthlyPixSpend.Add(t.Amount)
			}
			if t.Category != core.CategoryBillPayment {
				s.ExpenseByCategory.Add(t.Category, t.Amount)
			}
		}
	}

	s.AccountBalance = s.TotalIncome.Sub(s.AccountExpenses)
	s.CardDebt = s.CreditCardSpend.Sub(s.BillPaymentsTotal)

	if top, ok := s.ExpenseByCategory.Max(); ok {
		s.TopExpenseCategory = top.Name
		s.TopExpenseValue = top.Amount
	}

	for _, t := range Chronological(txs) {
		key := core.MonthKey(t.Timestamp.In(now.Location()))
		f := s.MonthlyFlow[key]
		switch {
		case t.Kind == core.Income:
			f.Income = f.Income.Add(t.Amount)
		case t.Kind == core.Expense && t.PaymentMethod != core.Credit:
			f.Expense = f.Expense.Add(t.Amount)
		}
		s.MonthlyFlow[key] = f
	}

	s.Health, s.HealthRatio = Classify(s.TotalIncome, s.AccountBalance)
	return s
}

// Chronological returns a copy of txs sorted oldest first. Equal timestamps
// keep their relative order.
func Chronological(txs []core.Transaction) []core.Transaction {
	sorted := append([]core.Transaction(nil), txs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// MonthKeys returns the MonthlyFlow keys in chronological order.
func (s Snapshot) MonthKeys() []string {
	keys := make([]string, 0, len(s.MonthlyFlow))
	for k := range s.MonthlyFlow {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExpensesByValue returns the current-month expense breakdown sorted by
// amount, largest first. Equal amounts keep insertion order.
func (s Snapshot) ExpensesByValue() []CategoryAmount {
	entries := s.ExpenseByCategory.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Amount.Cents > entries[j].Amount.Cents
	})
	return entries
}
