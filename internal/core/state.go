package core

import (
	"strings"
)

const (
	Savings    GoalType = "savings"
	Investment GoalType = "investment"
)

// Default categories offered before any custom ones.
var (
	DefaultExpenseCategories = []string{"Food", "Transport", "Housing", "Health", "Education", "Leisure", "Shopping", "Electronics", "Other"}
	DefaultIncomeCategories  = []string{"Salary", "Freelance", "Investments", "Other"}
)

type (
	GoalType string

	Budget struct {
		Category string `json:"category"`
		Limit    Money  `json:"limit"`
	}

	Goal struct {
		ID     string   `json:"id"`
		Name   string   `json:"name"`
		Target Money    `json:"target"`
		Saved  Money    `json:"saved"`
		Type   GoalType `json:"type"`
	}

	MainGoal struct {
		Name   string `json:"name"`
		Target Money  `json:"target"`
		Saved  Money  `json:"saved"`
	}

	// State is the user data kept next to the transaction list.
	State struct {
		Budgets    []Budget  `json:"budgets"`
		Categories []string  `json:"categories"`
		Goals      []Goal    `json:"goals"`
		MainGoal   *MainGoal `json:"mainGoal,omitempty"`
	}
)

func (t GoalType) IsValid() bool {
	return t == Savings || t == Investment
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	return b.Limit.Validate()
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyGoalName
	}
	if err := g.Target.Validate(); err != nil {
		return err
	}
	if g.Saved.IsNegative() {
		return ErrInvalidAmount
	}
	if !g.Type.IsValid() {
		return ErrInvalidGoalType
	}
	return nil
}

// Progress returns saved/target as a percentage capped at 100.
func (g Goal) Progress() float64 {
	return progress(g.Saved, g.Target)
}

func (m MainGoal) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyGoalName
	}
	return m.Target.Validate()
}

// WithBalance returns the goal with Saved mirrored from the account balance,
// floored at zero.
func (m MainGoal) WithBalance(balance Money) MainGoal {
	if balance.IsNegative() {
		balance = Money{}
	}
	m.Saved = balance
	return m
}

func (m MainGoal) Progress() float64 {
	return progress(m.Saved, m.Target)
}

func progress(saved, target Money) float64 {
	if target.Cents <= 0 {
		return 0
	}
	p := float64(saved.Cents) / float64(target.Cents) * 100
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// BudgetFor returns the limit configured for category.
func (s State) BudgetFor(category string) (Money, bool) {
	for _, b := range s.Budgets {
		if b.Category == category {
			return b.Limit, true
		}
	}
	return Money{}, false
}

// AllCategories returns the defaults followed by custom categories, deduped
// in first-seen order.
func (s State) AllCategories() []string {
	all := make([]string, 0, len(DefaultExpenseCategories)+len(DefaultIncomeCategories)+len(s.Categories))
	all = append(all, DefaultExpenseCategories...)
	all = append(all, DefaultIncomeCategories...)
	all = append(all, s.Categories...)
	return DedupeCategories(all)
}

// DedupeCategories trims names and drops blanks and repeats, keeping order.
func DedupeCategories(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
