package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"carteira/internal/amqp"
	"carteira/internal/core"
	applog "carteira/internal/log"
)

var ErrInvalidGoalOrder = errors.New("goal order must list every goal exactly once")

// GoalDraft is an unvalidated goal create/update request.
type GoalDraft struct {
	Name   string        `json:"name"`
	Target string        `json:"target"`
	Type   core.GoalType `json:"type"`
}

func newGoalID() string {
	return uuid.NewString()
}

func (d GoalDraft) build() (core.Goal, error) {
	target, err := core.ParseAmount(d.Target)
	if err != nil {
		return core.Goal{}, err
	}
	g := core.Goal{
		Name:   strings.TrimSpace(d.Name),
		Target: target,
		Type:   core.GoalType(strings.ToLower(strings.TrimSpace(string(d.Type)))),
	}
	if g.Type == "" {
		g.Type = core.Savings
	}
	return g, g.Validate()
}

// Budgets

func (l *Ledger) Budgets(ctx context.Context) ([]core.Budget, error) {
	s, err := l.state(ctx)
	return s.Budgets, err
}

// SetBudget creates or replaces the limit for category.
func (l *Ledger) SetBudget(ctx context.Context, category, limit string) ([]core.Budget, error) {
	m, err := core.ParseAmount(limit)
	if err != nil {
		return nil, err
	}
	b := core.Budget{Category: strings.TrimSpace(category), Limit: m}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	budgets := make([]core.Budget, 0, len(s.Budgets)+1)
	replaced := false
	for _, existing := range s.Budgets {
		if existing.Category == b.Category {
			existing = b
			replaced = true
		}
		budgets = append(budgets, existing)
	}
	if !replaced {
		budgets = append(budgets, b)
	}

	if err := l.store.SaveBudgets(ctx, budgets); err != nil {
		return nil, fmt.Errorf("save budgets: %w", err)
	}
	l.committed(EventBudgets)
	l.logger.InfoContext(ctx, "Budget set", applog.FieldCategory, b.Category, applog.FieldAmountCents, b.Limit.Cents)
	return budgets, nil
}

func (l *Ledger) RemoveBudget(ctx context.Context, category string) error {
	category = strings.TrimSpace(category)

	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	budgets := make([]core.Budget, 0, len(s.Budgets))
	for _, b := range s.Budgets {
		if b.Category != category {
			budgets = append(budgets, b)
		}
	}
	if len(budgets) == len(s.Budgets) {
		return notFound("budget", category)
	}
	if err := l.store.SaveBudgets(ctx, budgets); err != nil {
		return fmt.Errorf("save budgets: %w", err)
	}
	l.committed(EventBudgets)
	return nil
}

// Categories

// Categories returns the default categories followed by custom ones.
func (l *Ledger) Categories(ctx context.Context) ([]string, error) {
	s, err := l.state(ctx)
	if err != nil {
		return nil, err
	}
	return s.AllCategories(), nil
}

// AddCategory adds a custom category. Adding an existing name is a no-op.
func (l *Ledger) AddCategory(ctx context.Context, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.ErrEmptyCategory
	}
	if core.IsReservedCategory(name) {
		return nil, fmt.Errorf("%w: %s", core.ErrReservedCategory, name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	for _, c := range s.AllCategories() {
		if c == name {
			return s.AllCategories(), nil
		}
	}

	s.Categories = core.DedupeCategories(append(s.Categories, name))
	if err := l.store.SaveCategories(ctx, s.Categories); err != nil {
		return nil, fmt.Errorf("save categories: %w", err)
	}
	l.committed(EventCategories)
	return s.AllCategories(), nil
}

// RemoveCategory removes a custom category. Defaults cannot be removed.
func (l *Ledger) RemoveCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	kept := make([]string, 0, len(s.Categories))
	for _, c := range s.Categories {
		if c != name {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(s.Categories) {
		return notFound("category", name)
	}
	if err := l.store.SaveCategories(ctx, kept); err != nil {
		return fmt.Errorf("save categories: %w", err)
	}
	l.committed(EventCategories)
	return nil
}

// Goals

func (l *Ledger) Goals(ctx context.Context) ([]core.Goal, error) {
	s, err := l.state(ctx)
	return s.Goals, err
}

func (l *Ledger) CreateGoal(ctx context.Context, d GoalDraft) (core.Goal, error) {
	g, err := d.build()
	if err != nil {
		return core.Goal{}, err
	}
	g.ID = l.newID()

	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.store.LoadState(ctx)
	if err != nil {
		return core.Goal{}, fmt.Errorf("load state: %w", err)
	}
	if err := l.store.SaveGoals(ctx, append(s.Goals, g)); err != nil {
		return core.Goal{}, fmt.Errorf("save goals: %w", err)
	}
	l.committed(EventGoals)
	l.logger.InfoContext(ctx, "Goal created", applog.FieldGoalID, g.ID, "name", g.Name)
	return g, nil
}

// UpdateGoal changes name, target and type. The saved amount only moves
// through FundGoal.
func (l *Ledger) UpdateGoal(ctx context.Context, id string, d GoalDraft) (core.Goal, error) {
	g, err := d.build()
	if err != nil {
		return core.Goal{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.store.LoadState(ctx)
	if err != nil {
		return core.Goal{}, fmt.Errorf("load state: %w", err)
	}
	i := goalIndex(s.Goals, id)
	if i < 0 {
		return core.Goal{}, notFound("goal", id)
	}

	goals := append([]core.Goal(nil), s.Goals...)
	g.ID, g.Saved = id, goals[i].Saved
	goals[i] = g
	if err := l.store.SaveGoals(ctx, goals); err != nil {
		return core.Goal{}, fmt.Errorf("save goals: %w", err)
	}
	l.committed(EventGoals)
	return g, nil
}

// DeleteGoal removes a goal after confirmation. Contributions already
// recorded stay in the transaction list.
func (l *Ledger) DeleteGoal(ctx context.Context, id string, c Confirmer) error {
	s, err := l.state(ctx)
	if err != nil {
		return err
	}
	i := goalIndex(s.Goals, id)
	if i < 0 {
		return notFound("goal", id)
	}

	if err := l.gate.require(ctx, fmt.Sprintf("Delete goal %q?", s.Goals[i].Name), c); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	s, err = l.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if i = goalIndex(s.Goals, id); i < 0 {
		return notFound("goal", id)
	}
	goals := append(append([]core.Goal(nil), s.Goals[:i]...), s.Goals[i+1:]...)
	if err := l.store.SaveGoals(ctx, goals); err != nil {
		return fmt.Errorf("save goals: %w", err)
	}
	l.committed(EventGoals)
	l.logger.InfoContext(ctx, "Goal deleted", applog.FieldGoalID, id)
	return nil
}

// ReorderGoals rearranges goals to follow ids, which must name every goal
// exactly once.
func (l *Ledger) ReorderGoals(ctx context.Context, ids []string) ([]core.Goal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if len(ids) != len(s.Goals) {
		return nil, ErrInvalidGoalOrder
	}

	byID := make(map[string]core.Goal, len(s.Goals))
	for _, g := range s.Goals {
		byID[g.ID] = g
	}
	goals := make([]core.Goal, 0, len(ids))
	for _, id := range ids {
		g, ok := byID[id]
		if !ok {
			return nil, ErrInvalidGoalOrder
		}
		delete(byID, id)
		goals = append(goals, g)
	}

	if err := l.store.SaveGoals(ctx, goals); err != nil {
		return nil, fmt.Errorf("save goals: %w", err)
	}
	l.committed(EventGoals)
	return goals, nil
}

// FundGoal moves amount from the account into the goal by recording a
// contribution expense. Amounts above the balance are rejected.
func (l *Ledger) FundGoal(ctx context.Context, id, amount string) (core.Goal, core.Transaction, error) {
	m, err := core.ParseAmount(amount)
	if err != nil {
		return core.Goal{}, core.Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.store.LoadState(ctx)
	if err != nil {
		return core.Goal{}, core.Transaction{}, fmt.Errorf("load state: %w", err)
	}
	i := goalIndex(s.Goals, id)
	if i < 0 {
		return core.Goal{}, core.Transaction{}, notFound("goal", id)
	}
	txs, err := l.store.List(ctx)
	if err != nil {
		return core.Goal{}, core.Transaction{}, fmt.Errorf("list transactions: %w", err)
	}
	if err := core.CheckFunds(txs, m); err != nil {
		return core.Goal{}, core.Transaction{}, err
	}

	t, err := l.createLocked(ctx, core.NewGoalContribution(s.Goals[i].Name, m, l.now()))
	if err != nil {
		return core.Goal{}, core.Transaction{}, err
	}

	goals := append([]core.Goal(nil), s.Goals...)
	goals[i].Saved = goals[i].Saved.Add(m)
	if err := l.store.SaveGoals(ctx, goals); err != nil {
		if delErr := l.store.Delete(ctx, t.ID); delErr != nil {
			l.logger.ErrorContext(ctx, "Failed to roll back goal contribution", applog.FieldTransactionID, t.ID, applog.FieldError, delErr)
		} else {
			l.committed(EventTransactions)
			l.publish(amqp.NewDeletedEvent(t.ID, l.version(ctx, t.ID)))
		}
		return core.Goal{}, core.Transaction{}, fmt.Errorf("save goals: %w", err)
	}
	l.committed(EventGoals)
	l.logger.InfoContext(ctx, "Goal funded", applog.FieldGoalID, id, applog.FieldAmountCents, m.Cents)
	return goals[i], t, nil
}

func goalIndex(goals []core.Goal, id string) int {
	for i, g := range goals {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// Main goal

// MainGoal returns the main goal with its saved amount mirrored from the
// account balance, or nil when none is set.
func (l *Ledger) MainGoal(ctx context.Context) (*core.MainGoal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mainGoalLocked(ctx)
}

func (l *Ledger) mainGoalLocked(ctx context.Context) (*core.MainGoal, error) {
	s, err := l.store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if s.MainGoal == nil {
		return nil, nil
	}
	txs, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	g := s.MainGoal.WithBalance(core.Balance(txs))
	return &g, nil
}

func (l *Ledger) SetMainGoal(ctx context.Context, name, target string) (*core.MainGoal, error) {
	m, err := core.ParseAmount(target)
	if err != nil {
		return nil, err
	}
	g := core.MainGoal{Name: strings.TrimSpace(name), Target: m}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.SaveMainGoal(ctx, &g); err != nil {
		return nil, fmt.Errorf("save main goal: %w", err)
	}
	l.committed(EventGoals)
	return l.mainGoalLocked(ctx)
}

func (l *Ledger) ClearMainGoal(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.SaveMainGoal(ctx, nil); err != nil {
		return fmt.Errorf("save main goal: %w", err)
	}
	l.committed(EventGoals)
	return nil
}
