package http

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"carteira/internal/core"
)

type goalView struct {
	core.Goal
	Progress float64 `json:"progress"`
}

type mainGoalView struct {
	*core.MainGoal
	Progress float64 `json:"progress"`
}

func goalViews(goals []core.Goal) []goalView {
	out := make([]goalView, len(goals))
	for i, g := range goals {
		out[i] = goalView{Goal: g, Progress: g.Progress()}
	}
	return out
}

// pathParam returns the unescaped value of a chi path parameter.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return sanitizeInput(v)
	}
	return sanitizeInput(raw)
}

// Budgets

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.ledger.Budgets(r.Context())
	if err != nil {
		s.fail(w, r, "list_budgets", err)
		return
	}
	NewResponse().JSON(budgets).Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	budgets, err := s.ledger.SetBudget(r.Context(), sanitizeInput(req.Category), string(req.Limit))
	if err != nil {
		s.fail(w, r, "set_budget", err)
		return
	}
	NewResponse().JSON(budgets).Write(w)
}

func (s *Server) handleRemoveBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RemoveBudget(r.Context(), pathParam(r, "category")); err != nil {
		s.fail(w, r, "remove_budget", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.ledger.BudgetProgress(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, "budget_progress", err)
		return
	}
	NewResponse().JSON(progress).Write(w)
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.ledger.Categories(r.Context())
	if err != nil {
		s.fail(w, r, "list_categories", err)
		return
	}
	NewResponse().JSON(categories).Write(w)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	categories, err := s.ledger.AddCategory(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		s.fail(w, r, "add_category", err)
		return
	}
	NewResponse().JSON(categories).Write(w)
}

func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RemoveCategory(r.Context(), pathParam(r, "name")); err != nil {
		s.fail(w, r, "remove_category", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// Goals

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.ledger.Goals(r.Context())
	if err != nil {
		s.fail(w, r, "list_goals", err)
		return
	}
	NewResponse().JSON(goalViews(goals)).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	g, err := s.ledger.CreateGoal(r.Context(), req.Draft())
	if err != nil {
		s.fail(w, r, "create_goal", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(goalView{Goal: g, Progress: g.Progress()}).Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	g, err := s.ledger.UpdateGoal(r.Context(), pathParam(r, "id"), req.Draft())
	if err != nil {
		s.fail(w, r, "update_goal", err)
		return
	}
	NewResponse().JSON(goalView{Goal: g, Progress: g.Progress()}).Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteGoal(r.Context(), pathParam(r, "id"), Confirmation(r.URL.Query())); err != nil {
		s.fail(w, r, "delete_goal", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleReorderGoals(w http.ResponseWriter, r *http.Request) {
	var req GoalOrderRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	goals, err := s.ledger.ReorderGoals(r.Context(), req.IDs)
	if err != nil {
		s.fail(w, r, "reorder_goals", err)
		return
	}
	NewResponse().JSON(goalViews(goals)).Write(w)
}

func (s *Server) handleFundGoal(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	g, t, err := s.ledger.FundGoal(r.Context(), pathParam(r, "id"), string(req.Amount))
	if err != nil {
		s.fail(w, r, "fund_goal", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(struct {
		Goal        goalView         `json:"goal"`
		Transaction core.Transaction `json:"transaction"`
	}{goalView{Goal: g, Progress: g.Progress()}, t}).Write(w)
}

// Main goal

func (s *Server) handleGetMainGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.ledger.MainGoal(r.Context())
	if err != nil {
		s.fail(w, r, "get_main_goal", err)
		return
	}
	if g == nil {
		NewResponse().Status(http.StatusNoContent).Write(w)
		return
	}
	NewResponse().JSON(mainGoalView{MainGoal: g, Progress: g.Progress()}).Write(w)
}

func (s *Server) handleSetMainGoal(w http.ResponseWriter, r *http.Request) {
	var req MainGoalRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	g, err := s.ledger.SetMainGoal(r.Context(), sanitizeInput(req.Name), string(req.Target))
	if err != nil {
		s.fail(w, r, "set_main_goal", err)
		return
	}
	NewResponse().JSON(mainGoalView{MainGoal: g, Progress: g.Progress()}).Write(w)
}

func (s *Server) handleClearMainGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.ClearMainGoal(r.Context()); err != nil {
		s.fail(w, r, "clear_main_goal", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
