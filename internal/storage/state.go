package storage

import (
	"encoding/json"
	"fmt"

	"carteira/internal/core"
)

// Keys of the documents that make up core.State.
const (
	KeyBudgets    = "budgets"
	KeyCategories = "categories"
	KeyGoals      = "goals"
	KeyMainGoal   = "main_goal"
)

// DecodeState assembles a State from raw JSON documents keyed by the
// constants above. Missing keys leave the zero value.
func DecodeState(docs map[string][]byte) (core.State, error) {
	var st core.State
	targets := map[string]any{
		KeyBudgets:    &st.Budgets,
		KeyCategories: &st.Categories,
		KeyGoals:      &st.Goals,
		KeyMainGoal:   &st.MainGoal,
	}
	for key, target := range targets {
		raw, ok := docs[key]
		if !ok || len(raw) == 0 {
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return core.State{}, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	return st, nil
}
