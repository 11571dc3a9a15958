package services

import (
	"strings"

	"carteira/internal/core"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 500
)

// Filter selects a page of the newest-first transaction list. Kind is
// "all", "income" or "expense"; empty means all.
type Filter struct {
	Kind   string
	Offset int
	Limit  int
}

type Page struct {
	Items   []core.Transaction `json:"items"`
	Total   int                `json:"total"`
	Offset  int                `json:"offset"`
	Limit   int                `json:"limit"`
	HasMore bool               `json:"hasMore"`
}

func (f Filter) normalize() (Filter, error) {
	f.Kind = strings.ToLower(strings.TrimSpace(f.Kind))
	switch f.Kind {
	case "", "all":
		f.Kind = "all"
	case string(core.Income), string(core.Expense):
	default:
		return f, core.ErrInvalidKind
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	return f, nil
}

func (f Filter) apply(txs []core.Transaction) Page {
	matched := txs
	if f.Kind != "all" {
		matched = make([]core.Transaction, 0, len(txs))
		for _, t := range txs {
			if string(t.Kind) == f.Kind {
				matched = append(matched, t)
			}
		}
	}

	p := Page{Total: len(matched), Offset: f.Offset, Limit: f.Limit, Items: []core.Transaction{}}
	if f.Offset >= len(matched) {
		return p
	}
	end := min(f.Offset+f.Limit, len(matched))
	p.Items = append(p.Items, matched[f.Offset:end]...)
	p.HasMore = end < len(matched)
	return p
}
