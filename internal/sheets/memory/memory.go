package memory

import (
	"context"
	"fmt"
	"sync"

	"carteira/internal/core"
	ports "carteira/internal/sheets"
)

// Mirror keeps mirrored rows in process. The worker falls back to it when
// no spreadsheet is configured.
type Mirror struct {
	mu    sync.Mutex
	order []int64
	rows  map[int64][]any
}

var _ ports.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: map[int64][]any{}}
}

func (m *Mirror) Upsert(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	m.rows[t.ID] = ports.Row(t)
	return fmt.Sprintf("mem:%d", t.ID), nil
}

func (m *Mirror) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return nil
	}
	delete(m.rows, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mirror) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	m.rows = map[int64][]any{}
	return nil
}

// Rows returns the header followed by the mirrored rows in insertion order.
func (m *Mirror) Rows() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]any, 0, len(m.order)+1)
	out = append(out, ports.Header)
	for _, id := range m.order {
		out = append(out, append([]any(nil), m.rows[id]...))
	}
	return out
}
