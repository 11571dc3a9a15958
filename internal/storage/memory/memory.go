// Package memory is an in-process store, optionally mirrored to one JSON
// file per key in a data directory.
package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"carteira/internal/core"
	"carteira/internal/storage"
)

const (
	transactionsKey = "transactions"
	seedFile        = "seed_categories.txt"
)

type Store struct {
	mu    sync.Mutex
	dir   string
	ids   *storage.IDSequence
	items []core.Transaction // newest first
	state core.State
}

var _ storage.Store = (*Store)(nil)

// New returns a volatile store seeded with custom categories.
func New(categories []string) *Store {
	return &Store{
		ids:   storage.NewIDSequence(),
		state: core.State{Categories: core.DedupeCategories(categories)},
	}
}

// NewFromDir loads every key from dir and persists each mutation back to
// it. Missing files start empty; seed_categories.txt provides custom
// categories until some are saved.
func NewFromDir(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s := New(readLines(filepath.Join(dir, seedFile)))
	s.dir = dir

	if err := readJSON(filepath.Join(dir, transactionsKey+".json"), &s.items); err != nil {
		return nil, err
	}
	var last int64
	for _, t := range s.items {
		last = max(last, t.ID)
	}
	s.ids.Seed(last)

	docs := make(map[string][]byte)
	for _, key := range []string{storage.KeyBudgets, storage.KeyCategories, storage.KeyGoals, storage.KeyMainGoal} {
		raw, err := os.ReadFile(filepath.Join(dir, key+".json"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		docs[key] = raw
	}
	st, err := storage.DecodeState(docs)
	if err != nil {
		return nil, err
	}
	if _, ok := docs[storage.KeyCategories]; !ok {
		st.Categories = s.state.Categories
	}
	s.state = st
	return s, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) List(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items), nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	return s.items[i], nil
}

func (s *Store) Create(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.ids.Next()
	next := append([]core.Transaction{t}, s.items...)
	if err := s.persistItems(next); err != nil {
		return core.Transaction{}, err
	}
	s.items = next
	return t, nil
}

func (s *Store) Update(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(t.ID)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, storage.ErrNotFound)
	}
	next := slices.Clone(s.items)
	next[i] = t
	if err := s.persistItems(next); err != nil {
		return core.Transaction{}, err
	}
	s.items = next
	return t, nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	next := slices.Delete(slices.Clone(s.items), i, i+1)
	if err := s.persistItems(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

func (s *Store) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if err := s.persistItems(nil); err != nil {
		return 0, err
	}
	s.items = nil
	return n, nil
}

func (s *Store) LoadState(_ context.Context) (core.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := core.State{
		Budgets:    slices.Clone(s.state.Budgets),
		Categories: slices.Clone(s.state.Categories),
		Goals:      slices.Clone(s.state.Goals),
	}
	if s.state.MainGoal != nil {
		mg := *s.state.MainGoal
		st.MainGoal = &mg
	}
	return st, nil
}

func (s *Store) SaveBudgets(_ context.Context, budgets []core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(storage.KeyBudgets, budgets); err != nil {
		return err
	}
	s.state.Budgets = slices.Clone(budgets)
	return nil
}

func (s *Store) SaveCategories(_ context.Context, categories []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(storage.KeyCategories, categories); err != nil {
		return err
	}
	s.state.Categories = slices.Clone(categories)
	return nil
}

func (s *Store) SaveGoals(_ context.Context, goals []core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(storage.KeyGoals, goals); err != nil {
		return err
	}
	s.state.Goals = slices.Clone(goals)
	return nil
}

func (s *Store) SaveMainGoal(_ context.Context, goal *core.MainGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if goal == nil {
		if s.dir != "" {
			err := os.Remove(filepath.Join(s.dir, storage.KeyMainGoal+".json"))
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("clear %s: %w", storage.KeyMainGoal, err)
			}
		}
		s.state.MainGoal = nil
		return nil
	}
	if err := s.persist(storage.KeyMainGoal, goal); err != nil {
		return err
	}
	mg := *goal
	s.state.MainGoal = &mg
	return nil
}

func (s *Store) indexOf(id int64) int {
	return slices.IndexFunc(s.items, func(t core.Transaction) bool { return t.ID == id })
}

func (s *Store) persistItems(items []core.Transaction) error {
	if items == nil {
		items = []core.Transaction{}
	}
	return s.persist(transactionsKey, items)
}

// persist rewrites key's file in full through a temp file and rename.
func (s *Store) persist(key string, v any) error {
	if s.dir == "" {
		return nil
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key+".json")); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
