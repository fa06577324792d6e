package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"gastos/internal/core"
)

// SeedFile is the file NewFromFiles reads initial expenses from.
const SeedFile = "seed_expenses.json"

// Store keeps expenses in insertion order. It is the "memory" data backend.
type Store struct {
	mu    sync.Mutex
	items []core.Expense
	newID func() string
}

func New(seed []core.Expense) *Store {
	s := &Store{newID: uuid.NewString}
	seen := map[string]struct{}{}
	for _, e := range seed {
		if e.ID == "" {
			e.ID = s.newID()
		}
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		s.items = append(s.items, e)
	}
	return s
}

// NewFromFiles seeds the store from base/seed_expenses.json. A missing or
// unreadable file yields an empty store.
func NewFromFiles(base string) *Store {
	return New(readSeed(filepath.Join(base, SeedFile)))
}

func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.items)
	if out == nil {
		out = []core.Expense{}
	}
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.items[i], nil
	}
	return core.Expense{}, core.ErrExpenseNotFound
}

func (s *Store) CreateExpense(_ context.Context, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := core.Expense{
		ID:       s.newID(),
		Title:    strings.TrimSpace(in.Title),
		Amount:   in.Amount,
		Date:     in.Date,
		Category: in.Category,
	}
	s.items = append(s.items, e)
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, id string, patch core.ExpensePatch) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	updated := patch.Apply(s.items[i])
	updated.Title = strings.TrimSpace(updated.Title)
	if err := updated.Input().Validate(); err != nil {
		return core.Expense{}, err
	}
	s.items[i] = updated
	return updated, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return core.ErrExpenseNotFound
	}
	s.items = slices.Delete(s.items, i, i+1)
	return nil
}

// Close is a no-op; it lets the store be used where a closer is expected.
func (s *Store) Close() error { return nil }

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.items, func(e core.Expense) bool { return e.ID == id })
}

func readSeed(path string) []core.Expense {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var out []core.Expense
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Mirror is an in-memory sheets.ExpenseMirror, used when no spreadsheet is
// configured and in tests.
type Mirror struct {
	mu   sync.Mutex
	rows []core.Expense
}

func NewMirror() *Mirror { return &Mirror{} }

func (m *Mirror) Upsert(_ context.Context, e core.Expense) error {
	if e.ID == "" {
		return fmt.Errorf("upsert: missing expense id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := slices.IndexFunc(m.rows, func(r core.Expense) bool { return r.ID == e.ID }); i >= 0 {
		m.rows[i] = e
		return nil
	}
	m.rows = append(m.rows, e)
	return nil
}

func (m *Mirror) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = slices.DeleteFunc(m.rows, func(r core.Expense) bool { return r.ID == id })
	return nil
}

func (m *Mirror) Replace(_ context.Context, list []core.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = slices.Clone(list)
	return nil
}

// Rows returns a copy of the mirrored rows.
func (m *Mirror) Rows() []core.Expense {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rows)
}
