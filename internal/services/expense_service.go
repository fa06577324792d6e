package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/cache"
	"gastos/internal/core"
	"gastos/internal/sheets"
)

const listCacheKey = "expenses:all"

// EventPublisher announces committed mutations.
type EventPublisher interface {
	PublishExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error
}

// ExpenseService orchestrates expense operations across the store, the list
// cache and the change feed. Publishing is best effort: a mutation that was
// stored succeeds even if its event is lost.
type ExpenseService struct {
	storage   sheets.ExpenseStore
	publisher EventPublisher
	listCache *cache.LRUCache[[]core.Expense]
	closers   []io.Closer

	// listVersion is bumped by every mutation; a list read that started
	// under an older version is not cached.
	listMu      sync.Mutex
	listVersion uint64
}

// Option configures an ExpenseService.
type Option func(*ExpenseService)

// WithPublisher enables change events.
func WithPublisher(p EventPublisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

// WithListCacheTTL overrides how long list results are cached.
func WithListCacheTTL(ttl time.Duration) Option {
	return func(s *ExpenseService) { s.listCache = cache.NewLRUCache[[]core.Expense](1, ttl) }
}

// WithCloser registers a resource released by Close, in registration order.
func WithCloser(c io.Closer) Option {
	return func(s *ExpenseService) {
		if c != nil {
			s.closers = append(s.closers, c)
		}
	}
}

func NewExpenseService(storage sheets.ExpenseStore, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		storage:   storage,
		listCache: cache.NewLRUCache[[]core.Expense](1, 5*time.Minute),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListCache exposes the list cache so it can be registered with a cache.Manager.
func (s *ExpenseService) ListCache() cache.Cleaner {
	return s.listCache
}

func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	s.listMu.Lock()
	if list, ok := s.listCache.Get(listCacheKey); ok {
		s.listMu.Unlock()
		return slices.Clone(list), nil
	}
	version := s.listVersion
	s.listMu.Unlock()

	list, err := s.storage.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	s.listMu.Lock()
	if s.listVersion == version {
		s.listCache.Set(listCacheKey, slices.Clone(list))
	}
	s.listMu.Unlock()
	return list, nil
}

// invalidateList drops the cached list after a committed mutation.
func (s *ExpenseService) invalidateList() {
	s.listMu.Lock()
	defer s.listMu.Unlock()
	s.listVersion++
	s.listCache.Delete(listCacheKey)
}

func (s *ExpenseService) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	return s.storage.GetExpense(ctx, id)
}

// CreateExpense stores the expense and publishes a created event.
func (s *ExpenseService) CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	e, err := s.storage.CreateExpense(ctx, in)
	if err != nil {
		return core.Expense{}, err
	}
	s.invalidateList()
	s.publish(ctx, amqp.NewExpenseChangedMessage(amqp.ActionCreated, e))
	return e, nil
}

// UpdateExpense merges patch into the stored record and publishes an updated event.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id string, patch core.ExpensePatch) (core.Expense, error) {
	e, err := s.storage.UpdateExpense(ctx, id, patch)
	if err != nil {
		return core.Expense{}, err
	}
	s.invalidateList()
	s.publish(ctx, amqp.NewExpenseChangedMessage(amqp.ActionUpdated, e))
	return e, nil
}

// DeleteExpense removes the record and publishes a deleted event.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if err := s.storage.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.invalidateList()
	s.publish(ctx, amqp.NewExpenseDeletedMessage(id))
	return nil
}

func (s *ExpenseService) publish(ctx context.Context, msg *amqp.ExpenseChangedMessage) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping change event",
			"action", string(msg.Action), "id", msg.ID)
		return
	}
	if err := s.publisher.PublishExpenseChanged(ctx, msg); err != nil {
		// Don't fail the request - the expense is stored
		slog.ErrorContext(ctx, "Failed to publish change event",
			"action", string(msg.Action),
			"id", msg.ID,
			"error", err)
	}
}

// Ready reports whether the store answers, for readiness probes.
func (s *ExpenseService) Ready(ctx context.Context) error {
	type pinger interface{ Ping(context.Context) error }
	if p, ok := s.storage.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the registered resources.
func (s *ExpenseService) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close expense service: %w", err)
	}
	return nil
}
