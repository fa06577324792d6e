package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/sheets/memory"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ExpenseChangedMessage
	err  error
}

func (p *fakePublisher) PublishExpenseChanged(_ context.Context, msg *amqp.ExpenseChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *fakePublisher) actions() []amqp.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.Action, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Action
	}
	return out
}

type countingStore struct {
	*memory.Store
	lists int
}

func (s *countingStore) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	s.lists++
	return s.Store.ListExpenses(ctx)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestExpenseService_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewExpenseService(memory.New(nil), WithPublisher(pub))

	e, err := svc.CreateExpense(ctx, core.ExpenseInput{Title: "Rent", Amount: 500, Date: "01/03/2025"})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	date := "02/03/2025"
	if _, err := svc.UpdateExpense(ctx, e.ID, core.ExpensePatch{Date: &date}); err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}
	if err := svc.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}

	got := pub.actions()
	want := []amqp.Action{amqp.ActionCreated, amqp.ActionUpdated, amqp.ActionDeleted}
	if len(got) != len(want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("actions = %v, want %v", got, want)
		}
	}
	if pub.msgs[1].Expense == nil || pub.msgs[1].Expense.Date != date {
		t.Errorf("updated event carries %+v", pub.msgs[1].Expense)
	}
}

func TestExpenseService_FailedMutationPublishesNothing(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewExpenseService(memory.New(nil), WithPublisher(pub))

	if err := svc.DeleteExpense(context.Background(), "missing"); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("err = %v, want ErrExpenseNotFound", err)
	}
	if _, err := svc.CreateExpense(context.Background(), core.ExpenseInput{}); err == nil {
		t.Fatal("expected validation error")
	}
	if n := len(pub.actions()); n != 0 {
		t.Fatalf("published %d events for failed mutations", n)
	}
}

func TestExpenseService_PublishErrorIsNotReturned(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewExpenseService(memory.New(nil), WithPublisher(pub))

	if _, err := svc.CreateExpense(context.Background(), core.ExpenseInput{Title: "x", Amount: 1, Date: "01/01/2025"}); err != nil {
		t.Fatalf("CreateExpense returned publish error: %v", err)
	}
}

func TestExpenseService_ListCacheInvalidatedOnMutation(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: memory.New(nil)}
	svc := NewExpenseService(store)

	for i := 0; i < 3; i++ {
		if _, err := svc.ListExpenses(ctx); err != nil {
			t.Fatalf("ListExpenses: %v", err)
		}
	}
	if store.lists != 1 {
		t.Fatalf("store listed %d times, want 1", store.lists)
	}

	if _, err := svc.CreateExpense(ctx, core.ExpenseInput{Title: "Rent", Amount: 500, Date: "01/03/2025"}); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	list, err := svc.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(list) != 1 || store.lists != 2 {
		t.Fatalf("list after create = %v (store lists %d)", list, store.lists)
	}

	// Mutating the returned slice must not leak into the cache.
	list[0].Title = "changed"
	again, _ := svc.ListExpenses(ctx)
	if again[0].Title != "Rent" {
		t.Fatalf("cached list was mutated: %v", again)
	}
}

// pausingStore reads the collection, then waits on release before
// returning it, leaving room for a mutation in between.
type pausingStore struct {
	*memory.Store
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *pausingStore) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	list, err := s.Store.ListExpenses(ctx)
	paused := false
	s.once.Do(func() { paused = true })
	if paused {
		close(s.read)
		<-s.release
	}
	return list, err
}

func TestExpenseService_ListReadOverlappingDeleteIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := &pausingStore{
		Store:   memory.New([]core.Expense{{ID: "1", Title: "Rent", Amount: 500, Date: "01/03/2025", Category: "Housing"}}),
		read:    make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewExpenseService(store)

	done := make(chan []core.Expense)
	go func() {
		list, _ := svc.ListExpenses(ctx)
		done <- list
	}()

	<-store.read
	if err := svc.DeleteExpense(ctx, "1"); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	close(store.release)
	if old := <-done; len(old) != 1 {
		t.Fatalf("overlapping read = %v, want the pre-delete list", old)
	}

	list, err := svc.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("list after delete = %v, want empty", list)
	}
}

func TestExpenseService_Close(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		service := NewExpenseService(nil)
		if err := service.Close(); err != nil {
			t.Fatalf("Close should not return error with nil components: %v", err)
		}
	})

	t.Run("closes in order and joins errors", func(t *testing.T) {
		var order []string
		service := NewExpenseService(nil,
			WithCloser(closerFunc(func() error { order = append(order, "store"); return nil })),
			WithCloser(closerFunc(func() error { order = append(order, "amqp"); return errors.New("boom") })),
		)
		err := service.Close()
		if err == nil {
			t.Fatal("expected error")
		}
		if len(order) != 2 || order[0] != "store" || order[1] != "amqp" {
			t.Fatalf("close order = %v", order)
		}
	})
}
