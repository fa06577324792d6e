// Package worker keeps an expense mirror in step with the backend.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"gastos/internal/amqp"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/sheets"
)

// ExpenseLister reads the full collection from the backend.
type ExpenseLister interface {
	List(ctx context.Context) ([]core.Expense, error)
}

// MirrorWorker applies change events to a mirror and periodically
// reconciles the mirror against the backend so that lost events heal.
type MirrorWorker struct {
	mirror sheets.ExpenseMirror
	source ExpenseLister

	// events and reconciles never overlap
	mu   sync.Mutex
	cron *cron.Cron
}

func NewMirrorWorker(mirror sheets.ExpenseMirror, source ExpenseLister) *MirrorWorker {
	return &MirrorWorker{mirror: mirror, source: source}
}

// HandleExpenseChanged applies one change event to the mirror.
func (w *MirrorWorker) HandleExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	slog.InfoContext(ctx, "Processing expense change",
		applog.FieldAction, string(msg.Action),
		applog.FieldExpenseID, msg.ID)

	w.mu.Lock()
	defer w.mu.Unlock()

	switch msg.Action {
	case amqp.ActionCreated, amqp.ActionUpdated:
		if msg.Expense == nil {
			return fmt.Errorf("%s message for %s without expense", msg.Action, msg.ID)
		}
		if err := w.mirror.Upsert(ctx, *msg.Expense); err != nil {
			return fmt.Errorf("mirror upsert %s: %w", msg.ID, err)
		}
	case amqp.ActionDeleted:
		if err := w.mirror.Remove(ctx, msg.ID); err != nil {
			return fmt.Errorf("mirror remove %s: %w", msg.ID, err)
		}
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	return nil
}

// Reconcile overwrites the mirror with the backend's current list.
func (w *MirrorWorker) Reconcile(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	list, err := w.source.List(ctx)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	if err := w.mirror.Replace(ctx, list); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	slog.InfoContext(ctx, "Mirror reconciled", "count", len(list))
	return nil
}

// StartReconcile runs Reconcile on schedule (standard cron syntax or
// descriptors such as "@every 1h") until StopReconcile is called.
func (w *MirrorWorker) StartReconcile(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := w.Reconcile(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled reconcile failed", applog.FieldError, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reconcile %q: %w", schedule, err)
	}
	w.cron = c
	c.Start()
	slog.InfoContext(ctx, "Mirror reconcile scheduled", "schedule", schedule)
	return nil
}

// StopReconcile stops the schedule and waits for a running reconcile.
func (w *MirrorWorker) StopReconcile() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
}
