package sheets

import (
	"context"

	"gastos/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseReader reads the expense collection. Missing ids yield
	// core.ErrExpenseNotFound.
	ExpenseReader interface {
		ListExpenses(ctx context.Context) ([]core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
	}

	// ExpenseWriter mutates the expense collection. The store assigns ids.
	ExpenseWriter interface {
		CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error)
		// UpdateExpense applies patch over the stored record; nil fields are kept.
		UpdateExpense(ctx context.Context, id string, patch core.ExpensePatch) (core.Expense, error)
		DeleteExpense(ctx context.Context, id string) error
	}

	// ExpenseStore is a full read/write store.
	ExpenseStore interface {
		ExpenseReader
		ExpenseWriter
	}

	// ExpenseMirror is a write-only copy of the collection kept somewhere
	// else, e.g. a spreadsheet. Rows are keyed by expense id.
	ExpenseMirror interface {
		Upsert(ctx context.Context, e core.Expense) error
		Remove(ctx context.Context, id string) error
		// Replace overwrites the whole mirror with list.
		Replace(ctx context.Context, list []core.Expense) error
	}
)
