package core

import (
	"errors"
	"math"
	"strings"
)

type (
	// Expense is a single expense record as exchanged with the REST backend.
	Expense struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Amount   float64 `json:"amount"`
		Date     string  `json:"date"`
		Category string  `json:"category"`
	}

	// ExpenseInput carries the writable fields of an expense.
	// It is the body of both create and update calls.
	ExpenseInput struct {
		Title    string  `json:"title"`
		Amount   float64 `json:"amount"`
		Date     string  `json:"date"`
		Category string  `json:"category"`
	}

	// ExpensePatch is a partial update: nil fields keep the stored value.
	ExpensePatch struct {
		Title    *string  `json:"title,omitempty"`
		Amount   *float64 `json:"amount,omitempty"`
		Date     *string  `json:"date,omitempty"`
		Category *string  `json:"category,omitempty"`
	}

	// MutationResult is what the backend answers to create and update calls:
	// the resulting record plus a human readable message.
	MutationResult struct {
		Expense Expense
		Message string
	}
)

var (
	ErrEmptyTitle      = errors.New("empty title")
	ErrTitleTooLong    = errors.New("title too long (max 200 characters)")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrEmptyDate       = errors.New("empty date")
	ErrExpenseNotFound = errors.New("expense not found")
)

// Validate checks the fields the backend refuses to persist.
func (in ExpenseInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrEmptyTitle
	}
	if len(in.Title) > 200 {
		return ErrTitleTooLong
	}
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return ErrInvalidAmount
	}
	if in.Amount < 0 {
		return ErrNegativeAmount
	}
	if strings.TrimSpace(in.Date) == "" {
		return ErrEmptyDate
	}
	return nil
}

// Input returns the writable fields of e.
func (e Expense) Input() ExpenseInput {
	return ExpenseInput{
		Title:    e.Title,
		Amount:   e.Amount,
		Date:     e.Date,
		Category: e.Category,
	}
}

// Apply merges the patch over e. The ID is never touched.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	return e
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Title == nil && p.Amount == nil && p.Date == nil && p.Category == nil
}

// FindExpense returns the expense with the given id from list.
func FindExpense(list []Expense, id string) (Expense, bool) {
	for _, e := range list {
		if e.ID == id {
			return e, true
		}
	}
	return Expense{}, false
}
