package ui

import (
	"errors"
	"net/url"
	"testing"

	"gastos/internal/core"
)

func TestExpenseForm_CreateInput(t *testing.T) {
	tests := []struct {
		name     string
		form     expenseForm
		want     core.ExpenseInput
		wantErrs FieldErrors
	}{
		{
			name: "valid with iso date and comma amount",
			form: expenseForm{Title: "Rent", Amount: "500,50", Date: "2025-03-01", Category: "Housing"},
			want: core.ExpenseInput{Title: "Rent", Amount: 500.5, Date: "01/03/2025", Category: "Housing"},
		},
		{
			name: "dashes become slashes",
			form: expenseForm{Title: "Bus", Amount: "2", Date: "24-02-2025"},
			want: core.ExpenseInput{Title: "Bus", Amount: 2, Date: "24/02/2025"},
		},
		{
			name:     "everything missing",
			form:     expenseForm{},
			wantErrs: FieldErrors{"title": msgTitleRequired, "amount": msgAmountInvalid, "date": msgDateRequired},
		},
		{
			name:     "impossible month",
			form:     expenseForm{Title: "x", Amount: "1", Date: "01/13/2025"},
			wantErrs: FieldErrors{"date": msgDateFormat},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.form.createInput()
			if tt.wantErrs != nil {
				var fe FieldErrors
				if !errors.As(err, &fe) {
					t.Fatalf("err = %v, want FieldErrors", err)
				}
				if len(fe) != len(tt.wantErrs) {
					t.Fatalf("errors = %v, want %v", fe, tt.wantErrs)
				}
				for k, v := range tt.wantErrs {
					if fe[k] != v {
						t.Fatalf("errors[%s] = %q, want %q", k, fe[k], v)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("createInput: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExpenseForm_UpdateInput(t *testing.T) {
	current := core.Expense{ID: "1", Title: "Rent", Amount: 500, Date: "01/03/2025", Category: "Housing"}

	t.Run("only date supplied falls back to the cached copy", func(t *testing.T) {
		got, err := expenseForm{Date: "2025-03-02"}.updateInput(current, true)
		if err != nil {
			t.Fatalf("updateInput: %v", err)
		}
		want := core.ExpenseInput{Title: "Rent", Amount: 500, Date: "02/03/2025", Category: "Housing"}
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	})

	t.Run("zero amount is kept", func(t *testing.T) {
		got, err := expenseForm{Amount: "0"}.updateInput(current, true)
		if err != nil || got.Amount != 0 {
			t.Fatalf("got %+v, %v", got, err)
		}
	})

	t.Run("bad date is reported before anything else", func(t *testing.T) {
		_, err := expenseForm{Date: "2025-3-2"}.updateInput(current, true)
		var fe FieldErrors
		if !errors.As(err, &fe) || fe["date"] != msgDateFormat {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("blank field without cached copy", func(t *testing.T) {
		_, err := expenseForm{Title: "x"}.updateInput(core.Expense{}, false)
		if !errors.Is(err, errNoCurrentExpense) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("all fields without cached copy", func(t *testing.T) {
		got, err := expenseForm{Title: "x", Amount: "1", Date: "01/01/2025", Category: "c"}.updateInput(core.Expense{}, false)
		if err != nil || got.Title != "x" {
			t.Fatalf("got %+v, %v", got, err)
		}
	})
}

func TestReadExpenseForm(t *testing.T) {
	v := url.Values{"title": {"  Café "}, "amount": {" 3,5"}, "date": {"01/03/2025 "}}
	got := readExpenseForm(formValuesFunc(v.Get))
	if got.Title != "Café" || got.Amount != "3,5" || got.Date != "01/03/2025" || got.Category != "" {
		t.Fatalf("got %+v", got)
	}
}

type formValuesFunc func(string) string

func (f formValuesFunc) FormValue(key string) string { return f(key) }
