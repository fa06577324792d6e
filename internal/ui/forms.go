package ui

import (
	"errors"
	"strings"

	"gastos/internal/core"
)

// Form validation messages.
const (
	msgTitleRequired = "El título es obligatorio"
	msgAmountInvalid = "El monto no es válido"
	msgDateRequired  = "La fecha es obligatoria"
	msgDateFormat    = "El formato de la fecha no es correcto"
)

// expenseForm holds the raw values of the add and edit forms.
type expenseForm struct {
	Title    string
	Amount   string
	Date     string
	Category string
}

// FieldErrors maps form field names to messages.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	msgs := make([]string, 0, len(fe))
	for _, m := range fe {
		msgs = append(msgs, m)
	}
	return strings.Join(msgs, "; ")
}

type formValues interface {
	FormValue(key string) string
}

func readExpenseForm(r formValues) expenseForm {
	return expenseForm{
		Title:    strings.TrimSpace(r.FormValue("title")),
		Amount:   strings.TrimSpace(r.FormValue("amount")),
		Date:     strings.TrimSpace(r.FormValue("date")),
		Category: strings.TrimSpace(r.FormValue("category")),
	}
}

// parseDate validates a non-empty date field and returns it in DD/MM/YYYY.
func parseDate(s string) (string, bool) {
	if !core.ValidDateInput(s) {
		return "", false
	}
	return core.NormalizeDate(s), true
}

// createInput validates the add form. Every field but category is required.
func (f expenseForm) createInput() (core.ExpenseInput, error) {
	errs := FieldErrors{}
	in := core.ExpenseInput{Title: f.Title, Category: f.Category}

	if f.Title == "" {
		errs["title"] = msgTitleRequired
	}
	if amount, err := core.ParseAmount(f.Amount); err != nil {
		errs["amount"] = msgAmountInvalid
	} else {
		in.Amount = amount
	}
	switch date, ok := parseDate(f.Date); {
	case f.Date == "":
		errs["date"] = msgDateRequired
	case !ok:
		errs["date"] = msgDateFormat
	default:
		in.Date = date
	}

	if len(errs) > 0 {
		return core.ExpenseInput{}, errs
	}
	return in, nil
}

var errNoCurrentExpense = errors.New("no cached copy of the expense to fill blank fields")

// updateInput validates the edit form. Blank fields fall back to current,
// the copy from the expense list cache, which is stale if another client
// changed the record since it was fetched.
func (f expenseForm) updateInput(current core.Expense, found bool) (core.ExpenseInput, error) {
	errs := FieldErrors{}
	in := current.Input()

	if f.Title != "" {
		in.Title = f.Title
	}
	if f.Amount != "" {
		if amount, err := core.ParseAmount(f.Amount); err != nil {
			errs["amount"] = msgAmountInvalid
		} else {
			in.Amount = amount
		}
	}
	if f.Date != "" {
		if date, ok := parseDate(f.Date); ok {
			in.Date = date
		} else {
			errs["date"] = msgDateFormat
		}
	}
	if f.Category != "" {
		in.Category = f.Category
	}

	if len(errs) > 0 {
		return core.ExpenseInput{}, errs
	}
	if !found && (f.Title == "" || f.Amount == "" || f.Date == "" || f.Category == "") {
		return core.ExpenseInput{}, errNoCurrentExpense
	}
	return in, nil
}
