package ui

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"gastos/internal/core"
)

var templateFuncs = template.FuncMap{
	"amount": core.FormatAmount,
}

// page carries what every full page needs.
type page struct {
	Title        string
	Notification *Notification
}

// listView is one of the four list states: error, loading, empty or items.
type listView struct {
	Loading  bool
	Error    string
	Expenses []core.Expense
}

type indexPage struct {
	page
	List listView
}

type formPage struct {
	page
	Heading      string
	Action       string
	Submit       string
	Values       expenseForm
	Placeholders expenseForm
	Errors       FieldErrors
	Error        string
}

// Placeholder values shown when there is no current expense to show.
var examplePlaceholders = expenseForm{
	Title:    "Comida del Mes",
	Amount:   "50.000",
	Date:     "24/02/2025",
	Category: "Alimentos",
}

func currentPlaceholders(e core.Expense, found bool) expenseForm {
	p := examplePlaceholders
	if found {
		p = expenseForm{
			Title:    e.Title,
			Amount:   strconv.FormatFloat(e.Amount, 'f', -1, 64),
			Date:     e.Date,
			Category: e.Category,
		}
	}
	return expenseForm{
		Title:    "Titulo actual: " + p.Title,
		Amount:   "Monto actual: " + p.Amount,
		Date:     "Fecha actual: " + p.Date,
		Category: "Categoria actual: " + p.Category,
	}
}

func (s *Server) newPage(w http.ResponseWriter, r *http.Request, title string) page {
	return page{Title: title, Notification: popFlash(w, r)}
}

// render executes a template into a buffer so a failing template never
// leaves a half written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any, n *Notification) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "template", name, "error", err)
		http.Error(w, "Error interno", http.StatusInternalServerError)
		return
	}

	resp := NewHTMXResponse().Status(status).BodyHTML(buf.Bytes())
	if n != nil {
		resp.TriggerNotification(*n)
	}
	resp.Write(w)
}
