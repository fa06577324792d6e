package ui

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"gastos/internal/api"
	"gastos/internal/core"
	applog "gastos/internal/log"
)

const (
	msgDeleteFailed = "Error eliminando el gasto"
	msgCreateFailed = "Error al agregar el gasto!"
	msgEditFailed   = "Error al editar el gasto!"
	msgBadForm      = "Formato de solicitud no válido"
	msgNotFound     = "Gasto no encontrado"
)

// loadList waits up to loadingTimeout for the cached list. When the wait
// runs out the fetch keeps going and the loading placeholder is shown.
func (s *Server) loadList(ctx context.Context) listView {
	ctx, cancel := context.WithTimeout(ctx, s.loadingTimeout)
	defer cancel()

	list, err := s.expenses(ctx)
	if err == nil {
		return listView{Expenses: list}
	}
	if ctx.Err() != nil {
		return listView{Loading: true}
	}
	slog.ErrorContext(ctx, "Failed to load expenses", applog.FieldQueryKey, ExpensesKey, "error", err)
	return listView{Error: api.UserMessage(err)}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexPage{
		page: s.newPage(w, r, "Gastos"),
		List: s.loadList(r.Context()),
	}
	s.render(w, r, http.StatusOK, "index.html", data, nil)
}

// handleExpenseList renders the list fragment polled while loading.
func (s *Server) handleExpenseList(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "expense-list", s.loadList(r.Context()), nil)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var n Notification
	msg, err := s.client.Delete(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to delete expense",
			applog.FieldExpenseID, id,
			"server_message", api.UserMessage(err),
			applog.FieldError, err)
		n = errorNotification(msgDeleteFailed)
	} else {
		s.InvalidateExpenses(ctx)
		n = successNotification(msg + "!")
	}

	if isHTMX(r) {
		s.render(w, r, http.StatusOK, "expense-list", s.loadList(ctx), &n)
		return
	}
	redirectWithFlash(w, r, "/", n)
}

func (s *Server) addFormPage(w http.ResponseWriter, r *http.Request) formPage {
	return formPage{
		page:         s.newPage(w, r, "Agregar Gasto"),
		Heading:      "Agregar Gasto",
		Action:       "/add-expense",
		Submit:       "Agregar",
		Placeholders: examplePlaceholders,
	}
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "form.html", s.addFormPage(w, r), nil)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	data := s.addFormPage(w, r)
	if err := r.ParseForm(); err != nil {
		data.Error = msgBadForm
		s.render(w, r, http.StatusBadRequest, "form.html", data, nil)
		return
	}
	form := readExpenseForm(r)
	data.Values = form

	in, err := form.createInput()
	var fieldErrs FieldErrors
	if errors.As(err, &fieldErrs) {
		data.Errors = fieldErrs
		s.render(w, r, http.StatusUnprocessableEntity, "form.html", data, nil)
		return
	}

	res, err := s.client.Create(r.Context(), in)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create expense",
			"server_message", api.UserMessage(err),
			applog.FieldError, err)
		n := errorNotification(msgCreateFailed)
		data.Error = api.UserMessage(err)
		data.Notification = &n
		s.render(w, r, statusFor(err), "form.html", data, &n)
		return
	}

	s.InvalidateExpenses(r.Context())
	redirectWithFlash(w, r, "/", successNotification(res.Message+"!"))
}

// currentExpense looks id up in the cached list.
func (s *Server) currentExpense(ctx context.Context, id string) (core.Expense, bool) {
	list, err := s.expenses(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Expense list unavailable for edit form",
			applog.FieldExpenseID, id,
			applog.FieldError, err)
		return core.Expense{}, false
	}
	return core.FindExpense(list, id)
}

func (s *Server) editFormPage(w http.ResponseWriter, r *http.Request, id string, current core.Expense, found bool) formPage {
	return formPage{
		page:         s.newPage(w, r, "Editar Gasto"),
		Heading:      "Editar Gasto",
		Action:       "/edit-expense/" + id,
		Submit:       "Editar",
		Placeholders: currentPlaceholders(current, found),
	}
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx, cancel := context.WithTimeout(r.Context(), s.loadingTimeout)
	defer cancel()

	current, found := s.currentExpense(ctx, id)
	s.render(w, r, http.StatusOK, "form.html", s.editFormPage(w, r, id, current, found), nil)
}

func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	current, found := s.currentExpense(ctx, id)
	data := s.editFormPage(w, r, id, current, found)

	if err := r.ParseForm(); err != nil {
		data.Error = msgBadForm
		s.render(w, r, http.StatusBadRequest, "form.html", data, nil)
		return
	}
	form := readExpenseForm(r)
	data.Values = form

	fail := func(status int, msg string) {
		n := errorNotification(msgEditFailed)
		data.Error = msg
		data.Notification = &n
		s.render(w, r, status, "form.html", data, &n)
	}

	in, err := form.updateInput(current, found)
	var fieldErrs FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		data.Errors = fieldErrs
		s.render(w, r, http.StatusUnprocessableEntity, "form.html", data, nil)
		return
	case errors.Is(err, errNoCurrentExpense):
		fail(http.StatusNotFound, msgNotFound)
		return
	}

	res, err := s.client.Update(ctx, id, in)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to update expense",
			applog.FieldExpenseID, id,
			"server_message", api.UserMessage(err),
			applog.FieldError, err)
		fail(statusFor(err), api.UserMessage(err))
		return
	}

	s.InvalidateExpenses(ctx)
	redirectWithFlash(w, r, "/", successNotification(res.Message+"!"))
}

// statusFor picks the page status for a failed backend call.
func statusFor(err error) int {
	switch {
	case errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, api.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, api.ErrNetwork):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
