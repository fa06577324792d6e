package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	applog "gastos/internal/log"
)

func (s *Server) storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	list, err := s.store.ListExpenses(ctx)
	if err != nil {
		writeStoreError(w, r, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	e, err := s.store.GetExpense(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, r, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	in, err := parseExpenseInput(w, r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Formato de solicitud no válido")
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	e, err := s.store.CreateExpense(ctx, in)
	if err != nil {
		writeStoreError(w, r, "create", err)
		return
	}
	slog.InfoContext(r.Context(), "Expense created",
		applog.FieldExpenseID, e.ID,
		"title", e.Title,
		"amount", e.Amount)
	writeJSON(w, http.StatusCreated, expenseBody{Expense: e, Message: msgCreated})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	patch, err := parseExpensePatch(w, r)
	if err != nil {
		msg := "Formato de solicitud no válido"
		if errors.Is(err, errEmptyPatch) {
			msg = "No hay campos para actualizar"
		}
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	e, err := s.store.UpdateExpense(ctx, id, patch)
	if err != nil {
		writeStoreError(w, r, "update", err)
		return
	}
	slog.InfoContext(r.Context(), "Expense updated", applog.FieldExpenseID, id)
	writeJSON(w, http.StatusOK, expenseBody{Expense: e, Message: msgUpdated})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := s.storeContext(r)
	defer cancel()

	if err := s.store.DeleteExpense(ctx, id); err != nil {
		writeStoreError(w, r, "delete", err)
		return
	}
	slog.InfoContext(r.Context(), "Expense deleted", applog.FieldExpenseID, id)
	writeMessage(w, http.StatusOK, msgDeleted)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady pings the store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Ready(ctx); err != nil {
		slog.WarnContext(ctx, "Readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
