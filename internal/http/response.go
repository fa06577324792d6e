package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gastos/internal/core"
)

const (
	msgCreated  = "Gasto creado"
	msgUpdated  = "Gasto actualizado"
	msgDeleted  = "Gasto eliminado"
	msgNotFound = "Gasto no encontrado"
	msgInternal = "Error interno del servidor"
)

type messageBody struct {
	Message string `json:"message"`
}

// expenseBody is an expense plus the server message, flattened.
type expenseBody struct {
	core.Expense
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err, "status_code", status)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// validationMessages are shown to users verbatim by the views.
var validationMessages = map[error]string{
	core.ErrEmptyTitle:     "El título es obligatorio",
	core.ErrTitleTooLong:   "El título no puede superar los 200 caracteres",
	core.ErrInvalidAmount:  "El monto no es válido",
	core.ErrNegativeAmount: "El monto no puede ser negativo",
	core.ErrEmptyDate:      "La fecha es obligatoria",
}

// writeStoreError maps store errors onto status codes: unknown ids are 404,
// domain validation is 422 and everything else is 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, core.ErrExpenseNotFound) {
		writeMessage(w, http.StatusNotFound, msgNotFound)
		return
	}
	for target, msg := range validationMessages {
		if errors.Is(err, target) {
			writeMessage(w, http.StatusUnprocessableEntity, msg)
			return
		}
	}
	slog.ErrorContext(r.Context(), "Expense store failure", "operation", op, "error", err)
	writeMessage(w, http.StatusInternalServerError, msgInternal)
}
