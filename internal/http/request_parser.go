package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gastos/internal/core"
)

const maxBodyBytes = 64 << 10

var errEmptyPatch = errors.New("no fields to update")

// decodeJSON reads a single JSON object from the request body, refusing
// unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("decode body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func parseExpenseInput(w http.ResponseWriter, r *http.Request) (core.ExpenseInput, error) {
	var in core.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		return core.ExpenseInput{}, err
	}
	in.Title = sanitizeInput(in.Title)
	in.Date = strings.TrimSpace(in.Date)
	in.Category = sanitizeInput(in.Category)
	return in, nil
}

func parseExpensePatch(w http.ResponseWriter, r *http.Request) (core.ExpensePatch, error) {
	var patch core.ExpensePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		return core.ExpensePatch{}, err
	}
	if patch.IsEmpty() {
		return core.ExpensePatch{}, errEmptyPatch
	}
	for _, field := range []*string{patch.Title, patch.Category} {
		if field != nil {
			*field = sanitizeInput(*field)
		}
	}
	if patch.Date != nil {
		*patch.Date = strings.TrimSpace(*patch.Date)
	}
	return patch, nil
}

// sanitizeInput trims whitespace and strips control characters other than
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
