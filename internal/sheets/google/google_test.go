package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"gastos/internal/core"
)

// fakeSheet emulates the subset of the Sheets Values API the mirror uses on
// a single sheet.
type fakeSheet struct {
	mu    sync.Mutex
	sheet string
	grid  [][]any
	calls []string
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rest, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
		return
	}
	rng, action := rest, ""
	for _, suffix := range []string{":append", ":clear"} {
		if strings.HasSuffix(rest, suffix) {
			rng, action = strings.TrimSuffix(rest, suffix), suffix[1:]
		}
	}
	f.calls = append(f.calls, r.Method+" "+rng+" "+action)

	var body struct {
		Values [][]any `json:"values"`
	}
	if r.Body != nil && r.Method != http.MethodGet {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case r.Method == http.MethodGet:
		values := f.grid
		if strings.HasSuffix(rng, "!A:A") {
			values = make([][]any, len(f.grid))
			for i, row := range f.grid {
				if len(row) > 0 {
					values[i] = row[:1]
				}
			}
		}
		writeJSON(w, map[string]any{"range": rng, "values": values})
	case action == "clear":
		f.grid = nil
		writeJSON(w, map[string]any{"clearedRange": rng})
	case action == "append":
		f.grid = append(f.grid, body.Values...)
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodPut:
		var first, last int
		var col string
		if _, err := fmt.Sscanf(strings.TrimPrefix(rng, f.sheet+"!"), "A%d:%1s%d", &first, &col, &last); err != nil {
			http.Error(w, "bad range "+rng, http.StatusBadRequest)
			return
		}
		for len(f.grid) < first-1+len(body.Values) {
			f.grid = append(f.grid, nil)
		}
		for i, row := range body.Values {
			f.grid[first-1+i] = row
		}
		writeJSON(w, map[string]any{"updatedRange": rng})
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

// ids returns the non-blank ids below the header.
func (f *fakeSheet) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for i, row := range f.grid {
		if i == 0 || len(row) == 0 || row[0] == "" {
			continue
		}
		out = append(out, fmt.Sprint(row[0]))
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestMirror(t *testing.T) (*Mirror, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{sheet: "Gastos"}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	m, err := New(context.Background(), Config{
		SpreadsheetID: "sheet-id",
		SheetName:     "Gastos",
		Endpoint:      srv.URL + "/",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, fake
}

func expense(id, title string) core.Expense {
	return core.Expense{ID: id, Title: title, Amount: 500, Date: "01/03/2025", Category: "Housing"}
}

func TestNew_RequiresSpreadsheet(t *testing.T) {
	if _, err := New(context.Background(), Config{SheetName: "Gastos"}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "x"}); err == nil {
		t.Fatal("expected error for missing sheet name")
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "x", SheetName: "Gastos", ServiceAccountFile: "/non/existent.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("err = %v, want read error", err)
	}
}

func TestMirror_Upsert(t *testing.T) {
	ctx := context.Background()
	m, fake := newTestMirror(t)

	if err := m.Upsert(ctx, expense("1", "Rent")); err != nil {
		t.Fatalf("Upsert into empty sheet: %v", err)
	}
	if got := fmt.Sprint(fake.grid[0]); got != fmt.Sprint(Header) {
		t.Fatalf("header = %v", got)
	}
	if err := m.Upsert(ctx, expense("2", "Bus")); err != nil {
		t.Fatalf("Upsert append: %v", err)
	}
	if err := m.Upsert(ctx, expense("1", "Rent March")); err != nil {
		t.Fatalf("Upsert existing: %v", err)
	}

	if got := fake.ids(); strings.Join(got, ",") != "1,2" {
		t.Fatalf("ids = %v", got)
	}
	if !strings.Contains(strings.Join(fake.calls, "\n"), "POST Gastos!A:E append") {
		t.Errorf("new id was not appended: %v", fake.calls)
	}
	if title := fake.grid[1][1]; title != "Rent March" {
		t.Fatalf("row 2 title = %v", title)
	}
	if err := m.Upsert(ctx, core.Expense{}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestMirror_Remove(t *testing.T) {
	ctx := context.Background()
	m, fake := newTestMirror(t)
	for _, e := range []core.Expense{expense("1", "a"), expense("2", "b"), expense("3", "c")} {
		if err := m.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	if err := m.Remove(ctx, "2"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := fake.ids(); strings.Join(got, ",") != "1,3" {
		t.Fatalf("ids after remove = %v", got)
	}
	if err := m.Remove(ctx, "missing"); err != nil {
		t.Fatalf("Remove unknown id: %v", err)
	}
}

func TestMirror_Replace(t *testing.T) {
	ctx := context.Background()
	m, fake := newTestMirror(t)
	if err := m.Upsert(ctx, expense("old", "stale")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := m.Replace(ctx, []core.Expense{expense("1", "Rent"), expense("2", "Bus")}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got := fake.ids(); strings.Join(got, ",") != "1,2" {
		t.Fatalf("ids after replace = %v", got)
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{{"ID"}, {"a"}, {}, {" b "}}
	tests := []struct {
		id   string
		want int
	}{
		{"a", 2},
		{"b", 4},
		{"ID", 0},
		{"zzz", 0},
	}
	for _, tt := range tests {
		if got := findRow(values, tt.id); got != tt.want {
			t.Errorf("findRow(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestShiftUp(t *testing.T) {
	values := [][]any{Header, toRow(expense("1", "a")), toRow(expense("2", "b")), toRow(expense("3", "c"))}
	got := shiftUp(values, 3)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0][0] != "3" || got[1][0] != "" {
		t.Fatalf("shifted = %v", got)
	}
}
