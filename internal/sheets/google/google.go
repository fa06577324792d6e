// Package google mirrors the expense collection into a Google Sheet.
//
// The sheet holds one header row followed by one row per expense in columns
// A:E (ID, Title, Amount, Date, Category). Rows are located by the ID
// column, so hand edits to the other columns are overwritten on the next
// change or reconcile.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"gastos/internal/core"
	ports "gastos/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Header is the first row of the mirror sheet.
var Header = []any{"ID", "Title", "Amount", "Date", "Category"}

const lastColumn = "E"

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountFile string
	ServiceAccountJSON string
	// Endpoint overrides the Sheets API base URL and disables
	// authentication. Used against local emulators.
	Endpoint string
}

// Mirror is a sheets.ExpenseMirror backed by the Sheets Values API.
type Mirror struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

var _ ports.ExpenseMirror = (*Mirror)(nil)

// New creates a mirror for cfg.
func New(ctx context.Context, cfg Config) (*Mirror, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		return nil, errors.New("missing sheet name")
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Mirror{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheet:         cfg.SheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	if cfg.Endpoint != "" {
		slog.InfoContext(ctx, "Using Sheets API endpoint override", "endpoint", cfg.Endpoint)
		return gsheet.NewService(ctx,
			goption.WithEndpoint(cfg.Endpoint),
			goption.WithHTTPClient(newHTTPClientWithPooling()),
			goption.WithoutAuthentication())
	}

	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		raw, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = raw
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling and
// timeouts suitable for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// Upsert rewrites the row for e, appending one if the id is not mirrored yet.
func (m *Mirror) Upsert(ctx context.Context, e core.Expense) error {
	if e.ID == "" {
		return errors.New("upsert: missing expense id")
	}
	ids, err := m.readIDs(ctx)
	if err != nil {
		return err
	}

	row := findRow(ids, e.ID)
	if row == 0 {
		if len(ids) == 0 {
			return m.write(ctx, m.rowRange(1, 2), [][]any{Header, toRow(e)})
		}
		rng := fmt.Sprintf("%s!A:%s", m.sheet, lastColumn)
		_, err := m.svc.Spreadsheets.Values.Append(m.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{toRow(e)}}).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append %s to %s: %w", e.ID, m.sheet, err)
		}
		return nil
	}
	return m.write(ctx, m.rowRange(row, row), [][]any{toRow(e)})
}

// Remove deletes the row for id by shifting the rows below it up. Unknown
// ids are ignored.
func (m *Mirror) Remove(ctx context.Context, id string) error {
	rng := fmt.Sprintf("%s!A:%s", m.sheet, lastColumn)
	resp, err := m.svc.Spreadsheets.Values.Get(m.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	row := findRow(resp.Values, id)
	if row == 0 {
		slog.DebugContext(ctx, "Expense not mirrored, nothing to remove", "expense_id", id)
		return nil
	}
	shifted := shiftUp(resp.Values, row)
	return m.write(ctx, m.rowRange(row, len(resp.Values)), shifted)
}

// Replace overwrites the sheet with the header and list.
func (m *Mirror) Replace(ctx context.Context, list []core.Expense) error {
	rng := fmt.Sprintf("%s!A:%s", m.sheet, lastColumn)
	if _, err := m.svc.Spreadsheets.Values.Clear(m.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	values := make([][]any, 0, len(list)+1)
	values = append(values, Header)
	for _, e := range list {
		values = append(values, toRow(e))
	}
	return m.write(ctx, m.rowRange(1, len(values)), values)
}

func (m *Mirror) readIDs(ctx context.Context) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:A", m.sheet)
	resp, err := m.svc.Spreadsheets.Values.Get(m.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (m *Mirror) write(ctx context.Context, rng string, values [][]any) error {
	_, err := m.svc.Spreadsheets.Values.Update(m.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// rowRange is the A1 range covering sheet rows first..last.
func (m *Mirror) rowRange(first, last int) string {
	return fmt.Sprintf("%s!A%d:%s%d", m.sheet, first, lastColumn, last)
}

// findRow returns the 1-based sheet row whose first cell is id, skipping the
// header. Zero means not found.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

// toRow renders e as a sheet row in Header order.
func toRow(e core.Expense) []any {
	return []any{e.ID, e.Title, e.Amount, e.Date, e.Category}
}

// shiftUp returns the rows from sheet row `row` to the end with that row
// dropped and a blank row appended, ready to be written back over the same
// range.
func shiftUp(values [][]any, row int) [][]any {
	out := make([][]any, 0, len(values)-row+1)
	for _, r := range values[row:] {
		out = append(out, padRow(r))
	}
	return append(out, blankRow())
}

func padRow(r []any) []any {
	out := blankRow()
	copy(out, r)
	return out
}

func blankRow() []any {
	return []any{"", "", "", "", ""}
}
