package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"gastos/internal/core"
)

// Dialect selects the SQL flavour and driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	return string(d)
}

// SQLRepository stores expenses in SQLite or PostgreSQL. Amounts are kept
// as decimals; list order is insertion order.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	newID   func() string
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open(DialectSQLite.DriverName(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectSQLite, dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newRepository(db, DialectSQLite), nil
}

func NewPostgresRepository(ctx context.Context, dsn string) (*SQLRepository, error) {
	db, err := sql.Open(DialectPostgres.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectPostgres, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newRepository(db, DialectPostgres), nil
}

func newRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectExpense = `SELECT id, title, amount, date, category FROM expenses`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e      core.Expense
		amount decimal.Decimal
	)
	if err := row.Scan(&e.ID, &e.Title, &amount, &e.Date, &e.Category); err != nil {
		return core.Expense{}, err
	}
	e.Amount = amount.InexactFloat64()
	return e, nil
}

func (r *SQLRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, selectExpense+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	return r.getExpense(ctx, r.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLRepository) getExpense(ctx context.Context, q querier, id string) (core.Expense, error) {
	e, err := scanExpense(q.QueryRowContext(ctx, r.rebind(selectExpense+` WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, err)
	}
	return e, nil
}

func (r *SQLRepository) CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		ID:       r.newID(),
		Title:    in.Title,
		Amount:   in.Amount,
		Date:     in.Date,
		Category: in.Category,
	}
	now := r.now()
	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO expenses (id, title, amount, date, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.Title, decimal.NewFromFloat(e.Amount), e.Date, e.Category, now, now)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"backend", string(r.dialect),
		"id", e.ID,
		"title", e.Title,
		"amount", e.Amount,
		"date", e.Date)

	return e, nil
}

func (r *SQLRepository) UpdateExpense(ctx context.Context, id string, patch core.ExpensePatch) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	current, err := r.getExpense(ctx, tx, id)
	if err != nil {
		return core.Expense{}, err
	}

	updated := patch.Apply(current)
	updated.Title = strings.TrimSpace(updated.Title)
	if err := updated.Input().Validate(); err != nil {
		return core.Expense{}, err
	}

	_, err = tx.ExecContext(ctx, r.rebind(`
		UPDATE expenses SET title = ?, amount = ?, date = ?, category = ?, updated_at = ?
		WHERE id = ?`),
		updated.Title, decimal.NewFromFloat(updated.Amount), updated.Date, updated.Category, r.now(), id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit update: %w", err)
	}

	slog.InfoContext(ctx, "Expense updated", "backend", string(r.dialect), "id", id)
	return updated, nil
}

func (r *SQLRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM expenses WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if n == 0 {
		return core.ErrExpenseNotFound
	}

	slog.InfoContext(ctx, "Expense deleted", "backend", string(r.dialect), "id", id)
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
