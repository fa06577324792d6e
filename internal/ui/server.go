// Package ui serves the server-rendered expense pages. Pages read the
// expense list through a QueryCache and write through the REST client,
// invalidating the cached list after every successful mutation.
package ui

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"gastos/internal/cache"
	"gastos/internal/core"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/middleware/security"
	"gastos/internal/middleware/trace"
	appweb "gastos/web"
)

// ExpensesKey is the collection key the expense list is cached under.
const ExpensesKey = "expenses"

// ExpenseClient is the subset of api.Client the pages use.
type ExpenseClient interface {
	List(ctx context.Context) ([]core.Expense, error)
	Create(ctx context.Context, in core.ExpenseInput) (core.MutationResult, error)
	Update(ctx context.Context, id string, in core.ExpenseInput) (core.MutationResult, error)
	Delete(ctx context.Context, id string) (string, error)
}

// Options tunes the view server.
type Options struct {
	RateLimitPerMinute int
	// LoadingTimeout is how long a page waits for the list before it
	// renders the loading placeholder and lets the browser poll.
	LoadingTimeout time.Duration
}

// Server renders the expense pages.
type Server struct {
	http.Server
	client         ExpenseClient
	queries        *cache.QueryCache[[]core.Expense]
	templates      *template.Template
	rateLimiter    *ratelimit.Limiter
	loadingTimeout time.Duration

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires the routes.
func NewServer(addr string, client ExpenseClient, queries *cache.QueryCache[[]core.Expense], opts Options) (*Server, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	if opts.LoadingTimeout <= 0 {
		opts.LoadingTimeout = 3 * time.Second
	}
	limitCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		client:         client,
		queries:        queries,
		templates:      t,
		rateLimiter:    ratelimit.NewLimiter(limitCfg),
		loadingTimeout: opts.LoadingTimeout,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/expenses", s.handleExpenseList)
	mux.HandleFunc("POST /expenses/{id}/delete", s.handleDeleteExpense)
	mux.HandleFunc("DELETE /expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("GET /add-expense", s.handleAddForm)
	mux.HandleFunc("POST /add-expense", s.handleAddExpense)
	mux.HandleFunc("GET /edit-expense/{id}", s.handleEditForm)
	mux.HandleFunc("POST /edit-expense/{id}", s.handleEditExpense)

	detector := security.NewDetector()
	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, nil)(handler)
	handler = security.NewHeadersMiddleware(security.PageHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(handler)
	handler = trace.NewMiddleware(detector.ExtractClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// InvalidateExpenses marks the cached list stale and starts a refetch.
// Change events from other processes call it too.
func (s *Server) InvalidateExpenses(ctx context.Context) {
	s.queries.Invalidate(ctx, ExpensesKey)
}

func (s *Server) expenses(ctx context.Context) ([]core.Expense, error) {
	return s.queries.Get(ctx, ExpensesKey, s.client.List)
}

// Shutdown stops the limiter and gracefully shuts the listener down.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
