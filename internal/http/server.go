// Package http serves the expenses REST collection consumed by the views
// and by the mirror worker's reconcile job.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"gastos/internal/backend"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/middleware/security"
	"gastos/internal/middleware/trace"
)

// Options tunes the REST server.
type Options struct {
	RateLimitPerMinute int
	// RequestTimeout bounds each storage call.
	RequestTimeout time.Duration
	// TrustedProxies are CIDRs, beyond loopback and private ranges, whose
	// X-Forwarded-For is believed. The views forward their user's address
	// so each user gets their own mutation budget.
	TrustedProxies []string
}

// Server is the REST API http.Server with its middleware resources.
type Server struct {
	http.Server
	store          backend.Backend
	rateLimiter    *ratelimit.Limiter
	detector       *security.Detector
	requestTimeout time.Duration
	started        time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, store backend.Backend, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	limitCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		store:          store,
		rateLimiter:    ratelimit.NewLimiter(limitCfg),
		detector:       security.NewDetector(),
		requestTimeout: opts.RequestTimeout,
		started:        time.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			slog.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Ruta no encontrada")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Método no permitido")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	r.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	r.HandleFunc("/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	r.HandleFunc("/expenses/{id}", s.handleGetExpense).Methods(http.MethodGet)
	r.HandleFunc("/expenses/{id}", s.handleUpdateExpense).Methods(http.MethodPatch)
	r.HandleFunc("/expenses/{id}", s.handleDeleteExpense).Methods(http.MethodDelete)

	r.Use(
		trace.NewMiddleware(s.detector.ExtractClientIP).Middleware,
		s.detector.Middleware,
		security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware,
		s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			writeMessage(w, http.StatusTooManyRequests, "Demasiadas solicitudes, inténtalo más tarde")
		}),
	)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
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
