package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"gastos/internal/amqp"
	"gastos/internal/api"
	"gastos/internal/cache"
	"gastos/internal/cli"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/ui"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWeb)
	cfg := cli.LoadAndValidateConfig(logger)

	client, err := api.New(cfg.APIBaseURL, api.WithTimeout(cfg.APITimeout))
	if err != nil {
		logger.Error("Failed to create API client", "error", err, "base_url", cfg.APIBaseURL)
		os.Exit(1)
	}

	queries := cache.NewListCache[core.Expense](cache.QueryOptions{
		StaleTime:    cfg.QueryStaleTime,
		Retry:        cfg.QueryRetry,
		RetryDelay:   cache.RetryBackoff,
		GCTime:       cfg.QueryGCTime,
		FetchTimeout: 2 * cfg.APITimeout * time.Duration(cfg.QueryRetry+1),
	})
	caches := cache.NewManager()
	caches.Register(queries)

	srv, err := ui.NewServer(":"+cfg.WebPort, client, queries, ui.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to create web server", "error", err)
		os.Exit(1)
	}

	// Change events from the API let every open page see mutations made
	// elsewhere. Without a broker the cache only refreshes on local writes.
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, "")
		if err != nil {
			logger.Warn("Change events unavailable, continuing without them", "error", err)
			events = nil
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if events != nil {
			if err := events.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
	})
	caches.StartCleanup(ctx, 10*time.Minute)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting gastos web", "port", cfg.WebPort, "api", cfg.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if events != nil {
		g.Go(func() error {
			err := events.ConsumeExpenseChanges(gctx, func(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
				logger.DebugContext(ctx, "Expense changed elsewhere, invalidating list",
					applog.FieldAction, string(msg.Action),
					applog.FieldExpenseID, msg.ID)
				srv.InvalidateExpenses(ctx)
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change event consumption failed", "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.WebPort)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Web server stopped gracefully")
}
