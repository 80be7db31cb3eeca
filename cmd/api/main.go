package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/laundrydesk/laundrydesk/internal/app"
	"github.com/laundrydesk/laundrydesk/internal/config"
	laundryHttp "github.com/laundrydesk/laundrydesk/internal/http"
	accountHandler "github.com/laundrydesk/laundrydesk/internal/http/account"
	catalogHandler "github.com/laundrydesk/laundrydesk/internal/http/catalog"
	dropOffHandler "github.com/laundrydesk/laundrydesk/internal/http/dropoff"
	exportHandler "github.com/laundrydesk/laundrydesk/internal/http/export"
	"github.com/laundrydesk/laundrydesk/internal/http/httpx"
	invoiceHandler "github.com/laundrydesk/laundrydesk/internal/http/invoice"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	services, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building services: %w", err)
	}
	defer services.Close()

	limiter, err := httpx.NewLimiter(cfg.RateLimit.Rate)
	if err != nil {
		return err
	}

	var (
		accountH = accountHandler.NewHandler(services.Accounts)
		catalogH = catalogHandler.NewHandler(services.Catalog)
		dropOffH = dropOffHandler.NewHandler(services.Ledger)
		invoiceH = invoiceHandler.NewHandler(services.Invoices)
		exportH  = exportHandler.NewHandler(services.Export)
	)

	router := laundryHttp.New(laundryHttp.Options{
		Logger:    logger,
		JWTSecret: cfg.Auth.JWTSecret,
		Limiter:   limiter,
	}, accountH, catalogH, dropOffH, invoiceH, exportH)

	if cfg.Auth.JWTSecret == "" {
		slog.Warn("JWT_SECRET is empty, API authentication is disabled")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
