package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/laundrydesk/laundrydesk/internal/config"
	"github.com/laundrydesk/laundrydesk/internal/database"
)

const usage = "usage: migrate up|down|status|redo|version|reset [args]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.LogLevel})))

	ctx := context.Background()

	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, os.Args[1], os.Args[2:]...); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}
