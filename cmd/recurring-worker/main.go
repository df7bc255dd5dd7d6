package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	tracker := services.NewRecurrenceTracker(repo, repo, int64(cfg.RecurringToleranceCents))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Recurring schedule refresher configured",
		"interval", cfg.RecurringRefreshInterval,
		"tolerance_cents", cfg.RecurringToleranceCents,
		"sqlite_db", cfg.SQLiteDBPath)

	refresh := func(now core.Date) {
		users, err := repo.UsersWithRecurring(ctx)
		if err != nil {
			logger.Error("Failed to list users with recurring schedules", "error", err)
			return
		}
		for _, uid := range users {
			updates, err := tracker.Refresh(ctx, uid, now)
			if err != nil {
				logger.Error("Recurring refresh failed", "user_id", uid, "error", err)
				continue
			}
			advanced, overdue := 0, 0
			for _, u := range updates {
				if u.Advanced {
					advanced++
				}
				if u.Overdue {
					overdue++
				}
			}
			logger.Info("Recurring refresh complete",
				"user_id", uid, "schedules", len(updates),
				"advanced", advanced, "overdue", overdue)
		}
	}

	// Run an initial pass on startup, then on the ticker.
	logger.Info("Running initial recurring refresh...")
	refresh(core.Today())

	ticker := time.NewTicker(cfg.RecurringRefreshInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh(core.Today())
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Recurring worker stopped gracefully")
}
