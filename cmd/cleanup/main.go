// Command cleanup deletes read notifications older than the configured
// retention. It is intended to be invoked by an external cron job when the
// in-process scheduler's purge job is turned off.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/heartmarshall/satstream-ledger/internal/adapter/postgres"
	"github.com/heartmarshall/satstream-ledger/internal/adapter/postgres/notification"
	"github.com/heartmarshall/satstream-ledger/internal/app"
	"github.com/heartmarshall/satstream-ledger/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	if cfg.Database.Driver != config.DriverPostgres {
		logger.Error("cleanup needs the postgres driver", slog.String("driver", cfg.Database.Driver))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	repo := notification.New(pool)

	threshold := time.Now().UTC().Add(-cfg.Notifications.ReadRetention)

	deleted, err := repo.DeleteReadBefore(ctx, threshold)
	if err != nil {
		logger.Error("purge read notifications failed",
			slog.String("error", err.Error()),
			slog.Time("threshold", threshold),
		)
		os.Exit(1)
	}

	logger.Info("purge read notifications completed",
		slog.Int("deleted", deleted),
		slog.Time("threshold", threshold),
	)
}
