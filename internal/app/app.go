// Package app assembles the ledger from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/satstream-ledger/internal/adapter/redisbus"
	"github.com/heartmarshall/satstream-ledger/internal/app/scheduler"
	"github.com/heartmarshall/satstream-ledger/internal/clock"
	"github.com/heartmarshall/satstream-ledger/internal/config"
	"github.com/heartmarshall/satstream-ledger/internal/eventbus"
	"github.com/heartmarshall/satstream-ledger/internal/service/funding"
	"github.com/heartmarshall/satstream-ledger/internal/service/ledger"
	"github.com/heartmarshall/satstream-ledger/internal/service/notification"
	"github.com/heartmarshall/satstream-ledger/internal/service/stats"
	"github.com/heartmarshall/satstream-ledger/internal/service/template"
	"github.com/heartmarshall/satstream-ledger/internal/transport/middleware"
	"github.com/heartmarshall/satstream-ledger/internal/transport/rest"
)

// App is the assembled ledger.
type App struct {
	Config        *config.Config
	Log           *slog.Logger
	Engine        *ledger.Engine
	Escrow        *funding.Escrow
	Notifications *notification.Service
	Stats         *stats.Service
	Templates     *template.Service

	store *storage
	bus   *eventbus.Bus
	clock clock.Clock
}

// New opens storage, restores every stream into the engine and rebuilds
// the escrow balances from them. The caller must Close the App.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	return newApp(ctx, cfg, log, clock.NewSystem())
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger, clk clock.Clock) (*App, error) {
	store, err := openStorage(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	bus := eventbus.New(log)
	escrow := funding.NewEscrow(log, cfg.Funding)
	engine := ledger.NewEngine(log, clk, cfg.Ledger,
		store.streams, store.events, store.tx, escrow, bus)

	n, err := engine.Restore(ctx)
	if err != nil {
		store.close()
		return nil, err
	}
	escrow.Replay(engine.Snapshot())

	notifications := notification.NewService(log, clk, cfg.Notifications,
		store.notifications, store.events, store.tx, engine)

	a := &App{
		Config:        cfg,
		Log:           log,
		Engine:        engine,
		Escrow:        escrow,
		Notifications: notifications,
		Stats:         stats.NewService(log, engine, escrow, notifications),
		Templates:     template.NewService(log, clk, store.templates, engine),
		store:         store,
		bus:           bus,
		clock:         clk,
	}

	if path := cfg.Templates.SeedFile; path != "" {
		res, err := a.Templates.SeedFromFile(ctx, path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("seed templates: %w", err)
		}
		log.InfoContext(ctx, "templates seeded", "file", path, "inserted", res.Inserted, "skipped", res.Skipped)
	}

	log.InfoContext(ctx, "ledger ready",
		slog.String("driver", store.driver),
		slog.Int("streams", n),
		slog.Int64("escrowed", escrow.Escrowed()),
	)
	return a, nil
}

// closeFlushTimeout applies when server.shutdown_timeout is unset.
const closeFlushTimeout = 5 * time.Second

// Flush turns every pending transition in the event log into
// notifications and returns how many it handled.
func (a *App) Flush(ctx context.Context) (int, error) {
	return a.Notifications.Drain(ctx)
}

// Close flushes pending notifications, then releases the event bus and the
// store. Events it cannot flush stay pending for the next process.
func (a *App) Close() {
	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = closeFlushTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if n, err := a.Flush(ctx); err != nil {
		a.Log.WarnContext(ctx, "flush notifications on close", "handled", n, "error", err)
	}

	a.bus.Close()
	a.store.close()
}

// Serve runs the background consumers, the maintenance scheduler and the
// ops HTTP server until ctx is cancelled or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config
	g, gctx := errgroup.WithContext(ctx)

	// bus events only wake the drainer, so a dropped one costs a poll interval
	sub := a.bus.Subscribe(eventbus.SubscribeOptions{
		Name:   "notifications",
		Buffer: cfg.Notifications.SubscriberBuffer,
		Lossy:  true,
	})
	defer sub.Close()
	g.Go(func() error { return a.Notifications.Run(gctx, sub) })

	checks := []rest.Check{{Name: "store", Pinger: a.store}}

	if cfg.Redis.Enabled {
		client, err := redisbus.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		bridgeSub := a.bus.Subscribe(eventbus.SubscribeOptions{
			Name:   "redis",
			Buffer: cfg.Notifications.SubscriberBuffer,
			Lossy:  true,
		})
		defer bridgeSub.Close()

		bridge := redisbus.NewBridge(a.Log, client, cfg.Redis)
		g.Go(func() error { return bridge.Run(gctx, bridgeSub) })
		checks = append(checks, rest.Check{Name: "redis", Pinger: redisPinger{client}, Optional: true})
	}

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(a.Log, cfg.Scheduler, a.Engine, a.Notifications)
		if err != nil {
			return err
		}
		sched.Start(gctx)
		defer sched.Stop()
	}

	srv := a.opsServer(checks)
	g.Go(func() error {
		a.Log.InfoContext(ctx, "ops server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		a.Log.Info("shutting down ops server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) opsServer(checks []rest.Check) *http.Server {
	cfg := a.Config.Server

	mux := http.NewServeMux()
	rest.NewHealthHandler(BuildVersion(), checks...).Routes(mux)

	handler := middleware.Ops(a.Log, "/live", "/ready")(mux)

	return &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// redisPinger adapts the client's Ping command to the health check.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
