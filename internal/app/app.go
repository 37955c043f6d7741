// Package app provides the top-level application lifecycle. It wires the
// ledger, lending facility, venues, registry, gateway, stores, and
// notifications, then runs the background workers until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/flasharb/internal/config"
)

// statsInterval is how often the cumulative counters are logged.
const statsInterval = 10 * time.Minute

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()

	// Deps is populated by Run and exposed for embedding callers that submit
	// requests programmatically.
	Deps *Dependencies
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the background workers, and blocks until
// the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("assets", len(a.cfg.Assets)),
		slog.Int("venues", len(a.cfg.Venues)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	a.Deps = deps

	a.logger.InfoContext(ctx, "application ready",
		slog.String("owner", deps.Owner.Hex()),
	)

	g, ctx := errgroup.WithContext(ctx)

	if deps.Feed != nil {
		g.Go(func() error {
			return deps.Feed.Run(ctx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				snap := deps.Registry.Snapshot()
				a.logger.InfoContext(ctx, "cumulative stats",
					slog.Uint64("total_trades", snap.TotalTrades),
					slog.String("total_profit", snap.TotalProfit.String()),
					slog.Bool("paused", snap.Paused),
				)
			}
		}
	})

	err = g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
