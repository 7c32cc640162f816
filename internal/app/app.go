// Package app wires configuration into the runner, scheduler and HTTP
// server and owns their lifecycles.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"glbfolio/internal/config"
	"glbfolio/internal/logger"
	"glbfolio/internal/runner"
	"glbfolio/internal/scheduler"
	"glbfolio/internal/store/gormstore"
	httpapi "glbfolio/internal/transport/http"
)

type App struct {
	cfg    *config.Config
	store  *gormstore.GormStore
	runner *runner.Runner
	http   *httpapi.Server

	schedInterval  time.Duration
	schedOffset    time.Duration
	runImmediately bool
}

// NewApp builds the application object without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Run starts the HTTP server and the scheduled run loop and blocks until
// either fails or the context is canceled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)

	if a.http != nil {
		group.Go(func() error {
			logger.Infof("http: listening on %s", a.http.Addr())
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}

	if a.schedInterval > 0 {
		sched := scheduler.NewAlignedScheduler(ctx, a.schedInterval, a.schedOffset)
		sched.RunImmediately = a.runImmediately
		group.Go(func() error {
			sched.Start(func() {
				if _, err := a.runner.Run(ctx); err != nil {
					logger.Errorf("scheduled run failed: %v", err)
				}
			})
			return nil
		})
	}

	return group.Wait()
}

// Runner exposes the run loop, for manual triggering in tests and tools.
func (a *App) Runner() *runner.Runner {
	if a == nil {
		return nil
	}
	return a.runner
}

// Close releases the store.
func (a *App) Close() {
	if a == nil || a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		logger.Warnf("store close failed: %v", err)
	}
}
