package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"baserow-bridge/internal/auth"
	"baserow-bridge/internal/common/logging"
	"baserow-bridge/internal/config"
	"baserow-bridge/internal/handlers"
	"baserow-bridge/internal/history"
	"baserow-bridge/internal/scheduler"
	"baserow-bridge/internal/server"
)

const shutdownTimeout = 30 * time.Second

// Options are the command-line overrides applied on top of the environment.
type Options struct {
	EnvFile  string
	LogLevel string
	DryRun   bool
}

// Bootstrap loads the env file and configuration, applies overrides,
// validates the result and sets up the global logger. The returned closer
// flushes and releases the log output.
func Bootstrap(opts Options) (*config.Config, func(), error) {
	if err := config.LoadEnvFile(opts.EnvFile, opts.EnvFile != ""); err != nil {
		return nil, nil, err
	}

	cfg := config.Load()
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.DryRun {
		cfg.DryRun = true
	}

	closeLog, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		logging.MustSync()
		_ = closeLog()
	}

	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		cleanup()
		return nil, nil, err
	}
	return cfg, cleanup, nil
}

// RunOnce executes a single pipeline run and returns its summary.
func RunOnce(ctx context.Context, cfg *config.Config) (*history.Run, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return nil, err
	}
	defer app.Cleanup()

	logging.Info("Starting pipeline run",
		logging.String("table_id", cfg.BaserowTableID),
		logging.String("mode", cfg.DispatchMode),
		logging.Any("dry_run", cfg.DryRun),
	)
	return app.Engine.Run(ctx, history.TriggerCLI)
}

// Serve runs the pipeline on cfg.Schedule and exposes the status API on
// cfg.ListenAddr until ctx is done or SIGINT/SIGTERM arrives.
func Serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	sched, err := scheduler.New(cfg.Schedule, app.Engine, logging.GetGlobalLogger())
	if err != nil {
		return err
	}

	var store history.Store
	if app.Store != nil {
		store = app.Store
	}
	h := handlers.New(ctx, app.Engine, store, logging.GetGlobalLogger())
	if cfg.APIAuthEnabled() {
		verifier, err := auth.New(cfg.JWTSecret, logging.GetGlobalLogger())
		if err != nil {
			return err
		}
		h.WithAuth(verifier.RequireAuth)
		logging.Info("API token required for POST /runs")
	}
	srv := server.New(handlers.NewRouter(h, logging.GetGlobalLogger()), cfg.ListenAddr)

	serveErr, err := srv.Start()
	if err != nil {
		logging.Error("Server failed to start", err)
		return err
	}
	sched.Start(ctx)
	logging.Info("Serving", logging.String("addr", srv.Addr()), logging.String("schedule", cfg.Schedule))

	select {
	case <-ctx.Done():
		logging.Info("Shutting down...")
	case err = <-serveErr:
		logging.Error("Server stopped unexpectedly", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error("Server forced to shutdown", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := sched.Stop(shutdownCtx); err != nil {
			logging.Error("Scheduler did not stop in time", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := waitIdle(shutdownCtx, app.Engine.Running); err != nil {
			logging.Error("Pipeline run did not finish in time", err)
			return err
		}
		return nil
	})
	if waitErr := g.Wait(); err == nil {
		err = waitErr
	}

	logging.Info("Server exited")
	return err
}

// waitIdle polls running until it reports false or ctx is done.
func waitIdle(ctx context.Context, running func() bool) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for running() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
