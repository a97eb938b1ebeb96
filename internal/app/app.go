// Package app wires configuration, run history, the pipeline engine and the
// status server into the commands of the CLI.
package app

import (
	"context"
	"time"

	"baserow-bridge/internal/common/logging"
	"baserow-bridge/internal/config"
	"baserow-bridge/internal/history"
	"baserow-bridge/internal/locks"
	"baserow-bridge/internal/pipeline"
	"baserow-bridge/internal/redis"
)

// App holds all the application dependencies
type App struct {
	Config *config.Config
	// Store is nil when HISTORY_DSN is empty.
	Store history.Store
	// Redis is nil when REDIS_ADDR is empty.
	Redis  *redis.Client
	Engine *pipeline.Engine
	Logger logging.Logger
}

// New creates a new application instance with all dependencies
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	if err := app.initializeStorage(ctx); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}

	var recorder pipeline.Recorder
	if app.Store != nil {
		recorder = app.Store
	}
	var locker pipeline.Locker
	if app.Redis != nil {
		locker = locks.NewManager(app.Redis, logging.GetGlobalLogger())
	}

	engine, err := pipeline.FromConfig(cfg, recorder, locker, logging.GetGlobalLogger())
	if err != nil {
		app.Cleanup()
		return nil, err
	}
	app.Engine = engine

	return app, nil
}

func (a *App) initializeStorage(ctx context.Context) error {
	if !a.Config.HistoryEnabled() {
		a.Logger.Debug("Run history disabled")
		return nil
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := history.NewSQLStore(openCtx, a.Config.HistoryDriver, a.Config.HistoryDSN)
	if err != nil {
		return err
	}
	a.Store = store
	a.Logger.Info("Run history enabled", logging.String("driver", a.Config.HistoryDriver))
	return nil
}

func (a *App) initializeRedis(ctx context.Context) error {
	if !a.Config.RunLockEnabled() {
		return nil
	}

	client, err := redis.NewClient(ctx, &redis.Config{
		Address:  a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	if err != nil {
		return err
	}
	a.Redis = client
	a.Logger.Info("Run lock enabled",
		logging.String("redis", a.Config.RedisAddr),
		logging.String("key", a.Config.RunLockKey()),
	)
	return nil
}

// Cleanup releases resources
func (a *App) Cleanup() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("Failed to close redis client", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error("Failed to close run history", err)
		}
	}
}
