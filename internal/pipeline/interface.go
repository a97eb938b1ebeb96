package pipeline

import (
	"context"
	"time"

	"baserow-bridge/internal/baserow"
	"baserow-bridge/internal/dispatch"
	"baserow-bridge/internal/locks"
	"baserow-bridge/internal/records"
)

// Source yields every row of the configured table.
type Source interface {
	FetchAll(ctx context.Context) ([]baserow.Row, error)
}

// Sink delivers built records downstream.
type Sink interface {
	Dispatch(ctx context.Context, recs []records.Record) (*dispatch.Summary, error)
}

// Recorder persists finished runs.
type Recorder interface {
	Save(ctx context.Context, run *Run) error
}

// Locker guards runs across processes.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (locks.Lock, error)
}

// Components are the stages wired into an Engine. Store and Locker may be nil.
type Components struct {
	Source  Source
	Filter  *records.Filter
	Builder *records.Builder
	Sink    Sink
	Store   Recorder
	Locker  Locker
	LockKey string
	LockTTL time.Duration
	// Mode and DryRun are copied onto runs that end before dispatch.
	Mode   string
	DryRun bool
}
