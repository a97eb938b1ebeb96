// Package pipeline runs fetch, filter, build and dispatch as one unit and
// reports the outcome as a Run.
package pipeline

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"baserow-bridge/internal/common/logging"
	"baserow-bridge/internal/history"
	"baserow-bridge/internal/locks"
)

// Run is the summary of one pipeline execution.
type Run = history.Run

// ErrRunInProgress is returned by Run while another run is active, in this
// process or, when a Locker is configured, in another one.
var ErrRunInProgress = stderrors.New("a pipeline run is already in progress")

// Engine executes pipeline runs one at a time.
type Engine struct {
	c       Components
	logger  logging.Logger
	running atomic.Bool

	mu   sync.RWMutex
	last *Run
}

// NewEngine creates an Engine from its components.
func NewEngine(c Components, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Engine{
		c:      c,
		logger: logger.WithFields(logging.String("component", "pipeline")),
	}
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Last returns the most recent finished run, or nil.
func (e *Engine) Last() *Run {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return nil
	}
	copied := *e.last
	return &copied
}

// Run fetches, filters, builds and dispatches once. Once started, the
// returned Run is always populated, even when err is non-nil. A call while a
// run is active fails with ErrRunInProgress and a nil Run.
func (e *Engine) Run(ctx context.Context, trigger string) (*Run, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer e.running.Store(false)

	ctx, release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return e.run(ctx, trigger)
}

// Start begins a run in the background and returns a channel receiving the
// finished Run. It fails with ErrRunInProgress without starting anything when
// another run is active. The lock is released before the Run is delivered.
func (e *Engine) Start(ctx context.Context, trigger string) (<-chan *Run, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}

	ctx, release, err := e.acquire(ctx)
	if err != nil {
		e.running.Store(false)
		return nil, err
	}

	done := make(chan *Run, 1)
	go func() {
		run, _ := e.run(ctx, trigger)
		release()
		e.running.Store(false)
		done <- run
		close(done)
	}()
	return done, nil
}

// acquire takes the cross-process lock when one is configured. The returned
// context is cancelled if the lock is lost mid-run; release is never nil.
func (e *Engine) acquire(ctx context.Context) (context.Context, func(), error) {
	if e.c.Locker == nil {
		return ctx, func() {}, nil
	}

	lock, err := e.c.Locker.AcquireLock(ctx, e.c.LockKey, e.c.LockTTL)
	if stderrors.Is(err, locks.ErrLockHeld) {
		e.logger.Info("Run lock held elsewhere", logging.String("key", e.c.LockKey))
		return nil, nil, ErrRunInProgress
	}
	if err != nil {
		return nil, nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-lock.Lost():
			e.logger.Warn("Run lock lost, cancelling run", logging.String("key", e.c.LockKey))
			cancel()
		case <-runCtx.Done():
		}
	}()

	return runCtx, func() {
		cancel()
		releaseCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer stop()
		if err := lock.Release(releaseCtx); err != nil {
			e.logger.Warn("Failed to release run lock", logging.Any("error", err))
		}
	}, nil
}

func (e *Engine) run(ctx context.Context, trigger string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
		Mode:      e.c.Mode,
		DryRun:    e.c.DryRun,
	}
	ctx = logging.ContextWithRunID(ctx, run.ID)
	logger := e.logger.WithContext(ctx)
	logger.Info("Pipeline run started", logging.String("trigger", trigger))

	err := e.execute(ctx, run, logger)
	e.finish(ctx, run, err, logger)
	return run, err
}

func (e *Engine) execute(ctx context.Context, run *Run, logger logging.Logger) error {
	rows, err := e.c.Source.FetchAll(ctx)
	if err != nil {
		return err
	}
	run.RowsFetched = len(rows)

	filtered := e.c.Filter.Apply(rows)
	run.RowsMatched = len(filtered.Rows)

	built := e.c.Builder.Build(filtered.Rows)
	run.RecordsBuilt = len(built.Records)
	run.EmptyDomains = built.EmptyDomains
	run.InvalidDomains = built.InvalidDomains

	if len(built.Records) == 0 {
		logger.Info("No records to send")
		return nil
	}

	summary, err := e.c.Sink.Dispatch(ctx, built.Records)
	if summary != nil {
		run.Mode = summary.Mode
		run.DryRun = summary.DryRun
		run.BatchesTotal = summary.BatchesTotal
		run.BatchesFailed = summary.BatchesFailed
		run.RecordsDelivered = summary.Delivered
	}
	return err
}

func (e *Engine) finish(ctx context.Context, run *Run, err error, logger logging.Logger) {
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Error = err.Error()
		logger.Error("Pipeline run failed", err, logging.Duration("duration", run.Duration()))
	} else {
		logger.Info("Pipeline run finished",
			logging.Int("rows_fetched", run.RowsFetched),
			logging.Int("rows_matched", run.RowsMatched),
			logging.Int("records", run.RecordsBuilt),
			logging.Int("delivered", run.RecordsDelivered),
			logging.Int("batches_failed", run.BatchesFailed),
			logging.Duration("duration", run.Duration()),
		)
	}

	if e.c.Store != nil {
		// Saved even when the run context is cancelled.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if saveErr := e.c.Store.Save(saveCtx, run); saveErr != nil {
			logger.Error("Failed to record run", saveErr)
		}
	}

	e.mu.Lock()
	copied := *run
	e.last = &copied
	e.mu.Unlock()
}
