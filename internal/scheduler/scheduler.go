// Package scheduler runs the pipeline on a cron schedule.
package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"baserow-bridge/internal/common/errors"
	"baserow-bridge/internal/common/logging"
	"baserow-bridge/internal/history"
	"baserow-bridge/internal/pipeline"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, trigger string) (*history.Run, error)
}

// Scheduler fires Runner on a standard five-field cron expression. A tick
// that arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	spec    string
	entryID cron.EntryID
	logger  logging.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec and prepares a Scheduler; call Start to begin firing.
func New(spec string, runner Runner, logger logging.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.String("component", "scheduler"))

	s := &Scheduler{
		runner: runner,
		spec:   spec,
		logger: logger,
		ctx:    context.Background(),
	}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{logger}),
		cron.SkipIfStillRunning(cronLogger{logger}),
	))

	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid schedule %q: %v", spec, err))
	}
	s.entryID = id
	return s, nil
}

// Start begins firing. Runs receive a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Scheduler started",
		logging.String("schedule", s.spec),
		logging.Any("next_run", s.Next()),
	)
}

// Stop stops firing, cancels the active run and waits for it to return or
// for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next planned run time, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	run, err := s.runner.Run(ctx, history.TriggerSchedule)
	switch {
	case stderrors.Is(err, pipeline.ErrRunInProgress):
		s.logger.Warn("Skipping scheduled run, another run is in progress")
	case err != nil && run == nil:
		s.logger.Error("Scheduled run could not start", err)
	case err != nil:
		s.logger.Error("Scheduled run failed", err, logging.String("run_id", run.ID))
	}
}

// cronLogger routes cron's own messages to the structured logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, toFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, toFields(keysAndValues)...)
}

func toFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
