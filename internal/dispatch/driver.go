package dispatch

import (
	"context"
	"time"

	"baserow-bridge/internal/common/logging"
)

// Sleeper pauses between steps. It returns early with ctx.Err() when the
// context is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper sleeps on the wall clock.
type TimerSleeper struct{}

// Sleep waits for d or until ctx is done.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendFunc delivers the payload of one step.
type SendFunc func(ctx context.Context, step Step) error

// StepOutcome records how one step went.
type StepOutcome struct {
	Name     string        `json:"name"`
	Items    int           `json:"items"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the step was delivered.
func (o StepOutcome) Succeeded() bool {
	return o.Err == nil
}

// Driver runs a Plan best effort: a failed step is recorded and the next one
// is still attempted. Only context cancellation stops the run early.
type Driver struct {
	send     SendFunc
	sleeper  Sleeper
	progress time.Duration
	logger   logging.Logger
}

// NewDriver creates a Driver. While pausing, the remaining wait is logged
// every progress interval; zero disables the countdown.
func NewDriver(send SendFunc, sleeper Sleeper, progress time.Duration, logger logging.Logger) *Driver {
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Driver{
		send:     send,
		sleeper:  sleeper,
		progress: progress,
		logger:   logger,
	}
}

// Run executes every step in order and returns one outcome per attempted
// step. The error is non-nil only when ctx was cancelled.
func (d *Driver) Run(ctx context.Context, plan Plan) ([]StepOutcome, error) {
	logger := d.logger.WithContext(ctx)
	outcomes := make([]StepOutcome, 0, len(plan))

	for _, step := range plan {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		start := time.Now()
		err := d.send(ctx, step)
		outcome := StepOutcome{
			Name:     step.Name,
			Items:    step.Items,
			Err:      err,
			Duration: time.Since(start),
		}
		if err != nil {
			outcome.Error = err.Error()
			logger.Error("Step failed", err,
				logging.String("step", step.Name),
				logging.Int("items", step.Items),
			)
		} else {
			logger.Info("Step delivered",
				logging.String("step", step.Name),
				logging.Int("items", step.Items),
				logging.Duration("duration", outcome.Duration),
			)
		}
		outcomes = append(outcomes, outcome)

		if step.DelayAfter > 0 {
			if err := d.pause(ctx, step.DelayAfter); err != nil {
				return outcomes, err
			}
		}
	}

	return outcomes, nil
}

// pause sleeps for total, split into progress-sized slices with the remaining
// time logged before each slice.
func (d *Driver) pause(ctx context.Context, total time.Duration) error {
	if d.progress <= 0 || d.progress >= total {
		d.logger.Info("Waiting before next step", logging.Duration("remaining", total))
		return d.sleeper.Sleep(ctx, total)
	}

	for remaining := total; remaining > 0; {
		d.logger.Info("Waiting before next step", logging.Duration("remaining", remaining))
		slice := d.progress
		if slice > remaining {
			slice = remaining
		}
		if err := d.sleeper.Sleep(ctx, slice); err != nil {
			return err
		}
		remaining -= slice
	}
	return nil
}
