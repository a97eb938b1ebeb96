// Package dispatch delivers records to the n8n webhook.
//
// Single-shot mode POSTs every record in one {"items": [...]} body and treats
// any failure as fatal. Batched mode turns the records into a Plan of
// {"body": {"domains", "mapping"}} payloads spaced by a fixed interval and
// runs it through a Driver, which counts failed batches without stopping.
package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"baserow-bridge/internal/circuitbreaker"
	"baserow-bridge/internal/common/errors"
	"baserow-bridge/internal/common/httpclient"
	"baserow-bridge/internal/common/logging"
	"baserow-bridge/internal/records"
)

// Dispatch modes
const (
	ModeSingle  = "single"
	ModeBatched = "batched"
)

// DefaultBatchSize is used when Options.BatchSize is not set.
const DefaultBatchSize = 1000

// Options configures a Dispatcher.
type Options struct {
	URL                string
	Mode               string
	BatchSize          int
	BatchInterval      time.Duration
	ProgressInterval   time.Duration
	Timeout            time.Duration
	CircuitBreaker     bool
	DryRun             bool
	InsecureSkipVerify bool
}

// Summary describes one dispatch.
type Summary struct {
	Mode          string        `json:"mode"`
	DryRun        bool          `json:"dry_run"`
	Records       int           `json:"records"`
	BatchesTotal  int           `json:"batches_total"`
	BatchesFailed int           `json:"batches_failed"`
	Delivered     int           `json:"records_delivered"`
	Steps         []StepOutcome `json:"steps,omitempty"`
}

// Dispatcher posts records to the webhook.
type Dispatcher struct {
	opts    Options
	client  *httpclient.Client
	sleeper Sleeper
	logger  logging.Logger
}

// New creates a Dispatcher. The circuit breaker, when enabled, stops
// hammering a webhook that keeps failing; later batches then fail fast.
func New(opts Options, logger logging.Logger) (*Dispatcher, error) {
	if opts.URL == "" {
		return nil, errors.ConfigError("dispatch: webhook URL is required")
	}
	switch opts.Mode {
	case "":
		opts.Mode = ModeSingle
	case ModeSingle, ModeBatched:
	default:
		return nil, errors.ConfigError("dispatch: unknown mode " + opts.Mode)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.String("component", "dispatch"))

	client := httpclient.NewClient(
		httpclient.WithTimeout(opts.Timeout),
		httpclient.WithInsecureSkipVerify(opts.InsecureSkipVerify),
	)
	if opts.CircuitBreaker {
		client.WithCircuitBreaker(circuitbreaker.New("n8n-webhook", circuitbreaker.DefaultConfig(), logger))
	}

	return &Dispatcher{
		opts:    opts,
		client:  client,
		sleeper: TimerSleeper{},
		logger:  logger,
	}, nil
}

// WithSleeper replaces the wall-clock sleeper used between batches.
func (d *Dispatcher) WithSleeper(s Sleeper) *Dispatcher {
	d.sleeper = s
	return d
}

// Plan returns the steps Dispatch would run for recs.
func (d *Dispatcher) Plan(recs []records.Record) Plan {
	if d.opts.Mode == ModeBatched {
		return BatchPlan(recs, d.opts.BatchSize, d.opts.BatchInterval)
	}
	return SinglePlan(recs)
}

// Dispatch sends recs according to the configured mode. In single mode a
// failed POST is returned as a dispatch error. In batched mode failures are
// only counted in the summary and the error is reserved for cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, recs []records.Record) (*Summary, error) {
	logger := d.logger.WithContext(ctx)
	plan := d.Plan(recs)

	summary := &Summary{
		Mode:         d.opts.Mode,
		DryRun:       d.opts.DryRun,
		Records:      len(recs),
		BatchesTotal: len(plan),
	}

	if d.opts.DryRun {
		logger.Info("Dry run, nothing sent",
			logging.Int("records", len(recs)),
			logging.Int("steps", len(plan)),
		)
		return summary, nil
	}

	if d.opts.Mode == ModeSingle {
		return d.dispatchSingle(ctx, plan, summary)
	}

	logger.Info("Dispatching in batches",
		logging.Int("records", len(recs)),
		logging.Int("batches", len(plan)),
		logging.Int("batch_size", d.opts.BatchSize),
		logging.Duration("interval", d.opts.BatchInterval),
	)

	driver := NewDriver(d.sendStep, d.sleeper, d.opts.ProgressInterval, d.logger)
	outcomes, err := driver.Run(ctx, plan)
	summary.Steps = outcomes
	for _, o := range outcomes {
		if o.Succeeded() {
			summary.Delivered += o.Items
		} else {
			summary.BatchesFailed++
		}
	}

	logger.Info("Batch dispatch finished",
		logging.Int("batches", summary.BatchesTotal),
		logging.Int("attempted", len(outcomes)),
		logging.Int("failed", summary.BatchesFailed),
		logging.Int("delivered", summary.Delivered),
	)
	if err != nil {
		return summary, errors.DispatchError("batch dispatch interrupted", err)
	}
	return summary, nil
}

func (d *Dispatcher) dispatchSingle(ctx context.Context, plan Plan, summary *Summary) (*Summary, error) {
	step := plan[0]
	logger := d.logger.WithContext(ctx)
	logger.Info("Sending records", logging.Int("records", step.Items))

	resp, err := d.post(ctx, step.Payload)
	outcome := StepOutcome{Name: step.Name, Items: step.Items, Err: err}
	if err != nil {
		outcome.Error = err.Error()
		summary.BatchesFailed = 1
		summary.Steps = []StepOutcome{outcome}
		return summary, errors.DispatchError("webhook rejected records", err)
	}

	outcome.Duration = resp.Duration
	summary.Steps = []StepOutcome{outcome}
	summary.Delivered = step.Items
	logger.Info("Records sent",
		logging.Int("status", resp.StatusCode),
		logging.String("response", string(resp.Body)),
	)
	return summary, nil
}

func (d *Dispatcher) sendStep(ctx context.Context, step Step) error {
	_, err := d.post(ctx, step.Payload)
	return err
}

func (d *Dispatcher) post(ctx context.Context, payload interface{}) (*httpclient.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.InternalError("cannot encode webhook payload", err)
	}
	return d.client.Do(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     d.opts.URL,
		Body:    body,
		Headers: map[string]string{"Content-Type": "application/json"},
	})
}
