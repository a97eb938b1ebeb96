// Package history keeps one summary row per pipeline run.
package history

import (
	"context"
	"time"
)

// Run triggers
const (
	TriggerCLI      = "cli"
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
)

// Run summarizes one pipeline run.
type Run struct {
	ID               string    `json:"run_id"`
	Trigger          string    `json:"trigger"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	RowsFetched      int       `json:"rows_fetched"`
	RowsMatched      int       `json:"rows_matched"`
	RecordsBuilt     int       `json:"records_built"`
	EmptyDomains     int       `json:"empty_domains"`
	InvalidDomains   int       `json:"invalid_domains"`
	Mode             string    `json:"mode"`
	DryRun           bool      `json:"dry_run"`
	BatchesTotal     int       `json:"batches_total"`
	BatchesFailed    int       `json:"batches_failed"`
	RecordsDelivered int       `json:"records_delivered"`
	Error            string    `json:"error,omitempty"`
}

// Succeeded reports whether the run finished without a fatal error.
func (r *Run) Succeeded() bool {
	return r.Error == ""
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists run summaries.
type Store interface {
	Save(ctx context.Context, run *Run) error
	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]*Run, error)
	Close() error
}
