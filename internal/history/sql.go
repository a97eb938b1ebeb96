package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"baserow-bridge/internal/common/errors"
)

// Supported database/sql drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

var migrations = map[string]string{
	DriverSQLite: `CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id TEXT PRIMARY KEY,
		triggered_by TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		rows_fetched INTEGER NOT NULL DEFAULT 0,
		rows_matched INTEGER NOT NULL DEFAULT 0,
		records_built INTEGER NOT NULL DEFAULT 0,
		empty_domains INTEGER NOT NULL DEFAULT 0,
		invalid_domains INTEGER NOT NULL DEFAULT 0,
		mode TEXT NOT NULL DEFAULT '',
		dry_run BOOLEAN NOT NULL DEFAULT 0,
		batches_total INTEGER NOT NULL DEFAULT 0,
		batches_failed INTEGER NOT NULL DEFAULT 0,
		records_delivered INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	)`,
	DriverPostgres: `CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id TEXT PRIMARY KEY,
		triggered_by TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		rows_fetched INTEGER NOT NULL DEFAULT 0,
		rows_matched INTEGER NOT NULL DEFAULT 0,
		records_built INTEGER NOT NULL DEFAULT 0,
		empty_domains INTEGER NOT NULL DEFAULT 0,
		invalid_domains INTEGER NOT NULL DEFAULT 0,
		mode TEXT NOT NULL DEFAULT '',
		dry_run BOOLEAN NOT NULL DEFAULT FALSE,
		batches_total INTEGER NOT NULL DEFAULT 0,
		batches_failed INTEGER NOT NULL DEFAULT 0,
		records_delivered INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	)`,
}

const runColumns = `run_id, triggered_by, started_at, finished_at, rows_fetched, rows_matched,
	records_built, empty_domains, invalid_domains, mode, dry_run, batches_total,
	batches_failed, records_delivered, error`

// SQLStore stores runs through database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore opens dsn with driver ("sqlite3" or "pgx"), checks the
// connection and creates the runs table when missing.
func NewSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	schema, ok := migrations[driver]
	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("history: unsupported driver %q", driver))
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.ConnectionError("history: failed to open database", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.ConnectionError("history: failed to ping database", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.InternalError("history: failed to migrate database", err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

// Save inserts run.
func (s *SQLStore) Save(ctx context.Context, run *Run) error {
	query := s.rebind(`INSERT INTO pipeline_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Trigger, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.RowsFetched, run.RowsMatched, run.RecordsBuilt,
		run.EmptyDomains, run.InvalidDomains, run.Mode, run.DryRun,
		run.BatchesTotal, run.BatchesFailed, run.RecordsDelivered, run.Error,
	)
	if err != nil {
		return errors.InternalError("history: failed to save run", err).WithContext("run_id", run.ID)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := s.rebind(`SELECT ` + runColumns + ` FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.InternalError("history: failed to list runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(
			&run.ID, &run.Trigger, &run.StartedAt, &run.FinishedAt,
			&run.RowsFetched, &run.RowsMatched, &run.RecordsBuilt,
			&run.EmptyDomains, &run.InvalidDomains, &run.Mode, &run.DryRun,
			&run.BatchesTotal, &run.BatchesFailed, &run.RecordsDelivered, &run.Error,
		); err != nil {
			return nil, errors.InternalError("history: failed to scan run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.InternalError("history: failed to list runs", err)
	}
	return runs, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
