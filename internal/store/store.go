// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/diagnostic"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store persists diagnostic reports in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID       string
	Source      string
	StartedAt   time.Time
	FinishedAt  time.Time
	ScaleFactor float64
	Clean       bool
	Summary     diagnostic.Summary
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS diagnostic_runs (
        run_id UUID PRIMARY KEY,
        source TEXT NOT NULL,
        started_at TIMESTAMPTZ NOT NULL,
        finished_at TIMESTAMPTZ NOT NULL,
        scale_factor DOUBLE PRECISION NOT NULL,
        scale_resolved BOOLEAN NOT NULL,
        scale_transform TEXT NOT NULL,
        clean BOOLEAN NOT NULL,
        summary JSONB NOT NULL,
        warnings JSONB NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS diagnostic_runs_source_idx ON diagnostic_runs (source, started_at DESC);`,
	`CREATE TABLE IF NOT EXISTS component_results (
        run_id UUID NOT NULL REFERENCES diagnostic_runs (run_id) ON DELETE CASCADE,
        component_key TEXT NOT NULL,
        component_id TEXT NOT NULL,
        list_kind TEXT NOT NULL,
        start_index INTEGER NOT NULL,
        item_count INTEGER NOT NULL,
        total_at_level INTEGER NOT NULL,
        status TEXT NOT NULL,
        accuracy TEXT,
        measured_total DOUBLE PRECISION,
        rendered_total DOUBLE PRECISION,
        delta DOUBLE PRECISION,
        dominant TEXT,
        discrepancy JSONB,
        PRIMARY KEY (run_id, component_key)
    );`,
	`CREATE TABLE IF NOT EXISTS column_results (
        run_id UUID NOT NULL REFERENCES diagnostic_runs (run_id) ON DELETE CASCADE,
        column_index INTEGER NOT NULL,
        column_height DOUBLE PRECISION NOT NULL,
        content_bottom DOUBLE PRECISION NOT NULL,
        overrun DOUBLE PRECISION NOT NULL,
        has_overrun BOOLEAN NOT NULL,
        first_overflow INTEGER NOT NULL,
        PRIMARY KEY (run_id, column_index)
    );`,
}

const sqlInsertRun = `
    INSERT INTO diagnostic_runs (run_id, source, started_at, finished_at, scale_factor, scale_resolved, scale_transform, clean, summary, warnings)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`

const sqlRecentRuns = `
    SELECT run_id, source, started_at, finished_at, scale_factor, clean, summary
    FROM diagnostic_runs
    WHERE source = $1
    ORDER BY started_at DESC
    LIMIT $2;
`

var (
	componentColumns = []string{
		"run_id", "component_key", "component_id", "list_kind", "start_index", "item_count", "total_at_level",
		"status", "accuracy", "measured_total", "rendered_total", "delta", "dominant", "discrepancy",
	}
	columnColumns = []string{
		"run_id", "column_index", "column_height", "content_bottom", "overrun", "has_overrun", "first_overflow",
	}
)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	s.log.Debug("Schema is up to date.")
	return nil
}

// PersistReport writes a report and all its rows in a single transaction.
func (s *Store) PersistReport(ctx context.Context, report *diagnostic.Report) error {
	if report == nil {
		return errors.New("cannot persist a nil report")
	}

	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	warnings := report.Warnings
	if warnings == nil {
		warnings = []diagnostic.Warning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit returns ErrTxClosed.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, sqlInsertRun,
		report.RunID,
		report.Source,
		report.StartedAt.UTC(),
		report.FinishedAt.UTC(),
		report.Scale.Factor,
		report.Scale.Resolved,
		report.Scale.Transform,
		report.Clean(),
		string(summary),
		string(warningsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	if len(report.Components) > 0 {
		if err := s.copyComponents(ctx, tx, report); err != nil {
			return err
		}
	}
	if len(report.Columns) > 0 {
		if err := s.copyColumns(ctx, tx, report); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Persisted diagnostic run.",
		zap.String("run_id", report.RunID),
		zap.Int("components", len(report.Components)),
		zap.Int("columns", len(report.Columns)))
	return nil
}

func (s *Store) copyComponents(ctx context.Context, tx pgx.Tx, report *diagnostic.Report) error {
	rows := make([][]interface{}, len(report.Components))
	for i, c := range report.Components {
		// Unmatched components have no comparison; those columns stay NULL.
		var accuracy, dominant, discrepancy *string
		var measured, rendered, delta *float64
		if d := c.Discrepancy; d != nil {
			raw, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("failed to encode discrepancy for %s: %w", c.Key, err)
			}
			acc, dom, disc := string(d.Accuracy), string(d.Dominant), string(raw)
			m, r, dl := d.Measured.TotalHeight, d.Rendered.TotalHeight, d.Delta
			accuracy, dominant, discrepancy = &acc, &dom, &disc
			measured, rendered, delta = &m, &r, &dl
		}
		rows[i] = []interface{}{
			report.RunID, c.Key.String(), c.Key.ComponentID, c.Key.ListKind,
			c.Key.StartIndex, c.Key.Count, c.Key.TotalAtLevel,
			string(c.Status), accuracy, measured, rendered, delta, dominant, discrepancy,
		}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"component_results"}, componentColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy component results: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("mismatch in copied component count: expected %d, got %d", len(rows), n)
	}
	return nil
}

func (s *Store) copyColumns(ctx context.Context, tx pgx.Tx, report *diagnostic.Report) error {
	rows := make([][]interface{}, len(report.Columns))
	for i, c := range report.Columns {
		rows[i] = []interface{}{
			report.RunID, c.ColumnIndex, c.ColumnLogicalHeight, c.CumulativeContentBottom,
			c.Overrun, c.HasOverrun, c.FirstOverflow,
		}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"column_results"}, columnColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy column results: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("mismatch in copied column count: expected %d, got %d", len(rows), n)
	}
	return nil
}

// RecentRuns lists up to limit runs for source, newest first.
func (s *Store) RecentRuns(ctx context.Context, source string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, sqlRecentRuns, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var summary []byte
		if err := rows.Scan(&r.RunID, &r.Source, &r.StartedAt, &r.FinishedAt, &r.ScaleFactor, &r.Clean, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if err := json.Unmarshal(summary, &r.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary of run %s: %w", r.RunID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
