// internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/measurediff/internal/diagnostic"
	"github.com/xkilldash9x/measurediff/internal/measure"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newTestStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return s, mockPool
}

func testReport() *diagnostic.Report {
	d := measure.Compare(
		measure.NewHeightBreakdown(150, 20, 30, 100, 4),
		measure.NewHeightBreakdown(200, 20, 80, 100, 4),
		measure.DefaultAccuracyTolerance,
	)
	start := time.Date(2026, 2, 10, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	r := &diagnostic.Report{
		RunID:      "5f0c6a8e-8d7e-4e55-9d0a-0b6f2f9f5e11",
		Source:     "snapshots/spellbook.html",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Scale:      diagnostic.ScaleOutcome{Factor: 0.777, Transform: "matrix(0.777, 0, 0, 0.777, 0, 0)", Resolved: true, Uniform: true},
		Components: []diagnostic.ComponentResult{
			{Key: measure.MeasurementKey{ComponentID: "c1", ListKind: "spell-list", Count: 4, TotalAtLevel: 4}, Status: diagnostic.StatusCompared, Discrepancy: &d},
			{Key: measure.MeasurementKey{ComponentID: "c2", ListKind: "spell-list", Count: 2, TotalAtLevel: 2}, Status: diagnostic.StatusNotFound, Column: -1, Entry: -1},
		},
		Columns: []measure.ColumnOverrunReport{
			measure.CheckColumn(180, []float64{200}, 12, 1),
		},
		Summary: diagnostic.Summary{Components: 2, UnderEstimating: 1, Unmatched: 1, Columns: 1, OverrunColumns: 1},
	}
	return r
}

func expectRunInsert(mockPool pgxmock.PgxPoolIface, r *diagnostic.Report) *pgxmock.ExpectedExec {
	return mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
		WithArgs(
			r.RunID, r.Source, r.StartedAt.UTC(), r.FinishedAt.UTC(),
			r.Scale.Factor, r.Scale.Resolved, r.Scale.Transform, false,
			pgxmock.AnyArg(), `[]`,
		)
}

// -- Test Cases --

func TestNewStore(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = New(context.Background(), mockPool, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Run("applies every statement", func(t *testing.T) {
		s, mockPool := newTestStore(t, zap.NewNop())
		for _, stmt := range schemaStatements {
			mockPool.ExpectExec(flexibleSQLMatcher(stmt)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
		}

		require.NoError(t, s.EnsureSchema(context.Background()))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		s, mockPool := newTestStore(t, zap.NewNop())
		mockPool.ExpectExec(flexibleSQLMatcher(schemaStatements[0])).WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mockPool.ExpectExec(flexibleSQLMatcher(schemaStatements[1])).WillReturnError(errors.New("permission denied"))

		err := s.EnsureSchema(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to apply schema statement 1")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPersistReport(t *testing.T) {
	ctx := context.Background()

	t.Run("persists run, components and columns without rollback errors", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		s, mockPool := newTestStore(t, zap.New(observedZapCore))
		r := testReport()

		mockPool.ExpectBegin()
		expectRunInsert(mockPool, r).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"component_results"}, componentColumns).WillReturnResult(2)
		mockPool.ExpectCopyFrom(pgx.Identifier{"column_results"}, columnColumns).WillReturnResult(1)
		// Commit, then the deferred Rollback which reports ErrTxClosed.
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.PersistReport(ctx, r))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("skips copies for an empty report", func(t *testing.T) {
		s, mockPool := newTestStore(t, zap.NewNop())
		r := testReport()
		r.Components, r.Columns = nil, nil

		mockPool.ExpectBegin()
		expectRunInsert(mockPool, r).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.PersistReport(ctx, r))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("rolls back when a copy fails", func(t *testing.T) {
		s, mockPool := newTestStore(t, zap.NewNop())
		r := testReport()
		copyErr := errors.New("copy failed")

		mockPool.ExpectBegin()
		expectRunInsert(mockPool, r).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"component_results"}, componentColumns).WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := s.PersistReport(ctx, r)
		require.Error(t, err)
		assert.ErrorIs(t, err, copyErr)
		assert.Contains(t, err.Error(), "failed to copy component results")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("rejects a short copy", func(t *testing.T) {
		s, mockPool := newTestStore(t, zap.NewNop())
		r := testReport()

		mockPool.ExpectBegin()
		expectRunInsert(mockPool, r).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"component_results"}, componentColumns).WillReturnResult(1)
		mockPool.ExpectRollback()

		err := s.PersistReport(ctx, r)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch in copied component count: expected 2, got 1")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("rolls back when the run insert fails", func(t *testing.T) {
		s, mockPool := newTestStore(t, zap.NewNop())
		r := testReport()

		mockPool.ExpectBegin()
		expectRunInsert(mockPool, r).WillReturnError(errors.New("duplicate key"))
		mockPool.ExpectRollback()

		err := s.PersistReport(ctx, r)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert run "+r.RunID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("logs a failed rollback", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		s, mockPool := newTestStore(t, zap.New(observedZapCore))
		r := testReport()

		mockPool.ExpectBegin()
		expectRunInsert(mockPool, r).WillReturnError(errors.New("boom"))
		mockPool.ExpectRollback().WillReturnError(errors.New("connection reset"))

		require.Error(t, s.PersistReport(ctx, r))
		require.Equal(t, 1, observedLogs.Len())
		assert.Equal(t, "Failed to rollback transaction", observedLogs.All()[0].Message)
	})

	t.Run("begin failure", func(t *testing.T) {
		s, mockPool := newTestStore(t, zap.NewNop())
		mockPool.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := s.PersistReport(ctx, testReport())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
	})

	t.Run("nil report", func(t *testing.T) {
		s, _ := newTestStore(t, zap.NewNop())
		assert.Error(t, s.PersistReport(ctx, nil))
	})
}

func TestRecentRuns(t *testing.T) {
	ctx := context.Background()
	cols := []string{"run_id", "source", "started_at", "finished_at", "scale_factor", "clean", "summary"}

	t.Run("scans rows newest first", func(t *testing.T) {
		s, mockPool := newTestStore(t, zap.NewNop())
		newer := time.Date(2026, 2, 11, 8, 0, 0, 0, time.UTC)
		older := newer.Add(-24 * time.Hour)

		rows := pgxmock.NewRows(cols).
			AddRow("run-b", "page.html", newer, newer.Add(time.Second), 0.75, true, []byte(`{"components":3,"accurate":3}`)).
			AddRow("run-a", "page.html", older, older.Add(time.Second), 0.75, false, []byte(`{"components":3,"accurate":1,"under_estimating":2}`))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentRuns)).WithArgs("page.html", 5).WillReturnRows(rows)

		runs, err := s.RecentRuns(ctx, "page.html", 5)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-b", runs[0].RunID)
		assert.True(t, runs[0].Clean)
		assert.Equal(t, 3, runs[0].Summary.Accurate)
		assert.Equal(t, 2, runs[1].Summary.UnderEstimating)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("defaults the limit", func(t *testing.T) {
		s, mockPool := newTestStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentRuns)).WithArgs("x", 10).WillReturnRows(pgxmock.NewRows(cols))

		runs, err := s.RecentRuns(ctx, "x", 0)
		require.NoError(t, err)
		assert.Empty(t, runs)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("bad summary json", func(t *testing.T) {
		s, mockPool := newTestStore(t, zap.NewNop())
		now := time.Now()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentRuns)).WithArgs("x", 1).
			WillReturnRows(pgxmock.NewRows(cols).AddRow("run-z", "x", now, now, 1.0, true, []byte(`{`)))

		_, err := s.RecentRuns(ctx, "x", 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode summary of run run-z")
	})
}
