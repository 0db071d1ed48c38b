// Package store persists run outcomes to PostgreSQL for trend tracking across
// CI runs. The store is optional; the harness runs fine without one.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/lockbridge/walletrun/internal/harness"
	"github.com/lockbridge/walletrun/internal/reporting"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides a PostgreSQL backed run-results repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

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

// SaveRun inserts the run row and all step results in one transaction.
func (s *Store) SaveRun(ctx context.Context, summary *reporting.RunSummary) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	const sqlRun = `
        INSERT INTO runs (id, browser, started_at, finished_at, passed)
        VALUES ($1, $2, $3, $4, $5);
    `
	if _, err := tx.Exec(ctx, sqlRun,
		summary.RunID, summary.Browser,
		summary.Started.UTC(), summary.Finished.UTC(), summary.Passed,
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", summary.RunID, err)
	}

	if len(summary.Results) > 0 {
		if err := s.persistStepResults(ctx, tx, summary.RunID, summary.Results); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) persistStepResults(ctx context.Context, tx pgx.Tx, runID string, results []harness.StepResult) error {
	rows := make([][]interface{}, len(results))
	for i, res := range results {
		var stepErr *string
		if res.Err != nil {
			msg := res.Err.Error()
			stepErr = &msg
		}

		consoleErrors, err := json.Marshal(res.ConsoleErrors)
		if err != nil {
			return fmt.Errorf("failed to marshal console errors for step %q: %w", res.Step, err)
		}
		if len(res.ConsoleErrors) == 0 {
			consoleErrors = []byte("[]")
		}

		rows[i] = []interface{}{
			runID, i,
			res.Group, res.Step, string(res.Status),
			stepErr, res.Duration.Milliseconds(),
			consoleErrors,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"step_results"},
		[]string{"run_id", "seq", "scenario_group", "step", "status", "error", "duration_ms", "console_errors"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy step results: %w", err)
	}
	if int(copyCount) != len(results) {
		return fmt.Errorf("mismatch in copied step results count: expected %d, got %d", len(results), copyCount)
	}

	return nil
}

// SaveFailureReport records the first-failure diagnostics for a run. The
// screenshot stays on disk; only its textual context lands in the database.
func (s *Store) SaveFailureReport(ctx context.Context, report harness.FailureReport) error {
	consoleErrors, err := json.Marshal(report.ConsoleErrors)
	if err != nil {
		return fmt.Errorf("failed to marshal console errors: %w", err)
	}
	if len(report.ConsoleErrors) == 0 {
		consoleErrors = []byte("[]")
	}

	const sql = `
        INSERT INTO failure_reports (run_id, scenario_group, step, failure, console_errors, captured_at)
        VALUES ($1, $2, $3, $4, $5, $6);
    `
	if _, err := s.pool.Exec(ctx, sql,
		report.RunID, report.Group, report.Step, report.Failure,
		consoleErrors, report.CapturedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert failure report for run %s: %w", report.RunID, err)
	}
	return nil
}

// GetStepResultsByRunID returns the recorded steps of a run in execution order.
func (s *Store) GetStepResultsByRunID(ctx context.Context, runID string) ([]harness.StepResult, error) {
	const query = `
        SELECT scenario_group, step, status, error, duration_ms
        FROM step_results
        WHERE run_id = $1
        ORDER BY seq ASC;
    `
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step results: %w", err)
	}
	defer rows.Close()

	var results []harness.StepResult
	for rows.Next() {
		var res harness.StepResult
		var statusStr string
		var stepErr *string
		var durationMS int64

		if err := rows.Scan(&res.Group, &res.Step, &statusStr, &stepErr, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan step result row: %w", err)
		}

		res.Status = harness.Status(statusStr)
		if stepErr != nil {
			res.Err = errors.New(*stepErr)
		}
		res.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return results, nil
}
