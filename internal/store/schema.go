package store

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    browser     TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    passed      BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS step_results (
    run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq            INTEGER NOT NULL,
    scenario_group TEXT NOT NULL,
    step           TEXT NOT NULL,
    status         TEXT NOT NULL,
    error          TEXT,
    duration_ms    BIGINT NOT NULL,
    console_errors JSONB NOT NULL DEFAULT '[]',
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS failure_reports (
    run_id         TEXT NOT NULL,
    scenario_group TEXT NOT NULL,
    step           TEXT NOT NULL,
    failure        TEXT NOT NULL,
    console_errors JSONB NOT NULL DEFAULT '[]',
    captured_at    TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the run-results tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
