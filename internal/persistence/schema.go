package persistence

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	task TEXT NOT NULL,
	input_path TEXT NOT NULL,
	taxa TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL CHECK (outcome IN ('done', 'fail', 'reset', 'exit')),
	detail TEXT NOT NULL DEFAULT '',
	diagnosis_path TEXT NOT NULL DEFAULT '',
	pairwise_path TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_task ON runs(task);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// initSchema creates the tables and indexes if they do not exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}
