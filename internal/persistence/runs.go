package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveRun saves or updates a run record.
// Uses ON CONFLICT to make saves idempotent.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, task, input_path, taxa, outcome, detail, diagnosis_path, pairwise_path, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task = excluded.task,
			input_path = excluded.input_path,
			taxa = excluded.taxa,
			outcome = excluded.outcome,
			detail = excluded.detail,
			diagnosis_path = excluded.diagnosis_path,
			pairwise_path = excluded.pairwise_path,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at
	`, run.ID, run.Task, run.InputPath, run.Taxa, run.Outcome, run.Detail,
		run.Diagnosis, run.Pairwise, run.StartedAt, run.EndedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, task, input_path, taxa, outcome, detail, diagnosis_path, pairwise_path, started_at, ended_at
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.Task, &run.InputPath, &run.Taxa, &run.Outcome,
		&run.Detail, &run.Diagnosis, &run.Pairwise, &run.StartedAt, &run.EndedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs in reverse chronological order. A non-positive
// limit returns everything.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task, input_path, taxa, outcome, detail, diagnosis_path, pairwise_path, started_at, ended_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(&run.ID, &run.Task, &run.InputPath, &run.Taxa, &run.Outcome,
			&run.Detail, &run.Diagnosis, &run.Pairwise, &run.StartedAt, &run.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}
