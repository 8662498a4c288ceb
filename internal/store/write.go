package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/parsynth/internal/ir"
	"github.com/roach88/parsynth/internal/pipeline"
)

var _ pipeline.Recorder = (*Store)(nil)

// BeginRun inserts a run record with status "running".
// Implements pipeline.Recorder.
//
// The run is assigned the next seq. A second BeginRun with the same ID is an
// error: run IDs are unique per store.
func (s *Store) BeginRun(ctx context.Context, run pipeline.RunInfo) error {
	passes, err := marshalPassNames(run.Passes)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	input, err := encodeSnapshot(run.Input)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, target, passes, input_fingerprint, input_snapshot, status, started_at, snapshot_version, tool_version)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		string(run.Target),
		passes,
		run.Fingerprint,
		input,
		string(pipeline.StatusRunning),
		formatTime(run.StartedAt),
		ir.SnapshotVersion,
		ir.ToolVersion,
	)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	return nil
}

// RecordPass stores one pass record with the snapshot it produced.
// Implements pipeline.Recorder.
//
// Uses ON CONFLICT DO NOTHING for idempotency - re-recording the same pass
// index is silently ignored.
func (s *Store) RecordPass(ctx context.Context, runID string, pass pipeline.PassResult) error {
	snap, err := encodeSnapshot(pass.Snapshot)
	if err != nil {
		return fmt.Errorf("record pass: %w", err)
	}
	errText := ""
	if pass.Err != nil {
		errText = pass.Err.Error()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pass_records
		(run_id, idx, name, rewrites, fingerprint_before, fingerprint_after, snapshot, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		pass.Index,
		pass.Name,
		pass.Rewrites,
		pass.FingerprintBefore,
		pass.FingerprintAfter,
		snap,
		errText,
	)
	if err != nil {
		return fmt.Errorf("record pass %s/%d: %w", runID, pass.Index, err)
	}
	return nil
}

// FinishRun stores the outcome and schedule of a run in one transaction.
// Implements pipeline.Recorder.
func (s *Store) FinishRun(ctx context.Context, res *pipeline.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE runs SET status = ?, output_fingerprint = ?, finished_at = ?
		WHERE id = ?
	`, string(res.Status), res.Fingerprint, formatTime(res.FinishedAt), res.RunID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", res.RunID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", res.RunID, sql.ErrNoRows)
	}

	if err := writeSchedule(ctx, tx, res.RunID, res.Schedule); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("finish run %s: commit: %w", res.RunID, err)
	}
	return nil
}

func writeSchedule(ctx context.Context, tx *sql.Tx, runID string, order []ir.Id) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO schedules (run_id, position, process_id)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}
	defer stmt.Close()

	for i, id := range order {
		if _, err := stmt.ExecContext(ctx, runID, i, string(id)); err != nil {
			return fmt.Errorf("write schedule %s/%d: %w", runID, i, err)
		}
	}
	return nil
}
