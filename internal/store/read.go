package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fortio.org/safecast"

	"github.com/roach88/parsynth/internal/ir"
)

// RunRecord is a stored run.
type RunRecord struct {
	ID                string
	Seq               int64
	Target            string
	Passes            []string
	InputFingerprint  string
	Status            string
	OutputFingerprint string
	StartedAt         time.Time
	FinishedAt        time.Time
	SnapshotVersion   string
	ToolVersion       string
}

// PassRecord is a stored pass without its snapshot.
type PassRecord struct {
	RunID             string
	Index             int
	Name              string
	Rewrites          int
	FingerprintBefore string
	FingerprintAfter  string
	Error             string
}

// Changed reports whether the pass modified the network.
func (p PassRecord) Changed() bool {
	return p.FingerprintBefore != p.FingerprintAfter
}

const runColumns = `id, seq, target, passes, input_fingerprint, status, output_fingerprint,
	started_at, finished_at, snapshot_version, tool_version`

// ListRuns returns every run ordered by seq.
//
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC`)
}

// FindRunsByFingerprint returns the runs whose input network had the given
// fingerprint, ordered by seq.
func (s *Store) FindRunsByFingerprint(ctx context.Context, fingerprint string) ([]RunRecord, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs WHERE input_fingerprint = ? ORDER BY seq ASC`, fingerprint)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		run                   RunRecord
		passes                string
		startedAt, finishedAt string
	)
	err := row.Scan(&run.ID, &run.Seq, &run.Target, &passes, &run.InputFingerprint, &run.Status,
		&run.OutputFingerprint, &startedAt, &finishedAt, &run.SnapshotVersion, &run.ToolVersion)
	if err != nil {
		if err == sql.ErrNoRows {
			return RunRecord{}, err
		}
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	if run.Passes, err = unmarshalPassNames(passes); err != nil {
		return RunRecord{}, err
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return RunRecord{}, err
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return RunRecord{}, err
	}
	return run, nil
}

// ReadInput returns the input network snapshot of a run.
// Returns sql.ErrNoRows if the run does not exist.
func (s *Store) ReadInput(ctx context.Context, runID string) (ir.Snapshot, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT input_snapshot FROM runs WHERE id = ?`, runID).Scan(&blob)
	if err != nil {
		return ir.Snapshot{}, err
	}
	return decodeSnapshot(blob)
}

// ReadPasses returns the pass records of a run ordered by index.
//
// Returns an empty slice (not nil) if the run recorded no passes.
func (s *Store) ReadPasses(ctx context.Context, runID string) ([]PassRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, idx, name, rewrites, fingerprint_before, fingerprint_after, error
		FROM pass_records
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	passes := []PassRecord{}
	for rows.Next() {
		var (
			p             PassRecord
			idx, rewrites int64
		)
		if err := rows.Scan(&p.RunID, &idx, &p.Name, &rewrites, &p.FingerprintBefore, &p.FingerprintAfter, &p.Error); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		if p.Index, err = safecast.Conv[int](idx); err != nil {
			return nil, fmt.Errorf("scan pass index: %w", err)
		}
		if p.Rewrites, err = safecast.Conv[int](rewrites); err != nil {
			return nil, fmt.Errorf("scan pass rewrites: %w", err)
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return passes, nil
}

// ReadPassSnapshot returns the network snapshot left by pass idx of a run.
// Returns sql.ErrNoRows if there is no such pass.
func (s *Store) ReadPassSnapshot(ctx context.Context, runID string, idx int) (ir.Snapshot, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot FROM pass_records WHERE run_id = ? AND idx = ?
	`, runID, idx).Scan(&blob)
	if err != nil {
		return ir.Snapshot{}, err
	}
	return decodeSnapshot(blob)
}

// ReadSchedule returns the stored schedule of a run.
//
// Returns an empty slice (not nil) if the run has no schedule.
func (s *Store) ReadSchedule(ctx context.Context, runID string) ([]ir.Id, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT process_id FROM schedules WHERE run_id = ? ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query schedule: %w", err)
	}
	defer rows.Close()

	order := []ir.Id{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		order = append(order, ir.Id(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule: %w", err)
	}
	return order, nil
}
