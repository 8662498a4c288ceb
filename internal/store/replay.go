package store

import (
	"context"
	"fmt"

	"github.com/roach88/parsynth/internal/ir"
	"github.com/roach88/parsynth/internal/pipeline"
)

// PassDiff compares one stored pass with its replay.
type PassDiff struct {
	Index    int
	Name     string
	Stored   string // fingerprint after the stored pass, empty if missing
	Replayed string // fingerprint after the replayed pass, empty if missing
	Match    bool
}

// ReplayResult is the outcome of re-running a stored run.
type ReplayResult struct {
	RunID       string
	Passes      []PassDiff
	Identical   bool
	Fingerprint string // output fingerprint of the replay
	Err         error  // error returned by the replayed pipeline
}

// Replay rebuilds the input network of a stored run, runs the stored pass
// list on it again and compares the fingerprint after every pass with the
// recorded one. The replay itself is not recorded.
//
// A replay whose pipeline fails is not an error of Replay: the failure is
// reported in ReplayResult.Err and the passes that ran are still compared.
func (s *Store) Replay(ctx context.Context, runID string, opts ...pipeline.Option) (*ReplayResult, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", runID, err)
	}
	input, err := s.ReadInput(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", runID, err)
	}
	stored, err := s.ReadPasses(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", runID, err)
	}

	n, err := ir.FromSnapshot(input)
	if err != nil {
		return nil, fmt.Errorf("replay %s: rebuild input: %w", runID, err)
	}
	cfg := pipeline.Config{Target: pipeline.Target(run.Target), Passes: run.Passes}
	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", runID, err)
	}

	res, runErr := p.Run(ctx, n)
	out := &ReplayResult{RunID: runID, Err: runErr}
	var replayed []pipeline.PassResult
	if res != nil {
		replayed = res.Passes
		out.Fingerprint = res.Fingerprint
	}

	out.Passes, out.Identical = diffPasses(stored, replayed)
	if out.Fingerprint != run.OutputFingerprint {
		out.Identical = false
	}
	return out, nil
}

// diffPasses pairs stored and replayed passes by index.
func diffPasses(stored []PassRecord, replayed []pipeline.PassResult) ([]PassDiff, bool) {
	count := max(len(stored), len(replayed))
	diffs := make([]PassDiff, count)
	identical := true
	for i := range count {
		d := PassDiff{Index: i}
		if i < len(stored) {
			d.Name = stored[i].Name
			d.Stored = stored[i].FingerprintAfter
		}
		if i < len(replayed) {
			d.Name = replayed[i].Name
			d.Replayed = replayed[i].FingerprintAfter
		}
		d.Match = d.Stored != "" && d.Stored == d.Replayed
		if !d.Match {
			identical = false
		}
		diffs[i] = d
	}
	return diffs, identical
}
