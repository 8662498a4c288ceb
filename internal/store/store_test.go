package store

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parsynth/internal/ir"
	"github.com/roach88/parsynth/internal/pipeline"
	"github.com/roach88/parsynth/internal/testutil"
)

var started = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// record runs cfg over n with s as the recorder.
func record(t *testing.T, s *Store, ids pipeline.RunIDGenerator, cfg pipeline.Config, n *ir.Network) (*pipeline.Result, error) {
	t.Helper()
	p, err := pipeline.New(cfg,
		pipeline.WithLogger(slog.New(slog.DiscardHandler)),
		pipeline.WithRecorder(s),
		pipeline.WithRunIDGenerator(ids),
		pipeline.WithClock(func() time.Time { return started }),
	)
	require.NoError(t, err)
	return p.Run(context.Background(), n)
}

func stages(bodies ...string) func(branch, stage int) string {
	return func(_, stage int) string { return bodies[stage] }
}

func TestOpen_Pragmas(t *testing.T) {
	s := openStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = record(t, s, testutil.NewFixedRunIDGenerator("run-1"), pipeline.DefaultConfig(), testutil.Section(t, "f", "f"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1, "reopening keeps existing runs")
}

func TestRecordRun(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	n := testutil.Chains(t, 4, stages("f", "g"), 2)
	inputFP := n.MustFingerprint()

	res, err := record(t, s, testutil.NewFixedRunIDGenerator("run-1"), pipeline.DefaultConfig(), n)
	require.NoError(t, err)

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), run.Seq)
	assert.Equal(t, "cuda", run.Target)
	assert.Equal(t, res.Passes[0].Name, run.Passes[0])
	assert.Len(t, run.Passes, 6)
	assert.Equal(t, inputFP, run.InputFingerprint)
	assert.Equal(t, "succeeded", run.Status)
	assert.Equal(t, res.Fingerprint, run.OutputFingerprint)
	assert.True(t, started.Equal(run.StartedAt))
	assert.True(t, started.Equal(run.FinishedAt))
	assert.Equal(t, ir.SnapshotVersion, run.SnapshotVersion)
	assert.Equal(t, ir.ToolVersion, run.ToolVersion)

	passes, err := s.ReadPasses(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, passes, 6)
	for i, p := range passes {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, res.Passes[i].Name, p.Name)
		assert.Equal(t, res.Passes[i].Rewrites, p.Rewrites)
		assert.Equal(t, res.Passes[i].Changed(), p.Changed())
		assert.Empty(t, p.Error)
	}

	order, err := s.ReadSchedule(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, res.Schedule, order)
}

func TestRecordRun_Failed(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	cfg := pipeline.Config{Target: pipeline.TargetCUDA, Passes: []string{pipeline.PassFuseUnzipMapZip}}

	_, err := record(t, s, testutil.NewFixedRunIDGenerator("run-1"), cfg, testutil.Chains(t, 2, stages("s", "s"), 2))
	require.Error(t, err)

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", run.Status)

	passes, err := s.ReadPasses(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.NotEmpty(t, passes[0].Error)

	order, err := s.ReadSchedule(ctx, "run-1")
	require.NoError(t, err)
	assert.NotNil(t, order)
	assert.Empty(t, order)
}

func TestSnapshots_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	n := testutil.Feedback(t)
	input := n.Snapshot()

	res, err := record(t, s, testutil.NewFixedRunIDGenerator("run-1"), pipeline.Config{Target: pipeline.TargetC}, n)
	require.NoError(t, err)

	got, err := s.ReadInput(ctx, "run-1")
	require.NoError(t, err)
	wantFP, err := input.Fingerprint()
	require.NoError(t, err)
	gotFP, err := got.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, wantFP, gotFP)

	rebuilt, err := ir.FromSnapshot(got)
	require.NoError(t, err)
	assert.Equal(t, 3, rebuilt.NumProcesses())

	last, err := s.ReadPassSnapshot(ctx, "run-1", len(res.Passes)-1)
	require.NoError(t, err)
	lastFP, err := last.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, res.Fingerprint, lastFP)
}

func TestRead_Missing(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.ReadRun(ctx, "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = s.ReadInput(ctx, "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = s.ReadPassSnapshot(ctx, "nope", 0)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
	passes, err := s.ReadPasses(ctx, "nope")
	require.NoError(t, err)
	assert.NotNil(t, passes)
	assert.Empty(t, passes)
}

func TestBeginRun_DuplicateID(t *testing.T) {
	s := openStore(t)
	ids := testutil.NewFixedRunIDGenerator("run-1")
	cfg := pipeline.Config{Target: pipeline.TargetC}
	_, err := record(t, s, ids, cfg, testutil.Linear(t, "f"))
	require.NoError(t, err)

	_, err = record(t, s, ids, cfg, testutil.Linear(t, "f"))
	assert.ErrorContains(t, err, "record run start")
}

func TestListRuns_Order(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	ids := testutil.NewSequentialRunIDGenerator("run")

	for _, body := range []string{"a", "b", "a"} {
		_, err := record(t, s, ids, pipeline.Config{Target: pipeline.TargetC}, testutil.Linear(t, body))
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for i, run := range runs {
		assert.Equal(t, int64(i+1), run.Seq)
	}
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "run-3", runs[2].ID)

	matches, err := s.FindRunsByFingerprint(ctx, runs[0].InputFingerprint)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "run-1", matches[0].ID)
	assert.Equal(t, "run-3", matches[1].ID)
}

func TestReplay_Identical(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	_, err := record(t, s, testutil.NewFixedRunIDGenerator("run-1"), pipeline.DefaultConfig(),
		testutil.Chains(t, 3, stages("f", "g", "h"), 3))
	require.NoError(t, err)

	res, err := s.Replay(ctx, "run-1", pipeline.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	assert.NoError(t, res.Err)
	assert.True(t, res.Identical)
	require.Len(t, res.Passes, 6)
	for _, d := range res.Passes {
		assert.True(t, d.Match, d.Name)
	}

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "replays are not recorded")
}

func TestReplay_Missing(t *testing.T) {
	_, err := openStore(t).Replay(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDiffPasses(t *testing.T) {
	stored := []PassRecord{
		{Index: 0, Name: "a", FingerprintAfter: "x"},
		{Index: 1, Name: "b", FingerprintAfter: "y"},
	}
	replayed := []pipeline.PassResult{
		{Index: 0, Name: "a", FingerprintAfter: "x"},
	}

	diffs, identical := diffPasses(stored, replayed)
	assert.False(t, identical)
	require.Len(t, diffs, 2)
	assert.True(t, diffs[0].Match)
	assert.False(t, diffs[1].Match)
	assert.Equal(t, "b", diffs[1].Name)
	assert.Empty(t, diffs[1].Replayed)
}
