package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/parsynth/internal/compiler"
	"github.com/roach88/parsynth/internal/ir"
	"github.com/roach88/parsynth/internal/pipeline"
	"github.com/roach88/parsynth/internal/store"
	"github.com/roach88/parsynth/internal/testutil"
)

// epoch is the fixed clock of every scenario run.
var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness is the test execution engine.
// It runs scenarios with a fixed clock and run ID.
type Harness struct {
	store  *store.Store
	runIDs *testutil.FixedRunIDGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// pipeline records into it and the trace is read back from the records.
//
// Execution flow:
// 1. Build and validate the network from the inline snapshot or the CUE source
// 2. Run the configured passes and the scheduler
// 3. Check the build and run outcome against expect_error
// 4. Read the pass trace and schedule from the store
// 5. Evaluate assertions against the final network
//
// A returned error means the scenario could not be executed at all; a
// failed expectation is reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		runIDs: testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger: slog.New(slog.DiscardHandler),
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	p, err := pipeline.New(scenario.Config.PipelineConfig(),
		pipeline.WithLogger(h.logger),
		pipeline.WithRecorder(h.store),
		pipeline.WithRunIDGenerator(h.runIDs),
		pipeline.WithClock(func() time.Time { return epoch }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	result := NewResult()
	result.RunID = h.runIDs.Generate()

	n, err := buildNetwork(scenario)
	if err != nil {
		checkRunError(result, scenario.ExpectError, fmt.Errorf("build network: %w", err))
		return result, nil
	}
	result.Network = n

	_, runErr := p.Run(ctx, n)
	checkRunError(result, scenario.ExpectError, runErr)

	if err := h.readTrace(ctx, result); err != nil {
		return nil, err
	}

	if runErr == nil {
		for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
			result.AddError(msg)
		}
	}
	return result, nil
}

func checkRunError(result *Result, expect string, err error) {
	switch {
	case err == nil && expect != "":
		result.AddError(fmt.Sprintf("expected run to fail with %q, but it succeeded", expect))
	case err != nil && expect == "":
		result.AddError(fmt.Sprintf("run failed: %v", err))
	case err != nil && !strings.Contains(err.Error(), expect):
		result.AddError(fmt.Sprintf("expected run to fail with %q, got: %v", expect, err))
	}
}

// readTrace fills the status, trace and schedule from the recorded run.
// A network rejected before the run started leaves all three empty.
func (h *Harness) readTrace(ctx context.Context, result *Result) error {
	run, err := h.store.ReadRun(ctx, result.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read run: %w", err)
	}
	result.Status = run.Status

	passes, err := h.store.ReadPasses(ctx, result.RunID)
	if err != nil {
		return fmt.Errorf("failed to read passes: %w", err)
	}
	for _, p := range passes {
		snap, err := h.store.ReadPassSnapshot(ctx, result.RunID, p.Index)
		if err != nil {
			return fmt.Errorf("failed to read pass %d snapshot: %w", p.Index, err)
		}
		result.AddPassTrace(PassTrace{
			Index:     p.Index,
			Name:      p.Name,
			Rewrites:  p.Rewrites,
			Changed:   p.Changed(),
			Processes: len(snap.Processes),
			Error:     p.Error,
		})
	}

	if result.Schedule, err = h.store.ReadSchedule(ctx, result.RunID); err != nil {
		return fmt.Errorf("failed to read schedule: %w", err)
	}
	return nil
}

func buildNetwork(s *Scenario) (*ir.Network, error) {
	if s.Network != nil {
		return compiler.BuildSnapshot(s.Network)
	}
	loaded, errs := compiler.LoadNetworks(s.Source)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	decl, err := loaded.Find(s.NetworkName)
	if err != nil {
		return nil, err
	}
	return compiler.BuildSnapshot(decl.Snapshot)
}
