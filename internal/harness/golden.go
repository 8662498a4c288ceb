package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/parsynth/internal/ir"
)

// TraceSnapshot captures the pass trace and schedule of a scenario run.
// Fingerprints are left out so golden files stay readable and survive
// changes to the hashing domain.
type TraceSnapshot struct {
	ScenarioName string      `json:"scenario"`
	RunID        string      `json:"run_id,omitempty"`
	Status       string      `json:"status"`
	Trace        []PassTrace `json:"passes"`
	Schedule     []ir.Id     `json:"schedule"`
}

// NewTraceSnapshot captures the trace of result for scenario.
func NewTraceSnapshot(scenario *Scenario, result *Result) *TraceSnapshot {
	return &TraceSnapshot{
		ScenarioName: scenario.Name,
		RunID:        scenario.RunID,
		Status:       result.Status,
		Trace:        result.Trace,
		Schedule:     result.Schedule,
	}
}

// Marshal renders the snapshot as canonical JSON, the golden file format.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.Canonical())
}

// Canonical converts the snapshot to a canonical value for
// ir.MarshalCanonical.
func (s *TraceSnapshot) Canonical() ir.VObject {
	passes := make(ir.VArray, len(s.Trace))
	for i, p := range s.Trace {
		obj := ir.VObject{
			"index":     ir.VInt(p.Index),
			"name":      ir.VString(p.Name),
			"rewrites":  ir.VInt(p.Rewrites),
			"changed":   ir.VBool(p.Changed),
			"processes": ir.VInt(p.Processes),
		}
		if p.Error != "" {
			obj["error"] = ir.VString(p.Error)
		}
		passes[i] = obj
	}
	order := make(ir.VArray, len(s.Schedule))
	for i, id := range s.Schedule {
		order[i] = ir.VString(id)
	}

	result := ir.VObject{
		"scenario": ir.VString(s.ScenarioName),
		"status":   ir.VString(s.Status),
		"passes":   passes,
		"schedule": order,
	}
	if s.RunID != "" {
		result["run_id"] = ir.VString(s.RunID)
	}
	return result
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails or the result does not pass.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		return fmt.Errorf("scenario %s failed: %v", scenario.Name, result.Errors)
	}

	return assertGolden(t, scenario.Name, NewTraceSnapshot(scenario, result))
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Status:       result.Status,
		Trace:        result.Trace,
		Schedule:     result.Schedule,
	}
	return assertGolden(t, scenarioName, &snapshot)
}

func assertGolden(t *testing.T, name string, snapshot *TraceSnapshot) error {
	t.Helper()

	traceJSON, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)

	return nil
}
