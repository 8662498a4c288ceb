package harness

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/parsynth/internal/analysis"
	"github.com/roach88/parsynth/internal/ir"
	"github.com/roach88/parsynth/internal/schedule"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Trace    []PassTrace // Full pass trace for debugging context
	Schedule []ir.Id     // Final schedule for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nPass trace:\n")
	for _, p := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s rewrites=%d processes=%d\n", p.Index, p.Name, p.Rewrites, p.Processes)
	}
	if len(e.Schedule) > 0 {
		fmt.Fprintf(&buf, "Schedule: %v\n", e.Schedule)
	}

	return buf.String()
}

type checker struct {
	result   *Result
	detector *analysis.Detector
}

func (c *checker) fail(typ, expected, actual string) error {
	return &AssertionError{
		Type:     typ,
		Expected: expected,
		Actual:   actual,
		Trace:    c.result.Trace,
		Schedule: c.result.Schedule,
	}
}

// assertSections checks the number of contained sections left in the
// final network.
func (c *checker) assertSections(a Assertion) error {
	got := len(c.detector.FindContainedSections())
	if got != a.Count {
		return c.fail(AssertSections, fmt.Sprintf("%d contained sections", a.Count), fmt.Sprintf("%d", got))
	}
	return nil
}

// assertDataParallel checks the number of data parallel sections left.
func (c *checker) assertDataParallel(a Assertion) error {
	sections, err := c.detector.FindDataParallelSections()
	if err != nil {
		return c.fail(AssertDataParallel, fmt.Sprintf("%d data parallel sections", a.Count), err.Error())
	}
	if len(sections) != a.Count {
		return c.fail(AssertDataParallel, fmt.Sprintf("%d data parallel sections", a.Count), fmt.Sprintf("%d", len(sections)))
	}
	return nil
}

// assertKindCount checks how many processes of a kind the network has.
func (c *checker) assertKindCount(a Assertion) error {
	kind, err := ir.ParseKind(a.Kind)
	if err != nil {
		return err
	}
	got := c.result.Network.CountKind(kind)
	if got != a.Count {
		return c.fail(AssertKindCount, fmt.Sprintf("%d %s processes", a.Count, kind), fmt.Sprintf("%d", got))
	}
	return nil
}

// assertFunctions checks the function names a process carries, in order.
func (c *checker) assertFunctions(a Assertion) error {
	p := c.result.Network.Get(ir.Id(a.Process))
	if p == nil {
		return c.fail(AssertFunctions, fmt.Sprintf("process %s with functions %v", a.Process, a.Functions), "process not found")
	}
	names := make([]string, len(p.Functions))
	for i, fn := range p.Functions {
		names[i] = fn.Name
	}
	if !slices.Equal(names, a.Functions) {
		return c.fail(AssertFunctions, fmt.Sprintf("%s functions %v", a.Process, a.Functions), fmt.Sprintf("%v", names))
	}
	return nil
}

// assertScheduleBefore checks that one process is scheduled before another.
func (c *checker) assertScheduleBefore(a Assertion) error {
	before := slices.Index(c.result.Schedule, ir.Id(a.Before))
	after := slices.Index(c.result.Schedule, ir.Id(a.After))
	expected := fmt.Sprintf("%s scheduled before %s", a.Before, a.After)
	switch {
	case before < 0:
		return c.fail(AssertScheduleBefore, expected, fmt.Sprintf("%s not scheduled", a.Before))
	case after < 0:
		return c.fail(AssertScheduleBefore, expected, fmt.Sprintf("%s not scheduled", a.After))
	case before >= after:
		return c.fail(AssertScheduleBefore, expected,
			fmt.Sprintf("%s (pos %d) is after %s (pos %d)", a.Before, before+1, a.After, after+1))
	}
	return nil
}

// assertScheduleValid re-verifies the schedule against the final network.
func (c *checker) assertScheduleValid(Assertion) error {
	if err := schedule.Verify(c.result.Network, c.result.Schedule); err != nil {
		return c.fail(AssertScheduleValid, "valid schedule", err.Error())
	}
	return nil
}

// assertPassChanged checks whether a pass modified the network. A pass run
// more than once must match on every run.
func (c *checker) assertPassChanged(a Assertion) error {
	found := false
	for _, p := range c.result.Trace {
		if p.Name != a.Pass {
			continue
		}
		found = true
		if p.Changed != *a.Changed {
			return c.fail(AssertPassChanged, fmt.Sprintf("%s changed=%t", a.Pass, *a.Changed),
				fmt.Sprintf("pass %d changed=%t", p.Index, p.Changed))
		}
	}
	if !found {
		return c.fail(AssertPassChanged, fmt.Sprintf("%s changed=%t", a.Pass, *a.Changed), "pass not run")
	}
	return nil
}

// EvaluateAssertions runs every assertion against result and returns the
// failure messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string
	if result.Network == nil {
		return []string{"no network to evaluate assertions against"}
	}
	c := &checker{
		result:   result,
		detector: analysis.NewDetector(result.Network, analysis.WithLogger(slog.New(slog.DiscardHandler))),
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertSections:
			err = c.assertSections(assertion)
		case AssertDataParallel:
			err = c.assertDataParallel(assertion)
		case AssertKindCount:
			err = c.assertKindCount(assertion)
		case AssertFunctions:
			err = c.assertFunctions(assertion)
		case AssertScheduleBefore:
			err = c.assertScheduleBefore(assertion)
		case AssertScheduleValid:
			err = c.assertScheduleValid(assertion)
		case AssertPassChanged:
			if assertion.Changed == nil {
				err = fmt.Errorf("assertion[%d]: pass_changed requires changed", i)
			} else {
				err = c.assertPassChanged(assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
