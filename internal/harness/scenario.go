package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/parsynth/internal/ir"
	"github.com/roach88/parsynth/internal/pipeline"
)

// Scenario defines a conformance test scenario.
// A scenario runs the pipeline over one network and asserts on the
// rewritten network, the pass trace and the schedule.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Network is an inline network snapshot. Exactly one of Network and
	// Source must be set.
	Network *ir.Snapshot `yaml:"network,omitempty"`

	// Source is a CUE file declaring networks, relative to the scenario
	// file location.
	Source string `yaml:"source,omitempty"`

	// NetworkName selects a network from Source. It may be omitted when
	// Source declares exactly one network.
	NetworkName string `yaml:"network_name,omitempty"`

	// Config selects the target and passes. Missing keys keep the
	// pipeline.DefaultConfig values.
	Config ConfigStep `yaml:"config,omitempty"`

	// ExpectError, when set, requires the run to fail with an error whose
	// message contains it.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the final network, pass trace and schedule.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run ID.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// ConfigStep is the YAML form of pipeline.Config.
type ConfigStep struct {
	Target   string   `yaml:"target,omitempty"`
	Coalesce *bool    `yaml:"coalesce,omitempty"`
	Passes   []string `yaml:"passes,omitempty"`
}

// PipelineConfig merges the step over pipeline.DefaultConfig.
func (c ConfigStep) PipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	if c.Target != "" {
		cfg.Target = pipeline.Target(c.Target)
	}
	if c.Coalesce != nil {
		cfg.Coalesce = *c.Coalesce
	}
	cfg.Passes = c.Passes
	return cfg
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "sections": number of contained sections left in the final network
	// - "data_parallel": number of data parallel sections left
	// - "kind_count": number of processes of Kind
	// - "functions": function names carried by Process, in order
	// - "schedule_before": Before is scheduled before After
	// - "schedule_valid": the schedule passes schedule.Verify
	// - "pass_changed": whether pass Pass changed the network
	Type string `yaml:"type"`

	// Count is the expected number (sections, data_parallel, kind_count).
	Count int `yaml:"count,omitempty"`

	// Kind is a process kind name (kind_count).
	Kind string `yaml:"kind,omitempty"`

	// Process is a process Id (functions).
	Process string `yaml:"process,omitempty"`

	// Functions are the expected function names (functions).
	Functions []string `yaml:"functions,omitempty"`

	// Before and After are process Ids (schedule_before).
	Before string `yaml:"before,omitempty"`
	After  string `yaml:"after,omitempty"`

	// Pass is a pass name and Changed the expected flag (pass_changed).
	Pass    string `yaml:"pass,omitempty"`
	Changed *bool  `yaml:"changed,omitempty"`
}

// Assertion type constants.
const (
	AssertSections       = "sections"
	AssertDataParallel   = "data_parallel"
	AssertKindCount      = "kind_count"
	AssertFunctions      = "functions"
	AssertScheduleBefore = "schedule_before"
	AssertScheduleValid  = "schedule_valid"
	AssertPassChanged    = "pass_changed"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// Source paths are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the source path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Source != "" && !filepath.IsAbs(scenario.Source) && basePath != "" {
		scenario.Source = filepath.Join(basePath, scenario.Source)
	}
	if scenario.Source != "" {
		if _, err := os.Stat(scenario.Source); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: source file not found: %s", scenario.Source)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. A relative source path is kept as is.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if (s.Network == nil) == (s.Source == "") {
		return fmt.Errorf("exactly one of network and source is required")
	}

	if s.NetworkName != "" && s.Source == "" {
		return fmt.Errorf("network_name requires source")
	}

	if err := s.Config.PipelineConfig().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if len(s.Assertions) == 0 && s.ExpectError == "" {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSections, AssertDataParallel:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertKindCount:
		if _, err := ir.ParseKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for kind_count", index)
		}
	case AssertFunctions:
		if a.Process == "" {
			return fmt.Errorf("assertions[%d]: process is required for functions", index)
		}
		if len(a.Functions) == 0 {
			return fmt.Errorf("assertions[%d]: functions list is required for functions", index)
		}
	case AssertScheduleBefore:
		if a.Before == "" || a.After == "" {
			return fmt.Errorf("assertions[%d]: before and after are required for schedule_before", index)
		}
	case AssertScheduleValid:
	case AssertPassChanged:
		if a.Pass == "" {
			return fmt.Errorf("assertions[%d]: pass is required for pass_changed", index)
		}
		if a.Changed == nil {
			return fmt.Errorf("assertions[%d]: changed is required for pass_changed", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
