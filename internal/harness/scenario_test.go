package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parsynth/internal/pipeline"
)

const inlineScenario = `
name: inline
description: "Inline network"
network:
  processes:
    - id: m
      kind: map
      functions:
        - {name: f, return: {name: int}, body: "return x;", inputs: [{name: x, type: {name: int}}]}
      in_ports: [{id: in}]
      out_ports: [{id: out}]
  inputs: [{process: m, port: in}]
  outputs: [{process: m, port: out}]
config:
  target: c
assertions:
  - type: kind_count
    kind: map
    count: 1
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Inline(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inline.yaml", inlineScenario)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "inline", scenario.Name)
	require.NotNil(t, scenario.Network)
	require.Len(t, scenario.Network.Processes, 1)
	assert.Equal(t, "map", scenario.Network.Processes[0].Kind)
	assert.Equal(t, "int", scenario.Network.Processes[0].Functions[0].Return.Name)
	assert.Equal(t, "m", string(scenario.Network.Outputs[0].Process))
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertKindCount, scenario.Assertions[0].Type)
	assert.Equal(t, pipeline.TargetC, scenario.Config.PipelineConfig().Target)
}

func TestLoadScenario_ResolvesSource(t *testing.T) {
	dir := t.TempDir()
	cue := writeFile(t, dir, "networks/n.cue", "package networks\n")
	path := writeFile(t, dir, "scenarios/s.yaml", `
name: s
description: "d"
source: ../networks/n.cue
assertions:
  - type: schedule_valid
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(cue), filepath.Clean(scenario.Source))

	_, err = LoadScenarioWithBasePath(path, t.TempDir())
	assert.ErrorContains(t, err, "source file not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestConfigStep_PipelineConfig(t *testing.T) {
	off := false
	tests := []struct {
		name     string
		step     ConfigStep
		expected pipeline.Config
	}{
		{"defaults", ConfigStep{}, pipeline.DefaultConfig()},
		{"target", ConfigStep{Target: "c"}, pipeline.Config{Target: pipeline.TargetC, Coalesce: true}},
		{"coalesce off", ConfigStep{Coalesce: &off}, pipeline.Config{Target: pipeline.TargetCUDA}},
		{
			"passes",
			ConfigStep{Passes: []string{pipeline.PassRemoveRedundant}},
			pipeline.Config{Target: pipeline.TargetCUDA, Coalesce: true, Passes: []string{pipeline.PassRemoveRedundant}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.step.PipelineConfig())
		})
	}
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			"missing name",
			"description: d\nsource: x.cue\nassertions: [{type: schedule_valid}]\n",
			"name is required",
		},
		{
			"missing description",
			"name: n\nsource: x.cue\nassertions: [{type: schedule_valid}]\n",
			"description is required",
		},
		{
			"no network",
			"name: n\ndescription: d\nassertions: [{type: schedule_valid}]\n",
			"exactly one of network and source",
		},
		{
			"both networks",
			"name: n\ndescription: d\nsource: x.cue\nnetwork: {processes: []}\nassertions: [{type: schedule_valid}]\n",
			"exactly one of network and source",
		},
		{
			"network name without source",
			"name: n\ndescription: d\nnetwork: {processes: []}\nnetwork_name: x\nassertions: [{type: schedule_valid}]\n",
			"network_name requires source",
		},
		{
			"unknown pass",
			"name: n\ndescription: d\nsource: x.cue\nconfig: {passes: [nope]}\nassertions: [{type: schedule_valid}]\n",
			`unknown pass "nope"`,
		},
		{
			"no assertions",
			"name: n\ndescription: d\nsource: x.cue\nassertions: []\n",
			"assertions list is required",
		},
		{
			"unknown field",
			"name: n\ndescription: d\nsource: x.cue\nassertion: []\n",
			"failed to parse YAML",
		},
		{
			"unknown assertion type",
			"name: n\ndescription: d\nsource: x.cue\nassertions: [{type: trace_order}]\n",
			`unknown assertion type "trace_order"`,
		},
		{
			"bad kind",
			"name: n\ndescription: d\nsource: x.cue\nassertions: [{type: kind_count, kind: blob, count: 1}]\n",
			`unknown process kind "blob"`,
		},
		{
			"functions without process",
			"name: n\ndescription: d\nsource: x.cue\nassertions: [{type: functions, functions: [f]}]\n",
			"process is required for functions",
		},
		{
			"schedule_before without after",
			"name: n\ndescription: d\nsource: x.cue\nassertions: [{type: schedule_before, before: a}]\n",
			"before and after are required",
		},
		{
			"pass_changed without changed",
			"name: n\ndescription: d\nsource: x.cue\nassertions: [{type: pass_changed, pass: remove-redundant}]\n",
			"changed is required",
		},
		{
			"negative count",
			"name: n\ndescription: d\nsource: x.cue\nassertions: [{type: sections, count: -1}]\n",
			"count must be non-negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_ExpectErrorNeedsNoAssertions(t *testing.T) {
	scenario, err := ParseScenario([]byte("name: n\ndescription: d\nsource: x.cue\nexpect_error: E208\nassertions: []\n"))
	require.NoError(t, err)
	assert.Equal(t, "E208", scenario.ExpectError)
}
