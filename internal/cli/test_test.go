package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const failingScenario = `
name: wrong_count
description: "Expects a map that the C target never removes to be gone"
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
    count: 0
`

func TestTest_ScenariosWithGolden(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--golden", goldenDir)
	require.NoError(t, err)

	assert.Contains(t, out, "fuse_section")
	assert.Contains(t, out, "rejects_unbounded")
	assert.Contains(t, out, "6 passed, 0 failed, 6 total")
}

func TestTest_FilterJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), scenariosDir, "--filter", "fuse*")
	require.NoError(t, err)

	status, res := decode[TestResult](t, out)
	assert.Equal(t, "ok", status)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Scenarios, 1)
	assert.Equal(t, "fuse_section", res.Scenarios[0].Name)
	assert.True(t, res.Scenarios[0].Pass)
}

func TestTest_UpdateThenCompare(t *testing.T) {
	golden := filepath.Join(t.TempDir(), "golden")

	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--golden", golden, "--update")
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(golden, "zipwith1_c.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(goldenDir, "zipwith1_c.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	_, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--golden", golden)
	require.NoError(t, err)
}

func TestTest_GoldenMismatch(t *testing.T) {
	golden := t.TempDir()
	writeFile(t, golden, "fuse_section.golden", `{"scenario":"fuse_section"}`)

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--golden", golden, "--filter", "fuse*")
	require.Error(t, err)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match")
}

func TestTest_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong_count.yaml", failingScenario)

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	status, res := decode[TestResult](t, out)
	assert.Equal(t, "error", status)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Scenarios, 1)
	assert.NotEmpty(t, res.Scenarios[0].Errors)
}

func TestTest_UpdateNeedsGolden(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--update")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_NoScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
