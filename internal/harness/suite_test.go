package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", inlineScenario)
	writeFile(t, dir, "nested/a.yml", inlineScenario)
	writeFile(t, dir, "notes.txt", "not a scenario")

	paths, err := FindScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml"), filepath.Join(dir, "nested", "a.yml")}, paths)

	single, err := FindScenarios(paths[0])
	require.NoError(t, err)
	assert.Equal(t, paths[:1], single)

	_, err = FindScenarios(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRunSuite_Testdata(t *testing.T) {
	result, err := RunSuite("testdata/scenarios")
	require.NoError(t, err)
	assert.Equal(t, 6, result.TotalScenarios)
	assert.Equal(t, 6, result.Passed, result.Failures)
	assert.Zero(t, result.Failed)
}

func TestRunSuite_CollectsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.yaml", inlineScenario)
	writeFile(t, dir, "broken.yaml", "name: broken\n")
	writeFile(t, dir, "wrong.yaml", `
name: wrong
description: "Asserts a count the network does not have"
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
    count: 2
`)

	result, err := RunSuite(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
	assert.Contains(t, result.Failures[1].Error, "scenario assertions failed")
}
