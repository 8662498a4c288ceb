package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Directory(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), networksDir)
	require.NoError(t, err)

	assert.Contains(t, out, "Compiled 3 network(s)")
	assert.Contains(t, out, "chains: 6 process(es)")
	assert.Contains(t, out, "accumulate: 3 process(es)")
}

func TestCompile_JSON(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), filepath.Join(networksDir, "section.cue"))
	require.NoError(t, err)

	status, res := decode[CompilationResult](t, out)
	assert.Equal(t, "ok", status)
	require.Len(t, res.Networks, 1)
	assert.Equal(t, "section", res.Networks[0].Name)
	require.NotNil(t, res.Networks[0].Snapshot)
	assert.Len(t, res.Networks[0].Snapshot.Processes, 4)
	assert.Len(t, res.Networks[0].Snapshot.Edges, 4)
}

func TestCompile_OutputFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}),
		filepath.Join(networksDir, "chains.cue"), "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote snapshots to")

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "chains"`)
	assert.Contains(t, string(data), `"kind": "unzip"`)
}

func TestCompile_NotFound(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Loading failed")
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestCompile_SchemaErrorJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.cue", `package bad

network: bad: {
	processes: {
		m: {kind: "teleport"}
	}
}
`)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	status, errs := decode[[]CLIError](t, out)
	assert.Equal(t, "error", status)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeCompile, errs[0].Code)
	assert.Contains(t, errs[0].Message, "teleport")
}
