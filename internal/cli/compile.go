package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/parsynth/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledNetwork is one compiled network description.
type CompiledNetwork struct {
	Name     string       `json:"name"`
	Snapshot *ir.Snapshot `json:"network"`
}

// CompilationResult holds every network found under the path.
type CompilationResult struct {
	Networks []CompiledNetwork `json:"networks"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <path>",
		Short: "Compile CUE network descriptions to snapshots",
		Long: `Compile the networks declared under "network" in a CUE package or file.

Each network is checked against the description schema and printed as a
snapshot, the JSON form read by the scenario harness and the run store.
Structural validation is left to the validate command.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := loadNetworks(formatter, path)
	if err != nil {
		return err
	}

	result := &CompilationResult{Networks: make([]CompiledNetwork, 0, len(loaded.Networks))}
	for _, decl := range loaded.Networks {
		formatter.VerboseLog("Compiled network: %s", decl.Name)
		result.Networks = append(result.Networks, CompiledNetwork{Name: decl.Name, Snapshot: decl.Snapshot})
	}

	if opts.Output != "" {
		if err := writeSnapshots(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	formatter.OK("Compiled %d network(s)", len(result.Networks))
	fmt.Fprintln(formatter.Writer)
	for _, n := range result.Networks {
		fmt.Fprintf(formatter.Writer, "  %s: %d process(es), %d connection(s), %d input(s), %d output(s)\n",
			n.Name, len(n.Snapshot.Processes), len(n.Snapshot.Edges), len(n.Snapshot.Inputs), len(n.Snapshot.Outputs))
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote snapshots to %s\n", outputFile)
	}
	return nil
}

// writeSnapshots writes the compiled networks as indented JSON.
func writeSnapshots(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshots: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
