package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/parsynth/internal/ir"
	"github.com/roach88/parsynth/internal/pipeline"
	"github.com/roach88/parsynth/internal/store"
)

// ScheduleOptions holds flags for the schedule command.
type ScheduleOptions struct {
	*RootOptions
	Network  string
	Database string   // record the run here when set
	Target   string   // overrides the config target
	Passes   []string // overrides the config pass order
}

// PassSummary is one executed pass as printed by schedule and runs.
type PassSummary struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Rewrites int    `json:"rewrites"`
	Changed  bool   `json:"changed"`
	Error    string `json:"error,omitempty"`
}

// ScheduleResult is the outcome of one pipeline run.
type ScheduleResult struct {
	Network     string        `json:"network"`
	RunID       string        `json:"run_id"`
	Target      string        `json:"target"`
	Status      string        `json:"status"`
	Passes      []PassSummary `json:"passes"`
	Schedule    []ir.Id       `json:"schedule"`
	Fingerprint string        `json:"fingerprint"`
	Stats       ir.Stats      `json:"stats"`
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schedule <path>",
		Short: "Rewrite a network and compute its execution order",
		Long: `Run the configured passes over a network and schedule the result.

The pass order comes from --config (TOML), or the cuda defaults. With --db
the run, every pass snapshot and the schedule are recorded in a SQLite
store for later inspection with runs and replay.

Exit codes:
  0 - Network scheduled
  1 - Invalid network, or a pass or the scheduler failed
  2 - Command error (path not found, bad config, etc.)

Examples:
  parsynth schedule ./networks --network chains
  parsynth schedule ./networks --target c
  parsynth schedule ./networks --config parsynth.toml --db runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Network, "network", "", "network to schedule (required when several are declared)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringVar(&opts.Target, "target", "", "override the config target (c|cuda)")
	cmd.Flags().StringSliceVar(&opts.Passes, "passes", nil, "override the pass order (comma separated)")

	return cmd
}

func runSchedule(ctx context.Context, opts *ScheduleOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	cfg, err := opts.PipelineConfig()
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading config", err)
	}
	if opts.Target != "" {
		cfg.Target = pipeline.Target(opts.Target)
	}
	if len(opts.Passes) > 0 {
		cfg.Passes = opts.Passes
	}

	decl, n, err := loadNetwork(formatter, path, opts.Network)
	if err != nil {
		return err
	}

	pipeOpts := []pipeline.Option{pipeline.WithLogger(opts.Logger())}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "opening database", err)
		}
		defer st.Close()
		pipeOpts = append(pipeOpts, pipeline.WithRecorder(st))
	}

	p, err := pipeline.New(cfg, pipeOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	formatter.VerboseLog("Pass order: %v", p.PassOrder())

	res, runErr := p.Run(ctx, n)
	if res == nil {
		_ = formatter.Error(ErrCodePipeline, runErr.Error(), nil)
		return WrapExitError(ExitFailure, "running pipeline", runErr)
	}

	result := ScheduleResult{
		Network:     decl.Name,
		RunID:       res.RunID,
		Target:      string(cfg.Target),
		Status:      string(res.Status),
		Passes:      summarizePasses(res.Passes),
		Schedule:    res.Schedule,
		Fingerprint: res.Fingerprint,
		Stats:       n.Stats(),
	}
	if result.Schedule == nil {
		result.Schedule = []ir.Id{}
	}

	if runErr != nil {
		if formatter.Format == "json" {
			if err := formatter.Fail(ErrCodePipeline, runErr.Error(), result); err != nil {
				return err
			}
		} else {
			formatter.Bad("%s: run %s failed", result.Network, result.RunID)
			printPasses(formatter, result.Passes)
			fmt.Fprintf(formatter.Writer, "\n  %v\n", runErr)
		}
		return WrapExitError(ExitFailure, "pipeline failed", runErr)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	formatter.OK("%s: scheduled %d leaf(s) (run %s)", result.Network, len(result.Schedule), result.RunID)
	printPasses(formatter, result.Passes)
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintln(formatter.Writer, "Schedule:")
	for i, id := range result.Schedule {
		fmt.Fprintf(formatter.Writer, "  %d. %s\n", i+1, id)
	}
	return nil
}

func summarizePasses(passes []pipeline.PassResult) []PassSummary {
	out := make([]PassSummary, len(passes))
	for i, p := range passes {
		out[i] = PassSummary{Index: p.Index, Name: p.Name, Rewrites: p.Rewrites, Changed: p.Changed()}
		if p.Err != nil {
			out[i].Error = p.Err.Error()
		}
	}
	return out
}

func printPasses(formatter *OutputFormatter, passes []PassSummary) {
	for _, p := range passes {
		state := "unchanged"
		if p.Changed {
			state = "changed"
		}
		if p.Error != "" {
			state = "failed: " + p.Error
		}
		fmt.Fprintf(formatter.Writer, "  %d %-24s %d rewrite(s), %s\n", p.Index, p.Name, p.Rewrites, state)
	}
}
