package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/parsynth/internal/pipeline"
	"github.com/roach88/parsynth/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - replay this run only
}

// ReplayPass compares one recorded pass with its replay.
type ReplayPass struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Stored   string `json:"stored"`
	Replayed string `json:"replayed"`
	Match    bool   `json:"match"`
}

// RunReplay is the replay outcome of one run.
type RunReplay struct {
	RunID     string       `json:"run_id"`
	Identical bool         `json:"identical"`
	Passes    []ReplayPass `json:"passes"`
	Error     string       `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs         []RunReplay `json:"runs"`
	TotalRuns    int         `json:"total_runs"`
	AllIdentical bool        `json:"all_identical"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run recorded runs and verify they reproduce",
		Long: `Rebuild the input network of each recorded run, run its pass list
again and compare the network fingerprint after every pass and at the end
with the recorded ones. Replays are not recorded.

Exit codes:
  0 - Every replay reproduced its run
  1 - A replay diverged
  2 - Command error (database not found, unknown run, etc.)

Examples:
  parsynth replay --db runs.db
  parsynth replay --db runs.db --run 01928f3a-...
  parsynth replay --db runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	st, err := openExistingStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var runIDs []string
	if opts.RunID != "" {
		runIDs = []string{opts.RunID}
	} else {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, r := range runs {
			runIDs = append(runIDs, r.ID)
		}
	}

	result := ReplayResult{
		Runs:         make([]RunReplay, 0, len(runIDs)),
		TotalRuns:    len(runIDs),
		AllIdentical: true,
	}
	for _, id := range runIDs {
		rr, err := st.Replay(ctx, id, pipeline.WithLogger(opts.Logger()))
		if errors.Is(err, sql.ErrNoRows) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run %s not found", id), nil)
			return NewExitError(ExitCommandError, "run not found: "+id)
		}
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", id), err)
		}
		formatter.VerboseLog("Replayed run %s: %d pass(es)", id, len(rr.Passes))

		run := toRunReplay(rr)
		if !run.Identical {
			result.AllIdentical = false
		}
		result.Runs = append(result.Runs, run)
	}

	if formatter.Format == "json" {
		if result.AllIdentical {
			return formatter.Success(result)
		}
		if err := formatter.Fail(ErrCodeReplay, "replay diverged from the recorded run", result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "replay diverged")
	}
	return outputReplayText(formatter, result)
}

func toRunReplay(rr *store.ReplayResult) RunReplay {
	run := RunReplay{RunID: rr.RunID, Identical: rr.Identical, Passes: make([]ReplayPass, len(rr.Passes))}
	for i, d := range rr.Passes {
		run.Passes[i] = ReplayPass{Index: d.Index, Name: d.Name, Stored: d.Stored, Replayed: d.Replayed, Match: d.Match}
	}
	if rr.Err != nil {
		run.Error = rr.Err.Error()
	}
	return run
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	if result.TotalRuns == 0 {
		fmt.Fprintln(formatter.Writer, "No runs found in database.")
		return nil
	}

	fmt.Fprintf(formatter.Writer, "Replay Summary: %d run(s)\n\n", result.TotalRuns)
	for _, run := range result.Runs {
		if run.Identical {
			formatter.OK("%s", run.RunID)
		} else {
			formatter.Bad("%s", run.RunID)
		}
		for _, p := range run.Passes {
			if !p.Match || formatter.Verbose {
				fmt.Fprintf(formatter.Writer, "  %d %-24s match=%t\n", p.Index, p.Name, p.Match)
			}
		}
		if run.Error != "" {
			fmt.Fprintf(formatter.Writer, "  error: %s\n", run.Error)
		}
	}

	if !result.AllIdentical {
		fmt.Fprintln(formatter.Writer)
		formatter.Bad("Replay diverged")
		return NewExitError(ExitFailure, "replay diverged")
	}
	fmt.Fprintln(formatter.Writer)
	formatter.OK("All runs reproduced")
	return nil
}
