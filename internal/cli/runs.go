package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/parsynth/internal/ir"
	"github.com/roach88/parsynth/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database    string
	Fingerprint string // only runs with this input fingerprint
}

// RunSummary is one stored run.
type RunSummary struct {
	ID                string        `json:"id"`
	Seq               int64         `json:"seq"`
	Target            string        `json:"target"`
	Status            string        `json:"status"`
	Passes            []string      `json:"passes"`
	InputFingerprint  string        `json:"input_fingerprint"`
	OutputFingerprint string        `json:"output_fingerprint,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        *time.Time    `json:"finished_at,omitempty"`
	ToolVersion       string        `json:"tool_version"`
	PassRecords       []PassSummary `json:"pass_records,omitempty"`
	Schedule          []ir.Id       `json:"schedule,omitempty"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List or show recorded pipeline runs",
		Long: `List the runs recorded with schedule --db, oldest first.

Given a run ID, show that run with its pass records and schedule.

Examples:
  parsynth runs --db runs.db
  parsynth runs --db runs.db --fingerprint <sha256>
  parsynth runs --db runs.db 01928f3a-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runRuns(cmd.Context(), opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Fingerprint, "fingerprint", "", "only list runs of this input network")

	return cmd
}

func runRuns(ctx context.Context, opts *RunsOptions, runID string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	st, err := openExistingStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if runID != "" {
		return showRun(ctx, formatter, st, runID)
	}

	var runs []store.RunRecord
	if opts.Fingerprint != "" {
		runs, err = st.FindRunsByFingerprint(ctx, opts.Fingerprint)
	} else {
		runs, err = st.ListRuns(ctx)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "listing runs", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = toRunSummary(r)
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range summaries {
		printRunLine(formatter, r)
	}
	return nil
}

func showRun(ctx context.Context, formatter *OutputFormatter, st *store.Store, runID string) error {
	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run %s not found", runID), nil)
		return NewExitError(ExitCommandError, "run not found: "+runID)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading run", err)
	}
	passes, err := st.ReadPasses(ctx, runID)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading passes", err)
	}
	order, err := st.ReadSchedule(ctx, runID)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading schedule", err)
	}

	summary := toRunSummary(run)
	summary.Schedule = order
	summary.PassRecords = make([]PassSummary, len(passes))
	for i, p := range passes {
		summary.PassRecords[i] = PassSummary{Index: p.Index, Name: p.Name, Rewrites: p.Rewrites, Changed: p.Changed(), Error: p.Error}
	}

	if formatter.Format == "json" {
		return formatter.Success(summary)
	}
	printRunLine(formatter, summary)
	printPasses(formatter, summary.PassRecords)
	if len(order) > 0 {
		fmt.Fprintf(formatter.Writer, "  schedule: %v\n", order)
	}
	return nil
}

func toRunSummary(r store.RunRecord) RunSummary {
	s := RunSummary{
		ID:                r.ID,
		Seq:               r.Seq,
		Target:            r.Target,
		Status:            r.Status,
		Passes:            r.Passes,
		InputFingerprint:  r.InputFingerprint,
		OutputFingerprint: r.OutputFingerprint,
		StartedAt:         r.StartedAt,
		ToolVersion:       r.ToolVersion,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		s.FinishedAt = &finished
	}
	return s
}

func printRunLine(formatter *OutputFormatter, r RunSummary) {
	line := fmt.Sprintf("%d %s %s %s (%d pass(es))", r.Seq, r.ID, r.Target, r.Status, len(r.Passes))
	switch r.Status {
	case "succeeded":
		formatter.OK("%s", line)
	case "failed":
		formatter.Bad("%s", line)
	default:
		formatter.Warn("%s", line)
	}
}

// openExistingStore opens a store that must already exist on disk, so a
// mistyped path is reported instead of creating an empty database.
func openExistingStore(formatter *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), nil)
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
