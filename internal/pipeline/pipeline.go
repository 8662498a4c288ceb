package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/parsynth/internal/ir"
	"github.com/roach88/parsynth/internal/rewrite"
	"github.com/roach88/parsynth/internal/schedule"
)

// RunStatus is the outcome of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// RunInfo describes a run when it starts.
type RunInfo struct {
	ID          string
	Target      Target
	Passes      []string
	Fingerprint string
	Input       ir.Snapshot
	StartedAt   time.Time
}

// PassResult is the record of one executed pass.
type PassResult struct {
	Index             int
	Name              string
	Rewrites          int
	FingerprintBefore string
	FingerprintAfter  string
	Snapshot          ir.Snapshot
	Err               error
}

// Changed reports whether the pass modified the network.
func (p PassResult) Changed() bool {
	return p.FingerprintBefore != p.FingerprintAfter
}

// Result is the outcome of a completed run.
type Result struct {
	RunID       string
	Status      RunStatus
	Passes      []PassResult
	Schedule    []ir.Id
	Fingerprint string
	FinishedAt  time.Time
}

// Recorder receives run progress. Implemented by store.Store.
type Recorder interface {
	BeginRun(ctx context.Context, run RunInfo) error
	RecordPass(ctx context.Context, runID string, pass PassResult) error
	FinishRun(ctx context.Context, res *Result) error
}

// Pipeline runs a fixed pass order followed by the scheduler.
type Pipeline struct {
	cfg      Config
	passes   []Pass
	logger   *slog.Logger
	recorder Recorder
	runIDs   RunIDGenerator
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger handed to every pass.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRecorder reports every run to r.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithRunIDGenerator sets the run ID source.
//
// Default: UUIDv7Generator
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(p *Pipeline) {
		if g != nil {
			p.runIDs = g
		}
	}
}

// WithClock sets the time source for run timestamps.
//
// Default: time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New validates cfg and resolves its pass order.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:    cfg,
		logger: slog.Default(),
		runIDs: UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, name := range cfg.PassOrder() {
		pass, _ := lookupPass(name)
		p.passes = append(p.passes, pass)
	}
	return p, nil
}

// PassOrder returns the names of the passes the pipeline runs.
func (p *Pipeline) PassOrder() []string {
	names := make([]string, len(p.passes))
	for i, pass := range p.passes {
		names[i] = pass.Name
	}
	return names
}

// Run checks n, applies every pass to it in order and schedules the
// result. n is modified in place.
//
// A failing pass aborts the run. The returned Result is non-nil whenever
// the run started, so callers can inspect the passes that did complete.
func (p *Pipeline) Run(ctx context.Context, n *ir.Network) (*Result, error) {
	if err := n.CheckAll(); err != nil {
		return nil, fmt.Errorf("input network is invalid: %w", err)
	}
	fp, err := n.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprint input network: %w", err)
	}

	info := RunInfo{
		ID:          p.runIDs.Generate(),
		Target:      p.cfg.Target,
		Passes:      p.PassOrder(),
		Fingerprint: fp,
		Input:       n.Snapshot(),
		StartedAt:   p.now(),
	}
	logger := p.logger.With("run", info.ID)
	logger.Info("pipeline starting", "target", string(info.Target), "passes", len(info.Passes))
	logModelInfo(logger, n)

	if p.recorder != nil {
		if err := p.recorder.BeginRun(ctx, info); err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
	}

	res := &Result{RunID: info.ID, Status: StatusRunning}
	runErr := p.runPasses(ctx, logger, n, res)
	if runErr == nil {
		res.Schedule, runErr = p.schedule(logger, n)
	}

	if res.Fingerprint, err = n.Fingerprint(); err != nil && runErr == nil {
		runErr = fmt.Errorf("fingerprint result network: %w", err)
	}
	res.FinishedAt = p.now()
	res.Status = StatusSucceeded
	if runErr != nil {
		res.Status = StatusFailed
		logger.Error("pipeline failed", "error", runErr)
	} else {
		logger.Info("pipeline finished", "schedule", len(res.Schedule))
	}
	if p.recorder != nil {
		if err := p.recorder.FinishRun(ctx, res); err != nil && runErr == nil {
			runErr = fmt.Errorf("record run finish: %w", err)
		}
	}
	return res, runErr
}

func (p *Pipeline) runPasses(ctx context.Context, logger *slog.Logger, n *ir.Network, res *Result) error {
	r := rewrite.New(n, rewrite.WithLogger(logger))
	for i, pass := range p.passes {
		if err := ctx.Err(); err != nil {
			return err
		}
		before, err := n.Fingerprint()
		if err != nil {
			return fmt.Errorf("pass %s: %w", pass.Name, err)
		}
		logger.Info("running pass", "pass", pass.Name)
		count, passErr := pass.Run(r)
		after, err := n.Fingerprint()
		if err != nil && passErr == nil {
			passErr = fmt.Errorf("pass %s: %w", pass.Name, err)
		}

		pr := PassResult{
			Index:             i,
			Name:              pass.Name,
			Rewrites:          count,
			FingerprintBefore: before,
			FingerprintAfter:  after,
			Snapshot:          n.Snapshot(),
			Err:               passErr,
		}
		res.Passes = append(res.Passes, pr)
		if p.recorder != nil {
			if err := p.recorder.RecordPass(ctx, res.RunID, pr); err != nil {
				return fmt.Errorf("record pass %s: %w", pass.Name, err)
			}
		}
		if passErr != nil {
			return passErr
		}
		logger.Debug("pass done", "pass", pass.Name, "rewrites", count, "changed", pr.Changed())
	}
	return nil
}

func (p *Pipeline) schedule(logger *slog.Logger, n *ir.Network) ([]ir.Id, error) {
	order, err := schedule.NewFinder(n, schedule.WithLogger(logger)).FindSchedule()
	if err != nil {
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	if err := schedule.Verify(n, order); err != nil {
		return nil, fmt.Errorf("verify schedule: %w", err)
	}
	return order, nil
}

func logModelInfo(logger *slog.Logger, n *ir.Network) {
	st := n.Stats()
	attrs := []any{
		"processes", st.Processes,
		"composites", st.Composites,
		"connections", st.Connections,
		"inputs", st.Inputs,
		"outputs", st.Outputs,
	}
	for _, kc := range st.KindCounts() {
		attrs = append(attrs, kc.Kind, kc.Count)
	}
	logger.Info("model info", attrs...)
}
