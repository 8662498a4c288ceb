package rewrite

import (
	"log/slog"

	"github.com/roach88/parsynth/internal/analysis"
	"github.com/roach88/parsynth/internal/ir"
)

// Id prefixes for leafs created by the passes.
const (
	PrefixCoalescedMap = "_coalescedmapSY_"
	PrefixParallelMap  = "_parallelmapSY_"
	PrefixZip          = "_ZipxSY_"
	PrefixUnzip        = "_UnzipxSY_"
	PrefixMap          = "_mapSY_"
)

// Rewriter applies passes to one network.
type Rewriter struct {
	n        *ir.Network
	logger   *slog.Logger
	detector *analysis.Detector
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithLogger sets the logger for the rewriter and its detector.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(r *Rewriter) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a rewriter over n.
func New(n *ir.Network, opts ...Option) *Rewriter {
	r := &Rewriter{n: n, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.detector = analysis.NewDetector(n, analysis.WithLogger(r.logger))
	return r
}

// Network returns the network being rewritten.
func (r *Rewriter) Network() *ir.Network {
	return r.n
}

// addLeaf inserts p next to sibling in the hierarchy.
func (r *Rewriter) addLeaf(p *ir.Process, sibling ir.Handle) (ir.Handle, error) {
	h, ok := r.n.AddProcess(p)
	if !ok {
		return 0, ir.NewIllegalState(p.ID, "failed to add new leaf: id already exists")
	}
	if sp := r.n.Process(sibling); sp != nil && sp.Parent() != 0 {
		if err := r.n.SetParent(h, sp.Parent()); err != nil {
			return 0, err
		}
	}
	r.logger.Debug("new leaf created", "process", p.ID, "kind", p.Kind.String())
	return h, nil
}

// redirectDataFlow moves every in port of oldStart onto newStart and every
// out port of oldEnd onto newEnd. Connections and network boundary
// references follow the moved ports; the old ports remain, unconnected.
func (r *Rewriter) redirectDataFlow(oldStart, oldEnd, newStart, newEnd ir.Handle) error {
	for _, h := range []ir.Handle{oldStart, oldEnd, newStart, newEnd} {
		if r.n.Process(h) == nil {
			return ir.NewInvalidArgument("process %d does not exist", h)
		}
	}
	r.logger.Info("redirecting data flow",
		"from", r.n.ChainString(distinct(oldStart, oldEnd)),
		"to", r.n.ChainString(distinct(newStart, newEnd)))

	for _, ph := range r.n.InPorts(oldStart) {
		if _, err := r.n.MovePort(ph, newStart); err != nil {
			return err
		}
	}
	for _, ph := range r.n.OutPorts(oldEnd) {
		if _, err := r.n.MovePort(ph, newEnd); err != nil {
			return err
		}
	}
	return nil
}

func distinct(a, b ir.Handle) []ir.Handle {
	if a == b {
		return []ir.Handle{a}
	}
	return []ir.Handle{a, b}
}

// destroyLeafChain deletes start and every leaf forward-reachable from it
// through connected out ports.
func (r *Rewriter) destroyLeafChain(start ir.Handle) error {
	if r.n.Process(start) == nil {
		return ir.NewInvalidArgument("process %d does not exist", start)
	}
	var doomed []ir.Handle
	seen := map[ir.Handle]bool{start: true}
	stack := []ir.Handle{start}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		doomed = append(doomed, h)
		for _, ph := range r.n.OutPorts(h) {
			if next, ok := r.n.PeerProcess(ph); ok && !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	for _, h := range doomed {
		id := r.n.ID(h)
		if !r.n.DeleteProcess(h) {
			return ir.NewInternal(id, "could not delete leaf")
		}
		r.logger.Debug("leaf destroyed", "process", id)
	}
	return nil
}
