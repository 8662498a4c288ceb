package schedule

import (
	"log/slog"
	"slices"

	"github.com/roach88/parsynth/internal/ir"
)

// Finder computes a schedule for one network.
type Finder struct {
	n      *ir.Network
	logger *slog.Logger

	queue  []ir.Handle
	global map[ir.Handle]bool
	local  map[ir.Handle]bool
}

// Option configures a Finder.
type Option func(*Finder)

// WithLogger sets the logger.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(f *Finder) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFinder creates a finder over n.
func NewFinder(n *ir.Network, opts ...Option) *Finder {
	f := &Finder{n: n, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// partial is a schedule fragment. anchors are already scheduled leafs the
// fragment must follow; a fragment without anchors goes to the front.
type partial struct {
	leafs   []ir.Handle
	anchors []ir.Handle
}

type frame struct {
	leaf ir.Handle
	ins  []ir.PortHandle
	next int
	acc  partial
}

// FindSchedule returns the leaf Ids in execution order.
//
// Starting points are the leafs driving the network outputs, in output
// order. From each starting point the search walks upstream and builds a
// fragment that ends with the starting point. Reaching a Delay stops the
// walk and queues the Delay's driver as a further starting point.
func (f *Finder) FindSchedule() ([]ir.Id, error) {
	f.queue = f.queue[:0]
	f.global = make(map[ir.Handle]bool)
	for _, ph := range f.n.Outputs() {
		if port := f.n.Port(ph); port != nil {
			f.queue = append(f.queue, port.Owner)
		}
	}

	var order []ir.Handle
	for len(f.queue) > 0 {
		start := f.queue[0]
		f.queue = f.queue[1:]
		f.logger.Debug("searching partial schedule", "start", f.n.ID(start))

		f.local = make(map[ir.Handle]bool)
		p := f.partialSchedule(start)
		var err error
		order, err = f.insert(order, p)
		if err != nil {
			return nil, err
		}
		for h := range f.local {
			f.global[h] = true
		}
	}

	ids := make([]ir.Id, len(order))
	for i, h := range order {
		ids[i] = f.n.ID(h)
	}
	f.logger.Info("schedule found", "leafs", len(ids))
	return ids, nil
}

// insert places p into order after the latest of its anchors.
func (f *Finder) insert(order []ir.Handle, p partial) ([]ir.Handle, error) {
	if len(p.leafs) == 0 {
		return order, nil
	}
	if len(p.anchors) == 0 {
		return append(slices.Clone(p.leafs), order...), nil
	}
	at := -1
	for _, a := range p.anchors {
		if i := slices.Index(order, a); i > at {
			at = i
		}
	}
	if at < 0 {
		return nil, ir.NewIllegalState(f.n.ID(p.anchors[0]), "insertion point not found in schedule")
	}
	f.logger.Debug("inserting partial schedule",
		"after", f.n.ID(order[at]), "chain", f.n.ChainString(p.leafs))
	return slices.Insert(order, at+1, p.leafs...), nil
}

// partialSchedule computes the fragment ending at start.
func (f *Finder) partialSchedule(start ir.Handle) partial {
	var (
		out   partial
		stack []*frame
	)
	emit := func(p partial) {
		if len(stack) == 0 {
			out = p
			return
		}
		top := stack[len(stack)-1]
		top.acc.leafs = append(top.acc.leafs, p.leafs...)
		top.acc.anchors = append(top.acc.anchors, p.anchors...)
	}
	visit := func(h ir.Handle) {
		if p, done := f.boundary(h); done {
			emit(p)
			return
		}
		f.local[h] = true
		stack = append(stack, &frame{leaf: h, ins: f.n.InPorts(h)})
	}

	visit(start)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next < len(top.ins) {
			ph := top.ins[top.next]
			top.next++
			if up, ok := f.n.PeerProcess(ph); ok {
				visit(up)
			}
			continue
		}
		stack = stack[:len(stack)-1]
		top.acc.leafs = append(top.acc.leafs, top.leaf)
		emit(top.acc)
	}
	return out
}

// boundary handles the cases that end the upstream walk at h.
func (f *Finder) boundary(h ir.Handle) (partial, bool) {
	if f.global[h] {
		return partial{anchors: []ir.Handle{h}}, true
	}
	if f.n.Kind(h) == ir.KindDelay {
		if f.local[h] {
			return partial{}, true
		}
		f.local[h] = true
		for _, ph := range f.n.InPorts(h) {
			if driver, ok := f.n.PeerProcess(ph); ok {
				f.logger.Debug("delay found, queueing driver", "delay", f.n.ID(h), "driver", f.n.ID(driver))
				f.queue = append(f.queue, driver)
			}
		}
		return partial{leafs: []ir.Handle{h}}, true
	}
	if f.local[h] {
		return partial{}, true
	}
	return partial{}, false
}
