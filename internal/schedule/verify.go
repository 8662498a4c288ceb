package schedule

import (
	"github.com/roach88/parsynth/internal/ir"
)

// Verify checks that order is a valid schedule for n: every Id names a leaf
// and appears once, and every leaf driving a scheduled leaf is scheduled
// too. A producer must precede its consumer unless either end of the edge
// is a Delay, which reads its value from the previous evaluation. Leafs
// that cannot reach a network output need not appear.
func Verify(n *ir.Network, order []ir.Id) error {
	pos := make(map[ir.Handle]int, len(order))
	for i, id := range order {
		h, ok := n.Lookup(id)
		if !ok {
			return ir.NewIllegalState(id, "scheduled process does not exist")
		}
		if !n.Kind(h).IsLeaf() {
			return ir.NewIllegalState(id, "scheduled process is not a leaf")
		}
		if _, dup := pos[h]; dup {
			return ir.NewIllegalState(id, "leaf is scheduled more than once")
		}
		pos[h] = i
	}

	for i, id := range order {
		h, _ := n.Lookup(id)
		for _, ph := range n.InPorts(h) {
			up, ok := n.PeerProcess(ph)
			if !ok {
				continue
			}
			j, scheduled := pos[up]
			if !scheduled {
				return ir.NewIllegalState(id, "driver %q is not scheduled", n.ID(up))
			}
			if n.Kind(h) == ir.KindDelay || n.Kind(up) == ir.KindDelay {
				continue
			}
			if j > i {
				return ir.NewIllegalState(id, "scheduled before its driver %q", n.ID(up))
			}
		}
	}
	return nil
}
