package analysis

import (
	"github.com/roach88/parsynth/internal/ir"
)

// FindParallelMapChains walks backward from every network output and
// returns maximal runs of adjacent ParallelMap leafs, each in data flow
// order. A run is extended upstream through in port 0 for as long as the
// upstream leaf is also a ParallelMap; the search then continues from the
// head of the run.
func (d *Detector) FindParallelMapChains() [][]ir.Handle {
	var chains [][]ir.Handle
	visited := make(map[ir.Handle]bool)

	for _, out := range d.outputLeafs() {
		d.logger.Debug("entering at output", "process", d.n.ID(out))
		stack := []ir.Handle{out}
		for len(stack) > 0 {
			h := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[h] {
				continue
			}
			visited[h] = true

			head := h
			if d.n.Kind(h) == ir.KindParallelMap {
				chain := d.parallelMapRun(h)
				head = chain[0]
				for _, c := range chain {
					visited[c] = true
				}
				d.logger.Debug("parallel map chain found", "chain", d.n.ChainString(chain))
				chains = append(chains, chain)
			}
			up := d.upstream(head)
			for i := len(up) - 1; i >= 0; i-- {
				if !visited[up[i]] {
					stack = append(stack, up[i])
				}
			}
		}
	}
	return chains
}

// parallelMapRun collects the ParallelMap run ending at tail, head first.
func (d *Detector) parallelMapRun(tail ir.Handle) []ir.Handle {
	rev := []ir.Handle{tail}
	seen := map[ir.Handle]bool{tail: true}
	cur := tail
	for {
		ins := d.n.InPorts(cur)
		if len(ins) == 0 {
			break
		}
		prev, ok := d.n.PeerProcess(ins[0])
		if !ok || seen[prev] || d.n.Kind(prev) != ir.KindParallelMap {
			break
		}
		seen[prev] = true
		rev = append(rev, prev)
		cur = prev
	}
	chain := make([]ir.Handle, len(rev))
	for i, h := range rev {
		chain[len(rev)-1-i] = h
	}
	return chain
}
