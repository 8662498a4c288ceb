package rewrite

import (
	"fmt"

	"github.com/roach88/parsynth/internal/ir"
)

// CoalesceDataParallelLeafs replaces every branch chain of every data
// parallel section with a single CoalescedMap leaf. Sections whose branches
// are one leaf long are left alone. It returns the number of chains replaced.
func (r *Rewriter) CoalesceDataParallelLeafs() (int, error) {
	sections, err := r.detector.FindDataParallelSections()
	if err != nil {
		return 0, fmt.Errorf("coalesce data parallel leafs: %w", err)
	}
	count := 0
	for _, s := range sections {
		for _, ph := range r.n.OutPorts(s.Start) {
			chain, err := r.detector.ProcessChain(ph, s.End)
			if err != nil {
				return count, fmt.Errorf("coalesce data parallel leafs: %w", err)
			}
			if len(chain) <= 1 {
				r.logger.Info("data parallel section only consists of one segment, no leaf coalescing needed",
					"section", r.detector.SectionString(s))
				break
			}
			r.logger.Info("coalescing leaf chain", "chain", r.n.ChainString(chain))
			if _, err := r.CoalesceLeafChain(chain); err != nil {
				return count, fmt.Errorf("coalesce data parallel leafs: %w", err)
			}
			count++
		}
	}
	return count, nil
}

// CoalesceLeafChain replaces a linear chain of Map-like leafs with one
// CoalescedMap carrying their functions in order. The new leaf takes over
// the first leaf's in port and the last leaf's out port.
func (r *Rewriter) CoalesceLeafChain(chain []ir.Handle) (ir.Handle, error) {
	if len(chain) == 0 {
		return 0, ir.NewInvalidArgument("leaf chain is empty")
	}
	var fns []ir.Function
	for i, h := range chain {
		p := r.n.Process(h)
		if p == nil {
			return 0, ir.NewInvalidArgument("process %d does not exist", h)
		}
		if !p.Kind.IsMapLike() {
			return 0, ir.NewIllegalState(p.ID, "cannot coalesce %s leaf", p.Kind)
		}
		if err := r.n.Check(h); err != nil {
			return 0, err
		}
		if i > 0 {
			if next, ok := r.n.PeerProcess(r.n.OutPorts(chain[i-1])[0]); !ok || next != h {
				return 0, ir.NewIllegalState(p.ID, "leaf does not follow %q in chain", r.n.ID(chain[i-1]))
			}
		}
		fns = append(fns, p.Functions...)
	}

	first, last := chain[0], chain[len(chain)-1]
	leaf := ir.NewCoalescedMap(r.n.UniqueProcessID(PrefixCoalescedMap), fns)
	h, err := r.addLeaf(leaf, first)
	if err != nil {
		return 0, err
	}
	if err := r.redirectDataFlow(first, last, h, h); err != nil {
		return 0, err
	}
	r.logger.Info("leaf chain replaced", "chain", r.n.ChainString(chain), "process", leaf.ID)
	if err := r.destroyLeafChain(first); err != nil {
		return 0, err
	}
	return h, nil
}

// CoalesceParallelMapChains merges runs of adjacent ParallelMap leafs into
// one ParallelMap when IsParallelMapChainCoalescable accepts the run. It
// returns the number of runs merged.
func (r *Rewriter) CoalesceParallelMapChains() (int, error) {
	chains := r.detector.FindParallelMapChains()
	if len(chains) == 0 {
		r.logger.Info("no parallel map chains found")
		return 0, nil
	}
	count := 0
	for _, chain := range chains {
		if !r.IsParallelMapChainCoalescable(chain) {
			continue
		}
		r.logger.Info("coalescing leaf chain", "chain", r.n.ChainString(chain))
		if err := r.coalesceParallelMapChain(chain); err != nil {
			return count, fmt.Errorf("coalesce parallel map chains: %w", err)
		}
		count++
	}
	return count, nil
}

// IsParallelMapChainCoalescable reports whether chain has at least two
// leafs, all with the same degree, and each leaf's input type (const
// stripped) equals the output type of the leaf before it.
func (r *Rewriter) IsParallelMapChainCoalescable(chain []ir.Handle) bool {
	if len(chain) <= 1 {
		r.logger.Info("parallel map chain only consists of one leaf, no leaf coalescing needed",
			"chain", r.n.ChainString(chain))
		return false
	}
	var degree int
	var prevOut ir.DataType
	for i, h := range chain {
		p := r.n.Process(h)
		if p == nil || p.Kind != ir.KindParallelMap || len(p.Functions) == 0 {
			return false
		}
		if i == 0 {
			degree = p.Degree
		} else {
			if p.Degree != degree {
				r.logger.Warn("degrees are not equal for all leafs in parallel map chain",
					"chain", r.n.ChainString(chain))
				return false
			}
			in, ok := p.Functions[0].InputType()
			if !ok || in != prevOut {
				r.logger.Warn("non-matching data types in parallel map chain",
					"chain", r.n.ChainString(chain), "process", p.ID)
				return false
			}
		}
		prevOut = p.Functions[len(p.Functions)-1].OutputType()
	}
	return true
}

func (r *Rewriter) coalesceParallelMapChain(chain []ir.Handle) error {
	var fns []ir.Function
	for _, h := range chain {
		fns = append(fns, r.n.Process(h).Functions...)
	}
	first, last := chain[0], chain[len(chain)-1]
	leaf := ir.NewParallelMap(r.n.UniqueProcessID(PrefixParallelMap), r.n.Process(first).Degree, fns)
	h, err := r.addLeaf(leaf, first)
	if err != nil {
		return err
	}
	if err := r.redirectDataFlow(first, last, h, h); err != nil {
		return err
	}
	r.logger.Info("leaf chain replaced", "chain", r.n.ChainString(chain), "process", leaf.ID)
	return r.destroyLeafChain(first)
}
