package rewrite

import (
	"fmt"

	"github.com/roach88/parsynth/internal/ir"
)

// FuseUnzipMapZipLeafs replaces every data parallel section whose branches
// are exactly one leaf long with a single ParallelMap. The ParallelMap
// carries the branch leaf's functions and its degree is the number of
// branches. It returns the number of sections fused.
//
// A data parallel section with longer branches is an ILLEGAL_STATE error:
// split or coalesce the segments first.
func (r *Rewriter) FuseUnzipMapZipLeafs() (int, error) {
	sections, err := r.detector.FindDataParallelSections()
	if err != nil {
		return 0, fmt.Errorf("fuse unzip map zip leafs: %w", err)
	}
	count := 0
	for _, s := range sections {
		r.logger.Info("fusing data parallel section", "section", r.detector.SectionString(s))
		if _, err := r.fuseSection(s.Start, s.End); err != nil {
			return count, fmt.Errorf("fuse unzip map zip leafs: %w", err)
		}
		count++
	}
	return count, nil
}

func (r *Rewriter) fuseSection(start, end ir.Handle) (ir.Handle, error) {
	outs := r.n.OutPorts(start)
	if len(outs) == 0 {
		return 0, ir.NewIllegalState(r.n.ID(start), "diverge point has no out ports")
	}
	chain, err := r.detector.ProcessChain(outs[0], end)
	if err != nil {
		return 0, err
	}
	if len(chain) != 1 {
		return 0, ir.NewIllegalState(r.n.ID(start), "leaf chain is not of length 1 (has %d)", len(chain))
	}
	data := r.n.Process(chain[0])
	if !data.Kind.IsMapLike() {
		return 0, ir.NewIllegalState(data.ID, "expected a map leaf, found %s", data.Kind)
	}

	leaf := ir.NewParallelMap(r.n.UniqueProcessID(PrefixParallelMap), len(outs), data.Functions)
	h, err := r.addLeaf(leaf, start)
	if err != nil {
		return 0, err
	}
	if err := r.redirectDataFlow(start, end, h, h); err != nil {
		return 0, err
	}
	r.logger.Info("data parallel section replaced",
		"section", r.n.ChainString([]ir.Handle{start, end}), "process", leaf.ID, "degree", leaf.Degree)
	if err := r.destroyLeafChain(start); err != nil {
		return 0, err
	}
	return h, nil
}
