package rewrite

import (
	"fmt"
	"strconv"

	"github.com/roach88/parsynth/internal/ir"
)

// SplitDataParallelSegments inserts a Zip/Unzip barrier between every pair
// of adjacent stages of every data parallel section whose branches are
// longer than one leaf. It returns the number of sections split.
func (r *Rewriter) SplitDataParallelSegments() (int, error) {
	sections, err := r.detector.FindDataParallelSections()
	if err != nil {
		return 0, fmt.Errorf("split data parallel segments: %w", err)
	}
	count := 0
	for _, s := range sections {
		chains, err := r.detector.BranchChains(s)
		if err != nil {
			return count, fmt.Errorf("split data parallel segments: %w", err)
		}
		if len(chains) == 0 || len(chains[0]) <= 1 {
			r.logger.Info("data parallel section only consists of one segment, no splitting needed",
				"section", r.detector.SectionString(s))
			continue
		}
		r.logger.Info("splitting segments in section", "section", r.detector.SectionString(s))
		if err := r.SplitSegments(chains); err != nil {
			return count, fmt.Errorf("split data parallel segments: %w", err)
		}
		count++
	}
	return count, nil
}

// SplitSegments re-barrierizes parallel branch chains. For every stage
// boundary (k-1, k) a new Zip collects the stage k-1 outputs of all branches
// and feeds a new Unzip whose outputs drive stage k.
//
// All chains must be non-empty, of equal length and made of leafs with at
// least one in and one out port; otherwise nothing is changed and an
// ILLEGAL_STATE error is returned.
func (r *Rewriter) SplitSegments(chains [][]ir.Handle) error {
	if len(chains) == 0 {
		return ir.NewInvalidArgument("no chains to split")
	}
	stages := len(chains[0])
	for i, chain := range chains {
		if len(chain) == 0 {
			return ir.NewIllegalState("", "chain %d is empty", i)
		}
		if len(chain) != stages {
			return ir.NewIllegalState(r.n.ID(chain[0]),
				"chain %d has %d leafs but chain 0 has %d", i, len(chain), stages)
		}
		for _, h := range chain {
			p := r.n.Process(h)
			if p == nil {
				return ir.NewInvalidArgument("process %d does not exist", h)
			}
			if p.NumInPorts() == 0 || p.NumOutPorts() == 0 {
				return ir.NewIllegalState(p.ID, "leaf in chain lacks an in or out port")
			}
		}
	}

	for k := 1; k < stages; k++ {
		r.logger.Info("splitting leaf chains", "between", k-1, "and", k)
		if err := r.insertBarrier(chains, k); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rewriter) insertBarrier(chains [][]ir.Handle, k int) error {
	zip, err := r.addLeaf(ir.NewZip(r.n.UniqueProcessID(PrefixZip)), chains[0][k])
	if err != nil {
		return err
	}
	unzip, err := r.addLeaf(ir.NewUnzip(r.n.UniqueProcessID(PrefixUnzip)), chains[0][k])
	if err != nil {
		return err
	}
	zipOut, ok := r.n.AddOutPort(zip, "out")
	if !ok {
		return ir.NewIllegalState(r.n.ID(zip), "failed to add port")
	}
	unzipIn, ok := r.n.AddInPort(unzip, "in")
	if !ok {
		return ir.NewIllegalState(r.n.ID(unzip), "failed to add port")
	}
	r.n.Connect(zipOut, unzipIn)

	for i, chain := range chains {
		num := strconv.Itoa(i + 1)
		zipIn, ok := r.n.AddInPort(zip, ir.Id("in"+num))
		if !ok {
			return ir.NewIllegalState(r.n.ID(zip), "failed to add port")
		}
		left := r.n.OutPorts(chain[k-1])[0]
		r.logger.Debug("connecting", "from", r.n.PortString(left), "to", r.n.PortString(zipIn))
		r.n.Connect(left, zipIn)

		unzipOut, ok := r.n.AddOutPort(unzip, ir.Id("out"+num))
		if !ok {
			return ir.NewIllegalState(r.n.ID(unzip), "failed to add port")
		}
		right := r.n.InPorts(chain[k])[0]
		r.logger.Debug("connecting", "from", r.n.PortString(unzipOut), "to", r.n.PortString(right))
		r.n.Connect(unzipOut, right)
	}
	r.logger.Debug("new leafs added", "zip", r.n.ID(zip), "unzip", r.n.ID(unzip))
	return nil
}
