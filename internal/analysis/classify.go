package analysis

import (
	"fmt"

	"github.com/roach88/parsynth/internal/ir"
)

// ProcessChain returns the leafs between from and end, exclusive of end,
// following the first out port of each leaf. from is an out port; the first
// chain element is the leaf it feeds.
//
// A chain that stops before reaching end (an unconnected port, a leaf
// without out ports, or a loop) is an ILLEGAL_STATE error.
func (d *Detector) ProcessChain(from ir.PortHandle, end ir.Handle) ([]ir.Handle, error) {
	port := d.n.Port(from)
	if port == nil {
		return nil, ir.NewInvalidArgument("port %d does not exist", from)
	}
	var chain []ir.Handle
	seen := make(map[ir.Handle]bool)
	ph := from
	for {
		next, ok := d.n.PeerProcess(ph)
		if !ok {
			return nil, ir.NewIllegalState(d.n.ID(port.Owner),
				"chain from %s ends at unconnected port %s before reaching %q",
				d.n.PortString(from), d.n.PortString(ph), d.n.ID(end))
		}
		if next == end {
			return chain, nil
		}
		if seen[next] {
			return nil, ir.NewIllegalState(d.n.ID(next), "chain from %s loops without reaching %q",
				d.n.PortString(from), d.n.ID(end))
		}
		seen[next] = true
		chain = append(chain, next)
		outs := d.n.OutPorts(next)
		if len(outs) == 0 {
			return nil, ir.NewIllegalState(d.n.ID(next), "leaf in chain has no out port")
		}
		ph = outs[0]
	}
}

// BranchChains returns one chain per out port of the section's diverge
// point, in port order.
func (d *Detector) BranchChains(s Section) ([][]ir.Handle, error) {
	var chains [][]ir.Handle
	for _, ph := range d.n.OutPorts(s.Start) {
		chain, err := d.ProcessChain(ph, s.End)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", d.SectionString(s), err)
		}
		chains = append(chains, chain)
	}
	return chains, nil
}

// IsDataParallel reports whether every branch of s is a non-empty chain of
// Map-like leafs and all branches are structurally equal leaf by leaf. A
// branch that never reaches the converge point is not a match.
func (d *Detector) IsDataParallel(s Section) (bool, error) {
	chains, err := d.BranchChains(s)
	if ir.IsIllegalState(err) {
		d.logger.Debug("branch does not reach the converge point",
			"section", d.SectionString(s), "error", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(chains) == 0 {
		return false, nil
	}
	first := chains[0]
	for i, chain := range chains {
		if len(chain) == 0 {
			d.logger.Debug("no leafs within contained section", "section", d.SectionString(s))
			return false, nil
		}
		for _, h := range chain {
			if !d.n.Kind(h).IsMapLike() {
				d.logger.Debug("contained section does not consist of only map leafs",
					"section", d.SectionString(s), "process", d.n.ID(h), "kind", d.n.Kind(h).String())
				return false, nil
			}
		}
		if i == 0 {
			continue
		}
		if !d.chainsEqual(first, chain) {
			return false, nil
		}
	}
	return true, nil
}

func (d *Detector) chainsEqual(a, b []ir.Handle) bool {
	if len(a) != len(b) {
		d.logger.Debug("leaf chains are not of equal length",
			"first", d.n.ChainString(a), "second", d.n.ChainString(b))
		return false
	}
	for i := range a {
		if !ir.StructurallyEqual(d.n.Process(a[i]), d.n.Process(b[i])) {
			d.logger.Debug("leafs are not equal",
				"first", d.n.ID(a[i]), "second", d.n.ID(b[i]))
			return false
		}
	}
	return true
}

// FindDataParallelSections returns the contained sections that are data
// parallel.
func (d *Detector) FindDataParallelSections() ([]Section, error) {
	sections := d.FindContainedSections()
	if len(sections) == 0 {
		d.logger.Info("no contained (and thus no data parallel) sections found")
		return nil, nil
	}
	d.logger.Info("found contained sections", "count", len(sections))

	var parallel []Section
	for _, s := range sections {
		ok, err := d.IsDataParallel(s)
		if err != nil {
			return nil, err
		}
		if ok {
			d.logger.Info("section is data parallel", "section", d.SectionString(s))
			parallel = append(parallel, s)
		} else {
			d.logger.Info("section is not data parallel", "section", d.SectionString(s))
		}
	}
	return parallel, nil
}
