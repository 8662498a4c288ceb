package rewrite

import (
	"fmt"
	"slices"

	"github.com/roach88/parsynth/internal/ir"
)

// RemoveRedundantLeafs deletes every Zip or Unzip that has exactly one in
// and one out port, splicing its neighbours together. When the leaf sat on
// the network boundary, the boundary reference moves to the neighbour's
// port. It returns the number of leafs removed.
func (r *Rewriter) RemoveRedundantLeafs() (int, error) {
	count := 0
	for _, h := range r.n.Leafs() {
		p := r.n.Process(h)
		r.logger.Debug("analyzing leaf", "process", p.ID)
		if p.Kind != ir.KindZip && p.Kind != ir.KindUnzip {
			continue
		}
		if p.NumInPorts() != 1 || p.NumOutPorts() != 1 {
			continue
		}
		id := p.ID
		kind := p.Kind
		in := r.n.InPorts(h)[0]
		out := r.n.OutPorts(h)[0]
		upstream, hasUp := r.n.Peer(in)
		downstream, hasDown := r.n.Peer(out)
		if !hasUp && !hasDown && (slices.Contains(r.n.Inputs(), in) || slices.Contains(r.n.Outputs(), out)) {
			return count, fmt.Errorf("remove redundant leafs: %w",
				ir.NewIllegalState(id, "leaf is the only process between a network input and output"))
		}
		if hasUp && hasDown {
			r.n.Connect(upstream, downstream)
		}
		if !hasUp && hasDown {
			r.n.ReplaceInput(in, downstream)
		}
		if !hasDown && hasUp {
			r.n.ReplaceOutput(out, upstream)
		}
		if !r.n.DeleteProcess(h) {
			return count, fmt.Errorf("remove redundant leafs: %w", ir.NewIllegalState(id, "could not delete leaf"))
		}
		r.logger.Info("removed redundant leaf", "process", id, "kind", kind.String())
		count++
	}
	return count, nil
}

// ConvertZipWith1ToMap replaces every ZipWithN leaf with a single in port
// by an equivalent Map leaf. It returns the number of leafs converted.
func (r *Rewriter) ConvertZipWith1ToMap() (int, error) {
	count := 0
	for _, h := range r.n.Leafs() {
		p := r.n.Process(h)
		r.logger.Debug("analyzing leaf", "process", p.ID)
		if p.Kind != ir.KindZipWithN || p.NumInPorts() != 1 {
			continue
		}
		fn, ok := p.Function()
		if !ok {
			return count, fmt.Errorf("convert zipwith1 to map: %w", ir.NewIllegalState(p.ID, "leaf has no function"))
		}
		leaf := ir.NewMap(r.n.UniqueProcessID(PrefixMap), fn)
		nh, err := r.addLeaf(leaf, h)
		if err != nil {
			return count, fmt.Errorf("convert zipwith1 to map: %w", err)
		}
		if err := r.redirectDataFlow(h, h, nh, nh); err != nil {
			return count, fmt.Errorf("convert zipwith1 to map: %w", err)
		}
		if !r.n.DeleteProcess(h) {
			return count, fmt.Errorf("convert zipwith1 to map: %w", ir.NewIllegalState(p.ID, "could not delete leaf"))
		}
		r.logger.Info("leaf replaced", "process", p.ID, "replacement", leaf.ID)
		count++
	}
	return count, nil
}
