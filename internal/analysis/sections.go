package analysis

import (
	"github.com/roach88/parsynth/internal/ir"
)

// FindContainedSections walks backward from every network output and
// returns the contained sections it meets, outermost first along each path.
//
// Each process is analyzed at most once. When a Zip is met and its nearest
// upstream Unzip delimits a contained section, the section is recorded and
// the search resumes upstream of the Unzip; the Zip's own in ports are not
// expanded further. Otherwise the search continues through the Zip's in ports.
func (d *Detector) FindContainedSections() []Section {
	var sections []Section
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
			d.logger.Debug("analyzing leaf", "process", d.n.ID(h))

			next := h
			if d.n.Kind(h) == ir.KindZip {
				if u, ok := d.FindNearestUnzip(h); ok && d.IsContainedSection(u, h) {
					s := Section{Start: u, End: h}
					d.logger.Debug("found contained section", "section", d.SectionString(s))
					sections = append(sections, s)
					next = u
					if visited[u] {
						continue
					}
					visited[u] = true
				}
			}
			// Push in reverse so in port 0 is expanded first.
			up := d.upstream(next)
			for i := len(up) - 1; i >= 0; i-- {
				if !visited[up[i]] {
					stack = append(stack, up[i])
				}
			}
		}
	}
	return sections
}

// FindNearestUnzip searches backward from begin, depth first through in
// ports in order, for the first Unzip leaf. begin itself qualifies.
func (d *Detector) FindNearestUnzip(begin ir.Handle) (ir.Handle, bool) {
	seen := make(map[ir.Handle]bool)
	stack := []ir.Handle{begin}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[h] {
			continue
		}
		seen[h] = true
		if d.n.Kind(h) == ir.KindUnzip {
			return h, true
		}
		up := d.upstream(h)
		for i := len(up) - 1; i >= 0; i-- {
			stack = append(stack, up[i])
		}
	}
	return 0, false
}

// IsContainedSection reports whether all flow leaving start converges at end
// and all flow reaching end diverged from start. An unconnected port met on
// the way fails the check. start == end is trivially contained.
func (d *Detector) IsContainedSection(start, end ir.Handle) bool {
	if d.n.Process(start) == nil || d.n.Process(end) == nil {
		return false
	}
	if !d.converges(start, end, ir.SideOut) {
		d.logger.Debug("flow does not converge",
			"from", d.n.ID(start), "to", d.n.ID(end))
		return false
	}
	if !d.converges(end, start, ir.SideIn) {
		d.logger.Debug("flow does not diverge",
			"to", d.n.ID(end), "from", d.n.ID(start))
		return false
	}
	return true
}

// converges follows ports on side from begin and reports whether every path
// reaches target. Unconnected ports and cycles that avoid target both fail.
func (d *Detector) converges(begin, target ir.Handle, side ir.Side) bool {
	if begin == target {
		return true
	}
	type frame struct {
		h     ir.Handle
		ports []ir.PortHandle
		next  int
	}
	const (
		onPath = 1
		done   = 2
	)
	ports := func(h ir.Handle) []ir.PortHandle {
		if side == ir.SideIn {
			return d.n.InPorts(h)
		}
		return d.n.OutPorts(h)
	}

	state := map[ir.Handle]int{begin: onPath}
	stack := []*frame{{h: begin, ports: ports(begin)}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.ports) {
			state[top.h] = done
			stack = stack[:len(stack)-1]
			continue
		}
		ph := top.ports[top.next]
		top.next++

		next, ok := d.n.PeerProcess(ph)
		if !ok {
			return false
		}
		if next == target {
			continue
		}
		switch state[next] {
		case onPath:
			return false
		case done:
			continue
		}
		state[next] = onPath
		stack = append(stack, &frame{h: next, ports: ports(next)})
	}
	return true
}
