package ir

import (
	"slices"
)

// Stats summarizes a network for logs and reports.
type Stats struct {
	Processes   int          `json:"processes" yaml:"processes"`
	Composites  int          `json:"composites" yaml:"composites"`
	Connections int          `json:"connections" yaml:"connections"`
	Inputs      int          `json:"inputs" yaml:"inputs"`
	Outputs     int          `json:"outputs" yaml:"outputs"`
	Kinds       map[Kind]int `json:"-" yaml:"-"`
}

// Stats counts processes per kind, connections and boundary ports.
func (n *Network) Stats() Stats {
	s := Stats{
		Processes:   n.NumProcesses(),
		Connections: len(n.edges) / 2,
		Inputs:      len(n.inputs),
		Outputs:     len(n.outputs),
		Kinds:       make(map[Kind]int),
	}
	for _, p := range n.processes {
		if p == nil {
			continue
		}
		s.Kinds[p.Kind]++
		if p.Kind == KindComposite {
			s.Composites++
		}
	}
	return s
}

// KindCounts returns the per-kind counts keyed by kind name, in kind order.
func (s Stats) KindCounts() []KindCount {
	var out []KindCount
	for k, c := range s.Kinds {
		out = append(out, KindCount{Kind: k.String(), Count: c, kind: k})
	}
	slices.SortFunc(out, func(a, b KindCount) int { return int(a.kind) - int(b.kind) })
	return out
}

// KindCount is one row of Stats.KindCounts.
type KindCount struct {
	Kind  string `json:"kind" yaml:"kind"`
	Count int    `json:"count" yaml:"count"`

	kind Kind
}

// CountKind returns how many live processes have kind k.
func (n *Network) CountKind(k Kind) int {
	count := 0
	for _, p := range n.processes {
		if p != nil && p.Kind == k {
			count++
		}
	}
	return count
}
