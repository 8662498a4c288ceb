package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/parsynth/internal/ir"
)

// Loop levels.
const (
	LevelError = "error"
	LevelInfo  = "info"
)

// LoopWarning reports one feedback loop in a network.
//
// A loop through a Delay is legal: the scheduler breaks it at the Delay.
// A loop without one is combinational and cannot be scheduled correctly,
// so it is reported at error level.
type LoopWarning struct {
	Path    []string `json:"path"`    // Loop path: ["add", "fan", "delay", "add"]
	Delays  []string `json:"delays"`  // Delay leafs on the loop
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "error" or "info"
}

// AnalyzeFeedback finds the feedback loops of n.
//
// The algorithm:
//  1. Build the leaf graph: an edge a -> b for every connection from an
//     out port of a to an in port of b
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1, or a self-loop, as a loop
//
// An acyclic network returns an empty list. Loops are ordered by their
// first leaf Id.
func AnalyzeFeedback(n *ir.Network) []LoopWarning {
	graph := buildLeafGraph(n)
	var warnings []LoopWarning
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && slices.Contains(graph.succ[scc[0]], scc[0])) {
			warnings = append(warnings, loopWarning(n, scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b LoopWarning) int { return strings.Compare(a.Path[0], b.Path[0]) })
	if warnings == nil {
		return []LoopWarning{}
	}
	return warnings
}

// HasCombinationalLoop reports whether any loop lacks a Delay.
func HasCombinationalLoop(warnings []LoopWarning) bool {
	return slices.ContainsFunc(warnings, func(w LoopWarning) bool { return w.Level == LevelError })
}

type leafGraph struct {
	nodes []ir.Handle
	succ  map[ir.Handle][]ir.Handle
}

func buildLeafGraph(n *ir.Network) leafGraph {
	g := leafGraph{nodes: n.Leafs(), succ: make(map[ir.Handle][]ir.Handle)}
	for _, h := range g.nodes {
		for _, ph := range n.OutPorts(h) {
			if next, ok := n.PeerProcess(ph); ok && !slices.Contains(g.succ[h], next) {
				g.succ[h] = append(g.succ[h], next)
			}
		}
	}
	return g
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm
// with an explicit call stack.
//
// Single-node SCCs without self-loops are NOT loops.
func tarjanSCC(g leafGraph) [][]ir.Handle {
	type call struct {
		v    ir.Handle
		next int
	}
	var (
		index   = 0
		stack   []ir.Handle
		indices = make(map[ir.Handle]int)
		lowlink = make(map[ir.Handle]int)
		onStack = make(map[ir.Handle]bool)
		sccs    [][]ir.Handle
	)

	for _, root := range g.nodes {
		if _, visited := indices[root]; visited {
			continue
		}
		calls := []call{{v: root}}
		indices[root], lowlink[root] = index, index
		index++
		stack = append(stack, root)
		onStack[root] = true

		for len(calls) > 0 {
			c := &calls[len(calls)-1]
			succ := g.succ[c.v]
			if c.next < len(succ) {
				w := succ[c.next]
				c.next++
				if _, visited := indices[w]; !visited {
					indices[w], lowlink[w] = index, index
					index++
					stack = append(stack, w)
					onStack[w] = true
					calls = append(calls, call{v: w})
				} else if onStack[w] {
					lowlink[c.v] = min(lowlink[c.v], indices[w])
				}
				continue
			}

			v := c.v
			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				parent := calls[len(calls)-1].v
				lowlink[parent] = min(lowlink[parent], lowlink[v])
			}
			if lowlink[v] == indices[v] {
				var scc []ir.Handle
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == v {
						break
					}
				}
				sccs = append(sccs, scc)
			}
		}
	}
	return sccs
}

func loopWarning(n *ir.Network, scc []ir.Handle, g leafGraph) LoopWarning {
	path := cyclePath(scc, g)
	ids := make([]string, len(path))
	for i, h := range path {
		ids[i] = string(n.ID(h))
	}
	var delays []string
	for _, h := range path[:len(path)-1] {
		if n.Kind(h) == ir.KindDelay {
			delays = append(delays, string(n.ID(h)))
		}
	}
	for _, h := range scc {
		id := string(n.ID(h))
		if n.Kind(h) == ir.KindDelay && !slices.Contains(delays, id) {
			delays = append(delays, id)
		}
	}

	pathStr := strings.Join(ids, " → ")
	if len(delays) == 0 {
		return LoopWarning{
			Path:    ids,
			Message: fmt.Sprintf("Feedback loop without delay: %s", pathStr),
			Level:   LevelError,
		}
	}
	return LoopWarning{
		Path:    ids,
		Delays:  delays,
		Message: fmt.Sprintf("Feedback loop broken by %s: %s", strings.Join(delays, ", "), pathStr),
		Level:   LevelInfo,
	}
}

// cyclePath walks from the lowest Id in the SCC along SCC edges until it
// returns to the start.
func cyclePath(scc []ir.Handle, g leafGraph) []ir.Handle {
	members := make(map[ir.Handle]bool, len(scc))
	for _, h := range scc {
		members[h] = true
	}
	start := scc[0]
	for _, h := range g.nodes {
		if members[h] {
			start = h
			break
		}
	}

	path := []ir.Handle{start}
	visited := map[ir.Handle]bool{start: true}
	current := start
	for {
		var next ir.Handle
		for _, w := range g.succ[current] {
			if w == start {
				return append(path, start)
			}
			if members[w] && !visited[w] && next == 0 {
				next = w
			}
		}
		if next == 0 {
			// Dead end inside the SCC; close the path anyway.
			return append(path, start)
		}
		path = append(path, next)
		visited[next] = true
		current = next
	}
}
