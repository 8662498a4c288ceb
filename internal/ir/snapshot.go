package ir

import (
	"fmt"
)

// Snapshot is a deterministic, serializable description of a network.
// Processes are sorted by Id and ports keep declaration order, so two equal
// graphs produce equal snapshots regardless of how they were built.
type Snapshot struct {
	Processes []ProcessSnapshot `json:"processes" yaml:"processes"`
	Edges     []Edge            `json:"edges,omitempty" yaml:"edges,omitempty"`
	Inputs    []PortRef         `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs   []PortRef         `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// ProcessSnapshot describes one process and its ports.
type ProcessSnapshot struct {
	ID           Id             `json:"id" yaml:"id"`
	Kind         string         `json:"kind" yaml:"kind"`
	Parent       Id             `json:"parent,omitempty" yaml:"parent,omitempty"`
	Functions    []Function     `json:"functions,omitempty" yaml:"functions,omitempty"`
	Degree       int            `json:"degree,omitempty" yaml:"degree,omitempty"`
	InitialValue string         `json:"initial_value,omitempty" yaml:"initial_value,omitempty"`
	InPorts      []PortSnapshot `json:"in_ports,omitempty" yaml:"in_ports,omitempty"`
	OutPorts     []PortSnapshot `json:"out_ports,omitempty" yaml:"out_ports,omitempty"`
}

// PortSnapshot describes one port.
type PortSnapshot struct {
	ID   Id       `json:"id" yaml:"id"`
	Type DataType `json:"type,omitzero" yaml:"type,omitempty"`
}

// PortRef names a port by process and port Id.
type PortRef struct {
	Process Id `json:"process" yaml:"process"`
	Port    Id `json:"port" yaml:"port"`
}

// String renders the reference as "process:port".
func (r PortRef) String() string {
	return fmt.Sprintf("%s:%s", r.Process, r.Port)
}

// Edge is one connection. From is normally an out port and To an in port.
type Edge struct {
	From PortRef `json:"from" yaml:"from"`
	To   PortRef `json:"to" yaml:"to"`
}

// Snapshot captures the current state of the network.
func (n *Network) Snapshot() Snapshot {
	var s Snapshot
	emitted := make(map[PortHandle]bool)
	for _, h := range n.Processes() {
		p := n.processes[h-1]
		ps := ProcessSnapshot{
			ID:           p.ID,
			Kind:         p.Kind.String(),
			Functions:    append([]Function(nil), p.Functions...),
			Degree:       p.Degree,
			InitialValue: p.InitialValue,
		}
		if p.parent != 0 {
			ps.Parent = n.ID(p.parent)
		}
		for _, ph := range p.in {
			ps.InPorts = append(ps.InPorts, PortSnapshot{ID: n.ports[ph-1].ID, Type: n.ports[ph-1].DataType})
		}
		for _, ph := range p.out {
			ps.OutPorts = append(ps.OutPorts, PortSnapshot{ID: n.ports[ph-1].ID, Type: n.ports[ph-1].DataType})
		}
		s.Processes = append(s.Processes, ps)

		for _, ph := range append(append([]PortHandle(nil), p.out...), p.in...) {
			peer, ok := n.edges[ph]
			if !ok || emitted[ph] {
				continue
			}
			emitted[ph], emitted[peer] = true, true
			from, to := ph, peer
			if n.ports[from-1].Side == SideIn && n.ports[to-1].Side == SideOut {
				from, to = to, from
			}
			s.Edges = append(s.Edges, Edge{From: n.portRef(from), To: n.portRef(to)})
		}
	}
	for _, ph := range n.inputs {
		s.Inputs = append(s.Inputs, n.portRef(ph))
	}
	for _, ph := range n.outputs {
		s.Outputs = append(s.Outputs, n.portRef(ph))
	}
	return s
}

func (n *Network) portRef(ph PortHandle) PortRef {
	port := n.ports[ph-1]
	return PortRef{Process: n.ID(port.Owner), Port: port.ID}
}

// FromSnapshot rebuilds a network. Port references in edges and boundary
// lists resolve on the expected side first (out for edge sources and
// outputs, in for edge targets and inputs) and fall back to the other side.
func FromSnapshot(s Snapshot) (*Network, error) {
	n := NewNetwork()
	for _, ps := range s.Processes {
		kind, err := ParseKind(ps.Kind)
		if err != nil {
			return nil, NewInvalidArgument("process %q: %v", ps.ID, err)
		}
		p := &Process{
			ID:           ps.ID,
			Kind:         kind,
			Functions:    append([]Function(nil), ps.Functions...),
			Degree:       ps.Degree,
			InitialValue: ps.InitialValue,
		}
		h, ok := n.AddProcess(p)
		if !ok {
			return nil, NewIllegalState(ps.ID, "duplicate or empty process id")
		}
		for _, port := range ps.InPorts {
			if _, ok := n.AddTypedPort(h, port.ID, SideIn, port.Type); !ok {
				return nil, NewIllegalState(ps.ID, "duplicate in port %q", port.ID)
			}
		}
		for _, port := range ps.OutPorts {
			if _, ok := n.AddTypedPort(h, port.ID, SideOut, port.Type); !ok {
				return nil, NewIllegalState(ps.ID, "duplicate out port %q", port.ID)
			}
		}
	}
	for _, ps := range s.Processes {
		if ps.Parent == "" {
			continue
		}
		child, _ := n.Lookup(ps.ID)
		parent, ok := n.Lookup(ps.Parent)
		if !ok {
			return nil, NewInvalidArgument("process %q: unknown parent %q", ps.ID, ps.Parent)
		}
		if err := n.SetParent(child, parent); err != nil {
			return nil, err
		}
	}
	for _, e := range s.Edges {
		from, err := n.ResolvePort(e.From, SideOut)
		if err != nil {
			return nil, err
		}
		to, err := n.ResolvePort(e.To, SideIn)
		if err != nil {
			return nil, err
		}
		if n.IsConnected(from) || n.IsConnected(to) {
			return nil, NewIllegalState(e.From.Process, "edge %s -> %s reuses a connected port", e.From, e.To)
		}
		n.Connect(from, to)
	}
	for _, ref := range s.Inputs {
		ph, err := n.ResolvePort(ref, SideIn)
		if err != nil {
			return nil, err
		}
		n.AddInput(ph)
	}
	for _, ref := range s.Outputs {
		ph, err := n.ResolvePort(ref, SideOut)
		if err != nil {
			return nil, err
		}
		n.AddOutput(ph)
	}
	return n, nil
}

// ResolvePort finds the port named by ref, trying side first.
func (n *Network) ResolvePort(ref PortRef, side Side) (PortHandle, error) {
	h, ok := n.Lookup(ref.Process)
	if !ok {
		return 0, NewInvalidArgument("unknown process %q", ref.Process)
	}
	if ph, ok := n.FindPort(h, ref.Port, side); ok {
		return ph, nil
	}
	other := SideIn
	if side == SideIn {
		other = SideOut
	}
	if ph, ok := n.FindPort(h, ref.Port, other); ok {
		return ph, nil
	}
	return 0, NewInvalidArgument("process %q has no port %q", ref.Process, ref.Port)
}
