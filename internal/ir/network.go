package ir

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
)

// Network is the synchronous process network being compiled.
//
// Processes and ports live in arenas addressed by handles. Connections are
// kept in a single symmetric edge table, so rewiring a port can never leave
// a dangling reference on the other end.
//
// INVARIANTS:
//   - edges[a] == b if and only if edges[b] == a
//   - a deleted process has no ports left in the port arena
//   - inputs and outputs only name live ports
type Network struct {
	processes []*Process // index = Handle-1; nil once deleted
	ports     []*Port    // index = PortHandle-1; nil once deleted
	byID      map[Id]Handle
	edges     map[PortHandle]PortHandle
	inputs    []PortHandle
	outputs   []PortHandle
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{
		byID:  make(map[Id]Handle),
		edges: make(map[PortHandle]PortHandle),
	}
}

// AddProcess inserts p at the network root. It returns false if a process
// with the same Id already exists.
func (n *Network) AddProcess(p *Process) (Handle, bool) {
	if p == nil || p.ID == "" {
		return 0, false
	}
	if _, exists := n.byID[p.ID]; exists {
		return 0, false
	}
	p.in, p.out, p.parent = nil, nil, 0
	n.processes = append(n.processes, p)
	h := Handle(len(n.processes))
	n.byID[p.ID] = h
	return h, true
}

// AddComposite inserts a composite container. It returns false if the Id is
// taken or c is not a composite.
func (n *Network) AddComposite(c *Process) (Handle, bool) {
	if c == nil || c.Kind != KindComposite {
		return 0, false
	}
	return n.AddProcess(c)
}

// Process returns the process behind h, or nil if h is stale.
func (n *Network) Process(h Handle) *Process {
	if h <= 0 || int(h) > len(n.processes) {
		return nil
	}
	return n.processes[h-1]
}

// Lookup finds a process by Id.
func (n *Network) Lookup(id Id) (Handle, bool) {
	h, ok := n.byID[id]
	return h, ok
}

// Get finds a process by Id and returns it directly.
func (n *Network) Get(id Id) *Process {
	h, ok := n.byID[id]
	if !ok {
		return nil
	}
	return n.Process(h)
}

// ID returns the Id of the process behind h.
func (n *Network) ID(h Handle) Id {
	if p := n.Process(h); p != nil {
		return p.ID
	}
	return ""
}

// Kind returns the kind of the process behind h.
func (n *Network) Kind(h Handle) Kind {
	if p := n.Process(h); p != nil {
		return p.Kind
	}
	return KindInvalid
}

// DeleteProcess destroys the process and all its ports. Connections still
// attached are broken and boundary references to its ports are dropped.
// Children of a deleted composite move up to its parent.
func (n *Network) DeleteProcess(h Handle) bool {
	p := n.Process(h)
	if p == nil {
		return false
	}
	for _, ph := range slices.Concat(p.in, p.out) {
		n.Unconnect(ph)
		n.DeleteInput(ph)
		n.DeleteOutput(ph)
		n.ports[ph-1] = nil
	}
	for _, child := range n.processes {
		if child != nil && child.parent == h {
			child.parent = p.parent
		}
	}
	delete(n.byID, p.ID)
	n.processes[h-1] = nil
	p.in, p.out = nil, nil
	return true
}

// Processes returns every live process handle ordered by Id.
func (n *Network) Processes() []Handle {
	handles := make([]Handle, 0, len(n.byID))
	for _, h := range n.byID {
		handles = append(handles, h)
	}
	slices.SortFunc(handles, func(a, b Handle) int {
		return compareIDs(n.processes[a-1].ID, n.processes[b-1].ID)
	})
	return handles
}

// Leafs returns every live leaf handle ordered by Id.
func (n *Network) Leafs() []Handle {
	return slices.DeleteFunc(n.Processes(), func(h Handle) bool {
		return !n.processes[h-1].Kind.IsLeaf()
	})
}

// Composites returns every live composite handle ordered by Id.
func (n *Network) Composites() []Handle {
	return slices.DeleteFunc(n.Processes(), func(h Handle) bool {
		return n.processes[h-1].Kind != KindComposite
	})
}

// NumProcesses returns the number of live processes.
func (n *Network) NumProcesses() int {
	return len(n.byID)
}

// UniqueProcessID returns prefix followed by the smallest positive integer
// that is not already in use as an Id.
func (n *Network) UniqueProcessID(prefix string) Id {
	for i := 1; ; i++ {
		id := Id(prefix + strconv.Itoa(i))
		if _, taken := n.byID[id]; !taken {
			return id
		}
	}
}

// AddInPort appends an in port to h. It returns false if h is stale or
// already has an in port with that Id.
func (n *Network) AddInPort(h Handle, id Id) (PortHandle, bool) {
	return n.addPort(h, id, SideIn, DataType{})
}

// AddOutPort appends an out port to h. It returns false if h is stale or
// already has an out port with that Id.
func (n *Network) AddOutPort(h Handle, id Id) (PortHandle, bool) {
	return n.addPort(h, id, SideOut, DataType{})
}

// AddTypedPort appends a port carrying a data type.
func (n *Network) AddTypedPort(h Handle, id Id, side Side, dt DataType) (PortHandle, bool) {
	return n.addPort(h, id, side, dt)
}

func (n *Network) addPort(h Handle, id Id, side Side, dt DataType) (PortHandle, bool) {
	p := n.Process(h)
	if p == nil || id == "" {
		return 0, false
	}
	list := p.in
	if side == SideOut {
		list = p.out
	}
	for _, ph := range list {
		if n.ports[ph-1].ID == id {
			return 0, false
		}
	}
	n.ports = append(n.ports, &Port{ID: id, Owner: h, Side: side, DataType: dt})
	ph := PortHandle(len(n.ports))
	if side == SideIn {
		p.in = append(p.in, ph)
	} else {
		p.out = append(p.out, ph)
	}
	return ph, true
}

// Port returns the port behind ph, or nil if ph is stale.
func (n *Network) Port(ph PortHandle) *Port {
	if ph <= 0 || int(ph) > len(n.ports) {
		return nil
	}
	return n.ports[ph-1]
}

// InPorts returns h's in ports in declaration order.
func (n *Network) InPorts(h Handle) []PortHandle {
	if p := n.Process(h); p != nil {
		return slices.Clone(p.in)
	}
	return nil
}

// OutPorts returns h's out ports in declaration order.
func (n *Network) OutPorts(h Handle) []PortHandle {
	if p := n.Process(h); p != nil {
		return slices.Clone(p.out)
	}
	return nil
}

// FindPort looks up a port of h by Id and side.
func (n *Network) FindPort(h Handle, id Id, side Side) (PortHandle, bool) {
	p := n.Process(h)
	if p == nil {
		return 0, false
	}
	list := p.in
	if side == SideOut {
		list = p.out
	}
	for _, ph := range list {
		if n.ports[ph-1].ID == id {
			return ph, true
		}
	}
	return 0, false
}

// DeletePort removes a single port, breaking its connection first.
func (n *Network) DeletePort(ph PortHandle) bool {
	port := n.Port(ph)
	if port == nil {
		return false
	}
	n.Unconnect(ph)
	n.DeleteInput(ph)
	n.DeleteOutput(ph)
	p := n.processes[port.Owner-1]
	if port.Side == SideIn {
		p.in = slices.DeleteFunc(p.in, func(x PortHandle) bool { return x == ph })
	} else {
		p.out = slices.DeleteFunc(p.out, func(x PortHandle) bool { return x == ph })
	}
	n.ports[ph-1] = nil
	return true
}

// Connect links a and b symmetrically. Existing connections on either end
// are broken first. Connecting a port to itself is a no-op.
func (n *Network) Connect(a, b PortHandle) {
	if a == b || n.Port(a) == nil || n.Port(b) == nil {
		return
	}
	if n.edges[a] == b {
		return
	}
	n.Unconnect(a)
	n.Unconnect(b)
	n.edges[a] = b
	n.edges[b] = a
}

// Unconnect breaks ph's connection on both ends, if any.
func (n *Network) Unconnect(ph PortHandle) {
	other, ok := n.edges[ph]
	if !ok {
		return
	}
	delete(n.edges, ph)
	delete(n.edges, other)
}

// Peer returns the port ph is connected to.
func (n *Network) Peer(ph PortHandle) (PortHandle, bool) {
	other, ok := n.edges[ph]
	return other, ok
}

// IsConnected reports whether ph has a peer.
func (n *Network) IsConnected(ph PortHandle) bool {
	_, ok := n.edges[ph]
	return ok
}

// PeerProcess returns the process owning the port ph is connected to.
func (n *Network) PeerProcess(ph PortHandle) (Handle, bool) {
	other, ok := n.edges[ph]
	if !ok {
		return 0, false
	}
	return n.ports[other-1].Owner, true
}

// MovePort copies ph onto dst (same Id, side and data type), transfers its
// connection to the copy and repoints any boundary reference. The original
// port stays on its owner, unconnected.
func (n *Network) MovePort(ph PortHandle, dst Handle) (PortHandle, error) {
	port := n.Port(ph)
	if port == nil {
		return 0, NewInvalidArgument("port %d does not exist", ph)
	}
	moved, ok := n.addPort(dst, port.ID, port.Side, port.DataType)
	if !ok {
		return 0, NewIllegalState(n.ID(dst), "failed to add %s port %q", port.Side, port.ID)
	}
	if other, connected := n.edges[ph]; connected {
		n.Unconnect(ph)
		n.Connect(moved, other)
	}
	n.ReplaceInput(ph, moved)
	n.ReplaceOutput(ph, moved)
	return moved, nil
}

// AddInput designates ph as a network input. It returns false if ph is
// stale or already designated.
func (n *Network) AddInput(ph PortHandle) bool {
	if n.Port(ph) == nil || slices.Contains(n.inputs, ph) {
		return false
	}
	n.inputs = append(n.inputs, ph)
	return true
}

// AddOutput designates ph as a network output.
func (n *Network) AddOutput(ph PortHandle) bool {
	if n.Port(ph) == nil || slices.Contains(n.outputs, ph) {
		return false
	}
	n.outputs = append(n.outputs, ph)
	return true
}

// DeleteInput removes ph from the network inputs.
func (n *Network) DeleteInput(ph PortHandle) bool {
	i := slices.Index(n.inputs, ph)
	if i < 0 {
		return false
	}
	n.inputs = slices.Delete(n.inputs, i, i+1)
	return true
}

// DeleteOutput removes ph from the network outputs.
func (n *Network) DeleteOutput(ph PortHandle) bool {
	i := slices.Index(n.outputs, ph)
	if i < 0 {
		return false
	}
	n.outputs = slices.Delete(n.outputs, i, i+1)
	return true
}

// ReplaceInput swaps old for repl in place, keeping boundary order.
func (n *Network) ReplaceInput(old, repl PortHandle) bool {
	return replaceBoundary(n.inputs, old, repl)
}

// ReplaceOutput swaps old for repl in place, keeping boundary order.
func (n *Network) ReplaceOutput(old, repl PortHandle) bool {
	return replaceBoundary(n.outputs, old, repl)
}

func replaceBoundary(list []PortHandle, old, repl PortHandle) bool {
	i := slices.Index(list, old)
	if i < 0 || repl == 0 {
		return false
	}
	list[i] = repl
	return true
}

// Inputs returns the network input ports.
func (n *Network) Inputs() []PortHandle {
	return slices.Clone(n.inputs)
}

// Outputs returns the network output ports.
func (n *Network) Outputs() []PortHandle {
	return slices.Clone(n.outputs)
}

// PortString renders ph as "process:port" for logs and errors.
func (n *Network) PortString(ph PortHandle) string {
	port := n.Port(ph)
	if port == nil {
		return fmt.Sprintf("<stale port %d>", ph)
	}
	return fmt.Sprintf("%s:%s", n.ID(port.Owner), port.ID)
}

// ChainString renders a leaf chain as "a"--"b"--"c".
func (n *Network) ChainString(chain []Handle) string {
	var s string
	for i, h := range chain {
		if i > 0 {
			s += "--"
		}
		s += strconv.Quote(string(n.ID(h)))
	}
	return s
}

// compareIDs orders Ids by byte value so iteration is deterministic.
func compareIDs(a, b Id) int {
	return cmp.Compare(a, b)
}
