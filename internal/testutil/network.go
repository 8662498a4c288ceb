package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/parsynth/internal/ir"
)

// IntType is the element type used by the fixture functions.
var IntType = ir.DataType{Name: "int"}

// Fn returns a single-input int function with the given body.
func Fn(name, body string) ir.Function {
	return ir.Function{
		Name:   name,
		Inputs: []ir.Param{{Name: "x", Type: ir.DataType{Name: "int", IsConst: true}}},
		Return: IntType,
		Body:   body,
	}
}

// TypedFn returns a single-input function mapping in to out.
func TypedFn(name string, in, out ir.DataType, body string) ir.Function {
	return ir.Function{
		Name:   name,
		Inputs: []ir.Param{{Name: "x", Type: in}},
		Return: out,
		Body:   body,
	}
}

// Builder assembles networks in tests. Every method fails the test on error.
type Builder struct {
	t testing.TB
	n *ir.Network
}

// NewBuilder creates a builder over an empty network.
func NewBuilder(t testing.TB) *Builder {
	t.Helper()
	return &Builder{t: t, n: ir.NewNetwork()}
}

// Network returns the network built so far.
func (b *Builder) Network() *ir.Network {
	return b.n
}

// Leaf adds p with numIn in ports and numOut out ports. Single ports are
// named "in" and "out"; multiple ports are numbered from 1.
func (b *Builder) Leaf(p *ir.Process, numIn, numOut int) ir.Handle {
	b.t.Helper()
	h, ok := b.n.AddProcess(p)
	require.True(b.t, ok, "add process %q", p.ID)
	for _, id := range portIDs("in", numIn) {
		_, ok := b.n.AddInPort(h, id)
		require.True(b.t, ok)
	}
	for _, id := range portIDs("out", numOut) {
		_, ok := b.n.AddOutPort(h, id)
		require.True(b.t, ok)
	}
	return h
}

func portIDs(prefix string, count int) []ir.Id {
	if count == 1 {
		return []ir.Id{ir.Id(prefix)}
	}
	ids := make([]ir.Id, count)
	for i := range ids {
		ids[i] = ir.Id(fmt.Sprintf("%s%d", prefix, i+1))
	}
	return ids
}

// Map adds a Map leaf whose function body is body.
func (b *Builder) Map(id, body string) ir.Handle {
	b.t.Helper()
	return b.Leaf(ir.NewMap(ir.Id(id), Fn("f_"+id, body)), 1, 1)
}

// MapFn adds a Map leaf carrying fn.
func (b *Builder) MapFn(id string, fn ir.Function) ir.Handle {
	b.t.Helper()
	return b.Leaf(ir.NewMap(ir.Id(id), fn), 1, 1)
}

// ParallelMap adds a ParallelMap leaf.
func (b *Builder) ParallelMap(id string, degree int, fns ...ir.Function) ir.Handle {
	b.t.Helper()
	return b.Leaf(ir.NewParallelMap(ir.Id(id), degree, fns), 1, 1)
}

// Unzip adds an Unzip leaf with width out ports.
func (b *Builder) Unzip(id string, width int) ir.Handle {
	b.t.Helper()
	return b.Leaf(ir.NewUnzip(ir.Id(id)), 1, width)
}

// Zip adds a Zip leaf with width in ports.
func (b *Builder) Zip(id string, width int) ir.Handle {
	b.t.Helper()
	return b.Leaf(ir.NewZip(ir.Id(id)), width, 1)
}

// Fanout adds a Fanout leaf with width out ports.
func (b *Builder) Fanout(id string, width int) ir.Handle {
	b.t.Helper()
	return b.Leaf(ir.NewFanout(ir.Id(id)), 1, width)
}

// Delay adds a Delay leaf.
func (b *Builder) Delay(id, initial string) ir.Handle {
	b.t.Helper()
	return b.Leaf(ir.NewDelay(ir.Id(id), initial), 1, 1)
}

// ZipWithN adds a ZipWithN leaf with one in port per function input.
func (b *Builder) ZipWithN(id string, fn ir.Function) ir.Handle {
	b.t.Helper()
	return b.Leaf(ir.NewZipWithN(ir.Id(id), fn), len(fn.Inputs), 1)
}

// Connect links out port outIdx of from to in port inIdx of to.
func (b *Builder) Connect(from ir.Handle, outIdx int, to ir.Handle, inIdx int) {
	b.t.Helper()
	outs := b.n.OutPorts(from)
	ins := b.n.InPorts(to)
	require.Less(b.t, outIdx, len(outs), "out port index of %q", b.n.ID(from))
	require.Less(b.t, inIdx, len(ins), "in port index of %q", b.n.ID(to))
	b.n.Connect(outs[outIdx], ins[inIdx])
}

// Chain connects out port 0 of each leaf to in port 0 of the next.
func (b *Builder) Chain(leafs ...ir.Handle) {
	b.t.Helper()
	for i := 1; i < len(leafs); i++ {
		b.Connect(leafs[i-1], 0, leafs[i], 0)
	}
}

// Input marks in port idx of h as a network input.
func (b *Builder) Input(h ir.Handle, idx int) {
	b.t.Helper()
	require.True(b.t, b.n.AddInput(b.n.InPorts(h)[idx]))
}

// Output marks out port idx of h as a network output.
func (b *Builder) Output(h ir.Handle, idx int) {
	b.t.Helper()
	require.True(b.t, b.n.AddOutput(b.n.OutPorts(h)[idx]))
}

// Section builds In -> Unzip -> one Map per body -> Zip -> Out. The leafs
// are named "unzip", "map1".."mapN" and "zip".
func Section(t testing.TB, bodies ...string) *ir.Network {
	t.Helper()
	return Chains(t, len(bodies), func(branch, stage int) string { return bodies[branch] }, 1)
}

// Chains builds a section with width branches of depth Map leafs each.
// body picks the function body for every branch and stage. Leafs are named
// "m<branch>_<stage>" counting from 1, plus "unzip" and "zip".
func Chains(t testing.TB, width int, body func(branch, stage int) string, depth int) *ir.Network {
	t.Helper()
	b := NewBuilder(t)
	u := b.Unzip("unzip", width)
	z := b.Zip("zip", width)
	for i := 0; i < width; i++ {
		prev, prevOut := u, i
		for s := 0; s < depth; s++ {
			id := fmt.Sprintf("m%d_%d", i+1, s+1)
			if depth == 1 {
				id = fmt.Sprintf("map%d", i+1)
			}
			m := b.Map(id, body(i, s))
			b.Connect(prev, prevOut, m, 0)
			prev, prevOut = m, 0
		}
		b.Connect(prev, prevOut, z, i)
	}
	b.Input(u, 0)
	b.Output(z, 0)
	return b.Network()
}

// Linear builds In -> Map(bodies[0]) -> ... -> Out with leafs "m1".."mN".
func Linear(t testing.TB, bodies ...string) *ir.Network {
	t.Helper()
	b := NewBuilder(t)
	var leafs []ir.Handle
	for i, body := range bodies {
		leafs = append(leafs, b.Map(fmt.Sprintf("m%d", i+1), body))
	}
	b.Chain(leafs...)
	b.Input(leafs[0], 0)
	b.Output(leafs[len(leafs)-1], 0)
	return b.Network()
}

// Feedback builds an accumulator loop:
//
//	In -> add(in1) ; add -> fan ; fan.out1 -> Out ; fan.out2 -> delay -> add(in2)
func Feedback(t testing.TB) *ir.Network {
	t.Helper()
	b := NewBuilder(t)
	add := b.ZipWithN("add", ir.Function{
		Name:   "add",
		Inputs: []ir.Param{{Name: "a", Type: IntType}, {Name: "b", Type: IntType}},
		Return: IntType,
		Body:   "return a + b;",
	})
	fan := b.Fanout("fan", 2)
	d := b.Delay("delay", "0")
	b.Connect(add, 0, fan, 0)
	b.Connect(fan, 1, d, 0)
	b.Connect(d, 0, add, 1)
	b.Input(add, 0)
	b.Output(fan, 0)
	return b.Network()
}

// Handle looks up id and fails the test if it is missing.
func Handle(t testing.TB, n *ir.Network, id string) ir.Handle {
	t.Helper()
	h, ok := n.Lookup(ir.Id(id))
	require.True(t, ok, "process %q not found", id)
	return h
}
