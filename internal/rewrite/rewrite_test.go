package rewrite

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parsynth/internal/analysis"
	"github.com/roach88/parsynth/internal/ir"
	"github.com/roach88/parsynth/internal/testutil"
)

var quiet = WithLogger(slog.New(slog.DiscardHandler))

func bodies(p *ir.Process) []string {
	var out []string
	for _, fn := range p.Functions {
		out = append(out, fn.Body)
	}
	return out
}

func peerOwner(t *testing.T, n *ir.Network, ph ir.PortHandle) ir.Id {
	t.Helper()
	h, ok := n.PeerProcess(ph)
	require.True(t, ok, "port %s is unconnected", n.PortString(ph))
	return n.ID(h)
}

// sandwich builds src -> f -> g -> h -> sink.
func sandwich(t *testing.T) (*ir.Network, []ir.Handle) {
	b := testutil.NewBuilder(t)
	src := b.Map("src", "src")
	f := b.Map("f", "f")
	g := b.Map("g", "g")
	h := b.Map("h", "h")
	sink := b.Map("sink", "sink")
	b.Chain(src, f, g, h, sink)
	b.Input(src, 0)
	b.Output(sink, 0)
	return b.Network(), []ir.Handle{f, g, h}
}

func TestCoalesceLeafChain(t *testing.T) {
	n, chain := sandwich(t)
	r := New(n, quiet)

	h, err := r.CoalesceLeafChain(chain)
	require.NoError(t, err)

	p := n.Process(h)
	assert.Equal(t, ir.Id("_coalescedmapSY_1"), p.ID)
	assert.Equal(t, ir.KindCoalescedMap, p.Kind)
	assert.Equal(t, []string{"f", "g", "h"}, bodies(p))
	require.NoError(t, n.Check(h))

	assert.Equal(t, ir.Id("src"), peerOwner(t, n, n.InPorts(h)[0]))
	assert.Equal(t, ir.Id("sink"), peerOwner(t, n, n.OutPorts(h)[0]))
	assert.Equal(t, ir.Id("in"), n.Port(n.InPorts(h)[0]).ID)
	for _, id := range []ir.Id{"f", "g", "h"} {
		assert.Nil(t, n.Get(id))
	}
	assert.Equal(t, 3, n.NumProcesses())
}

func TestCoalesceLeafChain_KeepsBoundary(t *testing.T) {
	n := testutil.Linear(t, "f", "g", "h")
	r := New(n, quiet)

	h, err := r.CoalesceLeafChain([]ir.Handle{
		testutil.Handle(t, n, "m1"), testutil.Handle(t, n, "m2"), testutil.Handle(t, n, "m3"),
	})
	require.NoError(t, err)

	assert.Equal(t, []ir.PortHandle{n.InPorts(h)[0]}, n.Inputs())
	assert.Equal(t, []ir.PortHandle{n.OutPorts(h)[0]}, n.Outputs())
	assert.Equal(t, 1, n.NumProcesses())
}

func TestCoalesceLeafChain_Rejects(t *testing.T) {
	n, chain := sandwich(t)
	r := New(n, quiet)
	before := n.MustFingerprint()

	_, err := r.CoalesceLeafChain(nil)
	assert.True(t, ir.IsInvalidArgument(err))

	_, err = r.CoalesceLeafChain([]ir.Handle{chain[0], chain[2]})
	assert.True(t, ir.IsIllegalState(err), "f does not feed h")

	b := testutil.NewBuilder(t)
	z := b.Zip("z", 1)
	_, err = New(b.Network(), quiet).CoalesceLeafChain([]ir.Handle{z})
	assert.True(t, ir.IsIllegalState(err))

	assert.Equal(t, before, n.MustFingerprint())
}

func TestCoalesceLeafChain_UniqueIDAndParent(t *testing.T) {
	n, chain := sandwich(t)
	_, ok := n.AddProcess(ir.NewZip("_coalescedmapSY_1"))
	require.True(t, ok)
	comp, _ := n.AddComposite(ir.NewComposite("top"))
	for _, h := range chain {
		require.NoError(t, n.SetParent(h, comp))
	}

	h, err := New(n, quiet).CoalesceLeafChain(chain)
	require.NoError(t, err)
	assert.Equal(t, ir.Id("_coalescedmapSY_2"), n.ID(h))
	assert.Equal(t, ir.RelationFirstParent, n.Relation(h, comp))
}

func TestCoalesceDataParallelLeafs(t *testing.T) {
	n := testutil.Chains(t, 2, func(branch, stage int) string { return []string{"f", "g"}[stage] }, 2)
	r := New(n, quiet)

	count, err := r.CoalesceDataParallelLeafs()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, n.CountKind(ir.KindCoalescedMap))
	assert.Zero(t, n.CountKind(ir.KindMap))

	d := analysis.NewDetector(n, analysis.WithLogger(slog.New(slog.DiscardHandler)))
	sections, err := d.FindDataParallelSections()
	require.NoError(t, err)
	require.Len(t, sections, 1, "coalesced branches remain structurally equal")

	chains, err := d.BranchChains(sections[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"f", "g"}, bodies(n.Process(chains[1][0])))

	count, err = r.CoalesceDataParallelLeafs()
	require.NoError(t, err)
	assert.Zero(t, count, "single-segment sections are left alone")
}

func TestSplitDataParallelSegments(t *testing.T) {
	n := testutil.Chains(t, 3, func(branch, stage int) string { return "s" }, 3)
	r := New(n, quiet)

	count, err := r.SplitDataParallelSegments()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 3, n.CountKind(ir.KindZip))
	assert.Equal(t, 3, n.CountKind(ir.KindUnzip))
	require.NoError(t, n.CheckAll())

	m11 := testutil.Handle(t, n, "m1_1")
	m12 := testutil.Handle(t, n, "m1_2")
	m32 := testutil.Handle(t, n, "m3_2")
	zipIn, ok := n.Peer(n.OutPorts(m11)[0])
	require.True(t, ok)
	assert.Equal(t, "_ZipxSY_1:in1", n.PortString(zipIn))
	unzipOut, ok := n.Peer(n.InPorts(m12)[0])
	require.True(t, ok)
	assert.Equal(t, "_UnzipxSY_1:out1", n.PortString(unzipOut))
	unzipOut, _ = n.Peer(n.InPorts(m32)[0])
	assert.Equal(t, "_UnzipxSY_1:out3", n.PortString(unzipOut))

	zip1 := testutil.Handle(t, n, "_ZipxSY_1")
	assert.Equal(t, ir.Id("_UnzipxSY_1"), peerOwner(t, n, n.OutPorts(zip1)[0]))

	d := analysis.NewDetector(n, analysis.WithLogger(slog.New(slog.DiscardHandler)))
	sections, err := d.FindDataParallelSections()
	require.NoError(t, err)
	assert.Len(t, sections, 3)
	for _, s := range sections {
		chains, err := d.BranchChains(s)
		require.NoError(t, err)
		assert.Len(t, chains[0], 1)
	}
}

func TestSplitSegments_Precondition(t *testing.T) {
	n := testutil.Chains(t, 2, func(branch, stage int) string { return "s" }, 2)
	r := New(n, quiet)
	before := n.MustFingerprint()

	long := []ir.Handle{testutil.Handle(t, n, "m1_1"), testutil.Handle(t, n, "m1_2")}
	short := []ir.Handle{testutil.Handle(t, n, "m2_1")}

	err := r.SplitSegments([][]ir.Handle{long, short})
	require.Error(t, err)
	assert.True(t, ir.IsIllegalState(err))

	err = r.SplitSegments([][]ir.Handle{long, {}})
	assert.True(t, ir.IsIllegalState(err))

	err = r.SplitSegments(nil)
	assert.True(t, ir.IsInvalidArgument(err))

	assert.Equal(t, before, n.MustFingerprint(), "a rejected split leaves the graph untouched")
}

func TestFuseUnzipMapZipLeafs(t *testing.T) {
	b := testutil.NewBuilder(t)
	src := b.Map("src", "src")
	u := b.Unzip("unzip", 2)
	m1 := b.Map("map1", "return x * 2;")
	m2 := b.Map("map2", "return x * 2;")
	z := b.Zip("zip", 2)
	sink := b.Map("sink", "sink")
	b.Chain(src, u)
	b.Connect(u, 0, m1, 0)
	b.Connect(u, 1, m2, 0)
	b.Connect(m1, 0, z, 0)
	b.Connect(m2, 0, z, 1)
	b.Chain(z, sink)
	b.Input(src, 0)
	b.Output(sink, 0)
	n := b.Network()

	count, err := New(n, quiet).FuseUnzipMapZipLeafs()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	pm := n.Get("_parallelmapSY_1")
	require.NotNil(t, pm)
	assert.Equal(t, ir.KindParallelMap, pm.Kind)
	assert.Equal(t, 2, pm.Degree)
	assert.Equal(t, []string{"return x * 2;"}, bodies(pm))
	assert.Equal(t, 3, n.NumProcesses())

	h := testutil.Handle(t, n, "_parallelmapSY_1")
	assert.Equal(t, ir.Id("src"), peerOwner(t, n, n.InPorts(h)[0]))
	assert.Equal(t, ir.Id("sink"), peerOwner(t, n, n.OutPorts(h)[0]))
	assert.Equal(t, ir.Id("sink"), n.ID(n.Port(n.Outputs()[0]).Owner), "consumer of the output is unchanged")
}

func TestFuseUnzipMapZipLeafs_OnBoundary(t *testing.T) {
	n := testutil.Section(t, "f", "f")
	_, err := New(n, quiet).FuseUnzipMapZipLeafs()
	require.NoError(t, err)

	require.Equal(t, 1, n.NumProcesses())
	h := testutil.Handle(t, n, "_parallelmapSY_1")
	assert.Equal(t, h, n.Port(n.Inputs()[0]).Owner)
	assert.Equal(t, h, n.Port(n.Outputs()[0]).Owner)
}

func TestFuseUnzipMapZipLeafs_RequiresSingleSegment(t *testing.T) {
	n := testutil.Chains(t, 2, func(branch, stage int) string { return "s" }, 2)
	_, err := New(n, quiet).FuseUnzipMapZipLeafs()
	require.Error(t, err)
	assert.True(t, ir.IsIllegalState(err))
	assert.Contains(t, err.Error(), "fuse unzip map zip leafs")
}

func TestFuseUnzipMapZipLeafs_SkipsBranchToSink(t *testing.T) {
	b := testutil.NewBuilder(t)
	u := b.Unzip("u", 3)
	m1 := b.Map("m1", "f")
	m2 := b.Map("m2", "f")
	sink := b.Leaf(ir.NewComposite("sinkc"), 1, 0)
	z := b.Zip("z", 2)
	b.Connect(u, 0, m1, 0)
	b.Connect(u, 1, m2, 0)
	b.Connect(u, 2, sink, 0)
	b.Connect(m1, 0, z, 0)
	b.Connect(m2, 0, z, 1)
	b.Input(u, 0)
	b.Output(z, 0)
	n := b.Network()
	before := n.MustFingerprint()

	count, err := New(n, quiet).FuseUnzipMapZipLeafs()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, before, n.MustFingerprint())
}

func TestSplitFuseCoalesce(t *testing.T) {
	n := testutil.Chains(t, 4, func(branch, stage int) string { return []string{"f", "g", "h"}[stage] }, 3)
	r := New(n, quiet)

	_, err := r.SplitDataParallelSegments()
	require.NoError(t, err)
	count, err := r.FuseUnzipMapZipLeafs()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, n.CountKind(ir.KindParallelMap))
	assert.Equal(t, 3, n.NumProcesses())

	count, err = r.CoalesceParallelMapChains()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Equal(t, 1, n.NumProcesses())

	pm := n.Process(n.Leafs()[0])
	assert.Equal(t, ir.KindParallelMap, pm.Kind)
	assert.Equal(t, 4, pm.Degree)
	assert.Equal(t, []string{"f", "g", "h"}, bodies(pm))
	require.NoError(t, n.CheckAll())
}

func TestIsParallelMapChainCoalescable(t *testing.T) {
	intT := testutil.IntType
	floatT := ir.DataType{Name: "float"}

	tests := []struct {
		name     string
		degrees  []int
		fns      []ir.Function
		expected bool
	}{
		{"single leaf", []int{2}, []ir.Function{testutil.Fn("a", "a")}, false},
		{"same degree and types", []int{2, 2}, []ir.Function{testutil.Fn("a", "a"), testutil.Fn("b", "b")}, true},
		{"degree mismatch", []int{2, 3}, []ir.Function{testutil.Fn("a", "a"), testutil.Fn("b", "b")}, false},
		{
			"type chain holds",
			[]int{2, 2},
			[]ir.Function{testutil.TypedFn("a", intT, floatT, "a"), testutil.TypedFn("b", floatT, intT, "b")},
			true,
		},
		{
			"type chain broken",
			[]int{2, 2},
			[]ir.Function{testutil.TypedFn("a", intT, floatT, "a"), testutil.TypedFn("b", intT, intT, "b")},
			false,
		},
		{
			"two argument output type",
			[]int{2, 2},
			[]ir.Function{
				{Name: "a", Inputs: []ir.Param{{Name: "in", Type: intT}, {Name: "out", Type: floatT}}, Return: ir.DataType{Name: "void"}},
				testutil.TypedFn("b", ir.DataType{Name: "float", IsConst: true}, intT, "b"),
			},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewBuilder(t)
			var chain []ir.Handle
			for i, fn := range tt.fns {
				chain = append(chain, b.ParallelMap(fn.Name, tt.degrees[i], fn))
			}
			b.Chain(chain...)
			r := New(b.Network(), quiet)
			assert.Equal(t, tt.expected, r.IsParallelMapChainCoalescable(chain))
		})
	}
}

func TestCoalesceParallelMapChains_SkipsIncompatible(t *testing.T) {
	b := testutil.NewBuilder(t)
	p1 := b.ParallelMap("p1", 2, testutil.Fn("a", "a"))
	p2 := b.ParallelMap("p2", 8, testutil.Fn("b", "b"))
	b.Chain(p1, p2)
	b.Input(p1, 0)
	b.Output(p2, 0)
	n := b.Network()
	before := n.MustFingerprint()

	count, err := New(n, quiet).CoalesceParallelMapChains()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, before, n.MustFingerprint())
}

func TestRemoveRedundantLeafs(t *testing.T) {
	b := testutil.NewBuilder(t)
	z := b.Zip("z", 1)
	m := b.Map("m", "f")
	u := b.Unzip("u", 1)
	mid := b.Zip("mid", 1)
	sink := b.Map("sink", "g")
	b.Chain(z, m, u, mid, sink)
	b.Input(z, 0)
	b.Output(sink, 0)
	n := b.Network()
	r := New(n, quiet)

	count, err := r.RemoveRedundantLeafs()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 2, n.NumProcesses())

	mh := testutil.Handle(t, n, "m")
	assert.Equal(t, mh, n.Port(n.Inputs()[0]).Owner, "boundary moved to the neighbour")
	assert.Equal(t, ir.Id("sink"), peerOwner(t, n, n.OutPorts(mh)[0]))

	once := n.MustFingerprint()
	count, err = r.RemoveRedundantLeafs()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, once, n.MustFingerprint(), "idempotent")
}

func TestRemoveRedundantLeafs_OutputBoundary(t *testing.T) {
	b := testutil.NewBuilder(t)
	m := b.Map("m", "f")
	z := b.Zip("z", 1)
	keep := b.Zip("keep", 2)
	b.Chain(m, z)
	b.Input(m, 0)
	b.Output(z, 0)
	b.Output(keep, 0)
	n := b.Network()

	count, err := New(n, quiet).RemoveRedundantLeafs()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, testutil.Handle(t, n, "m"), n.Port(n.Outputs()[0]).Owner)
	assert.NotNil(t, n.Get("keep"))
}

func TestRemoveRedundantLeafs_WholeNetwork(t *testing.T) {
	b := testutil.NewBuilder(t)
	z := b.Zip("z", 1)
	b.Input(z, 0)
	b.Output(z, 0)
	n := b.Network()

	count, err := New(n, quiet).RemoveRedundantLeafs()
	require.Error(t, err)
	assert.True(t, ir.IsIllegalState(err))
	assert.Zero(t, count)
	assert.NotNil(t, n.Get("z"))
	assert.Len(t, n.Inputs(), 1, "boundary is kept")
	assert.Len(t, n.Outputs(), 1, "boundary is kept")
}

func TestConvertZipWith1ToMap(t *testing.T) {
	b := testutil.NewBuilder(t)
	src := b.Map("src", "src")
	one := b.ZipWithN("one", testutil.Fn("neg", "return -x;"))
	two := b.ZipWithN("two", ir.Function{
		Name:   "add",
		Inputs: []ir.Param{{Name: "a", Type: testutil.IntType}, {Name: "b", Type: testutil.IntType}},
		Return: testutil.IntType,
		Body:   "return a + b;",
	})
	b.Chain(src, one, two)
	b.Input(src, 0)
	b.Input(two, 1)
	b.Output(two, 0)
	n := b.Network()

	count, err := New(n, quiet).ConvertZipWith1ToMap()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Nil(t, n.Get("one"))
	assert.NotNil(t, n.Get("two"))

	m := testutil.Handle(t, n, "_mapSY_1")
	p := n.Process(m)
	assert.Equal(t, ir.KindMap, p.Kind)
	assert.Equal(t, []string{"return -x;"}, bodies(p))
	assert.Equal(t, ir.Id("src"), peerOwner(t, n, n.InPorts(m)[0]))
	assert.Equal(t, ir.Id("two"), peerOwner(t, n, n.OutPorts(m)[0]))
	require.NoError(t, n.CheckAll())
}
