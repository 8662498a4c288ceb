package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStringRoundTrip(t *testing.T) {
	kinds := []Kind{
		KindMap, KindCoalescedMap, KindParallelMap, KindZip, KindUnzip,
		KindFanout, KindDelay, KindZipWithN, KindComposite,
	}
	for _, k := range kinds {
		t.Run(k.String(), func(t *testing.T) {
			parsed, err := ParseKind(k.String())
			require.NoError(t, err)
			assert.Equal(t, k, parsed)
		})
	}

	_, err := ParseKind("mealy")
	assert.Error(t, err)
	assert.Equal(t, "invalid", KindInvalid.String())

	parsed, err := ParseKind("  Unzip ")
	require.NoError(t, err)
	assert.Equal(t, KindUnzip, parsed)
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, KindMap.IsMapLike())
	assert.True(t, KindCoalescedMap.IsMapLike())
	assert.False(t, KindParallelMap.IsMapLike())
	assert.False(t, KindDelay.IsMapLike())

	assert.True(t, KindDelay.IsLeaf())
	assert.False(t, KindComposite.IsLeaf())
	assert.False(t, KindInvalid.IsLeaf())
}

func TestDataTypeString(t *testing.T) {
	tests := []struct {
		dt       DataType
		expected string
	}{
		{DataType{Name: "int"}, "int"},
		{DataType{Name: "float", IsConst: true}, "const float"},
		{DataType{Name: "int", IsArray: true, ArraySize: 8}, "int[8]"},
		{DataType{Name: "int", IsArray: true}, "int[?]"},
		{DataType{Name: "char", IsPointer: true}, "char*"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.dt.String())
	}

	assert.True(t, DataType{Name: "void"}.IsVoid())
	assert.False(t, DataType{Name: "void", IsPointer: true}.IsVoid())
	assert.Equal(t, DataType{Name: "int"}, DataType{Name: "int", IsConst: true}.WithoutConst())
}

func TestFunctionEqualComparesBodyOnly(t *testing.T) {
	f := Function{Name: "f", Body: "return x + 1;"}
	g := Function{Name: "g", Body: "return x + 1;"}
	h := Function{Name: "f", Body: "return x * 2;"}

	assert.True(t, f.Equal(g))
	assert.False(t, f.Equal(h))
}

func TestFunctionSignatureTypes(t *testing.T) {
	intT := DataType{Name: "int"}
	floatT := DataType{Name: "float"}

	single := Function{
		Name:   "inc",
		Inputs: []Param{{Name: "x", Type: DataType{Name: "int", IsConst: true}}},
		Return: floatT,
	}
	in, ok := single.InputType()
	require.True(t, ok)
	assert.Equal(t, intT, in)
	assert.Equal(t, floatT, single.OutputType())

	twoArg := Function{
		Name:   "scale",
		Inputs: []Param{{Name: "in", Type: intT}, {Name: "out", Type: floatT}},
		Return: DataType{Name: "void"},
	}
	assert.Equal(t, floatT, twoArg.OutputType())

	_, ok = Function{Name: "none"}.InputType()
	assert.False(t, ok)
}

func TestStructurallyEqual(t *testing.T) {
	n := NewNetwork()
	f := Function{Name: "f", Body: "return x;"}
	g := Function{Name: "g", Body: "return -x;"}

	add := func(p *Process) *Process {
		h, ok := n.AddProcess(p)
		require.True(t, ok)
		_, ok = n.AddInPort(h, "in")
		require.True(t, ok)
		_, ok = n.AddOutPort(h, "out")
		require.True(t, ok)
		return p
	}

	a := add(NewMap("a", f))
	b := add(NewMap("b", Function{Name: "other_name", Body: "return x;"}))
	c := add(NewMap("c", g))
	d := add(NewDelay("d", "0"))
	e := add(NewDelay("e", "1"))
	p1 := add(NewParallelMap("p1", 2, []Function{f}))
	p2 := add(NewParallelMap("p2", 4, []Function{f}))
	cm := add(NewCoalescedMap("cm", []Function{f}))

	assert.True(t, StructurallyEqual(a, b))
	assert.False(t, StructurallyEqual(a, c))
	assert.False(t, StructurallyEqual(d, e))
	assert.False(t, StructurallyEqual(p1, p2))
	assert.False(t, StructurallyEqual(a, cm), "different kinds never compare equal")
	assert.False(t, StructurallyEqual(a, nil))

	z1 := NewZip("z1")
	h, _ := n.AddProcess(z1)
	n.AddInPort(h, "in1")
	n.AddInPort(h, "in2")
	n.AddOutPort(h, "out")
	z2 := NewZip("z2")
	h, _ = n.AddProcess(z2)
	n.AddInPort(h, "in1")
	n.AddOutPort(h, "out")
	assert.False(t, StructurallyEqual(z1, z2), "port counts differ")
}

func TestFunctionJSONFieldNaming(t *testing.T) {
	fn := Function{
		Name:   "f",
		Inputs: []Param{{Name: "x", Type: DataType{Name: "int", IsArray: true, ArraySize: 4}}},
		Return: DataType{Name: "int"},
		Body:   "return x[0];",
	}
	data, err := json.Marshal(fn)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"is_array":true`)
	assert.Contains(t, string(data), `"array_size":4`)
	assert.NotContains(t, string(data), `"isArray"`)
	assert.NotContains(t, string(data), `"is_pointer"`)
}
