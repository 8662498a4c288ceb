package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	f := Function{Name: "f", Inputs: []Param{{Name: "x"}}, Body: "x"}
	two := Function{Name: "add", Inputs: []Param{{Name: "a"}, {Name: "b"}}, Body: "a+b"}

	tests := []struct {
		name    string
		proc    *Process
		in, out int
		wantErr bool
	}{
		{"map ok", NewMap("p", f), 1, 1, false},
		{"map two outs", NewMap("p", f), 1, 2, true},
		{"map without function", &Process{ID: "p", Kind: KindMap}, 1, 1, true},
		{"coalesced ok", NewCoalescedMap("p", []Function{f, f}), 1, 1, false},
		{"parallel ok", NewParallelMap("p", 4, []Function{f}), 1, 1, false},
		{"parallel zero degree", NewParallelMap("p", 0, []Function{f}), 1, 1, true},
		{"zip ok", NewZip("p"), 3, 1, false},
		{"zip without inputs", NewZip("p"), 0, 1, true},
		{"zip two outs", NewZip("p"), 2, 2, true},
		{"unzip ok", NewUnzip("p"), 1, 3, false},
		{"unzip two ins", NewUnzip("p"), 2, 2, true},
		{"fanout ok", NewFanout("p"), 1, 2, false},
		{"fanout no outs", NewFanout("p"), 1, 0, true},
		{"delay ok", NewDelay("p", "0"), 1, 1, false},
		{"delay without initial value", NewDelay("p", ""), 1, 1, true},
		{"zipwithn ok", NewZipWithN("p", two), 2, 1, false},
		{"zipwithn arity mismatch", NewZipWithN("p", two), 3, 1, true},
		{"composite anything", NewComposite("p"), 0, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNetwork()
			h, ok := n.AddProcess(tt.proc)
			require.True(t, ok)
			for i := 0; i < tt.in; i++ {
				n.AddInPort(h, Id("in"+string(rune('1'+i))))
			}
			for i := 0; i < tt.out; i++ {
				n.AddOutPort(h, Id("out"+string(rune('1'+i))))
			}

			err := n.Check(h)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsIllegalState(err))
				var irErr *Error
				require.ErrorAs(t, err, &irErr)
				assert.Equal(t, Id("p"), irErr.ProcessID)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckAllJoinsFailures(t *testing.T) {
	n := NewNetwork()
	n.AddProcess(NewZip("z1"))
	n.AddProcess(NewUnzip("u1"))
	ok := addLeaf(t, n, NewFanout("f"), []Id{"in"}, []Id{"out"})
	require.NoError(t, n.Check(ok))

	err := n.CheckAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process=z1")
	assert.Contains(t, err.Error(), "process=u1")
	assert.NotContains(t, err.Error(), "process=f")

	assert.True(t, IsInvalidArgument(n.Check(Handle(77))))
}
