package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Id identifies a process (unique in the network) or a port (unique within
// its process).
type Id string

// Kind tags the closed set of process variants.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindMap
	KindCoalescedMap
	KindParallelMap
	KindZip
	KindUnzip
	KindFanout
	KindDelay
	KindZipWithN
	KindComposite
)

var kindNames = map[Kind]string{
	KindMap:          "map",
	KindCoalescedMap: "coalescedmap",
	KindParallelMap:  "parallelmap",
	KindZip:          "zip",
	KindUnzip:        "unzip",
	KindFanout:       "fanout",
	KindDelay:        "delay",
	KindZipWithN:     "zipwithn",
	KindComposite:    "composite",
}

// String returns the lowercase kind name used in descriptions and logs.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown process kind %q", s)
}

// IsMapLike reports whether the kind applies a per-element function list to a
// single input, which is what the data-parallel classifier accepts.
func (k Kind) IsMapLike() bool {
	return k == KindMap || k == KindCoalescedMap
}

// IsLeaf reports whether the kind is a computational leaf.
func (k Kind) IsLeaf() bool {
	return k != KindInvalid && k != KindComposite
}

// DataType describes a C data type carried by a port or function parameter.
// The zero value means "unspecified".
type DataType struct {
	Name      string `json:"name" yaml:"name"`
	IsArray   bool   `json:"is_array,omitempty" yaml:"is_array,omitempty"`
	ArraySize int    `json:"array_size,omitempty" yaml:"array_size,omitempty"`
	IsPointer bool   `json:"is_pointer,omitempty" yaml:"is_pointer,omitempty"`
	IsConst   bool   `json:"is_const,omitempty" yaml:"is_const,omitempty"`
}

// WithoutConst returns a copy of t with the const qualifier cleared.
func (t DataType) WithoutConst() DataType {
	t.IsConst = false
	return t
}

// IsVoid reports whether t names the void type.
func (t DataType) IsVoid() bool {
	return t.Name == "void" && !t.IsArray && !t.IsPointer
}

// String renders t the way it would appear in a declaration.
func (t DataType) String() string {
	var b strings.Builder
	if t.IsConst {
		b.WriteString("const ")
	}
	b.WriteString(t.Name)
	if t.IsArray {
		b.WriteByte('[')
		if t.ArraySize > 0 {
			b.WriteString(strconv.Itoa(t.ArraySize))
		} else {
			b.WriteByte('?')
		}
		b.WriteByte(']')
	}
	if t.IsPointer {
		b.WriteByte('*')
	}
	return b.String()
}

// Param is a named function parameter.
type Param struct {
	Name string   `json:"name" yaml:"name"`
	Type DataType `json:"type" yaml:"type"`
}

// Function is the C function carried by Map-like and combinational leafs.
type Function struct {
	Name   string   `json:"name" yaml:"name"`
	Inputs []Param  `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Return DataType `json:"return" yaml:"return"`
	Body   string   `json:"body" yaml:"body"`
}

// Equal reports whether two functions compute the same thing. Only the body
// text is compared; names differ freely between otherwise identical leafs.
func (f Function) Equal(other Function) bool {
	return f.Body == other.Body
}

// OutputType is the type of the value a function produces. Functions with a
// single input return their result; two-input functions write it through
// their last parameter.
func (f Function) OutputType() DataType {
	if len(f.Inputs) <= 1 {
		return f.Return
	}
	return f.Inputs[len(f.Inputs)-1].Type
}

// InputType is the type of the function's first parameter without const.
func (f Function) InputType() (DataType, bool) {
	if len(f.Inputs) == 0 {
		return DataType{}, false
	}
	return f.Inputs[0].Type.WithoutConst(), true
}

// Process is one node of the network: a leaf or a composite.
//
// Which payload fields are meaningful depends on Kind:
//   - Map, ZipWithN: Functions has exactly one entry
//   - CoalescedMap: Functions lists the chain applied in order
//   - ParallelMap: Functions as CoalescedMap, Degree is the lane count
//   - Delay: InitialValue
type Process struct {
	ID           Id
	Kind         Kind
	Functions    []Function
	Degree       int
	InitialValue string

	parent Handle
	in     []PortHandle
	out    []PortHandle
}

// Handle refers to a process in a Network arena. The zero Handle is "none".
type Handle int32

// PortHandle refers to a port in a Network arena. The zero PortHandle is "none".
type PortHandle int32

// Side tells whether a port is an input or output of its process.
type Side uint8

const (
	SideIn Side = iota + 1
	SideOut
)

// String implements fmt.Stringer.
func (s Side) String() string {
	if s == SideIn {
		return "in"
	}
	return "out"
}

// Port is a connection point owned by exactly one process.
type Port struct {
	ID       Id
	Owner    Handle
	Side     Side
	DataType DataType
}

// NewMap creates a Map leaf applying fn.
func NewMap(id Id, fn Function) *Process {
	return &Process{ID: id, Kind: KindMap, Functions: []Function{fn}}
}

// NewCoalescedMap creates a CoalescedMap leaf applying fns in sequence.
func NewCoalescedMap(id Id, fns []Function) *Process {
	return &Process{ID: id, Kind: KindCoalescedMap, Functions: append([]Function(nil), fns...)}
}

// NewParallelMap creates a ParallelMap leaf replicating fns over degree lanes.
func NewParallelMap(id Id, degree int, fns []Function) *Process {
	return &Process{ID: id, Kind: KindParallelMap, Degree: degree, Functions: append([]Function(nil), fns...)}
}

// NewZip creates a Zip leaf.
func NewZip(id Id) *Process {
	return &Process{ID: id, Kind: KindZip}
}

// NewUnzip creates an Unzip leaf.
func NewUnzip(id Id) *Process {
	return &Process{ID: id, Kind: KindUnzip}
}

// NewFanout creates a Fanout leaf.
func NewFanout(id Id) *Process {
	return &Process{ID: id, Kind: KindFanout}
}

// NewDelay creates a Delay leaf with the given initial value.
func NewDelay(id Id, initial string) *Process {
	return &Process{ID: id, Kind: KindDelay, InitialValue: initial}
}

// NewZipWithN creates a general N-ary combinational leaf.
func NewZipWithN(id Id, fn Function) *Process {
	return &Process{ID: id, Kind: KindZipWithN, Functions: []Function{fn}}
}

// NewComposite creates an empty composite container.
func NewComposite(id Id) *Process {
	return &Process{ID: id, Kind: KindComposite}
}

// Function returns the first function of a Map-like leaf.
func (p *Process) Function() (Function, bool) {
	if len(p.Functions) == 0 {
		return Function{}, false
	}
	return p.Functions[0], true
}

// Parent returns the enclosing composite, or zero for the network root.
func (p *Process) Parent() Handle {
	return p.parent
}

// NumInPorts returns the number of in ports.
func (p *Process) NumInPorts() int {
	return len(p.in)
}

// NumOutPorts returns the number of out ports.
func (p *Process) NumOutPorts() int {
	return len(p.out)
}

// StructurallyEqual reports whether two leafs would generate the same code:
// same kind, same port counts, and (for Map-like leafs) the same function
// bodies in the same order. Identity is not considered.
func StructurallyEqual(a, b *Process) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	if len(a.in) != len(b.in) || len(a.out) != len(b.out) {
		return false
	}
	switch a.Kind {
	case KindMap, KindCoalescedMap, KindParallelMap, KindZipWithN:
		if len(a.Functions) != len(b.Functions) {
			return false
		}
		for i := range a.Functions {
			if !a.Functions[i].Equal(b.Functions[i]) {
				return false
			}
		}
		if a.Kind == KindParallelMap && a.Degree != b.Degree {
			return false
		}
	case KindDelay:
		return a.InitialValue == b.InitialValue
	}
	return true
}
