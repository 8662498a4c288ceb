package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"fortio.org/safecast"

	"github.com/roach88/parsynth/internal/ir"
)

// CompileNetwork parses a CUE network description into a Snapshot.
// Uses the CUE Go API directly.
//
// The value is the network struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	snap, err := CompileNetwork(v.LookupPath(cue.ParsePath("network.accumulate")))
//
// A network declares its processes keyed by Id, the connections between
// ports written "process:port", and the boundary ports:
//
//	processes: {
//		src:    {kind: "map", function: {...}}
//		delay:  {kind: "delay", initial: "0"}
//		unzip:  {kind: "unzip", out: ["out1", "out2"]}
//	}
//	connections: [{from: "src:out", to: "unzip:in"}]
//	inputs: ["src:in"]
//	outputs: ["zip:out"]
//
// Processes list ports under "in" and "out", either as plain Ids or as
// {id, type} structs. Kinds with a single port on a side may leave it out;
// it is then named "in" or "out".
func CompileNetwork(v cue.Value) (*ir.Snapshot, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	snap := &ir.Snapshot{}

	procsVal := v.LookupPath(cue.ParsePath("processes"))
	if !procsVal.Exists() {
		return nil, &CompileError{Field: "processes", Message: "processes are required", Pos: v.Pos()}
	}
	iter, err := procsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		ps, err := parseProcess(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		snap.Processes = append(snap.Processes, ps)
	}
	if len(snap.Processes) == 0 {
		return nil, &CompileError{Field: "processes", Message: "at least one process is required", Pos: procsVal.Pos()}
	}

	if connVal := v.LookupPath(cue.ParsePath("connections")); connVal.Exists() {
		list, err := connVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for list.Next() {
			edge, err := parseEdge(list.Value())
			if err != nil {
				return nil, err
			}
			snap.Edges = append(snap.Edges, edge)
		}
	}

	snap.Inputs, err = parsePortRefs(v, "inputs")
	if err != nil {
		return nil, err
	}
	snap.Outputs, err = parsePortRefs(v, "outputs")
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// BuildNetwork compiles v and builds the network, running Validate first so
// every structural problem is reported at once.
func BuildNetwork(v cue.Value) (*ir.Network, error) {
	snap, err := CompileNetwork(v)
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(snap)
}

// BuildSnapshot validates a compiled description and builds its network.
// All validation errors are joined into the returned error.
func BuildSnapshot(snap *ir.Snapshot) (*ir.Network, error) {
	if verrs := Validate(snap); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, joinErrors(errs)
	}
	return ir.FromSnapshot(*snap)
}

func parseProcess(id string, v cue.Value) (ir.ProcessSnapshot, error) {
	ps := ir.ProcessSnapshot{ID: ir.Id(id)}
	field := "processes." + id

	kindStr, err := requiredString(v, "kind", field)
	if err != nil {
		return ps, err
	}
	kind, err := ir.ParseKind(kindStr)
	if err != nil {
		return ps, &CompileError{Field: field + ".kind", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("kind")).Pos()}
	}
	ps.Kind = kind.String()

	if s, ok, err := optionalString(v, "parent"); err != nil {
		return ps, err
	} else if ok {
		ps.Parent = ir.Id(s)
	}
	if s, ok, err := optionalString(v, "initial"); err != nil {
		return ps, err
	} else if ok {
		ps.InitialValue = s
	}
	if degVal := v.LookupPath(cue.ParsePath("degree")); degVal.Exists() {
		d, err := degVal.Int64()
		if err != nil {
			return ps, formatCUEError(err)
		}
		if ps.Degree, err = safecast.Conv[int](d); err != nil {
			return ps, &CompileError{Field: field + ".degree", Message: err.Error(), Pos: degVal.Pos()}
		}
	}

	ps.Functions, err = parseFunctions(v, field)
	if err != nil {
		return ps, err
	}

	ps.InPorts, err = parsePorts(v, "in", field)
	if err != nil {
		return ps, err
	}
	ps.OutPorts, err = parsePorts(v, "out", field)
	if err != nil {
		return ps, err
	}
	if ps.InPorts == nil {
		ps.InPorts = defaultInPorts(kind, ps.Functions)
	}
	if ps.OutPorts == nil {
		ps.OutPorts = defaultOutPorts(kind)
	}
	return ps, nil
}

func defaultInPorts(kind ir.Kind, fns []ir.Function) []ir.PortSnapshot {
	switch kind {
	case ir.KindMap, ir.KindCoalescedMap, ir.KindParallelMap, ir.KindDelay, ir.KindUnzip, ir.KindFanout:
		return []ir.PortSnapshot{{ID: "in"}}
	case ir.KindZipWithN:
		if len(fns) == 0 || len(fns[0].Inputs) <= 1 {
			return []ir.PortSnapshot{{ID: "in"}}
		}
		ports := make([]ir.PortSnapshot, len(fns[0].Inputs))
		for i := range ports {
			ports[i] = ir.PortSnapshot{ID: ir.Id(fmt.Sprintf("in%d", i+1))}
		}
		return ports
	}
	return nil
}

func defaultOutPorts(kind ir.Kind) []ir.PortSnapshot {
	switch kind {
	case ir.KindMap, ir.KindCoalescedMap, ir.KindParallelMap, ir.KindDelay, ir.KindZip, ir.KindZipWithN:
		return []ir.PortSnapshot{{ID: "out"}}
	}
	return nil
}

// parsePorts reads a port list. Entries are either "id" or {id, type}.
// A missing list returns nil; an empty list returns an empty slice.
func parsePorts(v cue.Value, side, field string) ([]ir.PortSnapshot, error) {
	listVal := v.LookupPath(cue.ParsePath(side))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	ports := []ir.PortSnapshot{}
	for iter.Next() {
		pv := iter.Value()
		if s, err := pv.String(); err == nil {
			ports = append(ports, ir.PortSnapshot{ID: ir.Id(s)})
			continue
		}
		id, err := requiredString(pv, "id", field+"."+side)
		if err != nil {
			return nil, err
		}
		port := ir.PortSnapshot{ID: ir.Id(id)}
		if ts, ok, err := optionalString(pv, "type"); err != nil {
			return nil, err
		} else if ok {
			port.Type, err = ParseDataType(ts)
			if err != nil {
				return nil, &CompileError{Field: field + "." + side + "." + id, Message: err.Error(), Pos: pv.Pos()}
			}
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// parseFunctions accepts a single "function" struct or a "functions" list.
func parseFunctions(v cue.Value, field string) ([]ir.Function, error) {
	var fns []ir.Function
	if fv := v.LookupPath(cue.ParsePath("function")); fv.Exists() {
		fn, err := parseFunction(fv, field+".function")
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	if lv := v.LookupPath(cue.ParsePath("functions")); lv.Exists() {
		iter, err := lv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			fn, err := parseFunction(iter.Value(), fmt.Sprintf("%s.functions[%d]", field, i))
			if err != nil {
				return nil, err
			}
			fns = append(fns, fn)
		}
	}
	return fns, nil
}

func parseFunction(v cue.Value, field string) (ir.Function, error) {
	var fn ir.Function
	var err error
	if fn.Name, err = requiredString(v, "name", field); err != nil {
		return fn, err
	}
	if fn.Body, err = requiredString(v, "body", field); err != nil {
		return fn, err
	}
	ret, err := requiredString(v, "returns", field)
	if err != nil {
		return fn, err
	}
	if fn.Return, err = ParseDataType(ret); err != nil {
		return fn, &CompileError{Field: field + ".returns", Message: err.Error(), Pos: v.Pos()}
	}

	if iv := v.LookupPath(cue.ParsePath("inputs")); iv.Exists() {
		iter, err := iv.List()
		if err != nil {
			return fn, formatCUEError(err)
		}
		for iter.Next() {
			pv := iter.Value()
			name, err := requiredString(pv, "name", field+".inputs")
			if err != nil {
				return fn, err
			}
			ts, err := requiredString(pv, "type", field+".inputs."+name)
			if err != nil {
				return fn, err
			}
			dt, err := ParseDataType(ts)
			if err != nil {
				return fn, &CompileError{Field: field + ".inputs." + name, Message: err.Error(), Pos: pv.Pos()}
			}
			fn.Inputs = append(fn.Inputs, ir.Param{Name: name, Type: dt})
		}
	}
	return fn, nil
}

func parseEdge(v cue.Value) (ir.Edge, error) {
	var e ir.Edge
	from, err := requiredString(v, "from", "connections")
	if err != nil {
		return e, err
	}
	to, err := requiredString(v, "to", "connections")
	if err != nil {
		return e, err
	}
	if e.From, err = ParsePortRef(from); err != nil {
		return e, &CompileError{Field: "connections.from", Message: err.Error(), Pos: v.Pos()}
	}
	if e.To, err = ParsePortRef(to); err != nil {
		return e, &CompileError{Field: "connections.to", Message: err.Error(), Pos: v.Pos()}
	}
	return e, nil
}

func parsePortRefs(v cue.Value, field string) ([]ir.PortRef, error) {
	lv := v.LookupPath(cue.ParsePath(field))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var refs []ir.PortRef
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ref, err := ParsePortRef(s)
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// ParsePortRef parses "process:port".
func ParsePortRef(s string) (ir.PortRef, error) {
	proc, port, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || proc == "" || port == "" {
		return ir.PortRef{}, fmt.Errorf("port reference %q must be \"process:port\"", s)
	}
	return ir.PortRef{Process: ir.Id(proc), Port: ir.Id(port)}, nil
}

func requiredString(v cue.Value, name, field string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, bool, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return "", false, nil
	}
	s, err := sv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
