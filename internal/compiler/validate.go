package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/parsynth/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrNoProcesses       = "E200" // network declares no processes
	ErrDuplicateProcess  = "E201" // process id used twice
	ErrUnknownKind       = "E202" // kind name not recognised
	ErrDuplicatePort     = "E203" // port id used twice on one side
	ErrInvalidParent     = "E204" // parent missing or not a composite
	ErrUnknownPortRef    = "E205" // connection or boundary names a missing port
	ErrPortReused        = "E206" // a port takes part in two connections
	ErrInvalidProcess    = "E207" // per-kind arity or payload rule violated
	ErrNoOutputs         = "E208" // network declares no outputs
	ErrEmptyProcessID    = "E209" // process id is empty
	ErrInvalidConnection = "E210" // connection joins two ports on the same side
)

// ValidationError represents a structural validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled network description.
// Returns all errors found (does not fail-fast).
//
// Reference and uniqueness rules are checked on the description itself.
// When those pass, the network is built and every process is run through
// ir.Network.Check.
func Validate(s *ir.Snapshot) []ValidationError {
	var errs []ValidationError
	if len(s.Processes) == 0 {
		return []ValidationError{{Field: "processes", Message: "at least one process is required", Code: ErrNoProcesses}}
	}

	type procInfo struct {
		kind ir.Kind
		in   map[ir.Id]bool
		out  map[ir.Id]bool
	}
	procs := make(map[ir.Id]*procInfo, len(s.Processes))
	for i, ps := range s.Processes {
		field := fmt.Sprintf("processes[%d]", i)
		if ps.ID == "" {
			errs = append(errs, ValidationError{Field: field, Message: "process id is empty", Code: ErrEmptyProcessID})
			continue
		}
		field = "processes." + string(ps.ID)
		if _, dup := procs[ps.ID]; dup {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate process id %q", ps.ID), Code: ErrDuplicateProcess})
			continue
		}
		kind, err := ir.ParseKind(ps.Kind)
		if err != nil {
			errs = append(errs, ValidationError{Field: field + ".kind", Message: err.Error(), Code: ErrUnknownKind})
		}
		info := &procInfo{kind: kind, in: map[ir.Id]bool{}, out: map[ir.Id]bool{}}
		for _, p := range ps.InPorts {
			if info.in[p.ID] {
				errs = append(errs, ValidationError{Field: field + ".in", Message: fmt.Sprintf("duplicate in port %q", p.ID), Code: ErrDuplicatePort})
			}
			info.in[p.ID] = true
		}
		for _, p := range ps.OutPorts {
			if info.out[p.ID] {
				errs = append(errs, ValidationError{Field: field + ".out", Message: fmt.Sprintf("duplicate out port %q", p.ID), Code: ErrDuplicatePort})
			}
			info.out[p.ID] = true
		}
		procs[ps.ID] = info
	}

	for _, ps := range s.Processes {
		if ps.Parent == "" {
			continue
		}
		parent, ok := procs[ps.Parent]
		switch {
		case !ok:
			errs = append(errs, ValidationError{Field: "processes." + string(ps.ID) + ".parent",
				Message: fmt.Sprintf("unknown parent %q", ps.Parent), Code: ErrInvalidParent})
		case parent.kind != ir.KindComposite:
			errs = append(errs, ValidationError{Field: "processes." + string(ps.ID) + ".parent",
				Message: fmt.Sprintf("parent %q is not a composite", ps.Parent), Code: ErrInvalidParent})
		}
	}

	// side returns which side ref resolves to, preferring want.
	side := func(ref ir.PortRef, want ir.Side) (ir.Side, bool) {
		info, ok := procs[ref.Process]
		if !ok {
			return 0, false
		}
		if (want == ir.SideIn && info.in[ref.Port]) || (want == ir.SideOut && info.out[ref.Port]) {
			return want, true
		}
		if info.in[ref.Port] {
			return ir.SideIn, true
		}
		if info.out[ref.Port] {
			return ir.SideOut, true
		}
		return 0, false
	}

	used := make(map[ir.PortRef]int)
	for i, e := range s.Edges {
		field := fmt.Sprintf("connections[%d]", i)
		fromSide, okFrom := side(e.From, ir.SideOut)
		toSide, okTo := side(e.To, ir.SideIn)
		if !okFrom {
			errs = append(errs, ValidationError{Field: field + ".from", Message: fmt.Sprintf("unknown port %s", e.From), Code: ErrUnknownPortRef})
		}
		if !okTo {
			errs = append(errs, ValidationError{Field: field + ".to", Message: fmt.Sprintf("unknown port %s", e.To), Code: ErrUnknownPortRef})
		}
		if !okFrom || !okTo {
			continue
		}
		if fromSide == toSide {
			errs = append(errs, ValidationError{Field: field,
				Message: fmt.Sprintf("%s and %s are both %s ports", e.From, e.To, fromSide), Code: ErrInvalidConnection})
			continue
		}
		for _, ref := range []ir.PortRef{e.From, e.To} {
			used[ref]++
			if used[ref] == 2 {
				errs = append(errs, ValidationError{Field: field,
					Message: fmt.Sprintf("port %s is connected more than once", ref), Code: ErrPortReused})
			}
		}
	}

	for i, ref := range s.Inputs {
		if _, ok := side(ref, ir.SideIn); !ok {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("inputs[%d]", i), Message: fmt.Sprintf("unknown port %s", ref), Code: ErrUnknownPortRef})
		}
	}
	for i, ref := range s.Outputs {
		if _, ok := side(ref, ir.SideOut); !ok {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("outputs[%d]", i), Message: fmt.Sprintf("unknown port %s", ref), Code: ErrUnknownPortRef})
		}
	}
	if len(s.Outputs) == 0 {
		errs = append(errs, ValidationError{Field: "outputs", Message: "at least one output is required", Code: ErrNoOutputs})
	}

	if len(errs) > 0 {
		return errs
	}
	return checkProcesses(s)
}

// checkProcesses builds the network and applies the per-kind rules.
func checkProcesses(s *ir.Snapshot) []ValidationError {
	n, err := ir.FromSnapshot(*s)
	if err != nil {
		return []ValidationError{{Field: "network", Message: err.Error(), Code: ErrInvalidProcess}}
	}
	var errs []ValidationError
	for _, h := range n.Processes() {
		if err := n.Check(h); err != nil {
			var ie *ir.Error
			msg := err.Error()
			if errors.As(err, &ie) {
				msg = ie.Message
			}
			errs = append(errs, ValidationError{Field: "processes." + string(n.ID(h)), Message: msg, Code: ErrInvalidProcess})
		}
	}
	return errs
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
