package ir

import (
	"errors"
)

// Check verifies the port arity and payload rules for the process behind h.
func (n *Network) Check(h Handle) error {
	p := n.Process(h)
	if p == nil {
		return NewInvalidArgument("process %d does not exist", h)
	}
	in, out := len(p.in), len(p.out)
	switch p.Kind {
	case KindMap, KindCoalescedMap, KindParallelMap:
		if in != 1 || out != 1 {
			return NewIllegalState(p.ID, "%s must have exactly 1 in and 1 out port, has %d in and %d out", p.Kind, in, out)
		}
		if len(p.Functions) == 0 {
			return NewIllegalState(p.ID, "%s has no function", p.Kind)
		}
		if p.Kind == KindMap && len(p.Functions) != 1 {
			return NewIllegalState(p.ID, "map must carry exactly one function, has %d", len(p.Functions))
		}
		if p.Kind == KindParallelMap && p.Degree < 1 {
			return NewIllegalState(p.ID, "parallelmap degree must be at least 1, is %d", p.Degree)
		}
	case KindDelay:
		if in != 1 || out != 1 {
			return NewIllegalState(p.ID, "delay must have exactly 1 in and 1 out port, has %d in and %d out", in, out)
		}
		if p.InitialValue == "" {
			return NewIllegalState(p.ID, "delay has no initial value")
		}
	case KindZip:
		if in < 1 || out != 1 {
			return NewIllegalState(p.ID, "zip must have at least 1 in and exactly 1 out port, has %d in and %d out", in, out)
		}
	case KindUnzip, KindFanout:
		if in != 1 || out < 1 {
			return NewIllegalState(p.ID, "%s must have exactly 1 in and at least 1 out port, has %d in and %d out", p.Kind, in, out)
		}
	case KindZipWithN:
		if in < 1 || out != 1 {
			return NewIllegalState(p.ID, "zipwithn must have at least 1 in and exactly 1 out port, has %d in and %d out", in, out)
		}
		fn, ok := p.Function()
		if !ok {
			return NewIllegalState(p.ID, "zipwithn has no function")
		}
		if len(fn.Inputs) != in {
			return NewIllegalState(p.ID, "function %q takes %d inputs but the process has %d in ports", fn.Name, len(fn.Inputs), in)
		}
	case KindComposite:
	default:
		return NewInternal(p.ID, "unhandled process kind %d", p.Kind)
	}
	return nil
}

// CheckAll runs Check on every process and joins the failures.
func (n *Network) CheckAll() error {
	var errs []error
	for _, h := range n.Processes() {
		if err := n.Check(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
