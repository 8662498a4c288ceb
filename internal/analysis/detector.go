package analysis

import (
	"fmt"
	"log/slog"

	"github.com/roach88/parsynth/internal/ir"
)

// Section is a contained section delimited by a diverge point (Start, an
// Unzip) and a converge point (End, a Zip).
type Section struct {
	Start ir.Handle
	End   ir.Handle
}

// Detector runs pattern queries against one network.
type Detector struct {
	n      *ir.Network
	logger *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for traversal tracing.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDetector creates a detector over n.
func NewDetector(n *ir.Network, opts ...Option) *Detector {
	d := &Detector{n: n, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SectionString renders s as "start--end".
func (d *Detector) SectionString(s Section) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%s--%s", d.n.ID(s.Start), d.n.ID(s.End)))
}

// upstream returns the leafs driving h's connected in ports, in port order.
func (d *Detector) upstream(h ir.Handle) []ir.Handle {
	var out []ir.Handle
	for _, ph := range d.n.InPorts(h) {
		if p, ok := d.n.PeerProcess(ph); ok {
			out = append(out, p)
		}
	}
	return out
}

// outputLeafs returns the owners of the network output ports in order.
func (d *Detector) outputLeafs() []ir.Handle {
	var out []ir.Handle
	for _, ph := range d.n.Outputs() {
		if port := d.n.Port(ph); port != nil {
			out = append(out, port.Owner)
		}
	}
	return out
}
