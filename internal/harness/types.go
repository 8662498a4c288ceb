package harness

import "github.com/roach88/parsynth/internal/ir"

// PassTrace is one executed pass as read back from the run store.
type PassTrace struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Rewrites  int    `json:"rewrites"`
	Changed   bool   `json:"changed"`
	Processes int    `json:"processes"` // live processes after the pass
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the run behaved as expected and all assertions hold.
	Pass bool `json:"pass"`

	// RunID is the ID the run was recorded under.
	RunID string `json:"run_id"`

	// Status is the recorded run status, empty if the network was rejected
	// before the run started.
	Status string `json:"status,omitempty"`

	// Trace lists the executed passes in order.
	Trace []PassTrace `json:"trace"`

	// Schedule is the final leaf order. Empty if the run failed.
	Schedule []ir.Id `json:"schedule"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Network is the network after the last pass.
	Network *ir.Network `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []PassTrace{},
		Schedule: []ir.Id{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddPassTrace appends a pass to the trace.
func (r *Result) AddPassTrace(p PassTrace) {
	r.Trace = append(r.Trace, p)
}
