package harness

import "github.com/NinoDS/jssat/internal/store"

// TraceEvent is one discovered specialization, in discovery order.
type TraceEvent struct {
	Seq        int    `json:"seq"`
	Function   string `json:"function"`
	Signature  string `json:"signature"`
	Outcome    string `json:"outcome"`
	Assembled  string `json:"assembled,omitempty"`
	Iterations int    `json:"iterations"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every call ended as expected and
	// every assertion held.
	Pass bool `json:"pass"`

	// Trace lists the specializations of the run.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Run is the report as read back from the store.
	Run *store.Run `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addTrace fills the trace from a stored run.
func (r *Result) addTrace(run *store.Run) {
	for _, sp := range run.Specializations {
		r.Trace = append(r.Trace, TraceEvent{
			Seq:        sp.Seq,
			Function:   sp.Function,
			Signature:  sp.Signature,
			Outcome:    sp.Outcome,
			Assembled:  sp.AssembledName,
			Iterations: sp.Iterations,
		})
	}
}
