package harness

import (
	"github.com/roach88/txsched/internal/engine"
	"github.com/roach88/txsched/internal/trace"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion matched.
	Pass bool `json:"pass"`

	// Trace holds the recorded events in order.
	Trace []trace.Event `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Report is the executor's run report.
	Report *engine.Report `json:"report"`

	// Ledger is the final ledger snapshot.
	Ledger map[string]int64 `json:"ledger"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []trace.Event{},
		Errors: []string{},
		Ledger: map[string]int64{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
