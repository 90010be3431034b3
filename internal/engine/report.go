package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/txsched/internal/graph"
)

// Report summarizes one run.
type Report struct {
	RunID        string        `json:"run_id"`
	Mode         Mode          `json:"mode"`
	Workers      int           `json:"workers"`
	WorkloadHash string        `json:"workload_hash"`
	Edges        int           `json:"edges"`
	Batches      [][]string    `json:"batches"`
	Groups       int           `json:"groups"`
	Applied      int           `json:"applied"`
	Failures     []TxResult    `json:"failures"`
	Unscheduled  []string      `json:"unscheduled"`
	Ties         []graph.Tie   `json:"ties"`
	Cycles       []graph.Cycle `json:"cycles"`
	Duration     time.Duration `json:"duration_ns"`

	// InterruptedBefore is the 1-based batch the run stopped in front of
	// after cancellation; 0 when the run went through every batch.
	InterruptedBefore int `json:"interrupted_before,omitempty"`
	// Pending lists the transactions of batches that never started.
	Pending []string `json:"pending"`
}

// Interrupted reports whether cancellation stopped the run between batches.
func (r *Report) Interrupted() bool {
	return r.InterruptedBefore > 0
}

// Complete reports whether every transaction was scheduled, ran and
// succeeded.
func (r *Report) Complete() bool {
	return !r.Interrupted() && len(r.Unscheduled) == 0 && len(r.Failures) == 0
}

// Status renders "completed", "incomplete: N unscheduled, M failed", or for a
// cancelled run "incomplete: interrupted before batch B, P pending, N
// unscheduled, M failed".
func (r *Report) Status() string {
	switch {
	case r.Complete():
		return "completed"
	case r.Interrupted():
		return fmt.Sprintf("incomplete: interrupted before batch %d, %d pending, %d unscheduled, %d failed",
			r.InterruptedBefore, len(r.Pending), len(r.Unscheduled), len(r.Failures))
	default:
		return fmt.Sprintf("incomplete: %d unscheduled, %d failed", len(r.Unscheduled), len(r.Failures))
	}
}

// Err joins every run error, or returns nil for a complete run.
func (r *Report) Err() error {
	var errs []error
	if r.Interrupted() {
		errs = append(errs, NewInterruptedError(r.InterruptedBefore, r.Pending))
	}
	if len(r.Unscheduled) > 0 {
		errs = append(errs, NewUnscheduledError(r.Unscheduled))
	}
	for _, f := range r.Failures {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}
