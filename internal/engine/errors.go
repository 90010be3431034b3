package engine

import (
	"errors"
	"fmt"
	"strings"
)

// RunError describes one problem detected during a run.
//
// Run errors never abort the run. They are collected on the Report:
//   - Unscheduled: transactions left out of every batch by a dependency cycle
//   - Task failure: a delta function returned an error
//   - Task panic: a delta function panicked
//   - Submit rejected: the worker pool refused the task
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// TxID identifies the affected transaction, if any.
	TxID string

	// Details contains additional context.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeUnscheduled indicates transactions that never reached indegree 0.
	ErrCodeUnscheduled RunErrorCode = "UNSCHEDULED"

	// ErrCodeTaskFailed indicates a delta function returned an error.
	ErrCodeTaskFailed RunErrorCode = "TASK_FAILED"

	// ErrCodeTaskPanic indicates a delta function panicked.
	ErrCodeTaskPanic RunErrorCode = "TASK_PANIC"

	// ErrCodeSubmitRejected indicates the worker pool refused a task.
	ErrCodeSubmitRejected RunErrorCode = "SUBMIT_REJECTED"

	// ErrCodeInterrupted indicates cancellation stopped the run between batches.
	ErrCodeInterrupted RunErrorCode = "INTERRUPTED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("%s: %s (tx=%s)", e.Code, e.Message, e.TxID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Cause
}

// IsUnscheduled returns true if err is an unscheduled-transactions error.
// Uses errors.As to handle wrapped and joined errors.
func IsUnscheduled(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeUnscheduled
	}
	return false
}

// IsTaskFailure returns true if err reports a failed, panicked or rejected
// transaction.
func IsTaskFailure(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		switch re.Code {
		case ErrCodeTaskFailed, ErrCodeTaskPanic, ErrCodeSubmitRejected:
			return true
		}
	}
	return false
}

// NewUnscheduledError reports transactions that were left out of every batch.
func NewUnscheduledError(ids []string) *RunError {
	return &RunError{
		Code:    ErrCodeUnscheduled,
		Message: fmt.Sprintf("%d transactions never became ready: %s", len(ids), strings.Join(ids, ", ")),
		Details: map[string]string{
			"count": fmt.Sprintf("%d", len(ids)),
		},
	}
}

// NewInterruptedError reports a run stopped before batch with pending
// transactions never evaluated.
func NewInterruptedError(batch int, pending []string) *RunError {
	return &RunError{
		Code:    ErrCodeInterrupted,
		Message: fmt.Sprintf("interrupted before batch %d; %d transactions never ran", batch, len(pending)),
		Details: map[string]string{
			"batch":   fmt.Sprintf("%d", batch),
			"pending": fmt.Sprintf("%d", len(pending)),
		},
	}
}

// NewTaskError wraps a failure raised while computing a transaction's delta.
func NewTaskError(code RunErrorCode, txID, workerID string, cause error) *RunError {
	return &RunError{
		Code:    code,
		Message: cause.Error(),
		TxID:    txID,
		Details: map[string]string{
			"worker": workerID,
		},
		Cause: cause,
	}
}
