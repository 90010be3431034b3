package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/txsched/internal/graph"
	"github.com/roach88/txsched/internal/ir"
	"github.com/roach88/txsched/internal/trace"
)

// AssertionError is returned when an assertion fails.
// It includes the trace so failures can be debugged from the message alone.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Trace    []trace.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, describe(event))
		}
	}

	return buf.String()
}

func describe(e trace.Event) string {
	switch e.Type {
	case trace.EventBatchStart:
		return fmt.Sprintf("batch_start %d %v", e.BatchID, e.IDs)
	case trace.EventGroupStart:
		return fmt.Sprintf("group_start %d.%d %v", e.BatchID, e.GroupID, e.IDs)
	case trace.EventTxEval:
		return fmt.Sprintf("tx_eval %s on %s %v", e.TxID, e.ThreadID, map[string]int64(e.Delta))
	case trace.EventTxFailed:
		return fmt.Sprintf("tx_failed %s on %s: %s", e.TxID, e.ThreadID, e.Error)
	case trace.EventGroupMerged:
		return fmt.Sprintf("group_merged %d.%d %v", e.BatchID, e.GroupID, map[string]int64(e.Delta))
	default:
		return string(e.Type)
	}
}

// CheckExpect compares a run against the scenario's expected outcome and
// returns one message per mismatch.
func CheckExpect(exp Expect, txs []ir.Transaction, result *Result) []string {
	var errs []string
	report := result.Report

	if exp.Edges != nil {
		g, err := graph.Build(txs)
		if err != nil {
			return append(errs, fmt.Sprintf("expect.edges: %v", err))
		}
		want := make([]string, len(exp.Edges))
		for i, e := range exp.Edges {
			want[i] = e[0] + "->" + e[1]
		}
		var got []string
		for _, e := range g.Edges() {
			got = append(got, e.From+"->"+e.To)
		}
		slices.Sort(want)
		slices.Sort(got)
		if !slices.Equal(want, got) {
			errs = append(errs, fmt.Sprintf("expect.edges: want %v, got %v", want, got))
		}
	}

	if exp.Batches != nil && !slices.EqualFunc(exp.Batches, report.Batches, slices.Equal[[]string]) {
		errs = append(errs, fmt.Sprintf("expect.batches: want %v, got %v", exp.Batches, report.Batches))
	}

	if exp.Unscheduled != nil && !slices.Equal(exp.Unscheduled, report.Unscheduled) {
		errs = append(errs, fmt.Sprintf("expect.unscheduled: want %v, got %v", exp.Unscheduled, report.Unscheduled))
	}

	if exp.Failed != nil {
		var got []string
		for _, f := range report.Failures {
			got = append(got, f.TxID)
		}
		if !slices.Equal(exp.Failed, got) {
			errs = append(errs, fmt.Sprintf("expect.failed: want %v, got %v", exp.Failed, got))
		}
	}

	if exp.FinalLedger != nil && !maps.Equal(exp.FinalLedger, result.Ledger) {
		errs = append(errs, fmt.Sprintf("expect.final_ledger: want %v, got %v", exp.FinalLedger, result.Ledger))
	}

	if exp.Status != "" && exp.Status != report.Status() {
		errs = append(errs, fmt.Sprintf("expect.status: want %q, got %q", exp.Status, report.Status()))
	}

	return errs
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalBalance:
			err = assertFinalBalance(result.Ledger, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertTraceContains checks for an event of the given type, optionally
// about a specific transaction.
func assertTraceContains(events []trace.Event, a Assertion) error {
	for _, e := range events {
		if string(e.Type) != a.Event {
			continue
		}
		if a.Tx == "" || e.TxID == a.Tx || slices.Contains(e.IDs, a.Tx) {
			return nil
		}
	}

	expected := a.Event
	if a.Tx != "" {
		expected += " for " + a.Tx
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    events,
	}
}

// assertTraceOrder checks that transactions were evaluated in the given
// order. Evaluation is either tx_eval or tx_failed; other transactions may
// appear in between.
func assertTraceOrder(events []trace.Event, a Assertion) error {
	positions := make(map[string]int)
	for i, e := range events {
		if e.Type != trace.EventTxEval && e.Type != trace.EventTxFailed {
			continue
		}
		if _, seen := positions[e.TxID]; !seen {
			positions[e.TxID] = i + 1
		}
	}

	for _, id := range a.Txs {
		if positions[id] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all transactions evaluated: %v", a.Txs),
				Actual:   fmt.Sprintf("missing transaction: %s", id),
				Trace:    events,
			}
		}
	}

	for i := 1; i < len(a.Txs); i++ {
		prev, curr := a.Txs[i-1], a.Txs[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("evaluation order: %v", a.Txs),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: events,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the event type occurs exactly Count times.
func assertTraceCount(events []trace.Event, a Assertion) error {
	count := 0
	for _, e := range events {
		if string(e.Type) == a.Event {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    events,
		}
	}
	return nil
}

// assertFinalBalance checks one ledger key. Absent keys read as zero.
func assertFinalBalance(final map[string]int64, a Assertion) error {
	if got := final[a.Key]; got != a.Value {
		return &AssertionError{
			Type:     AssertFinalBalance,
			Expected: fmt.Sprintf("%s = %d", a.Key, a.Value),
			Actual:   fmt.Sprintf("%s = %d", a.Key, got),
		}
	}
	return nil
}
