package trace

import (
	"fmt"

	"github.com/roach88/txsched/internal/ir"
	"github.com/roach88/txsched/internal/ledger"
)

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Batches   int  `json:"batches"`
	Groups    int  `json:"groups"`
	Evaluated int  `json:"evaluated"`
	Failed    int  `json:"failed"`
	Complete  bool `json:"complete"` // execution_end was seen
}

// Replay re-applies every group_merged delta in trace order to l.
//
// Only merged deltas change the ledger; tx_eval deltas are checked against
// them instead. A group whose merged delta differs from the sum of its
// tx_eval deltas is an error, as is an event after execution_end.
func Replay(events []Event, l *ledger.Ledger) (ReplayResult, error) {
	var (
		res     ReplayResult
		pending = ir.Delta{}
	)
	for i, e := range events {
		if res.Complete {
			return res, fmt.Errorf("event %d (%s) after execution_end", i+1, e.Type)
		}
		switch e.Type {
		case EventBatchStart:
			res.Batches++
		case EventGroupStart:
			res.Groups++
			pending = ir.Delta{}
		case EventTxEval:
			res.Evaluated++
			pending.Add(e.Delta)
		case EventTxFailed:
			res.Failed++
		case EventGroupMerged:
			if !sameDelta(pending, e.Delta) {
				return res, fmt.Errorf("event %d: merged delta for batch %d group %d does not match its transactions",
					i+1, e.BatchID, e.GroupID)
			}
			l.Apply(e.Delta)
			pending = ir.Delta{}
		case EventExecutionEnd:
			res.Complete = true
		default:
			return res, fmt.Errorf("event %d: unknown type %q", i+1, e.Type)
		}
	}
	return res, nil
}

// sameDelta compares deltas, treating a missing key as zero.
func sameDelta(a, b ir.Delta) bool {
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if a[k] != v {
			return false
		}
	}
	return true
}
