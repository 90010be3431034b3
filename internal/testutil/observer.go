package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/txsched/internal/ir"
)

// RecordingObserver records every executor event as a line of text:
//
//	batch_start 1 [Tx1 Tx2]
//	group_start 1 1 [Tx1 Tx2]
//	tx_eval Tx1 worker-1 map[A:-1 B:1]
//	tx_failed Tx2 worker-2 boom
//	group_merged 1 1 map[A:-1 B:1]
//	execution_end
//
// It is safe for concurrent use.
type RecordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *RecordingObserver) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

// Events returns a copy of the recorded lines.
func (r *RecordingObserver) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *RecordingObserver) OnBatchStart(batchID int, ids []string) {
	r.record("batch_start %d %v", batchID, ids)
}

func (r *RecordingObserver) OnGroupStart(batchID, groupID int, ids []string) {
	r.record("group_start %d %d %v", batchID, groupID, ids)
}

func (r *RecordingObserver) OnTxEvaluated(txID, workerID string, delta ir.Delta) {
	r.record("tx_eval %s %s %v", txID, workerID, map[string]int64(delta))
}

func (r *RecordingObserver) OnTxFailed(txID, workerID string, err error) {
	r.record("tx_failed %s %s %v", txID, workerID, err)
}

func (r *RecordingObserver) OnGroupMerged(batchID, groupID int, merged ir.Delta) {
	r.record("group_merged %d %d %v", batchID, groupID, map[string]int64(merged))
}

func (r *RecordingObserver) OnExecutionEnd() {
	r.record("execution_end")
}
