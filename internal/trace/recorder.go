package trace

import (
	"slices"
	"sync"

	"github.com/roach88/txsched/internal/ir"
)

// Recorder is an executor observer that keeps every event in memory.
//
// Events are copied on receipt, so the executor may reuse its slices and
// deltas. Recorder is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	clock  *Clock
	events []Event
}

// NewRecorder creates an empty recorder with its own clock.
func NewRecorder() *Recorder {
	return &Recorder{clock: NewClock()}
}

// NewRecorderWithClock creates a recorder sharing clock with other writers.
func NewRecorderWithClock(clock *Clock) *Recorder {
	return &Recorder{clock: clock}
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Seq = r.clock.Next()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *Recorder) OnBatchStart(batchID int, ids []string) {
	r.add(Event{Type: EventBatchStart, BatchID: batchID, IDs: slices.Clone(ids)})
}

func (r *Recorder) OnGroupStart(batchID, groupID int, ids []string) {
	r.add(Event{Type: EventGroupStart, BatchID: batchID, GroupID: groupID, IDs: slices.Clone(ids)})
}

func (r *Recorder) OnTxEvaluated(txID, workerID string, delta ir.Delta) {
	r.add(Event{Type: EventTxEval, TxID: txID, ThreadID: workerID, Delta: delta.Clone()})
}

func (r *Recorder) OnTxFailed(txID, workerID string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.add(Event{Type: EventTxFailed, TxID: txID, ThreadID: workerID, Error: msg})
}

func (r *Recorder) OnGroupMerged(batchID, groupID int, merged ir.Delta) {
	r.add(Event{Type: EventGroupMerged, BatchID: batchID, GroupID: groupID, Delta: merged.Clone()})
}

func (r *Recorder) OnExecutionEnd() {
	r.add(Event{Type: EventExecutionEnd})
}
