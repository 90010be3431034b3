package engine

import (
	"sync"

	"github.com/roach88/txsched/internal/ir"
)

// Observer receives run events as they happen.
//
// Batch and group IDs are 1-based; group IDs restart at 1 in every batch.
// OnTxEvaluated and OnTxFailed are raised from worker goroutines, but the
// executor serializes every call, and a group's transaction events are
// always delivered before its OnGroupMerged. Observers must not retain the
// slices or deltas they are given.
type Observer interface {
	OnBatchStart(batchID int, ids []string)
	OnGroupStart(batchID, groupID int, ids []string)
	OnTxEvaluated(txID, workerID string, delta ir.Delta)
	OnTxFailed(txID, workerID string, err error)
	OnGroupMerged(batchID, groupID int, merged ir.Delta)
	OnExecutionEnd()
}

// ObserverFuncs adapts optional callbacks to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	BatchStart   func(batchID int, ids []string)
	GroupStart   func(batchID, groupID int, ids []string)
	TxEvaluated  func(txID, workerID string, delta ir.Delta)
	TxFailed     func(txID, workerID string, err error)
	GroupMerged  func(batchID, groupID int, merged ir.Delta)
	ExecutionEnd func()
}

func (f ObserverFuncs) OnBatchStart(batchID int, ids []string) {
	if f.BatchStart != nil {
		f.BatchStart(batchID, ids)
	}
}

func (f ObserverFuncs) OnGroupStart(batchID, groupID int, ids []string) {
	if f.GroupStart != nil {
		f.GroupStart(batchID, groupID, ids)
	}
}

func (f ObserverFuncs) OnTxEvaluated(txID, workerID string, delta ir.Delta) {
	if f.TxEvaluated != nil {
		f.TxEvaluated(txID, workerID, delta)
	}
}

func (f ObserverFuncs) OnTxFailed(txID, workerID string, err error) {
	if f.TxFailed != nil {
		f.TxFailed(txID, workerID, err)
	}
}

func (f ObserverFuncs) OnGroupMerged(batchID, groupID int, merged ir.Delta) {
	if f.GroupMerged != nil {
		f.GroupMerged(batchID, groupID, merged)
	}
}

func (f ObserverFuncs) OnExecutionEnd() {
	if f.ExecutionEnd != nil {
		f.ExecutionEnd()
	}
}

// Observers fans each event out to every member in order.
type Observers []Observer

func (o Observers) OnBatchStart(batchID int, ids []string) {
	for _, obs := range o {
		obs.OnBatchStart(batchID, ids)
	}
}

func (o Observers) OnGroupStart(batchID, groupID int, ids []string) {
	for _, obs := range o {
		obs.OnGroupStart(batchID, groupID, ids)
	}
}

func (o Observers) OnTxEvaluated(txID, workerID string, delta ir.Delta) {
	for _, obs := range o {
		obs.OnTxEvaluated(txID, workerID, delta)
	}
}

func (o Observers) OnTxFailed(txID, workerID string, err error) {
	for _, obs := range o {
		obs.OnTxFailed(txID, workerID, err)
	}
}

func (o Observers) OnGroupMerged(batchID, groupID int, merged ir.Delta) {
	for _, obs := range o {
		obs.OnGroupMerged(batchID, groupID, merged)
	}
}

func (o Observers) OnExecutionEnd() {
	for _, obs := range o {
		obs.OnExecutionEnd()
	}
}

// lockedObserver serializes calls into an Observer.
type lockedObserver struct {
	mu    sync.Mutex
	inner Observer
}

func (l *lockedObserver) OnBatchStart(batchID int, ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.OnBatchStart(batchID, ids)
}

func (l *lockedObserver) OnGroupStart(batchID, groupID int, ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.OnGroupStart(batchID, groupID, ids)
}

func (l *lockedObserver) OnTxEvaluated(txID, workerID string, delta ir.Delta) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.OnTxEvaluated(txID, workerID, delta)
}

func (l *lockedObserver) OnTxFailed(txID, workerID string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.OnTxFailed(txID, workerID, err)
}

func (l *lockedObserver) OnGroupMerged(batchID, groupID int, merged ir.Delta) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.OnGroupMerged(batchID, groupID, merged)
}

func (l *lockedObserver) OnExecutionEnd() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.OnExecutionEnd()
}
