package engine

import "github.com/roach88/txsched/internal/ir"

// DeltaFunc computes one transaction's effect on the ledger.
//
// It must depend only on tx. Members of a group run with no ordering between
// them, so a function that read ledger state would make results depend on
// scheduling. It may be called from several goroutines at once.
type DeltaFunc func(tx ir.Transaction) (ir.Delta, error)

// TransferDelta moves one unit from the smallest read key to the smallest
// write key. A transaction with no reads or no writes produces an empty
// delta.
func TransferDelta(tx ir.Transaction) (ir.Delta, error) {
	if len(tx.Reads) == 0 || len(tx.Writes) == 0 {
		return ir.Delta{}, nil
	}
	d := ir.Delta{}
	d[tx.Reads.First()]--
	d[tx.Writes.First()]++
	return d, nil
}

// TxResult is the outcome of evaluating one transaction: a delta on success
// or a *RunError on failure.
type TxResult struct {
	TxID     string   `json:"txId"`
	WorkerID string   `json:"threadId"`
	Delta    ir.Delta `json:"delta,omitempty"`
	Error    string   `json:"error,omitempty"`
	Err      error    `json:"-"`
}

// failedResult builds a failure result carrying err.
func failedResult(txID, workerID string, err *RunError) TxResult {
	return TxResult{TxID: txID, WorkerID: workerID, Error: err.Error(), Err: err}
}

// OK reports whether evaluation succeeded.
func (r TxResult) OK() bool {
	return r.Err == nil
}
