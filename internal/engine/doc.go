// Package engine executes a scheduled set of transactions against a ledger.
//
// ARCHITECTURE:
//
// One coordinating goroutine builds the conflict graph, layers it into
// batches and splits each batch into groups. Only the per-transaction delta
// computation runs concurrently. For each group:
//
//  1. every member is dispatched (inline, on an errgroup, or on the pool)
//  2. each task computes its Delta and appends a TxResult under a lock
//  3. the coordinator waits at the group barrier
//  4. successful deltas are summed key-wise and applied to the ledger once
//
// The merge for group G completes before any task of group G+1 is
// dispatched, so groups behave as ordered atomic steps. Deltas depend only on
// the transaction's own key sets, never on ledger state, so the final ledger
// is the same for every mode and worker count.
//
// MODES:
//
//   - sequential: one transaction per group, evaluated on the coordinator
//   - simulated:  whole batch as one group, evaluated on the coordinator
//   - threaded:   whole batch as one group, one goroutine per transaction
//   - priority:   priority-ordered batches, evaluated on the coordinator
//   - pool:       whole batch as one group on the worker pool
//   - grouped:    conflict-free groups per batch on the worker pool
//
// Failures never abort a run. A task error or panic becomes a failed
// TxResult that the merge skips; transactions caught in a dependency cycle
// are listed as unscheduled. Report.Status makes both visible.
package engine
