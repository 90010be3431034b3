package schedule

import (
	"container/heap"

	"github.com/roach88/txsched/internal/graph"
	"github.com/roach88/txsched/internal/ir"
)

// readyQueue is a max-priority heap of ready transactions.
type readyQueue []ir.Transaction

func (q readyQueue) Len() int { return len(q) }

// Less orders by fee (higher first), then timestamp (earlier first), then ID.
func (q readyQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.Fee != b.Fee {
		return a.Fee > b.Fee
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.ID < b.ID
}

func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x any) { *q = append(*q, x.(ir.Transaction)) }

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	tx := old[n-1]
	*q = old[:n-1]
	return tx
}

// PriorityBatches layers g by draining a priority queue one round at a time.
//
// Each round pops every queued transaction, in priority order, as one batch.
// Successors that become ready during the round are queued for the next
// round, never the current one. Dependencies are respected exactly as in
// Batches; only the order within a batch differs.
func PriorityBatches(g *graph.Graph, lookup map[string]ir.Transaction) Plan {
	indegree := g.InDegrees()

	q := &readyQueue{}
	for _, id := range g.Nodes() {
		if indegree[id] == 0 {
			*q = append(*q, txFor(id, lookup))
		}
	}
	heap.Init(q)

	plan := Plan{Batches: [][]string{}}
	for q.Len() > 0 {
		var batch []string
		for q.Len() > 0 {
			batch = append(batch, heap.Pop(q).(ir.Transaction).ID)
		}
		plan.Batches = append(plan.Batches, batch)

		for _, id := range batch {
			for _, succ := range g.Successors(id) {
				indegree[succ]--
				if indegree[succ] == 0 {
					heap.Push(q, txFor(succ, lookup))
				}
			}
		}
	}

	plan.Unscheduled = unscheduled(g, indegree)
	return plan
}

// txFor returns the transaction for id, or a bare one carrying only the ID.
func txFor(id string, lookup map[string]ir.Transaction) ir.Transaction {
	if tx, ok := lookup[id]; ok {
		return tx
	}
	return ir.Transaction{ID: id}
}
