package schedule

import (
	"fmt"

	"github.com/roach88/txsched/internal/graph"
)

// Plan is an ordered sequence of batches.
type Plan struct {
	Batches     [][]string `json:"batches"`
	Unscheduled []string   `json:"unscheduled"` // Node insertion order
}

// Complete reports whether every node was placed in a batch.
func (p Plan) Complete() bool {
	return len(p.Unscheduled) == 0
}

// Size returns the number of scheduled transactions.
func (p Plan) Size() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b)
	}
	return n
}

// String renders "3 transactions in 2 batches" with an unscheduled suffix
// when the plan is incomplete.
func (p Plan) String() string {
	s := fmt.Sprintf("%d transactions in %d batches", p.Size(), len(p.Batches))
	if !p.Complete() {
		s += fmt.Sprintf(", %d unscheduled", len(p.Unscheduled))
	}
	return s
}

// Batches layers g with Kahn's algorithm.
//
// The first batch holds every node with indegree 0, in insertion order.
// Successors released while retiring a batch join the next batch in the
// order they were released. The graph's own indegree map is not modified.
func Batches(g *graph.Graph) Plan {
	indegree := g.InDegrees()

	var ready []string
	for _, id := range g.Nodes() {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	plan := Plan{Batches: [][]string{}}
	for len(ready) > 0 {
		batch := ready
		ready = nil
		plan.Batches = append(plan.Batches, batch)
		for _, id := range batch {
			for _, succ := range g.Successors(id) {
				indegree[succ]--
				if indegree[succ] == 0 {
					ready = append(ready, succ)
				}
			}
		}
	}

	plan.Unscheduled = unscheduled(g, indegree)
	return plan
}

// unscheduled lists nodes whose working indegree never reached zero.
func unscheduled(g *graph.Graph, indegree map[string]int) []string {
	out := []string{}
	for _, id := range g.Nodes() {
		if indegree[id] > 0 {
			out = append(out, id)
		}
	}
	return out
}
