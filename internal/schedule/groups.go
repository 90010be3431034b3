package schedule

import (
	"github.com/roach88/txsched/internal/graph"
	"github.com/roach88/txsched/internal/ir"
)

// Groups partitions batch into conflict-free groups using first-fit.
//
// Each ID, in batch order, joins the first existing group it does not
// conflict with; otherwise it opens a new group. Conflict is tested in both
// directions, so the result does not depend on which transaction came first
// in the input. IDs missing from lookup are treated as conflicting with
// nothing.
func Groups(batch []string, lookup map[string]ir.Transaction) [][]string {
	groups := [][]string{}
	for _, id := range batch {
		tx := lookup[id]
		placed := false
		for i, group := range groups {
			if fits(tx, group, lookup) {
				groups[i] = append(group, id)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []string{id})
		}
	}
	return groups
}

func fits(tx ir.Transaction, group []string, lookup map[string]ir.Transaction) bool {
	for _, member := range group {
		if graph.Conflicts(tx, lookup[member]) {
			return false
		}
	}
	return true
}
