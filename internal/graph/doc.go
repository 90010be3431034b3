// Package graph builds the conflict graph for a fixed set of transactions.
//
// Nodes are transaction IDs. An edge A→B means A must be applied before B.
// Edges come from three pairwise rules, evaluated for every pair (A, B) with
// A earlier than B in input order:
//
//	write-read:  A.writes ∩ B.reads  ≠ ∅  ⇒  A→B
//	write-write: A.writes ∩ B.writes ≠ ∅  ⇒  A→B
//	read-write:  A.reads  ∩ B.writes ≠ ∅  ⇒  B→A
//
// When a pair yields both directions, only A→B is kept and the pair is
// recorded as a Tie. This is a deterministic simplification, not a
// correctness guarantee for a true two-way conflict: the dropped B→A
// ordering is simply not enforced. Ties() exposes every such pair.
//
// Dropping the reverse edge removes two-node cycles but not longer ones.
// Read-write back edges can still close a cycle through three or more transactions;
// Cycles() reports them, and the batch scheduler lists their members as
// unscheduled.
package graph
