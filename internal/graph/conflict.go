package graph

import "github.com/roach88/txsched/internal/ir"

// Direction evaluates the three conflict rules for a pair where a precedes b
// in input order. forward is true when a must precede b (write-read or
// write-write); backward is true when b must precede a (read-write).
func Direction(a, b ir.Transaction) (forward, backward bool) {
	forward = a.Writes.Intersects(b.Reads) || a.Writes.Intersects(b.Writes)
	backward = a.Reads.Intersects(b.Writes)
	return forward, backward
}

// Conflicts reports whether a and b conflict in either direction.
// The rules together cover write/read, write/write and read/write overlaps, so
// the result does not depend on argument order.
func Conflicts(a, b ir.Transaction) bool {
	forward, backward := Direction(a, b)
	return forward || backward
}
