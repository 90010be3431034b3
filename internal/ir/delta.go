package ir

import "slices"

// Delta is the net key adjustment produced by one transaction, or by the
// merge of several. Applying a delta always adds; it never sets.
type Delta map[string]int64

// Add accumulates other into d key-wise.
func (d Delta) Add(other Delta) {
	for k, v := range other {
		d[k] += v
	}
}

// Clone returns an independent copy of d.
func (d Delta) Clone() Delta {
	out := make(Delta, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Keys returns the keys of d in ascending order.
func (d Delta) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Sum returns the sum of every adjustment in d.
func (d Delta) Sum() int64 {
	var total int64
	for _, v := range d {
		total += v
	}
	return total
}

// MergeDeltas sums deltas key-wise into a new Delta.
// Summation is commutative, so the input order does not affect the result.
// Keys whose adjustments cancel out are kept with a zero value so that a
// merged delta still names every key the group touched.
func MergeDeltas(deltas ...Delta) Delta {
	merged := make(Delta)
	for _, d := range deltas {
		merged.Add(d)
	}
	return merged
}
