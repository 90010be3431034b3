// Package ir provides the foundational value types shared by every txsched
// package: transactions, key sets, deltas, and the canonical JSON encoding
// used for trace events and graph export.
//
// This package imports nothing internal. All other internal packages import
// ir; ir imports no other internal package.
//
// Key design constraints:
//   - Transactions are immutable once built; no package mutates their key sets
//   - Balances and deltas are int64, never floats
//   - Canonical JSON sorts object keys so exported artefacts are byte-stable
package ir
