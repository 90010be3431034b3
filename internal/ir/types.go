package ir

import (
	"fmt"
	"slices"
)

// KeySet is an unordered set of ledger keys.
// Use Sorted() for deterministic iteration.
type KeySet map[string]struct{}

// NewKeySet builds a KeySet from the given keys. Duplicates collapse.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether key is in the set.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Intersects reports whether the two sets share at least one key.
func (s KeySet) Intersects(other KeySet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for k := range small {
		if large.Has(k) {
			return true
		}
	}
	return false
}

// Sorted returns the keys in ascending byte order.
func (s KeySet) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// First returns the smallest key, or "" when the set is empty.
func (s KeySet) First() string {
	var first string
	found := false
	for k := range s {
		if !found || k < first {
			first, found = k, true
		}
	}
	return first
}

// Transaction declares the keys a unit of work reads and writes.
//
// A Transaction is immutable after construction. The scheduler holds it for
// the duration of one run and never mutates its sets; callers must not either.
type Transaction struct {
	ID        string `json:"id" yaml:"id"`
	Reads     KeySet `json:"reads" yaml:"reads"`
	Writes    KeySet `json:"writes" yaml:"writes"`
	Fee       int64  `json:"fee" yaml:"fee"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
}

// NewTransaction builds a transaction from key slices.
func NewTransaction(id string, reads, writes []string, fee, timestamp int64) Transaction {
	return Transaction{
		ID:        id,
		Reads:     NewKeySet(reads...),
		Writes:    NewKeySet(writes...),
		Fee:       fee,
		Timestamp: timestamp,
	}
}

// Validate checks that the transaction has an ID and that no key is empty.
// Empty read and write sets are valid; such a transaction conflicts with nothing.
func (tx Transaction) Validate() error {
	if tx.ID == "" {
		return fmt.Errorf("transaction ID is required")
	}
	if tx.Reads.Has("") {
		return fmt.Errorf("transaction %s: empty key in reads", tx.ID)
	}
	if tx.Writes.Has("") {
		return fmt.Errorf("transaction %s: empty key in writes", tx.ID)
	}
	return nil
}

// String renders the transaction as "id(reads=[..],writes=[..])".
func (tx Transaction) String() string {
	return fmt.Sprintf("%s(reads=%v,writes=%v)", tx.ID, tx.Reads.Sorted(), tx.Writes.Sorted())
}

// Index maps transaction IDs to transactions.
// Later duplicates overwrite earlier ones; callers that care must validate first.
func Index(txs []Transaction) map[string]Transaction {
	idx := make(map[string]Transaction, len(txs))
	for _, tx := range txs {
		idx[tx.ID] = tx
	}
	return idx
}
