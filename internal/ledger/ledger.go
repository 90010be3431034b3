// Package ledger holds the shared key-to-balance mapping that transactions
// act on.
//
// The ledger is owned by the coordinator of a run. It is mutated only between
// group barriers, and only by adding deltas; Set exists for initialization.
// Keys are kept in an ordered B-tree so snapshots and displays are
// deterministic without a sort.
package ledger

import (
	"fmt"
	"io"
	"sync"

	"github.com/tidwall/btree"

	"github.com/roach88/txsched/internal/ir"
)

// Ledger maps keys to signed integer balances.
//
// Thread-safety: all methods are safe for concurrent use. The executor does
// not rely on this (it only touches the ledger between barriers) but read-only
// observers may call Get while a run is in progress.
type Ledger struct {
	mu       sync.RWMutex
	balances btree.Map[string, int64]
	applied  int
}

// New creates a ledger seeded with the given balances.
func New(initial map[string]int64) *Ledger {
	l := &Ledger{}
	for k, v := range initial {
		l.balances.Set(k, v)
	}
	return l
}

// Get returns the balance for key. Missing keys read as zero.
func (l *Ledger) Get(key string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, _ := l.balances.Get(key)
	return v
}

// Set overwrites a balance. Only for initialization; runs use Apply.
func (l *Ledger) Set(key string, value int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances.Set(key, value)
}

// Apply adds every adjustment in delta to the ledger as one operation.
// Keys absent from the ledger start at zero.
func (l *Ledger) Apply(delta ir.Delta) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range delta {
		cur, _ := l.balances.Get(k)
		l.balances.Set(k, cur+v)
	}
	l.applied++
}

// Applied returns how many deltas have been applied since construction.
func (l *Ledger) Applied() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.applied
}

// Len returns the number of keys.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances.Len()
}

// Snapshot returns a copy of every balance.
func (l *Ledger) Snapshot() map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int64, l.balances.Len())
	l.balances.Scan(func(k string, v int64) bool {
		out[k] = v
		return true
	})
	return out
}

// Keys returns every key in ascending order.
func (l *Ledger) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances.Keys()
}

// Total returns the sum of all balances.
func (l *Ledger) Total() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total int64
	l.balances.Scan(func(_ string, v int64) bool {
		total += v
		return true
	})
	return total
}

// Clone returns an independent ledger with the same balances.
func (l *Ledger) Clone() *Ledger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Ledger{balances: *l.balances.Copy()}
}

// Write prints one "key: balance" line per key in ascending key order.
func (l *Ledger) Write(w io.Writer) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var err error
	l.balances.Scan(func(k string, v int64) bool {
		_, err = fmt.Fprintf(w, "  %s: %d\n", k, v)
		return err == nil
	})
	return err
}
