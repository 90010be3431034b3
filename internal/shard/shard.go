// Package shard partitions a workload into independent account shards and
// estimates how evenly those shards spread over a fixed number of workers.
//
// Two transactions share a shard when they touch a common key, directly or
// through a chain of other transactions. Shards never conflict with each
// other, so they are the coarsest unit a scheduler could hand to separate
// workers without coordination.
package shard

import (
	"errors"
	"math"
	"slices"

	"github.com/tidwall/btree"

	"github.com/roach88/txsched/internal/ir"
)

// ErrNoWorkers is returned by Balance when asked to spread over zero workers.
var ErrNoWorkers = errors.New("number of workers must be positive")

// Shard is one weakly connected component of the key-sharing graph.
type Shard struct {
	ID           int      `json:"id"`
	Transactions []string `json:"transactions"` // input order
	Keys         []string `json:"keys"`         // sorted
}

// Size is the number of transactions in the shard.
func (s Shard) Size() int { return len(s.Transactions) }

// Find groups txs into shards. Shards are numbered in order of their first
// transaction, and a transaction touching no keys forms a shard of its own.
func Find(txs []ir.Transaction) []Shard {
	uf := newUnionFind(len(txs))

	// owner maps each key to the first transaction that touched it.
	var owner btree.Map[string, int]
	for i, tx := range txs {
		for _, set := range []ir.KeySet{tx.Reads, tx.Writes} {
			for k := range set {
				if j, ok := owner.Get(k); ok {
					uf.union(i, j)
				} else {
					owner.Set(k, i)
				}
			}
		}
	}

	byRoot := make(map[int]int)
	var shards []Shard
	for i, tx := range txs {
		root := uf.find(i)
		idx, ok := byRoot[root]
		if !ok {
			idx = len(shards)
			byRoot[root] = idx
			shards = append(shards, Shard{ID: idx, Transactions: []string{}, Keys: []string{}})
		}
		shards[idx].Transactions = append(shards[idx].Transactions, tx.ID)
	}

	owner.Scan(func(key string, i int) bool {
		idx := byRoot[uf.find(i)]
		shards[idx].Keys = append(shards[idx].Keys, key)
		return true
	})
	return shards
}

// Assignment is the set of shards given to one worker.
type Assignment struct {
	Worker       int      `json:"worker"`
	Shards       []int    `json:"shards"`
	Transactions []string `json:"transactions"`
}

// Load is the number of transactions assigned.
func (a Assignment) Load() int { return len(a.Transactions) }

// Balance distributes shards over workers first-fit-decreasing: largest shard
// first, each to the currently least-loaded worker (lowest index on ties).
// The result has one entry per worker, including idle ones.
func Balance(shards []Shard, workers int) ([]Assignment, error) {
	if workers <= 0 {
		return nil, ErrNoWorkers
	}

	order := slices.Clone(shards)
	slices.SortStableFunc(order, func(a, b Shard) int { return b.Size() - a.Size() })

	out := make([]Assignment, workers)
	for i := range out {
		out[i] = Assignment{Worker: i, Shards: []int{}, Transactions: []string{}}
	}
	for _, s := range order {
		least := 0
		for i := 1; i < workers; i++ {
			if out[i].Load() < out[least].Load() {
				least = i
			}
		}
		out[least].Shards = append(out[least].Shards, s.ID)
		out[least].Transactions = append(out[least].Transactions, s.Transactions...)
	}
	return out, nil
}

// Score rates the evenness of an assignment from 0 (worst) to 100 (perfect)
// as 100*(1-cv), where cv is the coefficient of variation of per-worker load.
// Idle workers are left out. No busy workers scores 0.
func Score(assignments []Assignment) float64 {
	var loads []float64
	for _, a := range assignments {
		if a.Load() > 0 {
			loads = append(loads, float64(a.Load()))
		}
	}
	if len(loads) == 0 {
		return 0
	}

	var sum float64
	for _, l := range loads {
		sum += l
	}
	avg := sum / float64(len(loads))

	var variance float64
	for _, l := range loads {
		variance += (l - avg) * (l - avg)
	}
	variance /= float64(len(loads))
	cv := math.Sqrt(variance) / avg

	return min(100, max(0, 100*(1-cv)))
}

// Stats summarises a shard analysis.
type Stats struct {
	Transactions int     `json:"transactions"`
	Shards       int     `json:"shards"`
	Largest      int     `json:"largest"`
	Smallest     int     `json:"smallest"`
	Average      float64 `json:"average"`
	Workers      int     `json:"workers"`
	Score        float64 `json:"score"`
}

// Analysis is the complete result of Analyze.
type Analysis struct {
	Shards      []Shard
	Assignments []Assignment
	Stats       Stats
}

// Analyze finds shards in txs and balances them over workers.
func Analyze(txs []ir.Transaction, workers int) (*Analysis, error) {
	shards := Find(txs)
	assignments, err := Balance(shards, workers)
	if err != nil {
		return nil, err
	}

	stats := Stats{
		Transactions: len(txs),
		Shards:       len(shards),
		Workers:      workers,
		Score:        Score(assignments),
	}
	for i, s := range shards {
		if i == 0 || s.Size() > stats.Largest {
			stats.Largest = s.Size()
		}
		if i == 0 || s.Size() < stats.Smallest {
			stats.Smallest = s.Size()
		}
	}
	if len(shards) > 0 {
		stats.Average = float64(len(txs)) / float64(len(shards))
	}

	return &Analysis{Shards: shards, Assignments: assignments, Stats: stats}, nil
}
