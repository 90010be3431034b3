package engine

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/txsched/internal/pool"
)

// resultSet is the per-group delta collection. Workers compute in parallel
// and append under the lock; the coordinator takes ownership after the
// barrier.
type resultSet struct {
	mu      sync.Mutex
	results []TxResult
}

func (s *resultSet) add(r TxResult) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
}

// dispatchThreaded runs one goroutine per transaction, bounded by the worker
// count, and waits for all of them.
func (e *Executor) dispatchThreaded(ids []string) []TxResult {
	set := &resultSet{results: make([]TxResult, 0, len(ids))}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, id := range ids {
		label := fmt.Sprintf("thread-%d", i+1)
		g.Go(func() error {
			set.add(e.evaluate(id, label))
			return nil
		})
	}
	// evaluate never returns an error through the group.
	_ = g.Wait()

	return set.results
}

// dispatchPool submits every transaction to p and blocks in WaitAll.
func (e *Executor) dispatchPool(p *pool.Pool, ids []string) []TxResult {
	set := &resultSet{results: make([]TxResult, 0, len(ids))}

	for _, id := range ids {
		err := p.Submit(pool.Task{
			ID: id,
			Run: func(workerID int) error {
				r := e.evaluate(id, pool.WorkerLabel(workerID))
				set.add(r)
				return r.Err
			},
		})
		if err != nil {
			r := failedResult(id, "", NewTaskError(ErrCodeSubmitRejected, id, "", err))
			e.notify(r)
			set.add(r)
		}
	}
	p.WaitAll()

	return set.results
}
