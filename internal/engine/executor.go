package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/txsched/internal/graph"
	"github.com/roach88/txsched/internal/ir"
	"github.com/roach88/txsched/internal/ledger"
	"github.com/roach88/txsched/internal/metrics"
	"github.com/roach88/txsched/internal/pool"
	"github.com/roach88/txsched/internal/schedule"
)

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 4

// coordinatorLabel is the worker ID reported for deltas computed inline.
const coordinatorLabel = "main"

// Executor runs one transaction set against one ledger.
//
// Thread-safety model:
//   - Run methods must not be called concurrently on the same Executor
//   - the ledger is only mutated by the coordinating goroutine, between
//     group barriers
//   - the delta function runs on worker goroutines in the concurrent modes
//
// Every Run applies its deltas to the same ledger; running twice applies
// them twice.
type Executor struct {
	txs      []ir.Transaction
	lookup   map[string]ir.Transaction
	ledger   *ledger.Ledger
	workers  int
	deltaFn  DeltaFunc
	observer Observer
	sink     metrics.Sink
	logger   *slog.Logger
	runIDs   RunIDGenerator
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers sets the worker count for the threaded and pool modes.
// Values below 1 are raised to 1.
func WithWorkers(n int) Option {
	return func(e *Executor) {
		e.workers = max(n, 1)
	}
}

// WithDeltaFunc replaces TransferDelta.
func WithDeltaFunc(fn DeltaFunc) Option {
	return func(e *Executor) {
		if fn != nil {
			e.deltaFn = fn
		}
	}
}

// WithObserver adds an observer. Repeated calls add more observers; they
// are notified in the order they were added.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if o == nil {
			return
		}
		if list, ok := e.observer.(Observers); ok {
			e.observer = append(list, o)
			return
		}
		e.observer = Observers{o}
	}
}

// WithSink sets the metrics sink for log lines and phase durations.
func WithSink(s metrics.Sink) Option {
	return func(e *Executor) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRunIDGenerator sets the run ID source. Defaults to UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Executor) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// New creates an Executor. The transaction slice is copied so later changes
// by the caller cannot alter the tie-breaking order.
func New(txs []ir.Transaction, l *ledger.Ledger, opts ...Option) *Executor {
	e := &Executor{
		txs:      slices.Clone(txs),
		lookup:   ir.Index(txs),
		ledger:   l,
		workers:  DefaultWorkers,
		deltaFn:  TransferDelta,
		observer: Observers{},
		sink:     metrics.Nop{},
		logger:   slog.Default(),
		runIDs:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.observer = &lockedObserver{inner: e.observer}
	return e
}

// Ledger returns the ledger the executor applies deltas to.
func (e *Executor) Ledger() *ledger.Ledger {
	return e.ledger
}

// Run dispatches to the entry point for mode.
func (e *Executor) Run(ctx context.Context, mode Mode) (*Report, error) {
	switch mode {
	case ModeSequential:
		return e.RunSequential(ctx)
	case ModeSimulated:
		return e.RunSimulatedBatches(ctx)
	case ModeThreaded:
		return e.RunThreadedBatches(ctx)
	case ModePriority:
		return e.RunPriority(ctx)
	case ModePool:
		return e.RunPooledBatches(ctx)
	case ModeGrouped:
		return e.RunGrouped(ctx)
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// RunSequential executes the topological order one transaction at a time on
// the calling goroutine. Each transaction is its own group.
func (e *Executor) RunSequential(ctx context.Context) (*Report, error) {
	return e.run(ctx, ModeSequential, schedule.Batches, singletons, e.dispatchInline, nil)
}

// RunSimulatedBatches treats every batch as one group but computes its deltas
// on the calling goroutine.
func (e *Executor) RunSimulatedBatches(ctx context.Context) (*Report, error) {
	return e.run(ctx, ModeSimulated, schedule.Batches, wholeBatch, e.dispatchInline, nil)
}

// RunThreadedBatches treats every batch as one group and computes each delta
// on its own goroutine, at most Workers at a time.
func (e *Executor) RunThreadedBatches(ctx context.Context) (*Report, error) {
	return e.run(ctx, ModeThreaded, schedule.Batches, wholeBatch, e.dispatchThreaded, nil)
}

// RunPriority layers the graph by fee and timestamp and computes each batch
// on the calling goroutine in priority order.
func (e *Executor) RunPriority(ctx context.Context) (*Report, error) {
	plan := func(g *graph.Graph) schedule.Plan {
		return schedule.PriorityBatches(g, e.lookup)
	}
	return e.run(ctx, ModePriority, plan, wholeBatch, e.dispatchInline, nil)
}

// RunPooledBatches treats every batch as one group and computes its deltas on
// the worker pool.
func (e *Executor) RunPooledBatches(ctx context.Context) (*Report, error) {
	p := pool.New(e.workers)
	defer p.Shutdown()
	dispatch := func(ids []string) []TxResult { return e.dispatchPool(p, ids) }
	return e.run(ctx, ModePool, schedule.Batches, wholeBatch, dispatch, p)
}

// RunGrouped splits every batch into conflict-free groups and runs each
// group on the worker pool, merging and applying it before the next group
// is dispatched.
func (e *Executor) RunGrouped(ctx context.Context) (*Report, error) {
	p := pool.New(e.workers)
	defer p.Shutdown()
	split := func(batch []string) [][]string { return schedule.Groups(batch, e.lookup) }
	dispatch := func(ids []string) []TxResult { return e.dispatchPool(p, ids) }
	return e.run(ctx, ModeGrouped, schedule.Batches, split, dispatch, p)
}

type (
	planFunc     func(*graph.Graph) schedule.Plan
	splitFunc    func(batch []string) [][]string
	dispatchFunc func(ids []string) []TxResult
)

func singletons(batch []string) [][]string {
	groups := make([][]string, len(batch))
	for i, id := range batch {
		groups[i] = []string{id}
	}
	return groups
}

func wholeBatch(batch []string) [][]string {
	if len(batch) == 0 {
		return nil
	}
	return [][]string{batch}
}

// run is the shared coordinator loop. p is non-nil for pool modes so its
// statistics can be logged.
func (e *Executor) run(ctx context.Context, mode Mode, plan planFunc, split splitFunc, dispatch dispatchFunc, p *pool.Pool) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:       e.runIDs.Generate(),
		Mode:        mode,
		Workers:     e.workers,
		Failures:    []TxResult{},
		Unscheduled: []string{},
		Pending:     []string{},
	}
	log := e.logger.With("run", report.RunID, "mode", string(mode))

	hash, err := ir.WorkloadHash(e.txs)
	if err != nil {
		return nil, err
	}
	report.WorkloadHash = hash

	var g *graph.Graph
	metrics.Measure(e.sink, "build_graph", func() {
		g, err = graph.Build(e.txs)
	})
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	report.Edges = g.EdgeCount()
	report.Ties = g.Ties()
	report.Cycles = g.Cycles()
	for _, tie := range report.Ties {
		log.Warn("bidirectional conflict",
			"kept", tie.Kept.From+"->"+tie.Kept.To,
			"dropped", tie.Dropped.From+"->"+tie.Dropped.To)
	}
	for _, c := range report.Cycles {
		log.Warn("dependency cycle", "path", c.Path)
	}

	var layout schedule.Plan
	metrics.Measure(e.sink, "schedule", func() {
		layout = plan(g)
	})
	report.Batches = layout.Batches
	report.Unscheduled = layout.Unscheduled
	if !layout.Complete() {
		log.Warn("unscheduled transactions", "count", len(layout.Unscheduled), "ids", layout.Unscheduled)
		e.sink.Log(fmt.Sprintf("unscheduled: %v", layout.Unscheduled))
	}

	log.Info("run starting",
		"transactions", len(e.txs),
		"edges", report.Edges,
		"batches", len(layout.Batches),
		"workers", e.workers)

	for i, batch := range layout.Batches {
		if err := ctx.Err(); err != nil {
			report.InterruptedBefore = i + 1
			for _, rest := range layout.Batches[i:] {
				report.Pending = append(report.Pending, rest...)
			}
			report.Duration = time.Since(start)
			log.Warn("run interrupted", "before_batch", i+1, "pending", len(report.Pending))
			return report, fmt.Errorf("run cancelled before batch %d: %w", i+1, err)
		}
		batchID := i + 1
		e.observer.OnBatchStart(batchID, batch)
		e.sink.Log(fmt.Sprintf("batch %d: %v", batchID, batch))

		metrics.Measure(e.sink, fmt.Sprintf("batch_%d", batchID), func() {
			for j, group := range split(batch) {
				e.runGroup(log, batchID, j+1, group, dispatch, report)
			}
		})
	}

	e.observer.OnExecutionEnd()
	report.Duration = time.Since(start)
	e.sink.Duration("run", report.Duration)

	attrs := []any{
		"status", report.Status(),
		"groups", report.Groups,
		"applied", report.Applied,
		"duration", report.Duration,
	}
	if p != nil {
		stats := p.Stats()
		attrs = append(attrs, "pool_completed", stats.Completed, "pool_failed", stats.Failed)
	}
	log.Info("run finished", attrs...)
	return report, nil
}

// runGroup dispatches one group, waits for it, and applies the merged delta.
func (e *Executor) runGroup(log *slog.Logger, batchID, groupID int, ids []string, dispatch dispatchFunc, report *Report) {
	e.observer.OnGroupStart(batchID, groupID, ids)

	results := dispatch(ids)

	// Completion order varies between runs; report in group order.
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	slices.SortFunc(results, func(a, b TxResult) int {
		return pos[a.TxID] - pos[b.TxID]
	})

	deltas := make([]ir.Delta, 0, len(results))
	for _, r := range results {
		if r.OK() {
			deltas = append(deltas, r.Delta)
			report.Applied++
			continue
		}
		report.Failures = append(report.Failures, r)
		log.Warn("transaction failed", "tx", r.TxID, "worker", r.WorkerID, "error", r.Err)
	}

	merged := ir.MergeDeltas(deltas...)
	e.ledger.Apply(merged)
	report.Groups++
	e.observer.OnGroupMerged(batchID, groupID, merged)
	log.Debug("group merged", "batch", batchID, "group", groupID, "size", len(ids), "keys", len(merged))
}

// evaluate computes one transaction's delta and notifies observers. It never
// panics.
func (e *Executor) evaluate(txID, workerID string) (res TxResult) {
	res = TxResult{TxID: txID, WorkerID: workerID}

	defer func() {
		if r := recover(); r != nil {
			res = failedResult(txID, workerID,
				NewTaskError(ErrCodeTaskPanic, txID, workerID, &pool.PanicError{TaskID: txID, Value: r}))
		}
		e.notify(res)
	}()

	delta, err := e.deltaFn(e.lookup[txID])
	if err != nil {
		return failedResult(txID, workerID, NewTaskError(ErrCodeTaskFailed, txID, workerID, err))
	}
	if delta == nil {
		delta = ir.Delta{}
	}
	res.Delta = delta
	return res
}

func (e *Executor) notify(res TxResult) {
	if res.OK() {
		e.observer.OnTxEvaluated(res.TxID, res.WorkerID, res.Delta)
		return
	}
	e.observer.OnTxFailed(res.TxID, res.WorkerID, res.Err)
}

// dispatchInline evaluates ids one after another on the coordinator.
func (e *Executor) dispatchInline(ids []string) []TxResult {
	results := make([]TxResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, e.evaluate(id, coordinatorLabel))
	}
	return results
}
