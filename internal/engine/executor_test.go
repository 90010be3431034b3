package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txsched/internal/ir"
	"github.com/roach88/txsched/internal/ledger"
	"github.com/roach88/txsched/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSampleExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(testutil.SampleTransactions(), ledger.New(testutil.SampleBalances()), opts...)
}

// =============================================================================
// TransferDelta
// =============================================================================

func TestTransferDelta(t *testing.T) {
	tests := []struct {
		name string
		tx   ir.Transaction
		want ir.Delta
	}{
		{"moves one unit", ir.NewTransaction("t", []string{"A"}, []string{"B"}, 0, 0), ir.Delta{"A": -1, "B": 1}},
		{"smallest keys win", ir.NewTransaction("t", []string{"Z", "M"}, []string{"Y", "C"}, 0, 0), ir.Delta{"M": -1, "C": 1}},
		{"no reads", ir.NewTransaction("t", nil, []string{"B"}, 0, 0), ir.Delta{}},
		{"no writes", ir.NewTransaction("t", []string{"A"}, nil, 0, 0), ir.Delta{}},
		{"same key nets zero", ir.NewTransaction("t", []string{"K"}, []string{"K"}, 0, 0), ir.Delta{"K": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TransferDelta(tt.tx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// End-to-end
// =============================================================================

func TestExecutor_SampleAllModes(t *testing.T) {
	for _, mode := range Modes() {
		t.Run(mode.String(), func(t *testing.T) {
			e := newSampleExecutor(t)

			report, err := e.Run(context.Background(), mode)
			require.NoError(t, err)

			assert.Equal(t, testutil.SampleFinalBalances(), e.Ledger().Snapshot())
			assert.True(t, report.Complete())
			assert.Equal(t, "completed", report.Status())
			assert.NoError(t, report.Err())
			assert.Equal(t, [][]string{{"Tx1", "Tx2"}, {"Tx3"}}, report.Batches)
			assert.Equal(t, 1, report.Edges)
			assert.Equal(t, 3, report.Applied)
			assert.Equal(t, mode, report.Mode)
			assert.NotEmpty(t, report.WorkloadHash)
		})
	}
}

func TestExecutor_GroupCounts(t *testing.T) {
	tests := []struct {
		mode   Mode
		groups int
	}{
		{ModeSequential, 3},
		{ModeSimulated, 2},
		{ModeThreaded, 2},
		{ModePriority, 2},
		{ModePool, 2},
		{ModeGrouped, 2},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			report, err := newSampleExecutor(t).Run(context.Background(), tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.groups, report.Groups)
		})
	}
}

func TestExecutor_DeterministicAcrossWorkerCounts(t *testing.T) {
	txs := testutil.ChainTransactions(5)
	for i, tx := range testutil.IndependentTransactions(30) {
		tx.ID = fmt.Sprintf("I%02d", i)
		txs = append(txs, tx)
	}

	baseline := ledger.New(nil)
	_, err := New(txs, baseline, WithLogger(quietLogger())).RunSequential(context.Background())
	require.NoError(t, err)
	want := baseline.Snapshot()

	for _, mode := range Modes() {
		for _, workers := range []int{1, 2, 8} {
			t.Run(fmt.Sprintf("%s/%d", mode, workers), func(t *testing.T) {
				l := ledger.New(nil)
				e := New(txs, l, WithWorkers(workers), WithLogger(quietLogger()))
				report, err := e.Run(context.Background(), mode)
				require.NoError(t, err)
				assert.True(t, report.Complete())
				assert.Equal(t, want, l.Snapshot())
			})
		}
	}
}

func TestExecutor_LedgerEqualsInitialPlusDeltas(t *testing.T) {
	txs := testutil.SampleTransactions()
	initial := testutil.SampleBalances()

	want := ir.Delta{}
	for k, v := range initial {
		want[k] = v
	}
	for _, tx := range txs {
		d, err := TransferDelta(tx)
		require.NoError(t, err)
		want.Add(d)
	}

	l := ledger.New(initial)
	_, err := New(txs, l, WithLogger(quietLogger())).RunGrouped(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64(want), l.Snapshot())
}

// =============================================================================
// Merge protocol
// =============================================================================

func TestExecutor_GroupMergedBeforeNextGroupStarts(t *testing.T) {
	const n = 5
	txs := testutil.ChainTransactions(n)
	l := ledger.New(nil)

	var seen []int64
	obs := ObserverFuncs{
		GroupStart: func(batchID, groupID int, ids []string) {
			seen = append(seen, l.Get("hot"))
		},
	}

	e := New(txs, l, WithWorkers(4), WithObserver(obs), WithLogger(quietLogger()))
	_, err := e.RunGrouped(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1, 2, 3, 4}, seen)
	assert.Equal(t, int64(n), l.Get("hot"))
	assert.Equal(t, int64(-n), l.Get("src"))
}

func TestExecutor_SequentialEvents(t *testing.T) {
	rec := &testutil.RecordingObserver{}
	e := newSampleExecutor(t, WithObserver(rec))

	_, err := e.RunSequential(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"batch_start 1 [Tx1 Tx2]",
		"group_start 1 1 [Tx1]",
		"tx_eval Tx1 main map[A:-1 B:1]",
		"group_merged 1 1 map[A:-1 B:1]",
		"group_start 1 2 [Tx2]",
		"tx_eval Tx2 main map[C:-1 D:1]",
		"group_merged 1 2 map[C:-1 D:1]",
		"batch_start 2 [Tx3]",
		"group_start 2 1 [Tx3]",
		"tx_eval Tx3 main map[B:-1 E:1]",
		"group_merged 2 1 map[B:-1 E:1]",
		"execution_end",
	}, rec.Events())
}

func TestExecutor_GroupedEventsSingleWorker(t *testing.T) {
	rec := &testutil.RecordingObserver{}
	e := newSampleExecutor(t, WithWorkers(1), WithObserver(rec))

	_, err := e.RunGrouped(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"batch_start 1 [Tx1 Tx2]",
		"group_start 1 1 [Tx1 Tx2]",
		"tx_eval Tx1 worker-1 map[A:-1 B:1]",
		"tx_eval Tx2 worker-1 map[C:-1 D:1]",
		"group_merged 1 1 map[A:-1 B:1 C:-1 D:1]",
		"batch_start 2 [Tx3]",
		"group_start 2 1 [Tx3]",
		"tx_eval Tx3 worker-1 map[B:-1 E:1]",
		"group_merged 2 1 map[B:-1 E:1]",
		"execution_end",
	}, rec.Events())
}

func TestExecutor_ObserversNotifiedInOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	mark := func(name string) Observer {
		return ObserverFuncs{ExecutionEnd: func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}}
	}

	e := newSampleExecutor(t, WithObserver(mark("first")), WithObserver(mark("second")), WithObserver(nil))
	_, err := e.RunSimulatedBatches(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestExecutor_TxEventsPrecedeGroupMerged(t *testing.T) {
	for _, mode := range []Mode{ModeThreaded, ModePool, ModeGrouped} {
		t.Run(mode.String(), func(t *testing.T) {
			txs := testutil.IndependentTransactions(20)
			rec := &testutil.RecordingObserver{}
			e := New(txs, ledger.New(nil), WithWorkers(4), WithObserver(rec), WithLogger(quietLogger()))

			_, err := e.Run(context.Background(), mode)
			require.NoError(t, err)

			events := rec.Events()
			require.Len(t, events, 1+1+20+1+1)
			assert.Equal(t, "group_start 1 1", events[1][:len("group_start 1 1")])
			for _, ev := range events[2:22] {
				assert.Regexp(t, `^tx_eval T\d\d (worker|thread)-\d+ `, ev)
			}
			assert.Regexp(t, `^group_merged 1 1 `, events[22])
			assert.Equal(t, "execution_end", events[23])
		})
	}
}

// =============================================================================
// Failures
// =============================================================================

func failOn(id string, err error) DeltaFunc {
	return func(tx ir.Transaction) (ir.Delta, error) {
		if tx.ID == id {
			return nil, err
		}
		return TransferDelta(tx)
	}
}

func TestExecutor_TaskErrorSkipsMerge(t *testing.T) {
	boom := errors.New("boom")
	for _, mode := range Modes() {
		t.Run(mode.String(), func(t *testing.T) {
			rec := &testutil.RecordingObserver{}
			e := newSampleExecutor(t, WithDeltaFunc(failOn("Tx2", boom)), WithObserver(rec))

			report, err := e.Run(context.Background(), mode)
			require.NoError(t, err, "task failures are not run errors")

			assert.Equal(t, map[string]int64{"A": 9, "B": 0, "C": 5, "D": 0, "E": 1}, e.Ledger().Snapshot())
			require.Len(t, report.Failures, 1)
			failure := report.Failures[0]
			assert.Equal(t, "Tx2", failure.TxID)
			assert.ErrorIs(t, failure.Err, boom)
			assert.Contains(t, failure.Error, "boom")

			var re *RunError
			require.ErrorAs(t, failure.Err, &re)
			assert.Equal(t, ErrCodeTaskFailed, re.Code)

			assert.Equal(t, 2, report.Applied)
			assert.False(t, report.Complete())
			assert.Equal(t, "incomplete: 0 unscheduled, 1 failed", report.Status())
			assert.True(t, IsTaskFailure(report.Err()))
			assert.False(t, IsUnscheduled(report.Err()))
			assert.Contains(t, rec.Events(), "tx_failed Tx2 "+failure.WorkerID+" "+failure.Err.Error())
		})
	}
}

func TestExecutor_PanicIsContained(t *testing.T) {
	panicky := func(tx ir.Transaction) (ir.Delta, error) {
		if tx.ID == "Tx1" {
			panic("kaboom")
		}
		return TransferDelta(tx)
	}
	for _, mode := range Modes() {
		t.Run(mode.String(), func(t *testing.T) {
			e := newSampleExecutor(t, WithDeltaFunc(panicky))

			report, err := e.Run(context.Background(), mode)
			require.NoError(t, err)

			require.Len(t, report.Failures, 1)
			var re *RunError
			require.ErrorAs(t, report.Failures[0].Err, &re)
			assert.Equal(t, ErrCodeTaskPanic, re.Code)
			assert.Contains(t, re.Error(), "kaboom")

			// Tx1's sibling and successor still ran.
			assert.Equal(t, int64(1), e.Ledger().Get("D"))
			assert.Equal(t, int64(1), e.Ledger().Get("E"))
			assert.Equal(t, int64(10), e.Ledger().Get("A"))
		})
	}
}

func TestExecutor_CycleReportedNotDropped(t *testing.T) {
	l := ledger.New(nil)
	e := New(testutil.CyclicTransactions(), l, WithLogger(quietLogger()))

	report, err := e.RunGrouped(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"TxA", "TxB", "TxC"}, report.Unscheduled)
	require.Len(t, report.Cycles, 1)
	assert.Equal(t, "incomplete: 3 unscheduled, 0 failed", report.Status())
	assert.True(t, IsUnscheduled(report.Err()))
	assert.Equal(t, map[string]int64{"W": -1, "V": 1}, l.Snapshot())
}

func TestExecutor_TiesReported(t *testing.T) {
	e := New(testutil.TieTransactions(), ledger.New(nil), WithLogger(quietLogger()))

	report, err := e.RunSequential(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Ties, 1)
	assert.Equal(t, "T1", report.Ties[0].Kept.From)
	assert.Equal(t, [][]string{{"T1"}, {"T2"}}, report.Batches)
}

func TestExecutor_DuplicateIDFails(t *testing.T) {
	txs := append(testutil.SampleTransactions(), testutil.SampleTransactions()[0])
	_, err := New(txs, ledger.New(nil), WithLogger(quietLogger())).RunSequential(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build graph")
}

func TestExecutor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &testutil.RecordingObserver{}
	e := newSampleExecutor(t, WithObserver(rec))
	report, err := e.RunPooledBatches(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, rec.Events())
	assert.Equal(t, testutil.SampleBalances(), e.Ledger().Snapshot())

	assert.False(t, report.Complete())
	assert.True(t, report.Interrupted())
	assert.Equal(t, 1, report.InterruptedBefore)
	assert.Equal(t, []string{"Tx1", "Tx2", "Tx3"}, report.Pending)
	assert.Equal(t, "incomplete: interrupted before batch 1, 3 pending, 0 unscheduled, 0 failed", report.Status())

	var re *RunError
	require.ErrorAs(t, report.Err(), &re)
	assert.Equal(t, ErrCodeInterrupted, re.Code)
}

func TestExecutor_CompletedRunHasNoPending(t *testing.T) {
	report, err := newSampleExecutor(t).RunGrouped(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Interrupted())
	assert.Empty(t, report.Pending)
	assert.Equal(t, "completed", report.Status())
	assert.NoError(t, report.Err())
}

func TestExecutor_EmptyKeyRejected(t *testing.T) {
	txs := []ir.Transaction{ir.NewTransaction("Tx1", []string{"", "b"}, []string{"c"}, 0, 1)}
	_, err := New(txs, ledger.New(nil), WithLogger(quietLogger())).RunSequential(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty key in reads")
}

func TestExecutor_UnknownMode(t *testing.T) {
	_, err := newSampleExecutor(t).Run(context.Background(), Mode("bogus"))
	require.Error(t, err)
}

// =============================================================================
// Options
// =============================================================================

type recordingSink struct {
	mu     sync.Mutex
	lines  []string
	scopes []string
}

func (s *recordingSink) Log(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, msg)
}

func (s *recordingSink) Duration(scope string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes = append(s.scopes, scope)
}

func TestExecutor_Sink(t *testing.T) {
	sink := &recordingSink{}
	_, err := newSampleExecutor(t, WithSink(sink)).RunSimulatedBatches(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"batch 1: [Tx1 Tx2]", "batch 2: [Tx3]"}, sink.lines)
	assert.Equal(t, []string{"build_graph", "schedule", "batch_1", "batch_2", "run"}, sink.scopes)
}

func TestExecutor_RunIDs(t *testing.T) {
	e := newSampleExecutor(t, WithRunIDGenerator(NewFixedGenerator("run-1", "run-2")))

	first, err := e.RunSequential(context.Background())
	require.NoError(t, err)
	second, err := e.RunSequential(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, "run-2", second.RunID)
}

func TestWithWorkers_Clamps(t *testing.T) {
	e := newSampleExecutor(t, WithWorkers(-3))
	report, err := e.RunThreadedBatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Workers)
}

func TestNew_CopiesTransactions(t *testing.T) {
	txs := testutil.SampleTransactions()
	e := New(txs, ledger.New(testutil.SampleBalances()), WithLogger(quietLogger()))
	txs[0], txs[2] = txs[2], txs[0]

	report, err := e.RunSequential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Tx1", "Tx2"}, {"Tx3"}}, report.Batches)
}
