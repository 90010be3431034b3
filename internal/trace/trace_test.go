package trace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txsched/internal/engine"
	"github.com/roach88/txsched/internal/ir"
	"github.com/roach88/txsched/internal/ledger"
	"github.com/roach88/txsched/internal/testutil"
)

func recordSample(t *testing.T, mode engine.Mode, workers int) (*Recorder, *ledger.Ledger) {
	t.Helper()
	rec := NewRecorder()
	l := ledger.New(testutil.SampleBalances())
	e := engine.New(testutil.SampleTransactions(), l,
		engine.WithWorkers(workers),
		engine.WithObserver(rec),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	_, err := e.Run(context.Background(), mode)
	require.NoError(t, err)
	return rec, l
}

// =============================================================================
// Clock
// =============================================================================

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	c = NewClockAt(41)
	assert.Equal(t, int64(42), c.Next())
}

func TestClock_Concurrent(t *testing.T) {
	c := NewClock()
	const n = 200

	seen := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- c.Next()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]bool)
	for v := range seen {
		unique[v] = true
	}
	assert.Len(t, unique, n)
	assert.Equal(t, int64(n), c.Current())
}

// =============================================================================
// Recorder + file format
// =============================================================================

func TestTrace_GroupedSingleWorkerGolden(t *testing.T) {
	rec, _ := recordSample(t, engine.ModeGrouped, 1)

	data, err := Marshal(rec.Events())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "grouped_single_worker", data)
}

func TestRecorder_SeqIncreases(t *testing.T) {
	rec, _ := recordSample(t, engine.ModeThreaded, 4)

	events := rec.Events()
	require.Equal(t, rec.Len(), len(events))
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, EventExecutionEnd, events[len(events)-1].Type)
}

func TestRecorder_CopiesInputs(t *testing.T) {
	rec := NewRecorder()
	ids := []string{"a"}
	delta := ir.Delta{"k": 1}

	rec.OnBatchStart(1, ids)
	rec.OnTxEvaluated("a", "main", delta)
	ids[0] = "changed"
	delta["k"] = 99

	events := rec.Events()
	assert.Equal(t, []string{"a"}, events[0].IDs)
	assert.Equal(t, ir.Delta{"k": 1}, events[1].Delta)
}

func TestMarshal_Empty(t *testing.T) {
	data, err := Marshal(nil)
	require.NoError(t, err)
	assert.Equal(t, "[\n]\n", string(data))
}

func TestMarshal_EscapesStrings(t *testing.T) {
	data, err := Marshal([]Event{{Type: EventTxFailed, TxID: "tx\"1", ThreadID: "main", Error: "line\nbreak"}})
	require.NoError(t, err)
	assert.Equal(t, "[\n"+`{"error":"line\nbreak","threadId":"main","txId":"tx\"1","type":"tx_failed"}`+"\n]\n", string(data))
}

func TestMarshal_UnknownType(t *testing.T) {
	_, err := Marshal([]Event{{Type: "bogus"}})
	require.Error(t, err)
}

func TestParse_RoundTripsRecordedTrace(t *testing.T) {
	rec, _ := recordSample(t, engine.ModeSequential, 1)
	want := rec.Events()

	data, err := Marshal(want)
	require.NoError(t, err)
	got, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	assert.Error(t, err)

	_, err = Parse([]byte(`[{"type":"mystery"}]`))
	assert.Error(t, err)
}

func TestWriteFile_ReadFile(t *testing.T) {
	rec := NewRecorder()
	rec.OnTxFailed("Tx9", "worker-3", errors.New("boom"))
	rec.OnExecutionEnd()

	path := filepath.Join(t.TempDir(), "trace.json")
	require.NoError(t, WriteFile(path, rec.Events()))

	events, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "boom", events[0].Error)
	assert.Equal(t, "worker-3", events[0].ThreadID)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
	assert.Error(t, WriteFile(filepath.Join(t.TempDir(), "no", "dir", "t.json"), nil))
}

// =============================================================================
// Replay
// =============================================================================

func TestReplay_ReconstructsLedger(t *testing.T) {
	for _, mode := range engine.Modes() {
		t.Run(mode.String(), func(t *testing.T) {
			rec, live := recordSample(t, mode, 3)

			path := filepath.Join(t.TempDir(), "trace.json")
			require.NoError(t, WriteFile(path, rec.Events()))
			events, err := ReadFile(path)
			require.NoError(t, err)

			replayed := ledger.New(testutil.SampleBalances())
			res, err := Replay(events, replayed)
			require.NoError(t, err)

			assert.Equal(t, live.Snapshot(), replayed.Snapshot())
			assert.Equal(t, 2, res.Batches)
			assert.Equal(t, 3, res.Evaluated)
			assert.True(t, res.Complete)
		})
	}
}

func TestReplay_DetectsTamperedMerge(t *testing.T) {
	events := []Event{
		{Type: EventGroupStart, BatchID: 1, GroupID: 1, IDs: []string{"a"}},
		{Type: EventTxEval, TxID: "a", ThreadID: "main", Delta: ir.Delta{"x": 1}},
		{Type: EventGroupMerged, BatchID: 1, GroupID: 1, Delta: ir.Delta{"x": 2}},
	}
	_, err := Replay(events, ledger.New(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestReplay_EventAfterEnd(t *testing.T) {
	events := []Event{{Type: EventExecutionEnd}, {Type: EventBatchStart, BatchID: 1}}
	_, err := Replay(events, ledger.New(nil))
	require.Error(t, err)
}

func TestReplay_IncompleteTrace(t *testing.T) {
	rec := NewRecorder()
	rec.OnBatchStart(1, []string{"a"})
	rec.OnGroupStart(1, 1, []string{"a"})
	rec.OnTxFailed("a", "main", errors.New("boom"))
	rec.OnGroupMerged(1, 1, ir.Delta{})

	l := ledger.New(map[string]int64{"x": 5})
	res, err := Replay(rec.Events(), l)
	require.NoError(t, err)
	assert.False(t, res.Complete)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, int64(5), l.Get("x"))
}

func TestReadFile_Golden(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "golden", "grouped_single_worker.golden"))
	require.NoError(t, err)

	events, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, events, 10)

	l := ledger.New(testutil.SampleBalances())
	_, err = Replay(events, l)
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleFinalBalances(), l.Snapshot())
}
