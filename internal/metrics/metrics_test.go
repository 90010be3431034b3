package metrics

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txsched/internal/ir"
)

var fixedNow = func() time.Time {
	return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
}

type recordingSink struct {
	lines     []string
	durations map[string]time.Duration
}

func (r *recordingSink) Log(msg string) { r.lines = append(r.lines, msg) }

func (r *recordingSink) Duration(scope string, d time.Duration) {
	if r.durations == nil {
		r.durations = map[string]time.Duration{}
	}
	r.durations[scope] = d
}

// =============================================================================
// Measure / Multi
// =============================================================================

func TestMeasure(t *testing.T) {
	sink := &recordingSink{}
	ran := false

	d := Measure(sink, "work", func() {
		ran = true
		time.Sleep(time.Millisecond)
	})

	assert.True(t, ran)
	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.Equal(t, d, sink.durations["work"])
}

func TestMeasure_NilSink(t *testing.T) {
	ran := false
	Measure(nil, "work", func() { ran = true })
	assert.True(t, ran)
}

func TestMulti(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	s := Multi(a, nil, b, Nop{})

	s.Log("hello")
	s.Duration("x", time.Second)

	for _, r := range []*recordingSink{a, b} {
		assert.Equal(t, []string{"hello"}, r.lines)
		assert.Equal(t, time.Second, r.durations["x"])
	}
}

// =============================================================================
// TextSink
// =============================================================================

func TestTextSink_Lines(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf).WithClock(fixedNow)

	s.Log("batch 1: [Tx1 Tx2]")
	s.Duration("build_graph", 1500*time.Microsecond)

	want := "[2026-01-02T15:04:05.000Z] batch 1: [Tx1 Tx2]\n" +
		"[2026-01-02T15:04:05.000Z] build_graph took 1.500 ms\n"
	assert.Equal(t, want, buf.String())
	assert.NoError(t, s.Err())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestTextSink_RemembersWriteError(t *testing.T) {
	s := NewTextSink(failingWriter{})
	s.Log("one")
	s.Log("two")

	require.Error(t, s.Err())
	assert.Contains(t, s.Close().Error(), "disk full")
}

func TestOpenTextSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.log")
	s, err := OpenTextSink(path)
	require.NoError(t, err)
	s.WithClock(fixedNow).Log("started")
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[2026-01-02T15:04:05.000Z] started\n", string(data))
}

func TestOpenTextSink_BadPath(t *testing.T) {
	_, err := OpenTextSink(filepath.Join(t.TempDir(), "missing", "metrics.log"))
	require.Error(t, err)
}

// =============================================================================
// Collector
// =============================================================================

func TestCollector_CountsObserverEvents(t *testing.T) {
	c := NewCollector("txsched")

	c.OnBatchStart(1, []string{"Tx1", "Tx2"})
	c.OnGroupStart(1, 1, []string{"Tx1", "Tx2"})
	c.OnTxEvaluated("Tx1", "worker-1", ir.Delta{"A": -1})
	c.OnTxFailed("Tx2", "worker-2", errors.New("boom"))
	c.OnGroupMerged(1, 1, ir.Delta{"A": -1})
	c.OnExecutionEnd()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Batches))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Groups))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Transactions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Transactions.WithLabelValues("failed")))
}

func TestCollector_Durations(t *testing.T) {
	c := NewCollector("txsched")
	c.Duration("run", 2*time.Millisecond)
	c.Duration("run", 3*time.Millisecond)
	c.Log("ignored")

	assert.Equal(t, 1, testutil.CollectAndCount(c.Phase))
}

func TestCollector_WriteText(t *testing.T) {
	c := NewCollector("txsched")
	c.OnBatchStart(1, []string{"Tx1"})

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, "# TYPE txsched_batches_total counter")
	assert.True(t, strings.Contains(out, "txsched_batches_total 1"), out)
}
