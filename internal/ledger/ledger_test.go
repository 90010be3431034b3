package ledger

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txsched/internal/ir"
)

func TestLedger_GetMissingKeyIsZero(t *testing.T) {
	l := New(nil)
	assert.Equal(t, int64(0), l.Get("nope"))
	assert.Equal(t, 0, l.Len())
}

func TestLedger_ApplyAdds(t *testing.T) {
	l := New(map[string]int64{"A": 10, "B": 0})

	l.Apply(ir.Delta{"A": -1, "B": 1, "Z": 4})

	assert.Equal(t, int64(9), l.Get("A"))
	assert.Equal(t, int64(1), l.Get("B"))
	assert.Equal(t, int64(4), l.Get("Z"), "absent keys start at zero")
	assert.Equal(t, 1, l.Applied())
}

func TestLedger_TotalEqualsInitialPlusDeltas(t *testing.T) {
	l := New(map[string]int64{"A": 10, "C": 5})
	deltas := []ir.Delta{{"A": -3}, {"C": 2, "D": 1}, {"A": 7}}

	var sum int64
	for _, d := range deltas {
		l.Apply(d)
		sum += d.Sum()
	}

	assert.Equal(t, int64(15)+sum, l.Total())
}

func TestLedger_SnapshotIsCopy(t *testing.T) {
	l := New(map[string]int64{"A": 1})
	snap := l.Snapshot()
	snap["A"] = 100

	assert.Equal(t, int64(1), l.Get("A"))
}

func TestLedger_CloneIsIndependent(t *testing.T) {
	l := New(map[string]int64{"A": 1})
	c := l.Clone()
	c.Apply(ir.Delta{"A": 5})

	assert.Equal(t, int64(1), l.Get("A"))
	assert.Equal(t, int64(6), c.Get("A"))
}

func TestLedger_WriteOrdered(t *testing.T) {
	l := New(map[string]int64{"C": 3, "A": 1, "B": 2})
	var buf bytes.Buffer
	require.NoError(t, l.Write(&buf))
	assert.Equal(t, "  A: 1\n  B: 2\n  C: 3\n", buf.String())
	assert.Equal(t, []string{"A", "B", "C"}, l.Keys())
}

func TestLedger_ConcurrentApply(t *testing.T) {
	l := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Apply(ir.Delta{"K": 1})
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), l.Get("K"))
	assert.Equal(t, 50, l.Applied())
}
