package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txsched/internal/ir"
	"github.com/roach88/txsched/internal/testutil"
)

// =============================================================================
// AddNode / AddEdge
// =============================================================================

func TestAddEdge_Idempotent(t *testing.T) {
	g := New()

	assert.True(t, g.AddEdge("A", "B"))
	assert.False(t, g.AddEdge("A", "B"), "repeat insert must be a no-op")

	assert.Equal(t, []string{"B"}, g.Successors("A"))
	assert.Equal(t, 1, g.Indegree("B"))
	assert.Equal(t, 1, g.EdgeCount())
}

func TestAddEdge_RegistersEndpoints(t *testing.T) {
	g := New()
	g.AddEdge("X", "Y")

	assert.Equal(t, []string{"X", "Y"}, g.Nodes())
	assert.Equal(t, 0, g.Indegree("X"))
	assert.Empty(t, g.Successors("Y"))
}

func TestAddNode_Existing(t *testing.T) {
	g := New()
	g.AddNode("A")
	g.AddEdge("B", "A")
	g.AddNode("A")

	assert.Equal(t, 1, g.Indegree("A"), "re-adding a node must not reset indegree")
	assert.Equal(t, 2, g.Len())
}

func TestInDegrees_ReturnsCopy(t *testing.T) {
	g := New()
	g.AddEdge("A", "B")

	deg := g.InDegrees()
	deg["B"] = 99

	assert.Equal(t, 1, g.Indegree("B"))
}

// =============================================================================
// Build
// =============================================================================

func TestBuild_Sample(t *testing.T) {
	g, err := Build(testutil.SampleTransactions())
	require.NoError(t, err)

	assert.Equal(t, []string{"Tx1", "Tx2", "Tx3"}, g.Nodes())
	assert.Equal(t, []Edge{{From: "Tx1", To: "Tx3"}}, g.Edges())
	assert.Equal(t, map[string]int{"Tx1": 0, "Tx2": 0, "Tx3": 1}, g.InDegrees())
	assert.Empty(t, g.Ties())
}

func TestBuild_Rules(t *testing.T) {
	tests := []struct {
		name string
		a, b ir.Transaction
		want []Edge
	}{
		{
			name: "write then read",
			a:    ir.NewTransaction("a", nil, []string{"K"}, 0, 0),
			b:    ir.NewTransaction("b", []string{"K"}, nil, 0, 0),
			want: []Edge{{From: "a", To: "b"}},
		},
		{
			name: "write then write",
			a:    ir.NewTransaction("a", nil, []string{"K"}, 0, 0),
			b:    ir.NewTransaction("b", nil, []string{"K"}, 0, 0),
			want: []Edge{{From: "a", To: "b"}},
		},
		{
			name: "read then write points backwards",
			a:    ir.NewTransaction("a", []string{"K"}, nil, 0, 0),
			b:    ir.NewTransaction("b", nil, []string{"K"}, 0, 0),
			want: []Edge{{From: "b", To: "a"}},
		},
		{
			name: "shared reads do not conflict",
			a:    ir.NewTransaction("a", []string{"K"}, nil, 0, 0),
			b:    ir.NewTransaction("b", []string{"K"}, nil, 0, 0),
			want: nil,
		},
		{
			name: "empty sets do not conflict",
			a:    ir.NewTransaction("a", nil, nil, 0, 0),
			b:    ir.NewTransaction("b", []string{"K"}, []string{"K"}, 0, 0),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Build([]ir.Transaction{tt.a, tt.b})
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Edges())
			assert.Equal(t, 2, g.Len(), "both transactions are nodes")
		})
	}
}

func TestBuild_TieKeepsInputOrder(t *testing.T) {
	g, err := Build(testutil.TieTransactions())
	require.NoError(t, err)

	assert.Equal(t, []Edge{{From: "T1", To: "T2"}}, g.Edges())
	require.Len(t, g.Ties(), 1)
	assert.Equal(t, Tie{
		Kept:    Edge{From: "T1", To: "T2"},
		Dropped: Edge{From: "T2", To: "T1"},
	}, g.Ties()[0])
}

func TestBuild_DuplicateID(t *testing.T) {
	txs := []ir.Transaction{
		ir.NewTransaction("Tx1", []string{"A"}, nil, 0, 0),
		ir.NewTransaction("Tx1", []string{"B"}, nil, 0, 0),
	}

	_, err := Build(txs)
	require.ErrorIs(t, err, ErrDuplicateTransaction)
	assert.Contains(t, err.Error(), "Tx1")
}

func TestBuild_MissingID(t *testing.T) {
	_, err := Build([]ir.Transaction{ir.NewTransaction("", nil, nil, 0, 0)})
	require.Error(t, err)
}

func TestBuild_Empty(t *testing.T) {
	g, err := Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.Edges())
}

func TestBuild_IndegreeMatchesEdges(t *testing.T) {
	g, err := Build(testutil.ChainTransactions(6))
	require.NoError(t, err)

	counted := make(map[string]int)
	for _, e := range g.Edges() {
		counted[e.To]++
	}
	for _, id := range g.Nodes() {
		assert.Equal(t, counted[id], g.Indegree(id), "indegree of %s", id)
	}
}

// =============================================================================
// Conflicts
// =============================================================================

func TestConflicts_Symmetric(t *testing.T) {
	txs := append(testutil.SampleTransactions(), testutil.CyclicTransactions()...)
	for _, a := range txs {
		for _, b := range txs {
			assert.Equal(t, Conflicts(a, b), Conflicts(b, a), "%s vs %s", a.ID, b.ID)
		}
	}
}

func TestConflicts_MatchesEdges(t *testing.T) {
	txs := testutil.SampleTransactions()
	g, err := Build(txs)
	require.NoError(t, err)

	for i := range txs {
		for j := i + 1; j < len(txs); j++ {
			a, b := txs[i], txs[j]
			hasEdge := g.HasEdge(a.ID, b.ID) || g.HasEdge(b.ID, a.ID)
			assert.Equal(t, hasEdge, Conflicts(a, b), "%s vs %s", a.ID, b.ID)
		}
	}
}
