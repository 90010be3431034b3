package graph

import (
	"errors"
	"fmt"

	"github.com/roach88/txsched/internal/ir"
)

// ErrDuplicateTransaction is returned by Build when two transactions share an ID.
var ErrDuplicateTransaction = errors.New("duplicate transaction ID")

// Edge is one must-happen-before constraint.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Tie records a pair for which both directions were derived.
// Kept is the edge in the graph; Dropped is the edge that was discarded.
type Tie struct {
	Kept    Edge `json:"kept"`
	Dropped Edge `json:"dropped"`
}

// Graph is a directed conflict graph with per-node indegree.
//
// INVARIANTS:
//   - every added node has an adjacency entry, possibly empty
//   - successor lists are duplicate-free and keep insertion order
//   - indegree[n] equals the number of distinct edges ending at n
//
// A Graph is built once per run and is read-only afterwards. Schedulers copy
// the indegree map (InDegrees) rather than mutating it.
type Graph struct {
	order    []string
	adj      map[string][]string
	indegree map[string]int
	ties     []Tie
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		adj:      make(map[string][]string),
		indegree: make(map[string]int),
	}
}

// AddNode registers id as a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	if _, ok := g.adj[id]; ok {
		return
	}
	g.order = append(g.order, id)
	g.adj[id] = []string{}
	g.indegree[id] = 0
}

// AddEdge inserts from→to, registering either endpoint if needed.
// Insertion is idempotent: a repeated edge leaves adjacency and indegree
// unchanged. Returns true if the edge was new.
func (g *Graph) AddEdge(from, to string) bool {
	g.AddNode(from)
	g.AddNode(to)
	if g.HasEdge(from, to) {
		return false
	}
	g.adj[from] = append(g.adj[from], to)
	g.indegree[to]++
	return true
}

// HasEdge reports whether from→to is present.
func (g *Graph) HasEdge(from, to string) bool {
	for _, s := range g.adj[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Nodes returns node IDs in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Successors returns the nodes that must follow id, in insertion order.
// The returned slice must not be modified.
func (g *Graph) Successors(id string) []string {
	return g.adj[id]
}

// Indegree returns the number of edges ending at id.
func (g *Graph) Indegree(id string) int {
	return g.indegree[id]
}

// InDegrees returns a mutable copy of the indegree map.
func (g *Graph) InDegrees() map[string]int {
	out := make(map[string]int, len(g.indegree))
	for k, v := range g.indegree {
		out[k] = v
	}
	return out
}

// Edges returns every edge, grouped by source in node insertion order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, from := range g.order {
		for _, to := range g.adj[from] {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, succ := range g.adj {
		n += len(succ)
	}
	return n
}

// Ties returns the pairs whose reverse edge was dropped, in discovery order.
func (g *Graph) Ties() []Tie {
	out := make([]Tie, len(g.ties))
	copy(out, g.ties)
	return out
}

// Build constructs the conflict graph for txs.
//
// Every transaction becomes a node, even without edges. Pairs are evaluated
// in input order, so the order of txs determines tie-breaking.
func Build(txs []ir.Transaction) (*Graph, error) {
	g := New()
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, err
		}
		if _, dup := g.adj[tx.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.ID)
		}
		g.AddNode(tx.ID)
	}

	for i := 0; i < len(txs); i++ {
		for j := i + 1; j < len(txs); j++ {
			a, b := txs[i], txs[j]
			forward, backward := Direction(a, b)
			switch {
			case forward && backward:
				g.AddEdge(a.ID, b.ID)
				g.ties = append(g.ties, Tie{
					Kept:    Edge{From: a.ID, To: b.ID},
					Dropped: Edge{From: b.ID, To: a.ID},
				})
			case forward:
				g.AddEdge(a.ID, b.ID)
			case backward:
				g.AddEdge(b.ID, a.ID)
			}
		}
	}

	return g, nil
}
