package graph

import (
	"fmt"
	"slices"
	"strings"
)

// Cycle is one strongly connected component that cannot be ordered.
type Cycle struct {
	Members []string `json:"members"` // Node IDs in insertion order
	Path    []string `json:"path"`    // A closed walk: ["Tx1", "Tx3", "Tx1"]
	Message string   `json:"message"`
}

// Cycles finds every cycle in the graph using Tarjan's algorithm.
//
// Build never produces self-loops, so only components with more than one
// member are reported. Components are returned in the insertion order of
// their first member; an acyclic graph returns an empty slice.
func (g *Graph) Cycles() []Cycle {
	pos := make(map[string]int, len(g.order))
	for i, id := range g.order {
		pos[id] = i
	}

	var cycles []Cycle
	for _, scc := range g.tarjanSCC() {
		if len(scc) < 2 && !g.HasEdge(scc[0], scc[0]) {
			continue
		}
		sortByPosition(scc, pos)
		path := g.cyclePath(scc)
		cycles = append(cycles, Cycle{
			Members: scc,
			Path:    path,
			Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " → ")),
		})
	}

	sortCycles(cycles, pos)
	if cycles == nil {
		cycles = []Cycle{}
	}
	return cycles
}

// tarjanSCC returns the strongly connected components of g.
// Nodes are visited in insertion order so output is deterministic.
func (g *Graph) tarjanSCC() [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.adj[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cyclePath walks edges inside the component from its first member until it
// returns to the start.
func (g *Graph) cyclePath(scc []string) []string {
	members := make(map[string]bool, len(scc))
	for _, id := range scc {
		members[id] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for {
		next := ""
		for _, w := range g.adj[current] {
			if w == start && len(path) > 1 {
				next = w
				break
			}
			if members[w] && !visited[w] {
				next = w
				break
			}
		}
		if next == "" {
			// Dead end inside the component; close on start if an edge exists.
			if g.HasEdge(current, start) {
				path = append(path, start)
			}
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		current = next
	}
}

func sortByPosition(ids []string, pos map[string]int) {
	slices.SortFunc(ids, func(a, b string) int { return pos[a] - pos[b] })
}

func sortCycles(cycles []Cycle, pos map[string]int) {
	slices.SortFunc(cycles, func(a, b Cycle) int { return pos[a.Members[0]] - pos[b.Members[0]] })
}
