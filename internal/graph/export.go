package graph

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/roach88/txsched/internal/ir"
)

// WriteDOT renders the graph as Graphviz DOT:
//
//	digraph G {
//	    "Tx1" -> "Tx3";
//	}
//
// Only edges are listed. Edges follow node insertion order.
func (g *Graph) WriteDOT(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "    %s -> %s;\n", dotQuote(e.From), dotQuote(e.To))
	}
	buf.WriteString("}\n")
	_, err := w.Write(buf.Bytes())
	return err
}

func dotQuote(id string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(id, `\`, `\\`), `"`, `\"`) + `"`
}

// JSON renders {"edges":[{"from","to"}...],"nodes":[{"id"}...]} as
// canonical JSON. Nodes keep insertion order.
func (g *Graph) JSON() ([]byte, error) {
	return g.marshal(nil)
}

// AugmentedJSON is JSON with each node's sorted read and write keys embedded.
// Nodes missing from lookup get empty arrays.
func (g *Graph) AugmentedJSON(lookup map[string]ir.Transaction) ([]byte, error) {
	if lookup == nil {
		lookup = map[string]ir.Transaction{}
	}
	return g.marshal(lookup)
}

func (g *Graph) marshal(lookup map[string]ir.Transaction) ([]byte, error) {
	nodes := make([]any, 0, len(g.order))
	for _, id := range g.order {
		node := map[string]any{"id": id}
		if lookup != nil {
			tx := lookup[id]
			node["reads"] = tx.Reads.Sorted()
			node["writes"] = tx.Writes.Sorted()
		}
		nodes = append(nodes, node)
	}

	edges := make([]any, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		edges = append(edges, map[string]any{"from": e.From, "to": e.To})
	}

	out, err := ir.MarshalCanonical(map[string]any{"nodes": nodes, "edges": edges})
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	return out, nil
}

// ExportDOT writes the DOT rendering to path.
func (g *Graph) ExportDOT(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export dot: %w", err)
	}
	if err := g.WriteDOT(f); err != nil {
		f.Close()
		return fmt.Errorf("export dot: %w", err)
	}
	return f.Close()
}

// ExportJSON writes the JSON rendering to path. When lookup is non-nil the
// augmented form is written.
func (g *Graph) ExportJSON(path string, lookup map[string]ir.Transaction) error {
	var (
		data []byte
		err  error
	)
	if lookup != nil {
		data, err = g.AugmentedJSON(lookup)
	} else {
		data, err = g.JSON()
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}
