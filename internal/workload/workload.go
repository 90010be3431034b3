// Package workload supplies the transactions and initial balances for a run.
//
// Workloads come from YAML files, CUE files or packages, the built-in
// three-transaction sample, or the seeded synthetic generator. Every source
// produces the same Workload value.
package workload

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/txsched/internal/ir"
)

// ErrUnsupportedFormat is returned for files that are neither YAML nor CUE.
var ErrUnsupportedFormat = errors.New("unsupported workload format")

// Workload is an ordered transaction list plus starting balances.
// Transaction order is significant: it breaks ties in the conflict graph.
type Workload struct {
	Source       string
	Transactions []ir.Transaction
	Ledger       map[string]int64
}

// TxSpec is the file shape of one transaction.
type TxSpec struct {
	ID        string   `yaml:"id" json:"id"`
	Reads     []string `yaml:"reads" json:"reads"`
	Writes    []string `yaml:"writes" json:"writes"`
	Fee       int64    `yaml:"fee" json:"fee"`
	Timestamp int64    `yaml:"timestamp" json:"timestamp"`
}

// File is the file shape of a workload. Scenario files embed it.
type File struct {
	Transactions []TxSpec         `yaml:"transactions" json:"transactions"`
	Ledger       map[string]int64 `yaml:"ledger" json:"ledger"`
}

// Build validates the file and converts it to a Workload. source names the
// workload in errors and in Workload.Source.
func (f File) Build(source string) (*Workload, error) {
	w := &Workload{
		Source:       source,
		Transactions: make([]ir.Transaction, 0, len(f.Transactions)),
		Ledger:       make(map[string]int64, len(f.Ledger)),
	}
	seen := make(map[string]int, len(f.Transactions))
	for i, t := range f.Transactions {
		if t.ID == "" {
			return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("transactions[%d]: id is required", i)}
		}
		if prev, dup := seen[t.ID]; dup {
			return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("transactions[%d]: duplicate id %q (first at %d)", i, t.ID, prev)}
		}
		seen[t.ID] = i
		if slices.Contains(t.Reads, "") || slices.Contains(t.Writes, "") {
			return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("transactions[%d]: %s has an empty key", i, t.ID)}
		}
		w.Transactions = append(w.Transactions, ir.NewTransaction(t.ID, t.Reads, t.Writes, t.Fee, t.Timestamp))
	}
	for k, v := range f.Ledger {
		w.Ledger[k] = v
	}
	return w, nil
}

// Keys returns every key named by a transaction or the ledger, sorted.
func (w *Workload) Keys() []string {
	set := ir.NewKeySet()
	for _, tx := range w.Transactions {
		for k := range tx.Reads {
			set[k] = struct{}{}
		}
		for k := range tx.Writes {
			set[k] = struct{}{}
		}
	}
	for k := range w.Ledger {
		set[k] = struct{}{}
	}
	return set.Sorted()
}

// Sample returns the three-transaction scenario:
//
//	Tx1 reads A, writes B
//	Tx2 reads C, writes D
//	Tx3 reads B, writes E
//
// with ledger {A:10, B:0, C:5, D:0, E:0}.
func Sample() *Workload {
	return &Workload{
		Source: "sample",
		Transactions: []ir.Transaction{
			ir.NewTransaction("Tx1", []string{"A"}, []string{"B"}, 0, 1),
			ir.NewTransaction("Tx2", []string{"C"}, []string{"D"}, 0, 2),
			ir.NewTransaction("Tx3", []string{"B"}, []string{"E"}, 0, 3),
		},
		Ledger: map[string]int64{"A": 10, "B": 0, "C": 5, "D": 0, "E": 0},
	}
}
