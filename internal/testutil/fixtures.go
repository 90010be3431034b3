// Package testutil holds fixtures shared by tests across packages.
package testutil

import (
	"fmt"

	"github.com/roach88/txsched/internal/ir"
)

// SampleTransactions returns the three-transaction scenario:
//
//	Tx1 reads A, writes B
//	Tx2 reads C, writes D
//	Tx3 reads B, writes E
//
// The only conflict is Tx1→Tx3 (Tx1 writes B, Tx3 reads B).
func SampleTransactions() []ir.Transaction {
	return []ir.Transaction{
		ir.NewTransaction("Tx1", []string{"A"}, []string{"B"}, 0, 1),
		ir.NewTransaction("Tx2", []string{"C"}, []string{"D"}, 0, 2),
		ir.NewTransaction("Tx3", []string{"B"}, []string{"E"}, 0, 3),
	}
}

// SampleBalances returns the initial ledger for SampleTransactions.
func SampleBalances() map[string]int64 {
	return map[string]int64{"A": 10, "B": 0, "C": 5, "D": 0, "E": 0}
}

// SampleFinalBalances is the ledger after every sample transaction has moved
// one unit from its read key to its write key.
func SampleFinalBalances() map[string]int64 {
	return map[string]int64{"A": 9, "B": 0, "C": 4, "D": 1, "E": 1}
}

// CyclicTransactions returns four transactions where TxA, TxB and TxC form
// the cycle TxB→TxA→TxC→TxB through read-write back edges, and TxD is independent.
func CyclicTransactions() []ir.Transaction {
	return []ir.Transaction{
		ir.NewTransaction("TxA", []string{"X"}, []string{"Y"}, 0, 1),
		ir.NewTransaction("TxB", []string{"Z"}, []string{"X"}, 0, 2),
		ir.NewTransaction("TxC", []string{"Y"}, []string{"Z"}, 0, 3),
		ir.NewTransaction("TxD", []string{"W"}, []string{"V"}, 0, 4),
	}
}

// TieTransactions returns two transactions that both read and write K, so
// both directions are derived for the pair.
func TieTransactions() []ir.Transaction {
	return []ir.Transaction{
		ir.NewTransaction("T1", []string{"K"}, []string{"K"}, 0, 1),
		ir.NewTransaction("T2", []string{"K"}, []string{"K"}, 0, 2),
	}
}

// ChainTransactions returns n transactions that all write the same key,
// forcing a strict chain T0→T1→...→Tn-1.
func ChainTransactions(n int) []ir.Transaction {
	txs := make([]ir.Transaction, n)
	for i := range txs {
		txs[i] = ir.NewTransaction(chainID(i), []string{"src"}, []string{"hot"}, 0, int64(i))
	}
	return txs
}

// IndependentTransactions returns n transactions with disjoint key sets.
func IndependentTransactions(n int) []ir.Transaction {
	txs := make([]ir.Transaction, n)
	for i := range txs {
		id := chainID(i)
		txs[i] = ir.NewTransaction(id, []string{"r-" + id}, []string{"w-" + id}, int64(i%3), int64(i))
	}
	return txs
}

func chainID(i int) string {
	return fmt.Sprintf("T%02d", i)
}
