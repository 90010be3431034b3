package workload

import (
	"fmt"
	"math/rand/v2"
)

// GenerateConfig controls synthetic workload generation.
type GenerateConfig struct {
	Seed      uint64
	Count     int   // Number of transactions
	Keys      int   // Size of the account key space
	MaxReads  int   // Upper bound on read keys per transaction (at least 1)
	MaxWrites int   // Upper bound on write keys per transaction (at least 1)
	MaxFee    int64 // Fees are drawn from [0, MaxFee]
	Balance   int64 // Starting balance of every key
}

// DefaultGenerateConfig returns the generator defaults for count
// transactions.
func DefaultGenerateConfig(count int) GenerateConfig {
	return GenerateConfig{
		Seed:      1,
		Count:     count,
		Keys:      50,
		MaxReads:  2,
		MaxWrites: 2,
		MaxFee:    100,
		Balance:   1000,
	}
}

// Generate builds a deterministic synthetic workload. The same config always
// yields the same workload.
//
// Keys are named "acct-000", "acct-001", ...; transaction IDs are "tx-0000",
// "tx-0001", ... and timestamps increase with the ID.
func Generate(cfg GenerateConfig) (*Workload, error) {
	if cfg.Count < 0 {
		return nil, fmt.Errorf("generate: count must not be negative, got %d", cfg.Count)
	}
	if cfg.Keys < 1 {
		return nil, fmt.Errorf("generate: need at least one key, got %d", cfg.Keys)
	}
	cfg.MaxReads = max(cfg.MaxReads, 1)
	cfg.MaxWrites = max(cfg.MaxWrites, 1)
	cfg.MaxFee = max(cfg.MaxFee, 0)

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	keyName := func(i int) string { return fmt.Sprintf("acct-%03d", i) }

	f := File{
		Transactions: make([]TxSpec, cfg.Count),
		Ledger:       make(map[string]int64, cfg.Keys),
	}
	for i := 0; i < cfg.Keys; i++ {
		f.Ledger[keyName(i)] = cfg.Balance
	}
	for i := range f.Transactions {
		pick := func(n int) []string {
			keys := make([]string, n)
			for j := range keys {
				keys[j] = keyName(rng.IntN(cfg.Keys))
			}
			return keys
		}
		f.Transactions[i] = TxSpec{
			ID:        fmt.Sprintf("tx-%04d", i),
			Reads:     pick(1 + rng.IntN(cfg.MaxReads)),
			Writes:    pick(1 + rng.IntN(cfg.MaxWrites)),
			Fee:       rng.Int64N(cfg.MaxFee + 1),
			Timestamp: 1_600_000_000 + int64(i),
		}
	}
	return f.Build(fmt.Sprintf("generated(seed=%d,count=%d,keys=%d)", cfg.Seed, cfg.Count, cfg.Keys))
}
