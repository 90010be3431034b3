package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainWorkload is the domain prefix for workload fingerprints.
// The version suffix allows the encoding to change without colliding.
const DomainWorkload = "txsched/workload/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// WorkloadHash fingerprints an ordered transaction list.
// Input order is part of the identity because it drives tie-breaking in the
// conflict graph.
func WorkloadHash(txs []Transaction) (string, error) {
	list := make([]any, len(txs))
	for i, tx := range txs {
		list[i] = map[string]any{
			"id":        tx.ID,
			"reads":     tx.Reads,
			"writes":    tx.Writes,
			"fee":       tx.Fee,
			"timestamp": tx.Timestamp,
		}
	}
	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("WorkloadHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainWorkload, canonical), nil
}
