// Package harness runs conformance scenarios against the executor.
//
// A scenario is a YAML file naming a workload (inline or by path), an
// execution mode and worker count, and the outcome it expects: conflict
// edges, batches, unscheduled transactions, the final ledger and any number
// of trace assertions.
//
// Each scenario runs on a fresh ledger with a fixed run ID. The recorded trace
// is persisted to an in-memory SQLite store and read back, so a scenario also
// exercises the run log round trip.
//
// Traces from inline modes (sequential, simulated, priority) and from any mode
// with one worker are deterministic and can be compared against golden files
// with RunWithGolden.
package harness
