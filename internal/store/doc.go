// Package store keeps an SQLite audit log of executor runs.
//
// Each run is written once, after it finishes, in a single transaction:
//   - runs: one row per run with its report summary and final ledger
//   - log_lines, durations: everything the run sent to its metrics sink
//   - trace_events: the recorded trace, one canonical JSON payload per row
//
// All ordering uses seq INTEGER (a logical clock), never timestamps. Runs
// are listed in insertion order.
//
// # Connection settings
//
// Open sets journal_mode=WAL (skipped for MemoryPath), synchronous=NORMAL,
// busy_timeout=5000 and foreign_keys=ON, and keeps a single connection.
// Schema changes are numbered migrations tracked in PRAGMA user_version.
package store
