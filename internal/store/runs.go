package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/txsched/internal/engine"
	"github.com/roach88/txsched/internal/ir"
	"github.com/roach88/txsched/internal/trace"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run is the stored summary of one executor run.
type Run struct {
	ID            string           `json:"id"`
	Mode          string           `json:"mode"`
	Workers       int              `json:"workers"`
	WorkloadHash  string           `json:"workload_hash"`
	EngineVersion string           `json:"engine_version"`
	Status        string           `json:"status"`
	Transactions  int              `json:"transactions"`
	Batches       int              `json:"batches"`
	Groups        int              `json:"groups"`
	Applied       int              `json:"applied"`
	Failed        int              `json:"failed"`
	Unscheduled   int              `json:"unscheduled"`
	Duration      time.Duration    `json:"duration_ns"`
	FinalLedger   map[string]int64 `json:"final_ledger"`
}

// RunFromReport summarises an executor report for storage. transactions is
// the workload size and final the ledger snapshot after the run.
func RunFromReport(r *engine.Report, transactions int, final map[string]int64) Run {
	return Run{
		ID:            r.RunID,
		Mode:          r.Mode.String(),
		Workers:       r.Workers,
		WorkloadHash:  r.WorkloadHash,
		EngineVersion: ir.EngineVersion,
		Status:        r.Status(),
		Transactions:  transactions,
		Batches:       len(r.Batches),
		Groups:        r.Groups,
		Applied:       r.Applied,
		Failed:        len(r.Failures),
		Unscheduled:   len(r.Unscheduled),
		Duration:      r.Duration,
		FinalLedger:   final,
	}
}

// SaveRun writes a finished run, its trace and its buffered log in one
// transaction. log may be nil. Saving a run ID twice fails.
func (s *Store) SaveRun(ctx context.Context, run Run, events []trace.Event, log *RunLog) error {
	if run.ID == "" {
		return fmt.Errorf("save run: ID is required")
	}
	ledgerJSON, err := ir.MarshalCanonical(ir.Delta(run.FinalLedger))
	if err != nil {
		return fmt.Errorf("save run: marshal ledger: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, mode, workers, workload_hash, engine_version, status, transactions,
		 batches, groups_total, applied, failed, unscheduled, duration_ns, final_ledger, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		        (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs))
	`,
		run.ID, run.Mode, run.Workers, run.WorkloadHash, run.EngineVersion, run.Status,
		run.Transactions, run.Batches, run.Groups, run.Applied, run.Failed, run.Unscheduled,
		int64(run.Duration), string(ledgerJSON),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	for i, e := range events {
		payload, err := e.MarshalJSON()
		if err != nil {
			return fmt.Errorf("save run %s: event %d: %w", run.ID, i, err)
		}
		seq := e.Seq
		if seq == 0 {
			seq = int64(i + 1)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trace_events (run_id, seq, type, payload) VALUES (?, ?, ?, ?)`,
			run.ID, seq, string(e.Type), string(payload),
		); err != nil {
			return fmt.Errorf("save run %s: event %d: %w", run.ID, i, err)
		}
	}

	if log != nil {
		for _, line := range log.Lines() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO log_lines (run_id, seq, message) VALUES (?, ?, ?)`,
				run.ID, line.Seq, line.Message,
			); err != nil {
				return fmt.Errorf("save run %s: log line: %w", run.ID, err)
			}
		}
		for _, d := range log.Durations() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO durations (run_id, seq, scope, nanos) VALUES (?, ?, ?, ?)`,
				run.ID, d.Seq, d.Scope, int64(d.Duration),
			); err != nil {
				return fmt.Errorf("save run %s: duration: %w", run.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run %s: commit: %w", run.ID, err)
	}
	return nil
}

const runColumns = `id, mode, workers, workload_hash, engine_version, status, transactions,
	batches, groups_total, applied, failed, unscheduled, duration_ns, final_ledger`

// ReadRun returns the run with the given ID, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns every run in insertion order.
// Returns an empty slice (not nil) for an empty store.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently saved run, or ErrRunNotFound.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		nanos      int64
		ledgerJSON string
	)
	err := row.Scan(&run.ID, &run.Mode, &run.Workers, &run.WorkloadHash, &run.EngineVersion,
		&run.Status, &run.Transactions, &run.Batches, &run.Groups, &run.Applied, &run.Failed,
		&run.Unscheduled, &nanos, &ledgerJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Duration = time.Duration(nanos)
	if err := json.Unmarshal([]byte(ledgerJSON), &run.FinalLedger); err != nil {
		return Run{}, fmt.Errorf("unmarshal final ledger: %w", err)
	}
	return run, nil
}

// ReadEvents returns a run's trace in seq order.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]trace.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, payload FROM trace_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trace events: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		var (
			seq     int64
			payload string
			e       trace.Event
		)
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, fmt.Errorf("scan trace event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decode trace event %d: %w", seq, err)
		}
		e.Seq = seq
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace events: %w", err)
	}
	return events, nil
}

// ReadLog returns a run's log lines in seq order.
func (s *Store) ReadLog(ctx context.Context, runID string) ([]LogLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, message FROM log_lines
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query log lines: %w", err)
	}
	defer rows.Close()

	lines := []LogLine{}
	for rows.Next() {
		var l LogLine
		if err := rows.Scan(&l.Seq, &l.Message); err != nil {
			return nil, fmt.Errorf("scan log line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log lines: %w", err)
	}
	return lines, nil
}

// ReadDurations returns a run's measured scopes in seq order.
func (s *Store) ReadDurations(ctx context.Context, runID string) ([]DurationEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, scope, nanos FROM durations
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query durations: %w", err)
	}
	defer rows.Close()

	entries := []DurationEntry{}
	for rows.Next() {
		var (
			d     DurationEntry
			nanos int64
		)
		if err := rows.Scan(&d.Seq, &d.Scope, &nanos); err != nil {
			return nil, fmt.Errorf("scan duration: %w", err)
		}
		d.Duration = time.Duration(nanos)
		entries = append(entries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate durations: %w", err)
	}
	return entries, nil
}
