package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/txsched/internal/engine"
	"github.com/roach88/txsched/internal/ir"
	"github.com/roach88/txsched/internal/ledger"
	"github.com/roach88/txsched/internal/store"
	"github.com/roach88/txsched/internal/trace"
	"github.com/roach88/txsched/internal/workload"
)

// ScenarioRunID is the fixed run ID every scenario executes under.
const ScenarioRunID = "scenario-run"

// ErrInjected is the cause recorded for transactions listed in Scenario.Fail.
var ErrInjected = errors.New("injected failure")

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Resolve the workload (file or inline)
//  2. Run the executor in the scenario's mode with a recorder attached
//  3. Persist the run to an in-memory store and read the trace back
//  4. Check expectations and assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	w, err := resolveWorkload(scenario)
	if err != nil {
		return nil, err
	}

	mode := engine.ModeGrouped
	if scenario.Mode != "" {
		if mode, err = engine.ParseMode(scenario.Mode); err != nil {
			return nil, err
		}
	}
	workers := scenario.Workers
	if workers == 0 {
		workers = 1
	}

	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := trace.NewClock()
	rec := trace.NewRecorderWithClock(clock)
	runLog := store.NewRunLogWithClock(clock)
	l := ledger.New(w.Ledger)

	exec := engine.New(w.Transactions, l,
		engine.WithWorkers(workers),
		engine.WithDeltaFunc(scenarioDelta(scenario)),
		engine.WithObserver(rec),
		engine.WithSink(runLog),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(ScenarioRunID)),
	)

	report, err := exec.Run(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	result.Report = report
	result.Ledger = l.Snapshot()

	run := store.RunFromReport(report, len(w.Transactions), result.Ledger)
	if err := st.SaveRun(ctx, run, rec.Events(), runLog); err != nil {
		return nil, fmt.Errorf("persist run: %w", err)
	}
	stored, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("read back trace: %w", err)
	}
	result.Trace = stored

	if err := checkRoundTrip(rec.Events(), stored); err != nil {
		result.AddError(err.Error())
	}
	for _, msg := range CheckExpect(scenario.Expect, w.Transactions, result) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func resolveWorkload(s *Scenario) (*workload.Workload, error) {
	if s.Workload != "" {
		w, err := workload.Load(s.Workload)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		return w, nil
	}
	w, err := s.File.Build(s.Name)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return w, nil
}

// scenarioDelta wraps the transfer delta with the scenario's injected
// failures and panics.
func scenarioDelta(s *Scenario) engine.DeltaFunc {
	if len(s.Fail) == 0 && len(s.Panic) == 0 {
		return engine.TransferDelta
	}
	return func(tx ir.Transaction) (ir.Delta, error) {
		if slices.Contains(s.Panic, tx.ID) {
			panic(fmt.Sprintf("injected panic in %s", tx.ID))
		}
		if slices.Contains(s.Fail, tx.ID) {
			return nil, ErrInjected
		}
		return engine.TransferDelta(tx)
	}
}

// checkRoundTrip compares recorded events with the copy read from the store.
func checkRoundTrip(recorded, stored []trace.Event) error {
	want, err := trace.Marshal(recorded)
	if err != nil {
		return err
	}
	got, err := trace.Marshal(stored)
	if err != nil {
		return err
	}
	if string(want) != string(got) {
		return fmt.Errorf("stored trace differs from recorded trace:\nrecorded: %s\nstored:   %s", want, got)
	}
	return nil
}
