package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/txsched/internal/store"
	"github.com/roach88/txsched/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // run ID or "latest"
	List     bool
	Type     string // optional event type filter
}

// TraceResult is a stored run with its events.
type TraceResult struct {
	Run    store.Run     `json:"run"`
	Events []trace.Event `json:"-"`
	Stats  TraceStats    `json:"stats"`
}

// TraceStats counts a trace's events by type.
type TraceStats struct {
	TotalEvents int  `json:"total_events"`
	Batches     int  `json:"batches"`
	Groups      int  `json:"groups"`
	Evaluated   int  `json:"evaluated"`
	Failed      int  `json:"failed"`
	IsComplete  bool `json:"is_complete"`
}

// MarshalJSON embeds the events in their trace file form.
func (r TraceResult) MarshalJSON() ([]byte, error) {
	objects := make([]map[string]any, len(r.Events))
	for i, e := range r.Events {
		obj, err := e.Object()
		if err != nil {
			return nil, err
		}
		objects[i] = obj
	}
	type alias TraceResult
	return marshalWith(alias(r), "events", objects)
}

// String renders the run header and its timeline.
func (r TraceResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s, %d workers): %s\n", r.Run.ID, r.Run.Mode, r.Run.Workers, r.Run.Status)
	fmt.Fprintf(&b, "  workload %s, engine %s\n", shortHash(r.Run.WorkloadHash), r.Run.EngineVersion)
	for _, e := range r.Events {
		fmt.Fprintf(&b, "  [%d] %s\n", e.Seq, describeEvent(e))
	}
	fmt.Fprintf(&b, "%d events: %d batches, %d groups, %d evaluated, %d failed",
		r.Stats.TotalEvents, r.Stats.Batches, r.Stats.Groups, r.Stats.Evaluated, r.Stats.Failed)
	if !r.Stats.IsComplete {
		b.WriteString(" (no execution_end)")
	}
	return b.String()
}

// RunList is the printed result of trace --list.
type RunList []store.Run

// String renders one line per run.
func (l RunList) String() string {
	if len(l) == 0 {
		return "No runs recorded."
	}
	var b strings.Builder
	for i, r := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %-10s %2d workers  %4d txs  %s", r.ID, r.Mode, r.Workers, r.Transactions, r.Status)
	}
	return b.String()
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a recorded run from the run log",
		Long: `Print the trace of a run recorded with --db.

The output includes the run summary, the event timeline in execution
order, and counts by event type.

Examples:
  txsched trace --db ./runs.db --list
  txsched trace --db ./runs.db --run latest
  txsched trace --db ./runs.db --run 0192f3a4-... --type tx_eval
  txsched trace --db ./runs.db --run latest --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "latest", "run ID to show, or latest")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs instead")
	cmd.Flags().StringVar(&opts.Type, "type", "", "show only events of this type")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := formatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.List {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return out.Success(RunList(runs))
	}

	var run store.Run
	if opts.RunID == "latest" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.ReadRun(ctx, opts.RunID)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		return WrapExitError(ExitCommandError, "no such run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	events, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	result := TraceResult{Run: run, Events: filterEvents(events, opts.Type), Stats: traceStats(events)}
	return out.SuccessWithRun(run.ID, result)
}

func filterEvents(events []trace.Event, eventType string) []trace.Event {
	if eventType == "" {
		return events
	}
	out := []trace.Event{}
	for _, e := range events {
		if string(e.Type) == eventType {
			out = append(out, e)
		}
	}
	return out
}

func traceStats(events []trace.Event) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, e := range events {
		switch e.Type {
		case trace.EventBatchStart:
			stats.Batches++
		case trace.EventGroupStart:
			stats.Groups++
		case trace.EventTxEval:
			stats.Evaluated++
		case trace.EventTxFailed:
			stats.Failed++
		case trace.EventExecutionEnd:
			stats.IsComplete = true
		}
	}
	return stats
}

func describeEvent(e trace.Event) string {
	switch e.Type {
	case trace.EventBatchStart:
		return fmt.Sprintf("batch_start    batch %d %v", e.BatchID, e.IDs)
	case trace.EventGroupStart:
		return fmt.Sprintf("group_start    batch %d group %d %v", e.BatchID, e.GroupID, e.IDs)
	case trace.EventTxEval:
		return fmt.Sprintf("tx_eval        %s on %s %s", e.TxID, e.ThreadID, formatDelta(e.Delta))
	case trace.EventTxFailed:
		return fmt.Sprintf("tx_failed      %s on %s: %s", e.TxID, e.ThreadID, e.Error)
	case trace.EventGroupMerged:
		return fmt.Sprintf("group_merged   batch %d group %d %s", e.BatchID, e.GroupID, formatDelta(e.Delta))
	default:
		return string(e.Type)
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
