package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/txsched/internal/engine"
	"github.com/roach88/txsched/internal/graph"
	"github.com/roach88/txsched/internal/ir"
	"github.com/roach88/txsched/internal/ledger"
	"github.com/roach88/txsched/internal/metrics"
	"github.com/roach88/txsched/internal/store"
	"github.com/roach88/txsched/internal/trace"
	"github.com/roach88/txsched/internal/workload"
)

// modeCommand describes one execution entry point.
type modeCommand struct {
	use     string
	aliases []string
	mode    engine.Mode
	short   string
	long    string
}

var modeCommands = []modeCommand{
	{
		use:   "sequential",
		mode:  engine.ModeSequential,
		short: "Execute in topological order, one transaction at a time",
		long: `Execute every batch one transaction at a time on the calling goroutine.
Each transaction is its own group, so its delta is applied before the next
transaction is evaluated.`,
	},
	{
		use:   "simulated",
		mode:  engine.ModeSimulated,
		short: "Execute batches as single groups without concurrency",
		long: `Treat every batch as one group but evaluate its members inline.
The trace has the same shape as a parallel run with one worker.`,
	},
	{
		use:   "threaded",
		mode:  engine.ModeThreaded,
		short: "Execute each batch with one goroutine per transaction",
		long: `Evaluate each batch on an errgroup limited to --workers goroutines
and merge the batch once every member has finished.`,
	},
	{
		use:   "priority",
		mode:  engine.ModePriority,
		short: "Execute batches formed from a fee-ordered ready queue",
		long: `Form batches from a ready queue ordered by fee (highest first), then
timestamp and ID. Members are evaluated inline in that order.`,
	},
	{
		use:   "pool",
		mode:  engine.ModePool,
		short: "Execute each batch on the bounded worker pool",
		long: `Submit every member of a batch to a pool of --workers workers,
wait for the batch, then merge it as one group.`,
	},
	{
		use:     "run",
		aliases: []string{"grouped"},
		mode:    engine.ModeGrouped,
		short:   "Execute conflict-free groups on the worker pool",
		long: `Split each batch into conflict-free groups (first fit), run each
group on the worker pool and merge it before the next group starts.
This is the full scheduler.`,
	},
}

func newModeCommand(rootOpts *RootOptions, mc modeCommand) *cobra.Command {
	var flags Config

	cmd := &cobra.Command{
		Use:     mc.use,
		Aliases: mc.aliases,
		Short:   mc.short,
		Long: mc.long + `

Without --workload the built-in three-transaction sample is used.

Exit codes:
  0 - every transaction scheduled and applied
  1 - run incomplete (unscheduled or failed transactions)
  2 - command error (unreadable workload, invalid flags)

Examples:
  txsched ` + mc.use + `
  txsched ` + mc.use + ` --workload txs.yaml --workers 8 --trace trace.json
  txsched ` + mc.use + ` --generate 1000 --seed 7 --db runs.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeMode(rootOpts, cmd, mc.mode, flags)
		},
	}
	bindConfigFlags(cmd, &flags)
	return cmd
}

// signalContext cancels on SIGINT or SIGTERM. The run stops between batches.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func executeMode(opts *RootOptions, cmd *cobra.Command, mode engine.Mode, flags Config) error {
	cfg, err := resolveConfig(opts, cmd, flags)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	out := formatter(opts, cmd)
	logger := newLogger(opts, cmd.ErrOrStderr())

	w, err := loadWorkload(cfg)
	if err != nil {
		return workloadExitError(err)
	}
	out.VerboseLog("workload %s: %d transactions, %d ledger keys", w.Source, len(w.Transactions), len(w.Ledger))

	clock := trace.NewClock()
	rec := trace.NewRecorderWithClock(clock)
	execOpts := []engine.Option{
		engine.WithWorkers(cfg.Workers),
		engine.WithObserver(rec),
		engine.WithLogger(logger),
	}

	var sinks []metrics.Sink
	var runLog *store.RunLog
	if cfg.Database != "" {
		runLog = store.NewRunLogWithClock(clock)
		sinks = append(sinks, runLog)
	}
	if cfg.MetricsLog != "" {
		textSink, err := metrics.OpenTextSink(cfg.MetricsLog)
		if err != nil {
			out.Warn("%v", err)
		} else {
			defer func() {
				if err := textSink.Close(); err != nil {
					out.Warn("metrics log: %v", err)
				}
			}()
			sinks = append(sinks, textSink)
		}
	}
	var collector *metrics.Collector
	if cfg.MetricsOut != "" {
		collector = metrics.NewCollector("txsched")
		sinks = append(sinks, collector)
		execOpts = append(execOpts, engine.WithObserver(collector))
	}
	execOpts = append(execOpts, engine.WithSink(metrics.Multi(sinks...)))

	l := ledger.New(w.Ledger)
	exec := engine.New(w.Transactions, l, execOpts...)

	ctx, stop := signalContext(cmd)
	defer stop()

	report, runErr := exec.Run(ctx, mode)
	if report == nil {
		return WrapExitError(ExitCommandError, "run failed", runErr)
	}
	final := l.Snapshot()

	writeGraphExports(out, cfg, w)
	if cfg.Trace != "" {
		if err := trace.WriteFile(cfg.Trace, rec.Events()); err != nil {
			out.Warn("%v", err)
		}
	}
	if cfg.Database != "" {
		if err := saveRun(ctx, cfg.Database, store.RunFromReport(report, len(w.Transactions), final), rec.Events(), runLog); err != nil {
			out.Warn("%v", err)
		}
	}
	if collector != nil {
		if err := writeMetrics(cfg.MetricsOut, collector); err != nil {
			out.Warn("%v", err)
		}
	}

	if err := out.SuccessWithRun(report.RunID, newRunSummary(report, len(w.Transactions), final)); err != nil {
		return err
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "run interrupted", errors.Join(runErr, report.Err()))
	}
	if !report.Complete() {
		return WrapExitError(ExitFailure, "run "+report.Status(), report.Err())
	}
	return nil
}

// writeGraphExports writes the DOT and JSON renderings requested in cfg.
// Failures are warnings: the run has already happened.
func writeGraphExports(out *OutputFormatter, cfg Config, w *workload.Workload) {
	if cfg.DOT == "" && cfg.GraphJSON == "" {
		return
	}
	g, err := graph.Build(w.Transactions)
	if err != nil {
		out.Warn("graph export: %v", err)
		return
	}
	if cfg.DOT != "" {
		if err := g.ExportDOT(cfg.DOT); err != nil {
			out.Warn("%v", err)
		}
	}
	if cfg.GraphJSON != "" {
		var lookup map[string]ir.Transaction
		if cfg.Augmented {
			lookup = ir.Index(w.Transactions)
		}
		if err := g.ExportJSON(cfg.GraphJSON, lookup); err != nil {
			out.Warn("%v", err)
		}
	}
}

func saveRun(ctx context.Context, path string, run store.Run, events []trace.Event, log *store.RunLog) error {
	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("run log: %w", err)
	}
	defer st.Close()
	// The run context may already be cancelled; the record should still land.
	if err := st.SaveRun(context.WithoutCancel(ctx), run, events, log); err != nil {
		return fmt.Errorf("run log: %w", err)
	}
	return nil
}

func writeMetrics(path string, c *metrics.Collector) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("metrics out: %w", err)
	}
	if err := c.WriteText(f); err != nil {
		f.Close()
		return fmt.Errorf("metrics out: %w", err)
	}
	return f.Close()
}

// RunSummary is the printed result of an execution command.
type RunSummary struct {
	RunID        string            `json:"run_id"`
	Mode         engine.Mode       `json:"mode"`
	Workers      int               `json:"workers"`
	Status       string            `json:"status"`
	Transactions int               `json:"transactions"`
	Edges        int               `json:"edges"`
	Batches      [][]string        `json:"batches"`
	Groups       int               `json:"groups"`
	Applied      int               `json:"applied"`
	Failures     []engine.TxResult `json:"failures"`
	Unscheduled  []string          `json:"unscheduled"`
	Pending      []string          `json:"pending"`
	Ties         []graph.Tie       `json:"ties"`
	Cycles       []graph.Cycle     `json:"cycles"`
	Ledger       map[string]int64  `json:"ledger"`
	Duration     time.Duration     `json:"duration_ns"`
}

func newRunSummary(r *engine.Report, transactions int, final map[string]int64) RunSummary {
	return RunSummary{
		RunID:        r.RunID,
		Mode:         r.Mode,
		Workers:      r.Workers,
		Status:       r.Status(),
		Transactions: transactions,
		Edges:        r.Edges,
		Batches:      r.Batches,
		Groups:       r.Groups,
		Applied:      r.Applied,
		Failures:     r.Failures,
		Unscheduled:  r.Unscheduled,
		Pending:      r.Pending,
		Ties:         r.Ties,
		Cycles:       r.Cycles,
		Ledger:       final,
		Duration:     r.Duration,
	}
}

// String renders the summary for text output.
func (s RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s, %d workers): %s\n", s.RunID, s.Mode, s.Workers, s.Status)
	fmt.Fprintf(&b, "  %d transactions, %d edges, %d batches, %d groups, %d applied\n",
		s.Transactions, s.Edges, len(s.Batches), s.Groups, s.Applied)
	for i, batch := range s.Batches {
		fmt.Fprintf(&b, "  batch %d: %v\n", i+1, batch)
	}
	for _, tie := range s.Ties {
		fmt.Fprintf(&b, "  tie: kept %s->%s, dropped %s->%s\n",
			tie.Kept.From, tie.Kept.To, tie.Dropped.From, tie.Dropped.To)
	}
	for _, c := range s.Cycles {
		fmt.Fprintf(&b, "  %s\n", c.Message)
	}
	if len(s.Unscheduled) > 0 {
		fmt.Fprintf(&b, "  unscheduled: %v\n", s.Unscheduled)
	}
	if len(s.Pending) > 0 {
		fmt.Fprintf(&b, "  pending: %v\n", s.Pending)
	}
	for _, f := range s.Failures {
		fmt.Fprintf(&b, "  failed: %s on %s: %s\n", f.TxID, f.WorkerID, f.Error)
	}
	b.WriteString("  ledger:")
	for _, k := range ir.SortedKeys(s.Ledger) {
		fmt.Fprintf(&b, " %s=%d", k, s.Ledger[k])
	}
	return b.String()
}
