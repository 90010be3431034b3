package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/txsched/internal/graph"
	"github.com/roach88/txsched/internal/schedule"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Workload string
}

// ValidationReport describes a workload's schedule without executing it.
type ValidationReport struct {
	Source       string        `json:"source"`
	Transactions int           `json:"transactions"`
	Edges        []graph.Edge  `json:"edges"`
	Ties         []graph.Tie   `json:"ties"`
	Cycles       []graph.Cycle `json:"cycles"`
	Batches      [][]string    `json:"batches"`
	Unscheduled  []string      `json:"unscheduled"`
	Valid        bool          `json:"valid"`
}

// String renders the report for text output.
func (r ValidationReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d transactions, %d edges, %d batches\n",
		r.Source, r.Transactions, len(r.Edges), len(r.Batches))
	for _, tie := range r.Ties {
		fmt.Fprintf(&b, "  tie: kept %s->%s, dropped %s->%s\n",
			tie.Kept.From, tie.Kept.To, tie.Dropped.From, tie.Dropped.To)
	}
	for _, c := range r.Cycles {
		fmt.Fprintf(&b, "  %s\n", c.Message)
	}
	if len(r.Unscheduled) > 0 {
		fmt.Fprintf(&b, "  unscheduled: %v\n", r.Unscheduled)
	}
	if r.Valid {
		b.WriteString("✓ every transaction schedules")
	} else {
		fmt.Fprintf(&b, "✗ %d transactions can never run", len(r.Unscheduled))
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a workload for cycles and conflict ties",
		Long: `Build the conflict graph and batch schedule for a workload without
executing it. Reports bidirectional conflicts (ties), dependency cycles and
the transactions they leave unscheduled.

Exit codes:
  0 - every transaction schedules (ties are warnings)
  1 - cycles leave transactions unscheduled
  2 - command error

Examples:
  txsched validate --workload txs.yaml
  txsched validate --workload txs.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Workload, "workload", "", "workload file; default built-in sample")
	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	cfg := DefaultConfig()
	cfg.Workload = opts.Workload
	w, err := loadWorkload(cfg)
	if err != nil {
		return workloadExitError(err)
	}

	g, err := graph.Build(w.Transactions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build graph", err)
	}
	plan := schedule.Batches(g)

	report := ValidationReport{
		Source:       w.Source,
		Transactions: len(w.Transactions),
		Edges:        g.Edges(),
		Ties:         g.Ties(),
		Cycles:       g.Cycles(),
		Batches:      plan.Batches,
		Unscheduled:  plan.Unscheduled,
		Valid:        plan.Complete(),
	}
	if err := formatter(opts.RootOptions, cmd).Success(report); err != nil {
		return err
	}
	if !report.Valid {
		return NewExitError(ExitFailure, plan.String())
	}
	return nil
}
