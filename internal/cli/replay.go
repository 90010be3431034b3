package cli

import (
	"fmt"
	"maps"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/txsched/internal/ir"
	"github.com/roach88/txsched/internal/ledger"
	"github.com/roach88/txsched/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Workload string
}

// ReplayOutput is the printed result of a replay.
type ReplayOutput struct {
	Trace   string             `json:"trace"`
	Result  trace.ReplayResult `json:"result"`
	Initial map[string]int64   `json:"initial"`
	Final   map[string]int64   `json:"final"`
}

// String renders the replay result for text output.
func (o ReplayOutput) String() string {
	var b strings.Builder
	r := o.Result
	fmt.Fprintf(&b, "%s: %d batches, %d groups, %d evaluated, %d failed\n",
		o.Trace, r.Batches, r.Groups, r.Evaluated, r.Failed)
	if !r.Complete {
		b.WriteString("  trace has no execution_end; the run was interrupted\n")
	}
	b.WriteString("ledger:")
	for _, k := range ir.SortedKeys(o.Final) {
		fmt.Fprintf(&b, " %s=%d", k, o.Final[k])
		if before := o.Initial[k]; before != o.Final[k] {
			fmt.Fprintf(&b, " (%+d)", o.Final[k]-before)
		}
	}
	return b.String()
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <trace.json>",
		Short: "Rebuild the ledger from a trace file",
		Long: `Re-apply every group_merged delta in a trace file, in order, to the
starting ledger of a workload and print the resulting balances.

Each merged delta is checked against the sum of its group's tx_eval deltas;
a mismatch means the trace was edited or truncated and is reported as an
error.

Exit codes:
  0 - replay succeeded
  1 - trace is inconsistent
  2 - command error (unreadable trace or workload)

Examples:
  txsched run --trace trace.json && txsched replay trace.json
  txsched replay trace.json --workload txs.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Workload, "workload", "", "workload supplying the starting ledger; default built-in sample")
	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	events, err := trace.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	cfg := DefaultConfig()
	cfg.Workload = opts.Workload
	w, err := loadWorkload(cfg)
	if err != nil {
		return workloadExitError(err)
	}

	l := ledger.New(w.Ledger)
	initial := maps.Clone(l.Snapshot())
	result, err := trace.Replay(events, l)
	if err != nil {
		return WrapExitError(ExitFailure, "trace is inconsistent", err)
	}

	return formatter(opts.RootOptions, cmd).Success(ReplayOutput{
		Trace:   path,
		Result:  result,
		Initial: initial,
		Final:   l.Snapshot(),
	})
}
