package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/txsched/internal/shard"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Workload string
	Workers  int
	Generate int
	Seed     uint64
	Keys     int
}

// AnalyzeResult is the printed shard analysis.
type AnalyzeResult struct {
	Source      string             `json:"source"`
	Stats       shard.Stats        `json:"stats"`
	Shards      []shard.Shard      `json:"shards"`
	Assignments []shard.Assignment `json:"assignments"`
}

// String renders the analysis for text output.
func (r AnalyzeResult) String() string {
	var b strings.Builder
	s := r.Stats
	fmt.Fprintf(&b, "%s: %d transactions in %d shards (largest %d, smallest %d, average %.2f)\n",
		r.Source, s.Transactions, s.Shards, s.Largest, s.Smallest, s.Average)
	for _, a := range r.Assignments {
		fmt.Fprintf(&b, "  worker %d: %d transactions from shards %v\n", a.Worker, a.Load(), a.Shards)
	}
	fmt.Fprintf(&b, "balance score: %.1f/100 over %d workers", s.Score, s.Workers)
	return b.String()
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}
	def := DefaultConfig()

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Partition a workload into independent shards",
		Long: `Group transactions into shards that share no keys, directly or
transitively, then spread the shards over --workers workers largest first.
The balance score is 100 for perfectly even loads and falls toward 0 as
the per-worker load varies.

Examples:
  txsched analyze --workload txs.yaml --workers 8
  txsched analyze --generate 500 --keys 200 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Workload, "workload", "", "workload file; default built-in sample")
	cmd.Flags().IntVar(&opts.Workers, "workers", def.Workers, "number of workers to balance over")
	cmd.Flags().IntVar(&opts.Generate, "generate", 0, "synthesize N transactions instead of loading a workload")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", def.Seed, "seed for --generate")
	cmd.Flags().IntVar(&opts.Keys, "keys", def.Keys, "account key space for --generate")
	return cmd
}

func runAnalyze(opts *AnalyzeOptions, cmd *cobra.Command) error {
	cfg := DefaultConfig()
	cfg.Workload, cfg.Workers = opts.Workload, opts.Workers
	cfg.Generate, cfg.Seed, cfg.Keys = opts.Generate, opts.Seed, opts.Keys
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	w, err := loadWorkload(cfg)
	if err != nil {
		return workloadExitError(err)
	}

	an, err := shard.Analyze(w.Transactions, cfg.Workers)
	if err != nil {
		return WrapExitError(ExitCommandError, "shard analysis failed", err)
	}
	return formatter(opts.RootOptions, cmd).Success(AnalyzeResult{
		Source:      w.Source,
		Stats:       an.Stats,
		Shards:      an.Shards,
		Assignments: an.Assignments,
	})
}
