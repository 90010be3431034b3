package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/txsched/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
}

// TestResult is the printed result of a scenario suite.
type TestResult struct {
	*harness.SuiteResult
}

// String renders one line per failure and a summary.
func (r TestResult) String() string {
	var b strings.Builder
	for _, f := range r.Failures {
		name := f.Name
		if name == "" {
			name = f.ScenarioPath
		}
		fmt.Fprintf(&b, "✗ %s\n", name)
		for _, e := range f.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	fmt.Fprintf(&b, "%d scenarios: %d passed, %d failed", r.Total, r.Passed, r.Failed)
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-dir-or-file>...",
		Short: "Run conformance scenarios",
		Long: `Run YAML conformance scenarios against the executor.

Each scenario names a workload, a mode and the expected outcome:
edges, batches, unscheduled transactions, final ledger and trace
assertions. Directories are searched for *.yaml and *.yml files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  txsched test ./scenarios
  txsched test ./scenarios/cycle.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", p))
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := harness.RunSuite(ctx, paths)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	if err := formatter(opts.RootOptions, cmd).Success(TestResult{result}); err != nil {
		return err
	}
	if !result.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}
