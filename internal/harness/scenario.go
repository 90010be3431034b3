package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/txsched/internal/engine"
	"github.com/roach88/txsched/internal/trace"
	"github.com/roach88/txsched/internal/workload"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Workload is a path to a workload file (YAML or CUE), resolved
	// relative to the scenario file. Mutually exclusive with inline
	// transactions.
	Workload string `yaml:"workload,omitempty"`

	// Inline transactions and ledger.
	workload.File `yaml:",inline"`

	// Mode is the execution mode; defaults to grouped.
	Mode string `yaml:"mode,omitempty"`

	// Workers is the worker count for threaded, pool and grouped modes;
	// defaults to 1 so traces stay deterministic.
	Workers int `yaml:"workers,omitempty"`

	// Fail lists transactions whose delta computation returns an error.
	Fail []string `yaml:"fail,omitempty"`

	// Panic lists transactions whose delta computation panics.
	Panic []string `yaml:"panic,omitempty"`

	// Expect describes the run outcome. Omitted fields are not checked.
	Expect Expect `yaml:"expect"`

	// Assertions validate the recorded trace and final ledger.
	Assertions []Assertion `yaml:"assertions"`
}

// Expect is the expected outcome of a scenario run.
type Expect struct {
	// Edges lists conflict edges as [from, to] pairs, in any order.
	Edges [][]string `yaml:"edges,omitempty"`

	// Batches is the exact batch list, order significant.
	Batches [][]string `yaml:"batches,omitempty"`

	// Unscheduled lists transactions that never became ready. An explicit
	// empty list asserts the run scheduled everything.
	Unscheduled []string `yaml:"unscheduled"`

	// Failed lists transactions whose evaluation failed.
	Failed []string `yaml:"failed,omitempty"`

	// FinalLedger is matched exactly against the ledger after the run.
	FinalLedger map[string]int64 `yaml:"final_ledger,omitempty"`

	// Status is "completed" or the report's incomplete status line.
	Status string `yaml:"status,omitempty"`
}

// Assertion validates the trace or the final ledger.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_balance.
	Type string `yaml:"type"`

	// Event is the trace event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Tx is a transaction ID (trace_contains).
	Tx string `yaml:"tx,omitempty"`

	// Txs is the expected evaluation order (trace_order).
	Txs []string `yaml:"txs,omitempty"`

	// Count is the expected number of events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Key and Value name a ledger balance (final_balance).
	Key   string `yaml:"key,omitempty"`
	Value int64  `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalBalance  = "final_balance"
)

// LoadScenario reads and parses a scenario YAML file, resolving a relative
// workload path against the scenario's directory.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath is LoadScenario with an explicit directory for
// resolving the workload path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Workload != "" && !filepath.IsAbs(scenario.Workload) && basePath != "" {
		scenario.Workload = filepath.Join(basePath, scenario.Workload)
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Workload != "" && len(s.Transactions) > 0 {
		return fmt.Errorf("workload and inline transactions are mutually exclusive")
	}
	if s.Workload == "" && len(s.Transactions) == 0 {
		return fmt.Errorf("either workload or transactions is required")
	}
	if s.Mode != "" {
		if _, err := engine.ParseMode(s.Mode); err != nil {
			return err
		}
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", s.Workers)
	}
	for i, e := range s.Expect.Edges {
		if len(e) != 2 {
			return fmt.Errorf("expect.edges[%d]: want [from, to], got %v", i, e)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(a Assertion, index int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
		return validateEventType(a.Event, index)
	case AssertTraceOrder:
		if len(a.Txs) == 0 {
			return fmt.Errorf("assertions[%d]: txs list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
		return validateEventType(a.Event, index)
	case AssertFinalBalance:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for final_balance", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validateEventType(name string, index int) error {
	switch trace.EventType(name) {
	case trace.EventBatchStart, trace.EventGroupStart, trace.EventTxEval,
		trace.EventTxFailed, trace.EventGroupMerged, trace.EventExecutionEnd:
		return nil
	}
	return fmt.Errorf("assertions[%d]: unknown event type %q", index, name)
}
