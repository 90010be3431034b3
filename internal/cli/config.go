package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/txsched/internal/engine"
)

// Config holds the settings shared by the execution commands. It can be
// loaded from a YAML file with --config; explicit flags override file values.
type Config struct {
	Workload   string `yaml:"workload"`    // yaml, yml or cue file; empty for the built-in sample
	Workers    int    `yaml:"workers"`     // pool and errgroup size
	Trace      string `yaml:"trace"`       // trace JSON output path
	DOT        string `yaml:"dot"`         // graph DOT output path
	GraphJSON  string `yaml:"graph_json"`  // graph JSON output path
	Augmented  bool   `yaml:"augmented"`   // embed read/write sets in graph JSON
	Database   string `yaml:"db"`          // SQLite run log path
	MetricsLog string `yaml:"metrics_log"` // timestamped text log path
	MetricsOut string `yaml:"metrics_out"` // Prometheus text exposition path

	Generate int    `yaml:"generate"` // synthesize this many transactions instead of loading
	Seed     uint64 `yaml:"seed"`
	Keys     int    `yaml:"keys"`
}

// DefaultConfig returns the settings used when neither a config file nor a
// flag provides a value.
func DefaultConfig() Config {
	return Config{
		Workers: engine.DefaultWorkers,
		Seed:    1,
		Keys:    50,
	}
}

// LoadConfig reads a YAML config over DefaultConfig. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings no command can honour.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Generate < 0 {
		return fmt.Errorf("generate must not be negative, got %d", c.Generate)
	}
	if c.Generate > 0 && c.Workload != "" {
		return fmt.Errorf("workload and generate are mutually exclusive")
	}
	if c.Generate > 0 && c.Keys < 1 {
		return fmt.Errorf("keys must be at least 1, got %d", c.Keys)
	}
	return nil
}

// bindConfigFlags registers the execution flags on cmd, writing into flags.
func bindConfigFlags(cmd *cobra.Command, flags *Config) {
	def := DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&flags.Workload, "workload", "", "workload file (.yaml, .yml, .cue or CUE package dir); default built-in sample")
	f.IntVar(&flags.Workers, "workers", def.Workers, "number of workers")
	f.StringVar(&flags.Trace, "trace", "", "write the execution trace JSON to this file")
	f.StringVar(&flags.DOT, "dot", "", "write the conflict graph as DOT to this file")
	f.StringVar(&flags.GraphJSON, "graph-json", "", "write the conflict graph as JSON to this file")
	f.BoolVar(&flags.Augmented, "augmented", false, "include read/write sets in --graph-json")
	f.StringVar(&flags.Database, "db", "", "record the run in this SQLite database")
	f.StringVar(&flags.MetricsLog, "metrics-log", "", "write timestamped log lines and durations to this file")
	f.StringVar(&flags.MetricsOut, "metrics-out", "", "write Prometheus metrics in text format to this file")
	f.IntVar(&flags.Generate, "generate", 0, "synthesize N transactions instead of loading a workload")
	f.Uint64Var(&flags.Seed, "seed", def.Seed, "seed for --generate")
	f.IntVar(&flags.Keys, "keys", def.Keys, "account key space for --generate")
}

// resolveConfig layers DefaultConfig, the --config file and explicitly set
// flags, in that order.
func resolveConfig(opts *RootOptions, cmd *cobra.Command, flags Config) (Config, error) {
	cfg := DefaultConfig()
	if opts.Config != "" {
		var err error
		if cfg, err = LoadConfig(opts.Config); err != nil {
			return cfg, err
		}
	}

	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("workload", func() { cfg.Workload = flags.Workload })
	set("workers", func() { cfg.Workers = flags.Workers })
	set("trace", func() { cfg.Trace = flags.Trace })
	set("dot", func() { cfg.DOT = flags.DOT })
	set("graph-json", func() { cfg.GraphJSON = flags.GraphJSON })
	set("augmented", func() { cfg.Augmented = flags.Augmented })
	set("db", func() { cfg.Database = flags.Database })
	set("metrics-log", func() { cfg.MetricsLog = flags.MetricsLog })
	set("metrics-out", func() { cfg.MetricsOut = flags.MetricsOut })
	set("generate", func() { cfg.Generate = flags.Generate })
	set("seed", func() { cfg.Seed = flags.Seed })
	set("keys", func() { cfg.Keys = flags.Keys })

	return cfg, cfg.Validate()
}
