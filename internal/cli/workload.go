package cli

import (
	"errors"

	"github.com/roach88/txsched/internal/workload"
)

// loadWorkload resolves the workload a command runs on: generated, loaded
// from file, or the built-in sample.
func loadWorkload(cfg Config) (*workload.Workload, error) {
	switch {
	case cfg.Generate > 0:
		gen := workload.DefaultGenerateConfig(cfg.Generate)
		gen.Seed = cfg.Seed
		gen.Keys = cfg.Keys
		return workload.Generate(gen)
	case cfg.Workload != "":
		return workload.Load(cfg.Workload)
	default:
		return workload.Sample(), nil
	}
}

// workloadExitError maps a workload failure to exit code 2 with the load
// error's code preserved in the message.
func workloadExitError(err error) *ExitError {
	var le *workload.LoadError
	if errors.As(err, &le) {
		return WrapExitError(ExitCommandError, "failed to load workload ["+le.Code+"]", err)
	}
	return WrapExitError(ExitCommandError, "failed to load workload", err)
}
