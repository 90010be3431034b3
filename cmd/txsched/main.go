// Command txsched schedules and executes conflict-aware transaction batches.
package main

import (
	"os"

	"github.com/roach88/txsched/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
