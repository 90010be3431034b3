package engine

import (
	"fmt"
	"strings"
)

// Mode selects how batches are grouped and where deltas are computed.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeSimulated  Mode = "simulated"
	ModeThreaded   Mode = "threaded"
	ModePriority   Mode = "priority"
	ModePool       Mode = "pool"
	ModeGrouped    Mode = "grouped"
)

// Modes lists every mode in documentation order.
func Modes() []Mode {
	return []Mode{ModeSequential, ModeSimulated, ModeThreaded, ModePriority, ModePool, ModeGrouped}
}

// ParseMode accepts a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	want := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range Modes() {
		if m == want {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q (want one of %v)", s, Modes())
}

func (m Mode) String() string {
	return string(m)
}
