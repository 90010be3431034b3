// Package metrics carries run diagnostics out of the executor: free-text log
// lines, wall-clock durations and Prometheus counters.
//
// The executor only sees the Sink interface, so a run can log to a file, to
// SQLite, to a Prometheus registry, or to several at once via Multi.
package metrics

import "time"

// Sink accepts free-text lines and named durations.
//
// Implementations must be safe for use from the coordinating goroutine; the
// executor never calls a Sink from workers.
type Sink interface {
	Log(msg string)
	Duration(scope string, d time.Duration)
}

// Measure runs fn, reports its wall-clock duration to s under scope and
// returns it. A nil sink is allowed.
func Measure(s Sink, scope string, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if s != nil {
		s.Duration(scope, d)
	}
	return d
}

// Nop discards everything.
type Nop struct{}

func (Nop) Log(string) {}
func (Nop) Duration(string, time.Duration) {}

// Multi fans out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Log(msg string) {
	for _, s := range m {
		s.Log(msg)
	}
}

func (m multi) Duration(scope string, d time.Duration) {
	for _, s := range m {
		s.Duration(scope, d)
	}
}
