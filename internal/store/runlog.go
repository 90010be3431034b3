package store

import (
	"sync"
	"time"

	"github.com/roach88/txsched/internal/trace"
)

// LogLine is one free-text line sent to a RunLog.
type LogLine struct {
	Seq     int64
	Message string
}

// DurationEntry is one measured scope sent to a RunLog.
type DurationEntry struct {
	Seq      int64
	Scope    string
	Duration time.Duration
}

// RunLog is a metrics sink that buffers a run's lines and durations until
// they are saved with SaveRun. Lines and durations share one clock, so their
// relative order survives storage.
type RunLog struct {
	mu        sync.Mutex
	clock     *trace.Clock
	lines     []LogLine
	durations []DurationEntry
}

// NewRunLog creates an empty run log.
func NewRunLog() *RunLog {
	return &RunLog{clock: trace.NewClock()}
}

// NewRunLogWithClock creates a run log that shares clock with a trace
// recorder, so log lines and trace events interleave by Seq.
func NewRunLogWithClock(clock *trace.Clock) *RunLog {
	return &RunLog{clock: clock}
}

// Log buffers msg.
func (r *RunLog) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, LogLine{Seq: r.clock.Next(), Message: msg})
}

// Duration buffers a measured scope.
func (r *RunLog) Duration(scope string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations = append(r.durations, DurationEntry{Seq: r.clock.Next(), Scope: scope, Duration: d})
}

// Lines returns a copy of the buffered lines.
func (r *RunLog) Lines() []LogLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogLine, len(r.lines))
	copy(out, r.lines)
	return out
}

// Durations returns a copy of the buffered durations.
func (r *RunLog) Durations() []DurationEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DurationEntry, len(r.durations))
	copy(out, r.durations)
	return out
}
