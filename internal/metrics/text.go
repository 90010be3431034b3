package metrics

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// TimeFormat is the timestamp layout of TextSink lines.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// TextSink writes one timestamped line per event:
//
//	[2026-01-02T15:04:05.000Z] batch 1: [Tx1 Tx2]
//	[2026-01-02T15:04:05.001Z] build_graph took 0.042 ms
//
// Write errors are remembered and returned by Err and Close; later lines are
// dropped.
type TextSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time
	err    error
}

// NewTextSink writes to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w, now: time.Now}
}

// OpenTextSink truncates or creates path and writes to it. The caller must
// Close the sink.
func OpenTextSink(path string) (*TextSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open metrics log: %w", err)
	}
	s := NewTextSink(f)
	s.closer = f
	return s, nil
}

// WithClock replaces the timestamp source. Intended for tests.
func (s *TextSink) WithClock(now func() time.Time) *TextSink {
	s.now = now
	return s
}

// Log writes msg as one line.
func (s *TextSink) Log(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, "[%s] %s\n", s.now().UTC().Format(TimeFormat), msg)
}

// Duration writes "scope took N ms" with microsecond precision.
func (s *TextSink) Duration(scope string, d time.Duration) {
	s.Log(fmt.Sprintf("%s took %.3f ms", scope, float64(d.Microseconds())/1000))
}

// Err returns the first write error.
func (s *TextSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the underlying file, if the sink opened one.
func (s *TextSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return s.err
	}
	err := s.closer.Close()
	s.closer = nil
	if s.err != nil {
		return s.err
	}
	return err
}
