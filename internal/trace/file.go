package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Marshal renders events as a JSON array with one event per line.
func Marshal(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i, e := range events {
		data, err := e.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		buf.Write(data)
		if i+1 < len(events) {
			buf.WriteString(",\n")
		} else {
			buf.WriteString("\n")
		}
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}

// Write marshals events to w.
func Write(w io.Writer, events []Event) error {
	data, err := Marshal(events)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile truncates or creates path and writes events to it.
func WriteFile(path string, events []Event) error {
	data, err := Marshal(events)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}

// Parse decodes a trace file's contents. Seq is assigned from array order,
// starting at 1.
func Parse(data []byte) ([]Event, error) {
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	for i := range events {
		events[i].Seq = int64(i + 1)
	}
	return events, nil
}

// ReadFile reads and parses the trace at path.
func ReadFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return Parse(data)
}
