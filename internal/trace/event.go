// Package trace records executor events and writes them as a JSON array for
// offline playback.
//
// The file format is one event object per line inside a JSON array:
//
//	[
//	{"batch":["Tx1","Tx2"],"batchId":1,"type":"batch_start"},
//	{"batchId":1,"group":["Tx1","Tx2"],"groupId":1,"type":"group_start"},
//	{"delta":{"A":-1,"B":1},"threadId":"worker-1","txId":"Tx1","type":"tx_eval"},
//	...
//	{"type":"execution_end"}
//	]
//
// Objects use canonical JSON: keys sorted, strings NFC-normalized, control
// characters and quotes escaped.
package trace

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/txsched/internal/ir"
)

// EventType names a trace event.
type EventType string

const (
	EventBatchStart   EventType = "batch_start"
	EventGroupStart   EventType = "group_start"
	EventTxEval       EventType = "tx_eval"
	EventTxFailed     EventType = "tx_failed"
	EventGroupMerged  EventType = "group_merged"
	EventExecutionEnd EventType = "execution_end"
)

// Event is one recorded step of a run.
//
// Which fields are meaningful depends on Type:
//   - batch_start:   BatchID, IDs
//   - group_start:   BatchID, GroupID, IDs
//   - tx_eval:       TxID, ThreadID, Delta
//   - tx_failed:     TxID, ThreadID, Error
//   - group_merged:  BatchID, GroupID, Delta
//   - execution_end: nothing
//
// Seq orders events within one recording and is not part of the file format.
type Event struct {
	Seq      int64
	Type     EventType
	BatchID  int
	GroupID  int
	IDs      []string
	TxID     string
	ThreadID string
	Delta    ir.Delta
	Error    string
}

// Object returns the event as it appears in a trace file.
func (e Event) Object() (map[string]any, error) {
	obj := map[string]any{"type": string(e.Type)}
	switch e.Type {
	case EventBatchStart:
		obj["batchId"] = e.BatchID
		obj["batch"] = nonNil(e.IDs)
	case EventGroupStart:
		obj["batchId"] = e.BatchID
		obj["groupId"] = e.GroupID
		obj["group"] = nonNil(e.IDs)
	case EventTxEval:
		obj["txId"] = e.TxID
		obj["threadId"] = e.ThreadID
		obj["delta"] = deltaOrEmpty(e.Delta)
	case EventTxFailed:
		obj["txId"] = e.TxID
		obj["threadId"] = e.ThreadID
		obj["error"] = e.Error
	case EventGroupMerged:
		obj["batchId"] = e.BatchID
		obj["groupId"] = e.GroupID
		obj["merged"] = deltaOrEmpty(e.Delta)
	case EventExecutionEnd:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return obj, nil
}

// MarshalJSON encodes the event as canonical JSON.
func (e Event) MarshalJSON() ([]byte, error) {
	obj, err := e.Object()
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(obj)
}

// wireEvent is the decoding shape of every event type.
type wireEvent struct {
	Type     EventType `json:"type"`
	BatchID  int       `json:"batchId"`
	GroupID  int       `json:"groupId"`
	Batch    []string  `json:"batch"`
	Group    []string  `json:"group"`
	TxID     string    `json:"txId"`
	ThreadID string    `json:"threadId"`
	Delta    ir.Delta  `json:"delta"`
	Merged   ir.Delta  `json:"merged"`
	Error    string    `json:"error"`
}

// UnmarshalJSON decodes any trace event object.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event{
		Type:     w.Type,
		BatchID:  w.BatchID,
		GroupID:  w.GroupID,
		TxID:     w.TxID,
		ThreadID: w.ThreadID,
		Error:    w.Error,
	}
	switch w.Type {
	case EventBatchStart:
		e.IDs = w.Batch
	case EventGroupStart:
		e.IDs = w.Group
	case EventTxEval:
		e.Delta = w.Delta
	case EventGroupMerged:
		e.Delta = w.Merged
	case EventTxFailed, EventExecutionEnd:
	default:
		return fmt.Errorf("unknown event type %q", w.Type)
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func deltaOrEmpty(d ir.Delta) ir.Delta {
	if d == nil {
		return ir.Delta{}
	}
	return d
}
