package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/txsched/internal/ir"
)

// formatDelta renders a delta as {A:-1 B:+1} in key order.
func formatDelta(d ir.Delta) string {
	parts := make([]string, 0, len(d))
	for _, k := range ir.SortedKeys(d) {
		parts = append(parts, fmt.Sprintf("%s:%+d", k, d[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// marshalWith marshals v and adds one extra top-level field.
func marshalWith(v any, key string, extra any) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(base, &obj); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}
	obj[key] = raw
	return json.Marshal(obj)
}
