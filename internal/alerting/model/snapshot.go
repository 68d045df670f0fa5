package model

import (
	"encoding/json"
	"strings"
)

// Snapshot is one evaluation cycle's metric readings as submitted by an
// external collector. Values may be nested maps; rules address leaves with
// dot-paths such as "disk.used_percent".
type Snapshot map[string]any

// Lookup walks path into the snapshot and returns the leaf as a float64.
// The second return is false when the path is absent or non-numeric.
func (s Snapshot) Lookup(path string) (float64, bool) {
	leaf, ok := s.leaf(path)
	if !ok {
		return 0, false
	}
	return toFloat(leaf)
}

// Series returns the leaf at path as a numeric series, for rules whose
// aggregation is applied over an already-collected window of samples.
func (s Snapshot) Series(path string) ([]float64, bool) {
	leaf, ok := s.leaf(path)
	if !ok {
		return nil, false
	}
	switch vals := leaf.(type) {
	case []float64:
		return vals, len(vals) > 0
	case []any:
		out := make([]float64, 0, len(vals))
		for _, v := range vals {
			f, ok := toFloat(v)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
}

func (s Snapshot) leaf(path string) (any, bool) {
	var current any = map[string]any(s)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
