package cache

import (
	"fmt"
	"time"

	"github.com/ohler55/ojg/oj"
)

// Cached payloads use an explicit tagged-value representation: only strings,
// float64 numbers, booleans, null, string-keyed maps and slices survive a
// round trip. Backend-specific types (driver IDs, timestamps, byte blobs)
// are normalized on encode so downstream readers never see opaque objects.

// EncodeRows serializes node result rows into the canonical cache form.
func EncodeRows(rows []map[string]any) ([]byte, error) {
	norm := make([]any, len(rows))
	for i, row := range rows {
		v, err := normalize(row)
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		norm[i] = v
	}
	return []byte(oj.JSON(norm)), nil
}

// DecodeRows parses a payload produced by EncodeRows.
func DecodeRows(data []byte) ([]map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	parsed, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("decode cached rows: %w", err)
	}
	list, ok := parsed.([]any)
	if !ok {
		return nil, fmt.Errorf("decode cached rows: payload is %T, want list", parsed)
	}
	rows := make([]map[string]any, 0, len(list))
	for _, item := range list {
		row, ok := coerce(item).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("decode cached rows: element is %T, want mapping", item)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// EncodeValue serializes a single tagged value (used for identity seeds).
func EncodeValue(v any) ([]byte, error) {
	norm, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return []byte(oj.JSON(norm)), nil
}

// DecodeValue parses a payload produced by EncodeValue.
func DecodeValue(data []byte) (any, error) {
	parsed, err := oj.Parse(data)
	if err != nil {
		return nil, err
	}
	return coerce(parsed), nil
}

// coerce folds the parser's integer representation back into the single
// number type of the tagged-value set.
func coerce(v any) any {
	switch val := v.(type) {
	case int64:
		return float64(val)
	case map[string]any:
		for k, item := range val {
			val[k] = coerce(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = coerce(item)
		}
		return val
	default:
		return v
	}
}

// normalize coerces a value into the tagged-value set, rejecting anything
// with no faithful representation.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string, float64:
		return val, nil
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case float32:
		return float64(val), nil
	case []byte:
		return string(val), nil
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano), nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			norm, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = norm
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			norm, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = norm
		}
		return out, nil
	default:
		// Last resort: anything ojg can already express stays; fmt.Stringer
		// and friends collapse to strings rather than opaque object graphs.
		if s, ok := val.(fmt.Stringer); ok {
			return s.String(), nil
		}
		return nil, fmt.Errorf("value of type %T has no cache representation", v)
	}
}
