// Package extractor pulls typed values out of loosely structured source
// records using dot-notation paths.
package extractor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Extract walks a decoded JSON value along a dot-notation path. Array
// indexes use bracket notation ("categories[0].name"). A missing key or
// out-of-range index yields nil, nil; only a type mismatch is an error.
func Extract(data any, path string) (any, error) {
	if path == "" {
		return data, nil
	}

	current := data
	for _, part := range parsePath(path) {
		var err error
		current, err = extractPart(current, part)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, nil
		}
	}
	return current, nil
}

// ExtractString extracts a value and coerces it to a string. Numeric
// values stringify without loss so source ids stored as JSON numbers
// survive. Returns nil when the path resolves to nothing.
func ExtractString(data any, path string) (*string, error) {
	value, err := Extract(data, path)
	if err != nil || value == nil {
		return nil, err
	}
	s := toString(value)
	return &s, nil
}

// ExtractFloat extracts a numeric value, accepting JSON numbers and
// numeric strings. Returns nil when the path resolves to nothing.
func ExtractFloat(data any, path string) (*float64, error) {
	value, err := Extract(data, path)
	if err != nil || value == nil {
		return nil, err
	}
	switch v := value.(type) {
	case float64:
		return &v, nil
	case int:
		f := float64(v)
		return &f, nil
	case int64:
		f := float64(v)
		return &f, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("value at %q is not numeric: %w", path, err)
		}
		return &f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("value at %q is not numeric: %w", path, err)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("value at %q has non-numeric type %T", path, value)
	}
}

// FromJSON decodes a raw JSON object into a generic map.
func FromJSON(data json.RawMessage) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

type pathPart struct {
	key        string
	isArray    bool
	arrayIndex int
}

func parsePath(path string) []pathPart {
	var parts []pathPart
	for _, seg := range strings.Split(path, ".") {
		part := pathPart{key: seg}
		if idx := strings.Index(seg, "["); idx != -1 && strings.HasSuffix(seg, "]") {
			if i, err := strconv.Atoi(seg[idx+1 : len(seg)-1]); err == nil {
				part.key = seg[:idx]
				part.isArray = true
				part.arrayIndex = i
			}
		}
		parts = append(parts, part)
	}
	return parts
}

func extractPart(data any, part pathPart) (any, error) {
	value := data
	if part.key != "" {
		switch v := data.(type) {
		case map[string]any:
			val, ok := v[part.key]
			if !ok {
				return nil, nil
			}
			value = val
		case map[string]string:
			val, ok := v[part.key]
			if !ok {
				return nil, nil
			}
			value = val
		default:
			return nil, fmt.Errorf("cannot extract key %q from type %T", part.key, data)
		}
	}

	if part.isArray {
		arr, ok := toArray(value)
		if !ok {
			return nil, fmt.Errorf("expected array at %q, got %T", part.key, value)
		}
		if part.arrayIndex < 0 || part.arrayIndex >= len(arr) {
			return nil, nil
		}
		return arr[part.arrayIndex], nil
	}
	return value, nil
}

func toArray(v any) ([]any, bool) {
	switch arr := v.(type) {
	case []any:
		return arr, true
	case []string:
		out := make([]any, len(arr))
		for i, s := range arr {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(arr))
		for i, m := range arr {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
