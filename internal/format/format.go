// Package format turns raw store rows into the result envelope returned to
// callers: JSON-string columns are recursively parsed back into nested
// Go values (spec.md §4.8 Result formatting). Booleans inside a whole
// node/edge JSON object come back as true/false; a scalar column holding a
// boolean property arrives from the store as integer 0/1 and is returned as
// that integer, with no conversion to true/false.
package format

import (
	"encoding/json"
	"strings"
)

// Row is one formatted result row, keyed by projected column name.
type Row map[string]any

// Rows decodes every row the store returned for a RETURN projection. columns
// lists the projected column names in order, matching the translator's
// output; only those columns are kept, so any other column in a raw row
// (such as a synthetic id(v) column) is dropped here.
func Rows(raw []map[string]any, columns []string) []Row {
	out := make([]Row, 0, len(raw))
	for _, r := range raw {
		out = append(out, Row(decodeRow(r, columns)))
	}
	return out
}

func decodeRow(r map[string]any, columns []string) map[string]any {
	decoded := make(map[string]any, len(columns))
	for _, col := range columns {
		decoded[col] = decodeValue(r[col])
	}
	return decoded
}

// decodeValue recursively parses a value that the row store returned as a
// JSON-encoded string (object or array columns built with json_object /
// json_array / json()), leaving already-scalar driver values untouched.
func decodeValue(v any) any {
	switch val := v.(type) {
	case string:
		trimmed := strings.TrimSpace(val)
		if len(trimmed) == 0 {
			return val
		}
		if trimmed[0] != '{' && trimmed[0] != '[' {
			return val
		}
		var parsed any
		if err := json.Unmarshal([]byte(val), &parsed); err != nil {
			return val
		}
		return walk(parsed)
	case []byte:
		return decodeValue(string(val))
	default:
		return val
	}
}

// walk recurses through an already-decoded JSON value, descending into maps
// and slices so nested JSON-string leaves (rare, but possible from a
// doubly-encoded property) are parsed too.
func walk(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = walk(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = walk(vv)
		}
		return out
	case string:
		return decodeValue(val)
	default:
		return val
	}
}
