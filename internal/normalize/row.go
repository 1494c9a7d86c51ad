package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/schema"
)

// Row converts one raw record of the schema's kind into a canonical record.
//
// An alias is renamed to its canonical field only when the canonical field
// is not also present; otherwise both keys are kept untouched. Fields
// unknown to the schema are carried through.
func Row(raw map[string]any, s schema.Schema) record.Record {
	out := make(record.Record, len(raw))
	for key, v := range raw {
		name := key
		if canonical, ok := s.Alias(key); ok {
			if _, taken := raw[canonical]; !taken {
				name = canonical
			}
		}

		field, known := s.Field(name)
		if !known {
			out[name] = passThrough(v)
			continue
		}
		out[name] = coerce(v, field)
	}
	return out
}

// Rows normalizes every raw record in order.
func Rows(raws []map[string]any, s schema.Schema) []record.Record {
	out := make([]record.Record, len(raws))
	for i, raw := range raws {
		out[i] = Row(raw, s)
	}
	return out
}

// Record re-normalizes an already decoded record, for example one read
// back from JSON where timestamps came back as strings.
func Record(r record.Record, s schema.Schema) record.Record {
	raw := make(map[string]any, len(r))
	for k, v := range r {
		raw[k] = v
	}
	return Row(raw, s)
}

func passThrough(v any) record.Value {
	val, err := record.FromAny(v)
	if err != nil {
		return record.String(fmt.Sprint(v))
	}
	return val
}

func coerce(v any, f schema.Field) record.Value {
	if s, ok := asString(v); ok {
		return coerceString(s, f)
	}

	switch f.Type {
	case schema.TypeInt:
		switch val := v.(type) {
		case record.Int:
			return val
		case json.Number:
			if i, err := val.Int64(); err == nil {
				return record.Int(i)
			}
		}
		if n, ok := asNumber(v); ok {
			return intOrFloat(n)
		}
	case schema.TypeFloat:
		if n, ok := asNumber(v); ok {
			return record.Float(n)
		}
	}
	return passThrough(v)
}

// coerceString handles text input: every CSV cell and JSON string values.
func coerceString(s string, f schema.Field) record.Value {
	switch f.Type {
	case schema.TypeTimestamp:
		if s == "" {
			return record.String(s)
		}
		if ts, ok := ParseTimestamp(s); ok {
			return ts
		}
		return record.String(s)

	case schema.TypeInt:
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return record.Null{}
		}
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return record.Int(i)
		}
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return intOrFloat(n)
		}
		return record.String(s)

	case schema.TypeFloat:
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return record.Null{}
		}
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return record.Float(n)
		}
		return record.String(s)

	case schema.TypeEnum:
		if strings.TrimSpace(s) == "" {
			return record.Null{}
		}
		return record.String(s)

	default:
		return record.String(s)
	}
}

func intOrFloat(n float64) record.Value {
	if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		return record.Int(int64(n))
	}
	return record.Float(n)
}

func asString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case record.String:
		return string(val), true
	}
	return "", false
}

func asNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Float64()
		return n, err == nil
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case record.Int:
		return float64(val), true
	case record.Float:
		return float64(val), true
	}
	return 0, false
}
