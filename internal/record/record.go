package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
	"unicode/utf16"
)

// Record is one canonical telemetry sample. Keys are field names.
// Use SortedKeys for deterministic iteration.
type Record map[string]Value

// Get returns the value of a field and whether the field is present.
func (r Record) Get(field string) (Value, bool) {
	v, ok := r[field]
	return v, ok
}

// Clone returns a shallow copy. Values are immutable so this is enough to
// let callers add fields without touching the original.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Timestamp returns the parsed instant of the timestamp field. It reports
// false when the field is absent, null, or holds an unparsed string.
func (r Record) Timestamp() (time.Time, bool) {
	v, ok := r[FieldTimestamp]
	if !ok {
		return time.Time{}, false
	}
	ts, ok := v.(Time)
	if !ok {
		return time.Time{}, false
	}
	return ts.Time(), true
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (r Record) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// compareKeysUTF16 orders strings by UTF-16 code units as RFC 8785 requires.
// Plain Go string comparison orders by UTF-8 bytes, which differs for
// characters outside the BMP.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// MarshalJSON writes the record with sorted keys.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range r.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(r[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object. Timestamps come back as String
// values; run them through the normalizer to restore Time values.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = make(Record, len(raw))
	for k, v := range raw {
		val, err := DecodeValue(v)
		if err != nil {
			return fmt.Errorf("record key %q: %w", k, err)
		}
		(*r)[k] = val
	}
	return nil
}

// Reindex returns a copy of r that holds every field in fields. Fields
// missing from r are set to Null. Fields of r outside the list are kept.
func (r Record) Reindex(fields []string) Record {
	out := r.Clone()
	for _, f := range fields {
		if _, ok := out[f]; !ok {
			out[f] = Null{}
		}
	}
	return out
}
