package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Value is a sealed interface over the values a record field may hold.
// Only Null, String, Int, Float, Bool, Time, List and Object implement it.
type Value interface {
	recordValue() // Sealed
}

// Null marks a field that is present in the field set but unset for this
// record. Reindexing a record onto a wider field set fills the gaps with Null.
type Null struct{}

func (Null) recordValue() {}

// String is a text value. Timestamps that failed to parse stay Strings.
type String string

func (String) recordValue() {}

// Int is an integral number.
type Int int64

func (Int) recordValue() {}

// Float is a non-integral number such as a confidence score.
type Float float64

func (Float) recordValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) recordValue() {}

// List is an ordered sequence of values. Only unknown pass-through fields
// ever hold one.
type List []Value

func (List) recordValue() {}

// Object is a nested map. Only unknown pass-through fields ever hold one.
type Object map[string]Value

func (Object) recordValue() {}

// Time is a parsed instant. Zoned reports whether the source text carried
// a UTC offset; naive timestamps are held in UTC and rendered without one.
type Time struct {
	t     time.Time
	zoned bool
}

func (Time) recordValue() {}

const (
	naiveLayout = "2006-01-02T15:04:05.999999999"
	zonedLayout = "2006-01-02T15:04:05.999999999Z07:00"
)

// NewTime wraps t. When zoned is false the wall clock of t is kept and its
// location dropped.
func NewTime(t time.Time, zoned bool) Time {
	if !zoned {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	return Time{t: t, zoned: zoned}
}

// Time returns the underlying instant.
func (v Time) Time() time.Time { return v.t }

// Zoned reports whether the value carries an explicit offset.
func (v Time) Zoned() bool { return v.zoned }

// String renders the value in ISO-8601 form.
func (v Time) String() string {
	if v.zoned {
		return v.t.Format(zonedLayout)
	}
	return v.t.Format(naiveLayout)
}

// Equal reports whether two times render identically.
func (v Time) Equal(other Time) bool {
	return v.zoned == other.zoned && v.t.Equal(other.t)
}

// FromAny converts a decoded JSON or YAML value into a Value.
// json.Number values become Int when integral and Float otherwise.
// Unsupported Go types are rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return Int(int64(val)), nil
		}
		return Float(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Float(f), nil
	case time.Time:
		return NewTime(val, true), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			item, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = item
		}
		return list, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			item, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = item
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// Text renders a value for display. Null renders as an empty string.
func Text(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Time:
		return val.String()
	default:
		b, err := MarshalValue(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// MarshalValue marshals a Value to JSON bytes. Time values are written as
// ISO-8601 strings. This is not the canonical form; use MarshalCanonical
// for identity.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Float:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, fmt.Errorf("non-finite float %v", float64(val))
		}
		return json.Marshal(float64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Time:
		return json.Marshal(val.String())
	case List:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case Object:
		return Record(val).MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// DecodeValue decodes a single JSON value, keeping integers exact.
func DecodeValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}
