package normalize

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/schema"
)

func heartRate(t *testing.T) schema.Schema {
	t.Helper()
	return schema.Default().MustLookup(record.KindHeartRate)
}

func decodeJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw map[string]any
	require.NoError(t, dec.Decode(&raw))
	return raw
}

func TestRowRenamesAlias(t *testing.T) {
	raw := decodeJSON(t, `{"timestamp":"2024-01-01T08:00:00","bpm":72,"confidence":0.9}`)

	r := Row(raw, heartRate(t))

	_, hasAlias := r.Get("bpm")
	assert.False(t, hasAlias)
	assert.Equal(t, record.Int(72), r["heart_rate_bpm"])
	assert.Equal(t, record.Float(0.9), r["confidence"])

	ts, ok := r["timestamp"].(record.Time)
	require.True(t, ok)
	assert.False(t, ts.Zoned())
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), ts.Time())
}

func TestRowKeepsAliasWhenCanonicalPresent(t *testing.T) {
	raw := map[string]any{
		"timestamp":      "2024-01-01T08:00:00",
		"bpm":            "70",
		"heart_rate_bpm": "72",
	}

	r := Row(raw, heartRate(t))

	assert.Equal(t, record.Int(72), r["heart_rate_bpm"])
	assert.Equal(t, record.String("70"), r["bpm"])
}

func TestRowCSVAndJSONAgree(t *testing.T) {
	s := heartRate(t)
	fromJSON := Row(decodeJSON(t, `{"timestamp":"2024-01-01T08:00:00","bpm":72,"confidence":0.9}`), s)
	fromCSV := Row(map[string]any{
		"timestamp":      "2024-01-01 08:00:00",
		"heart_rate_bpm": "72",
		"confidence":     "0.9",
	}, s)

	assert.Equal(t, record.MustHash(fromJSON), record.MustHash(fromCSV))
}

func TestRowUnparsableTimestampKeptVerbatim(t *testing.T) {
	r := Row(map[string]any{"timestamp": "yesterday", "heart_rate_bpm": "60"}, heartRate(t))

	assert.Equal(t, record.String("yesterday"), r["timestamp"])
	_, ok := r.Timestamp()
	assert.False(t, ok)
}

func TestRowCoercion(t *testing.T) {
	s := schema.Default().MustLookup(record.KindSteps)

	tests := []struct {
		name  string
		field string
		in    any
		want  record.Value
	}{
		{"csv int", "steps", "120", record.Int(120)},
		{"csv int with spaces", "steps", " 120 ", record.Int(120)},
		{"csv integral float", "steps", "120.0", record.Int(120)},
		{"csv fractional", "steps", "120.5", record.Float(120.5)},
		{"csv garbage", "steps", "many", record.String("many")},
		{"csv empty", "cadence", "", record.Null{}},
		{"json number", "steps", json.Number("42"), record.Int(42)},
		{"json null", "cadence", nil, record.Null{}},
		{"json bool", "steps", true, record.Bool(true)},
		{"unknown field stays text", "device", "42", record.String("42")},
		{"unknown json number", "device", json.Number("7"), record.Int(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Row(map[string]any{tt.field: tt.in}, s)
			assert.Equal(t, tt.want, r[tt.field])
		})
	}
}

func TestRowFloatFieldFromInteger(t *testing.T) {
	r := Row(decodeJSON(t, `{"confidence":1}`), heartRate(t))
	assert.Equal(t, record.Float(1), r["confidence"])
}

func TestRowEnumEmptyIsNull(t *testing.T) {
	s := schema.Default().MustLookup(record.KindSleep)
	r := Row(map[string]any{"stage": "", "duration_min": "30"}, s)
	assert.Equal(t, record.Null{}, r["stage"])
	assert.Equal(t, record.Int(30), r["duration_min"])
}

func TestRowsPreservesOrder(t *testing.T) {
	raws := []map[string]any{
		{"timestamp": "2024-01-01T09:00:00"},
		{"timestamp": "2024-01-01T08:00:00"},
	}
	rows := Rows(raws, heartRate(t))
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-01T09:00:00", record.Text(rows[0]["timestamp"]))
	assert.Equal(t, "2024-01-01T08:00:00", record.Text(rows[1]["timestamp"]))
}

func TestRecordRestoresTimestamps(t *testing.T) {
	var decoded record.Record
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"2024-01-01T08:00:00","heart_rate_bpm":72}`), &decoded))
	assert.IsType(t, record.String(""), decoded["timestamp"])

	r := Record(decoded, heartRate(t))
	assert.IsType(t, record.Time{}, r["timestamp"])
	assert.Equal(t, record.Int(72), r["heart_rate_bpm"])
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in    string
		ok    bool
		zoned bool
		want  string
	}{
		{"2024-01-01T08:00:00", true, false, "2024-01-01T08:00:00"},
		{"2024-01-01 08:00:00", true, false, "2024-01-01T08:00:00"},
		{"2024-01-01T08:00:00.250", true, false, "2024-01-01T08:00:00.25"},
		{"2024-01-01T08:00", true, false, "2024-01-01T08:00:00"},
		{"2024-01-01", true, false, "2024-01-01T00:00:00"},
		{"2024-01-01T08:00:00Z", true, true, "2024-01-01T08:00:00Z"},
		{"2024-01-01T08:00:00+02:00", true, true, "2024-01-01T08:00:00+02:00"},
		{"2024-01-01T08:00:00+0530", true, true, "2024-01-01T08:00:00+05:30"},
		{"2024-01-01 08:00:00-0700", true, true, "2024-01-01T08:00:00-07:00"},
		{"2024-01-01T08:00+0100", true, true, "2024-01-01T08:00:00+01:00"},
		{"2024-01-01T08:00:00+02", true, true, "2024-01-01T08:00:00+02:00"},
		{"20240101T080000", true, false, "2024-01-01T08:00:00"},
		{"20240101T080000Z", true, true, "2024-01-01T08:00:00Z"},
		{"20240101T080000+0530", true, true, "2024-01-01T08:00:00+05:30"},
		{"20240101", true, false, "2024-01-01T00:00:00"},
		{" 2024-01-01T08:00:00 ", true, false, "2024-01-01T08:00:00"},
		{"01/02/2024", false, false, ""},
		{"", false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ts, ok := ParseTimestamp(tt.in)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.zoned, ts.Zoned())
			assert.Equal(t, tt.want, ts.String())
		})
	}
}
