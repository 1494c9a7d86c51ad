package merge

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fitmerge/internal/normalize"
	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/schema"
)

// steps builds a normalized steps collection from (timestamp, steps) pairs.
func steps(t *testing.T, rows ...[2]string) record.Collection {
	t.Helper()
	s := schema.Default().MustLookup(record.KindSteps)
	raws := make([]map[string]any, len(rows))
	for i, r := range rows {
		raws[i] = map[string]any{"timestamp": r[0], "steps": r[1]}
	}
	records := normalize.Rows(raws, s)
	return record.Collection{
		Kind:    record.KindSteps,
		Fields:  record.FieldsOf(records, s.FieldNames()),
		Records: records,
	}
}

func timestamps(c record.Collection) []string {
	out := make([]string, len(c.Records))
	for i, r := range c.Records {
		out[i] = record.Text(r["timestamp"])
	}
	return out
}

func hashes(c record.Collection) []string {
	out := make([]string, len(c.Records))
	for i, r := range c.Records {
		out[i] = record.MustHash(r)
	}
	slices.Sort(out)
	return out
}

func TestPreferLaws(t *testing.T) {
	a := steps(t, [2]string{"2024-01-01T08:00:00", "1"})
	b := steps(t, [2]string{"2024-01-01T09:00:00", "2"})
	empty := record.Empty(record.KindSteps)

	assert.Equal(t, a, Merge(a, b, PreferA))
	assert.Equal(t, b, Merge(empty, b, PreferA))
	assert.Equal(t, b, Merge(a, b, PreferB))
	assert.Equal(t, a, Merge(a, empty, PreferB))
	assert.True(t, Merge(empty, empty, PreferA).IsEmpty())
	assert.Equal(t, record.KindSteps, Merge(empty, empty, PreferB).Kind)
}

func TestUnionWithEmptyReturnsOther(t *testing.T) {
	a := steps(t, [2]string{"2024-01-01T09:00:00", "1"}, [2]string{"2024-01-01T08:00:00", "2"})
	empty := record.Empty(record.KindSteps)

	// Unchanged means no sort either.
	assert.Equal(t, a, Merge(a, empty, Union))
	assert.Equal(t, a, Merge(empty, a, Union))
}

func TestUnionDisjointIsSortedConcatenation(t *testing.T) {
	a := steps(t, [2]string{"2024-01-01T08:00:00", "1"}, [2]string{"2024-01-01T08:02:00", "3"})
	b := steps(t, [2]string{"2024-01-01T08:01:00", "2"}, [2]string{"2024-01-01T08:03:00", "4"})

	got, stats := MergeWithStats(a, b, Union)

	assert.Equal(t, []string{
		"2024-01-01T08:00:00",
		"2024-01-01T08:01:00",
		"2024-01-01T08:02:00",
		"2024-01-01T08:03:00",
	}, timestamps(got))
	assert.Equal(t, Stats{InputA: 2, InputB: 2, Output: 4}, stats)
}

func TestUnionCollapsesDuplicates(t *testing.T) {
	a := steps(t, [2]string{"2024-01-01T08:00:00", "10"}, [2]string{"2024-01-01T08:01:00", "11"})
	b := steps(t, [2]string{"2024-01-01 08:00:00", "10"})

	got, stats := MergeWithStats(a, b, Union)

	require.Equal(t, 2, got.Len())
	assert.Equal(t, 1, stats.DuplicatesDropped)
	assert.Equal(t, []string{"2024-01-01T08:00:00", "2024-01-01T08:01:00"}, timestamps(got))
}

func TestUnionDuplicatesCompareCanonicalText(t *testing.T) {
	note := func(text string) record.Collection {
		c := steps(t, [2]string{"2024-01-01T08:00:00", "10"})
		c.Records[0]["note"] = record.String(text)
		c.Fields = append(c.Fields, "note")
		return c
	}
	// Composed and decomposed spellings of "café" are one value.
	got, stats := MergeWithStats(note("caf\u00e9"), note("cafe\u0301"), Union)
	assert.Equal(t, 1, got.Len())
	assert.Equal(t, 1, stats.DuplicatesDropped)

	got = Merge(note("cafe"), note("café"), Union)
	assert.Equal(t, 2, got.Len())
}

func TestUnionKeepsSameTimestampDifferentValues(t *testing.T) {
	a := steps(t, [2]string{"2024-01-01T08:00:00", "10"})
	b := steps(t, [2]string{"2024-01-01T08:00:00", "12"})

	got := Merge(a, b, Union)

	require.Equal(t, 2, got.Len())
	assert.Equal(t, record.Int(10), got.Records[0]["steps"])
	assert.Equal(t, record.Int(12), got.Records[1]["steps"])
}

func TestUnionIsCommutativeOnContent(t *testing.T) {
	a := steps(t, [2]string{"2024-01-01T08:00:00", "1"}, [2]string{"2024-01-01T08:05:00", "5"})
	b := steps(t, [2]string{"2024-01-01T08:05:00", "5"}, [2]string{"2024-01-01T08:03:00", "3"})

	ab := Merge(a, b, Union)
	ba := Merge(b, a, Union)

	assert.Equal(t, hashes(ab), hashes(ba))
	assert.Equal(t, timestamps(ab), timestamps(ba))
}

func TestUnionIsIdempotent(t *testing.T) {
	a := steps(t, [2]string{"2024-01-01T08:00:00", "1"}, [2]string{"2024-01-01T08:01:00", "2"})

	got := Merge(a, a, Union)

	assert.Equal(t, a.Fields, got.Fields)
	assert.Equal(t, hashes(a), hashes(got))
	assert.Equal(t, timestamps(a), timestamps(got))
}

func TestUnionUnparsableTimestampsSortLast(t *testing.T) {
	a := steps(t, [2]string{"not a time", "1"}, [2]string{"2024-01-01T09:00:00", "2"})
	b := steps(t, [2]string{"2024-01-01T08:00:00", "3"}, [2]string{"", "4"})

	got := Merge(a, b, Union)

	assert.Equal(t, []string{
		"2024-01-01T08:00:00",
		"2024-01-01T09:00:00",
		"not a time",
		"",
	}, timestamps(got))
}

func TestUnionComparesZonedAndNaiveByInstant(t *testing.T) {
	a := steps(t, [2]string{"2024-01-01T08:30:00", "1"})
	b := steps(t, [2]string{"2024-01-01T09:00:00+02:00", "2"})

	got := Merge(a, b, Union)

	// 09:00+02:00 is 07:00 UTC.
	assert.Equal(t, []string{"2024-01-01T09:00:00+02:00", "2024-01-01T08:30:00"}, timestamps(got))
}

func TestUnionFieldSetIsUnion(t *testing.T) {
	s := schema.Default().MustLookup(record.KindSteps)
	a := record.Collection{
		Kind:    record.KindSteps,
		Fields:  []string{"timestamp", "steps"},
		Records: normalize.Rows([]map[string]any{{"timestamp": "2024-01-01T08:00:00", "steps": "1"}}, s),
	}
	b := record.Collection{
		Kind:    record.KindSteps,
		Fields:  []string{"timestamp", "steps", "cadence"},
		Records: normalize.Rows([]map[string]any{{"timestamp": "2024-01-01T08:01:00", "steps": "2", "cadence": "90"}}, s),
	}

	got := Merge(a, b, Union)

	assert.Equal(t, []string{"timestamp", "steps", "cadence"}, got.Fields)
	for _, r := range got.Records {
		_, ok := r["cadence"]
		assert.True(t, ok)
	}
	assert.Equal(t, record.Null{}, got.Records[0]["cadence"])
	assert.Equal(t, record.Int(90), got.Records[1]["cadence"])

	// Inputs untouched.
	_, ok := a.Records[0]["cadence"]
	assert.False(t, ok)
}

func TestUnionWithoutTimestampKeepsOrder(t *testing.T) {
	a := record.Collection{
		Kind:    record.KindSteps,
		Fields:  []string{"steps"},
		Records: []record.Record{{"steps": record.Int(3)}, {"steps": record.Int(1)}},
	}
	b := record.Collection{
		Kind:    record.KindSteps,
		Fields:  []string{"steps"},
		Records: []record.Record{{"steps": record.Int(2)}, {"steps": record.Int(3)}},
	}

	got := Merge(a, b, Union)

	require.Equal(t, 3, got.Len())
	assert.Equal(t, record.Int(3), got.Records[0]["steps"])
	assert.Equal(t, record.Int(1), got.Records[1]["steps"])
	assert.Equal(t, record.Int(2), got.Records[2]["steps"])
}

func TestMergeInvalidPolicyPanics(t *testing.T) {
	a := steps(t, [2]string{"2024-01-01T08:00:00", "1"})

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*PolicyError)
		require.True(t, ok, "panic value %T", r)
		assert.Equal(t, "latest", err.Value)
	}()
	Merge(a, a, Policy("latest"))
}

func TestParsePolicy(t *testing.T) {
	for _, p := range Policies() {
		got, err := ParsePolicy(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParsePolicy("csv")
	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), `"csv"`)
}
