package pipeline

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fitmerge/internal/merge"
	"github.com/roach88/fitmerge/internal/observability"
	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/source"
	"github.com/roach88/fitmerge/internal/testutil"
)

func sampleInputs(t *testing.T) Inputs {
	t.Helper()
	in := testutil.WriteSampleInputs(t)
	return Inputs{
		CSV: map[record.Kind]string{
			record.KindHeartRate: in.HeartRate,
			record.KindSteps:     in.Steps,
			record.KindSleep:     in.Sleep,
		},
		JSON: in.JSON,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func timestamps(c record.Collection) []string {
	out := make([]string, len(c.Records))
	for i, r := range c.Records {
		out[i] = record.Text(r[record.FieldTimestamp])
	}
	return out
}

func TestRunPreferCSV(t *testing.T) {
	res := Run(sampleInputs(t), PreferCSV, WithLogger(quietLogger()))

	assert.Equal(t, 3, res.Get(record.KindHeartRate).Len())
	assert.Equal(t, 2, res.Get(record.KindSteps).Len())
	assert.Equal(t, 2, res.Get(record.KindSleep).Len())
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, res.Sources.Get(SourceCSV, record.KindHeartRate), res.Get(record.KindHeartRate))
}

func TestRunPreferJSONFallsBackPerKind(t *testing.T) {
	res := Run(sampleInputs(t), PreferJSON, WithLogger(quietLogger()))

	assert.Equal(t, 2, res.Get(record.KindHeartRate).Len())
	assert.Equal(t, 1, res.Get(record.KindSteps).Len())
	// sleep_data is an empty array, so CSV fills in.
	assert.Equal(t, 2, res.Get(record.KindSleep).Len())
	assert.Equal(t, res.Sources.Get(SourceCSV, record.KindSleep), res.Get(record.KindSleep))
}

func TestRunPreferBoth(t *testing.T) {
	res := Run(sampleInputs(t), PreferBoth, WithLogger(quietLogger()))

	hr := res.Get(record.KindHeartRate)
	assert.Equal(t, []string{
		"2024-01-01T07:59:00",
		"2024-01-01T08:00:00",
		"2024-01-01T08:01:00",
		"2024-01-01T08:02:00",
	}, timestamps(hr))
	assert.Equal(t, []string{"timestamp", "heart_rate_bpm", "confidence"}, hr.Fields)
	assert.Equal(t, record.Null{}, hr.Records[0]["confidence"])

	assert.Equal(t, merge.Stats{InputA: 3, InputB: 2, Output: 4, DuplicatesDropped: 1}, res.Stats[record.KindHeartRate])
	assert.Equal(t, merge.Stats{InputA: 2, InputB: 1, Output: 2, DuplicatesDropped: 1}, res.Stats[record.KindSteps])
	assert.Equal(t, 2, res.Get(record.KindSleep).Len())
}

func TestRunMissingCSVFallsBackToJSON(t *testing.T) {
	in := sampleInputs(t)
	in.CSV[record.KindHeartRate] = testutil.Missing(t, "heart_rate.csv")

	res := Run(in, PreferCSV, WithLogger(quietLogger()))

	assert.Equal(t, 2, res.Get(record.KindHeartRate).Len())
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, SourceCSV, d.Source)
	assert.Equal(t, record.KindHeartRate, d.Kind)
	assert.Equal(t, source.CodeMissingSource, d.Code)
}

func TestRunNothingAvailable(t *testing.T) {
	in := Inputs{
		CSV: map[record.Kind]string{
			record.KindHeartRate: testutil.Missing(t, "a.csv"),
			record.KindSteps:     testutil.Missing(t, "b.csv"),
			record.KindSleep:     testutil.Missing(t, "c.csv"),
		},
		JSON: testutil.Missing(t, "d.json"),
	}

	for _, prefer := range PreferModes() {
		res := Run(in, prefer, WithLogger(quietLogger()))
		for _, kind := range record.Kinds() {
			c := res.Get(kind)
			assert.True(t, c.IsEmpty())
			assert.Equal(t, kind, c.Kind)
		}
		assert.Len(t, res.Diagnostics, 4)
	}
}

func TestRunEmptyPathsAreNotDiagnostics(t *testing.T) {
	res := Run(Inputs{}, PreferBoth, WithLogger(quietLogger()))

	assert.Empty(t, res.Diagnostics)
	for _, kind := range record.Kinds() {
		assert.True(t, res.Get(kind).IsEmpty())
	}
}

func TestRunMalformedJSONIsWarned(t *testing.T) {
	in := sampleInputs(t)
	in.JSON = testutil.WriteFile(t, t.TempDir(), "bad.json", `[1, 2]`)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	res := Run(in, PreferJSON, WithLogger(logger))

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, source.CodeMalformedSource, res.Diagnostics[0].Code)
	assert.Equal(t, SourceJSON, res.Diagnostics[0].Source)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "code=MALFORMED_SOURCE")
	// JSON is empty for every kind, so CSV is used throughout.
	assert.Equal(t, 3, res.Get(record.KindHeartRate).Len())
}

func TestRunIsIdempotent(t *testing.T) {
	in := sampleInputs(t)

	first := Run(in, PreferBoth, WithLogger(quietLogger()))
	second := Run(in, PreferBoth, WithLogger(quietLogger()))

	for _, kind := range record.Kinds() {
		a, b := first.Get(kind), second.Get(kind)
		require.Equal(t, a.Len(), b.Len())
		for i := range a.Records {
			assert.Equal(t, record.MustHash(a.Records[i]), record.MustHash(b.Records[i]))
		}
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	in := sampleInputs(t)
	in.CSV[record.KindSleep] = testutil.Missing(t, "sleep.csv")
	m := observability.NewMetrics()

	Run(in, PreferBoth, WithLogger(quietLogger()), WithMetrics(m))

	out, err := m.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range out {
		names[mf.GetName()] = true
	}
	assert.True(t, names["fitmerge_source_records_loaded_total"])
	assert.True(t, names["fitmerge_source_load_diagnostics_total"])
	assert.True(t, names["fitmerge_merge_records_output_total"])
	assert.True(t, names["fitmerge_pipeline_runs_total"])

	count, err := promtestutil.GatherAndCount(m.Registry(), "fitmerge_source_load_diagnostics_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunInvalidPreferPanics(t *testing.T) {
	// Merge policy names are not prefer modes.
	for _, mode := range []string{"latest", "union", "prefer_a", "prefer_b"} {
		t.Run(mode, func(t *testing.T) {
			defer func() {
				r := recover()
				require.NotNil(t, r)
				perr, ok := r.(*merge.PolicyError)
				require.True(t, ok)
				assert.Equal(t, mode, perr.Value)
			}()
			Run(Inputs{}, Prefer(mode), WithLogger(quietLogger()))
		})
	}
}

func TestLoadKeepsSourcesSeparate(t *testing.T) {
	sources, diags := Load(sampleInputs(t), WithLogger(quietLogger()))

	assert.Empty(t, diags)
	assert.Equal(t, 3, sources.Get(SourceCSV, record.KindHeartRate).Len())
	assert.Equal(t, 2, sources.Get(SourceJSON, record.KindHeartRate).Len())
	assert.True(t, sources.Get(SourceJSON, record.KindSleep).IsEmpty())
}

func TestParsePrefer(t *testing.T) {
	for _, p := range PreferModes() {
		got, err := ParsePrefer(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
		assert.True(t, got.Policy().Valid())
	}

	_, err := ParsePrefer("yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPrefer))

	assert.Equal(t, merge.PreferA, PreferCSV.Policy())
	assert.Equal(t, merge.PreferB, PreferJSON.Policy())
	assert.Equal(t, merge.Union, PreferBoth.Policy())
	assert.False(t, Prefer("union").Policy().Valid())
}
