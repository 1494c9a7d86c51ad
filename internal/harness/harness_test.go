package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fitmerge/internal/pipeline"
	"github.com/roach88/fitmerge/internal/record"
)

const scenarioDir = "testdata/scenarios"

func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestScenarios(t *testing.T) {
	scenarios, err := LoadDir(scenarioDir)
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestGolden_UnionHeartRate(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenarioDir, "01-union-heart-rate.yaml"))
	require.NoError(t, err)
	require.NoError(t, RunWithGolden(t, s))
}

func TestLoadDir_SortedByFileName(t *testing.T) {
	scenarios, err := LoadDir(scenarioDir)
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"union-heart-rate", "prefer-csv-fallback", "malformed-json"}, names)
}

func TestLoadDir_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	body := "name: same\ndescription: d\nprefer: csv\n"
	writeScenario(t, dir, "a.yaml", body)
	writeScenario(t, dir, "b.yml", body)
	writeScenario(t, dir, "notes.txt", "ignored")

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate scenario name "same"`)
}

func TestLoadDir_MissingDir(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "unknown key",
			body:    "name: x\ndescription: d\nprefer: csv\nprefre: json\n",
			wantErr: "field prefre not found",
		},
		{
			name:    "missing name",
			body:    "description: d\nprefer: csv\n",
			wantErr: "name is required",
		},
		{
			name:    "name with separator",
			body:    "name: a/b\ndescription: d\nprefer: csv\n",
			wantErr: "path separators",
		},
		{
			name:    "missing description",
			body:    "name: x\nprefer: csv\n",
			wantErr: "description is required",
		},
		{
			name:    "bad prefer",
			body:    "name: x\ndescription: d\nprefer: newest\n",
			wantErr: "must be one of csv, json, both",
		},
		{
			name:    "unknown file slot",
			body:    "name: x\ndescription: d\nprefer: csv\nfiles:\n  hr: abc\n",
			wantErr: `unknown slot "hr"`,
		},
		{
			name:    "missing slot with contents",
			body:    "name: x\ndescription: d\nprefer: csv\nfiles:\n  json: '{}'\nmissing: [json]\n",
			wantErr: "also has file contents",
		},
		{
			name:    "unknown kind",
			body:    "name: x\ndescription: d\nprefer: csv\nexpect:\n  datasets:\n    calories: {count: 1}\n",
			wantErr: `unknown dataset kind "calories"`,
		},
		{
			name:    "negative count",
			body:    "name: x\ndescription: d\nprefer: csv\nexpect:\n  datasets:\n    steps: {count: -1}\n",
			wantErr: "count must be non-negative",
		},
		{
			name:    "unknown diagnostic",
			body:    "name: x\ndescription: d\nprefer: csv\nexpect:\n  diagnostics: [GONE]\n",
			wantErr: `unknown code "GONE"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.yaml", tt.body)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	count := 5
	dropped := 2
	none := []string{}
	s := &Scenario{
		Name:        "wrong",
		Description: "every expectation is off",
		Prefer:      "csv",
		Files: map[string]string{
			SlotHeartRateCSV: "timestamp,heart_rate_bpm\n2024-01-01 08:00:00,72\n",
		},
		Missing: []string{SlotJSON},
		Expect: Expect{
			Datasets: map[string]DatasetExpect{
				"heart_rate": {
					Count:             &count,
					Fields:            []string{"timestamp"},
					FirstTimestamp:    "2024-01-01T09:00:00",
					DuplicatesDropped: &dropped,
				},
				"sleep": {LastTimestamp: "2024-01-01T00:00:00"},
			},
			Diagnostics: &none,
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{
		"heart_rate: expected 5 records, got 1",
		"heart_rate: expected fields [timestamp], got [timestamp heart_rate_bpm]",
		"heart_rate: expected first timestamp 2024-01-01T09:00:00, got 2024-01-01T08:00:00",
		"heart_rate: expected 2 duplicates dropped, got 0",
		"sleep: expected last timestamp 2024-01-01T00:00:00, dataset is empty",
		"expected diagnostics [], got [MISSING_SOURCE]",
	}, result.Errors)
}

func TestRun_OmittedSlotsAreNotLoaded(t *testing.T) {
	s := &Scenario{Name: "empty", Description: "no files", Prefer: "both"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Empty(t, result.Pipeline.Diagnostics)
	for _, kind := range record.Kinds() {
		assert.True(t, result.Pipeline.Get(kind).IsEmpty(), kind)
	}
}

func TestNewSnapshot_EmptyResult(t *testing.T) {
	snap, err := NewSnapshot("empty", pipeline.Result{Prefer: pipeline.PreferJSON})
	require.NoError(t, err)

	data, err := snap.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"prefer": "json"`)
	assert.Contains(t, string(data), `"fields": []`)
	assert.Contains(t, string(data), `"records": []`)
	assert.Contains(t, string(data), `"diagnostics": []`)
	assert.Len(t, snap.Datasets, len(record.Kinds()))
}
