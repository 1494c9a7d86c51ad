// Package testutil holds fixtures and helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Sample exports. The CSV and JSON files overlap on one heart rate sample
// (08:01) and one steps sample (08:00) so that a union has duplicates to
// drop.
const (
	HeartRateCSV = `timestamp,heart_rate_bpm,confidence
2024-01-01 08:00:00,72,0.9
2024-01-01 08:01:00,75,0.8
2024-01-01 08:02:00,71,
`
	StepsCSV = `timestamp,steps,cadence
2024-01-01 08:00:00,12,
2024-01-01 08:01:00,40,98
`
	SleepCSV = `timestamp,stage,duration_min
2024-01-01 00:00:00,light,30
2024-01-01 00:30:00,deep,45
`
	FitnessJSON = `{
  "heart_rate_data": [
    {"timestamp": "2024-01-01T08:01:00", "bpm": 75, "confidence": 0.8},
    {"timestamp": "2024-01-01T07:59:00", "bpm": 68}
  ],
  "step_data": [
    {"timestamp": "2024-01-01T08:00:00", "steps": 12}
  ],
  "sleep_data": []
}
`
)

// Inputs are the paths produced by WriteSampleInputs.
type Inputs struct {
	Dir       string
	HeartRate string
	Steps     string
	Sleep     string
	JSON      string
}

// WriteFile writes body to dir/name and returns the full path.
func WriteFile(t testing.TB, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// WriteSampleInputs writes the sample exports into a fresh temp dir.
func WriteSampleInputs(t testing.TB) Inputs {
	t.Helper()
	dir := t.TempDir()
	return Inputs{
		Dir:       dir,
		HeartRate: WriteFile(t, dir, "heart_rate.csv", HeartRateCSV),
		Steps:     WriteFile(t, dir, "steps.csv", StepsCSV),
		Sleep:     WriteFile(t, dir, "sleep.csv", SleepCSV),
		JSON:      WriteFile(t, dir, "fitness.json", FitnessJSON),
	}
}

// Missing returns a path inside a fresh temp dir that does not exist.
func Missing(t testing.TB, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}
