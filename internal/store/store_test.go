package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fitmerge/internal/normalize"
	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/schema"
	"github.com/roach88/fitmerge/internal/testutil"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// createTestStore opens a fresh SQLite store with a deterministic clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(testutil.NewStepClock(epoch, time.Minute).Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func heartRateCollection(t *testing.T) record.Collection {
	t.Helper()
	s := schema.Default().MustLookup(record.KindHeartRate)
	records := normalize.Rows([]map[string]any{
		{"timestamp": "2024-01-01T08:00:00", "heart_rate_bpm": "72", "confidence": "0.9"},
		{"timestamp": "2024-01-01T09:00:00+02:00", "heart_rate_bpm": "70", "confidence": ""},
		{"timestamp": "sometime", "heart_rate_bpm": "lots", "device": "band"},
	}, s)
	return record.Collection{
		Kind:    record.KindHeartRate,
		Fields:  []string{"timestamp", "heart_rate_bpm", "confidence", "device"},
		Records: records,
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	assert.Equal(t, DialectSQLite, s.Dialect())
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.expected); err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	require.Error(t, err)
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, DialectPostgres, DialectFor("postgres://u:p@localhost/db"))
	assert.Equal(t, DialectPostgres, DialectFor("postgresql://localhost/db"))
	assert.Equal(t, DialectSQLite, DialectFor("runs.db"))
	assert.Equal(t, DialectSQLite, DialectFor("file:runs.db?cache=shared"))
}

func TestRebind(t *testing.T) {
	sqlite := &Store{dialect: DialectSQLite}
	pg := &Store{dialect: DialectPostgres}
	q := "SELECT a FROM t WHERE x = ? AND y = ?"

	assert.Equal(t, q, sqlite.rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind(q))
}

func TestWriteAndReadRun(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	hr := heartRateCollection(t)

	run := Run{
		ID:     "run-1",
		Prefer: "both",
		Inputs: map[string]string{"heart_rate_csv": "hr.csv", "json": "fitness.json"},
		Datasets: map[record.Kind]record.Collection{
			record.KindHeartRate: hr,
			record.KindSteps:     record.Empty(record.KindSteps),
		},
	}
	require.NoError(t, s.WriteRun(ctx, run))

	got, err := s.ReadRun(ctx, "run-1", schema.Default())
	require.NoError(t, err)

	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "both", got.Prefer)
	assert.Equal(t, epoch, got.CreatedAt)
	assert.Equal(t, run.Inputs, got.Inputs)

	gotHR := got.Datasets[record.KindHeartRate]
	assert.Equal(t, hr.Fields, gotHR.Fields)
	require.Equal(t, hr.Len(), gotHR.Len())
	for i := range hr.Records {
		assert.Equal(t, record.MustHash(hr.Records[i]), record.MustHash(gotHR.Records[i]), "record %d", i)
	}
	assert.IsType(t, record.Time{}, gotHR.Records[0]["timestamp"])
	assert.Equal(t, record.Float(0.9), gotHR.Records[0]["confidence"])
	assert.Equal(t, "2024-01-01T09:00:00+02:00", record.Text(gotHR.Records[1]["timestamp"]))
	assert.Equal(t, record.String("sometime"), gotHR.Records[2]["timestamp"])

	steps, ok := got.Datasets[record.KindSteps]
	require.True(t, ok)
	assert.True(t, steps.IsEmpty())
	_, ok = got.Datasets[record.KindSleep]
	assert.False(t, ok)
}

func TestWriteRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	run := Run{
		ID:       "run-1",
		Prefer:   "csv",
		Datasets: map[record.Kind]record.Collection{record.KindHeartRate: heartRateCollection(t)},
	}

	require.NoError(t, s.WriteRun(ctx, run))
	require.NoError(t, s.WriteRun(ctx, run))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Counts[record.KindHeartRate])
}

func TestWriteRun_EmptyID(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteRun(context.Background(), Run{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty run id")
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	require.NoError(t, s.WriteRun(ctx, Run{ID: "b", Prefer: "json"}))
	require.NoError(t, s.WriteRun(ctx, Run{ID: "a", Prefer: "csv", Datasets: map[record.Kind]record.Collection{
		record.KindHeartRate: heartRateCollection(t),
	}}))

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Oldest first, not by ID.
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, epoch, runs[0].CreatedAt)
	assert.Empty(t, runs[0].Counts)
	assert.Equal(t, map[string]string{}, runs[0].Inputs)

	assert.Equal(t, "a", runs[1].ID)
	assert.Equal(t, epoch.Add(time.Minute), runs[1].CreatedAt)
	assert.Equal(t, map[record.Kind]int{record.KindHeartRate: 3}, runs[1].Counts)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "nope", schema.Default())
	require.ErrorIs(t, err, ErrRunNotFound)
	assert.Contains(t, err.Error(), "nope")
}

func TestReadRun_DetectsTamperedPayload(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.WriteRun(ctx, Run{ID: "run-1", Prefer: "csv", Datasets: map[record.Kind]record.Collection{
		record.KindHeartRate: heartRateCollection(t),
	}}))

	_, err := s.db.Exec(`UPDATE records SET payload = '{"heart_rate_bpm":1}' WHERE seq = 0`)
	require.NoError(t, err)

	_, err = s.ReadRun(ctx, "run-1", schema.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stored hash does not match")
}
