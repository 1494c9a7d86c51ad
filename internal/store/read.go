package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/fitmerge/internal/normalize"
	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/schema"
)

// ErrRunNotFound is returned by ReadRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// RunSummary describes a stored run without its records.
type RunSummary struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Prefer    string              `json:"prefer"`
	Inputs    map[string]string   `json:"inputs"`
	Counts    map[record.Kind]int `json:"counts"`
}

// ListRuns returns every stored run, oldest first.
//
// Returns an empty slice (not nil) when the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, prefer, inputs
		FROM runs
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	index := make(map[string]int)
	for rows.Next() {
		sum, err := scanRunSummary(rows)
		if err != nil {
			return nil, err
		}
		index[sum.ID] = len(runs)
		runs = append(runs, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	counts, err := s.db.QueryContext(ctx, `
		SELECT run_id, kind, COUNT(*)
		FROM records
		GROUP BY run_id, kind
	`)
	if err != nil {
		return nil, fmt.Errorf("query record counts: %w", err)
	}
	defer counts.Close()

	for counts.Next() {
		var runID, kind string
		var n int
		if err := counts.Scan(&runID, &kind, &n); err != nil {
			return nil, fmt.Errorf("scan record count: %w", err)
		}
		if i, ok := index[runID]; ok {
			runs[i].Counts[record.Kind(kind)] = n
		}
	}
	if err := counts.Err(); err != nil {
		return nil, fmt.Errorf("iterate record counts: %w", err)
	}
	return runs, nil
}

// ReadRun loads a stored run. Records are re-normalized against reg so
// timestamps come back as parsed times.
func (s *Store) ReadRun(ctx context.Context, id string, reg schema.Registry) (Run, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, created_at, prefer, inputs
		FROM runs
		WHERE id = ?
	`), id)
	sum, err := scanRunSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}

	run := Run{
		ID:        sum.ID,
		CreatedAt: sum.CreatedAt,
		Prefer:    sum.Prefer,
		Inputs:    sum.Inputs,
		Datasets:  make(map[record.Kind]record.Collection),
	}

	if err := s.readDatasets(ctx, &run); err != nil {
		return Run{}, err
	}
	if err := s.readRecords(ctx, &run, reg); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) readDatasets(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT kind, fields
		FROM datasets
		WHERE run_id = ?
		ORDER BY kind ASC
	`), run.ID)
	if err != nil {
		return fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, fieldsJSON string
		if err := rows.Scan(&kind, &fieldsJSON); err != nil {
			return fmt.Errorf("scan dataset: %w", err)
		}
		var fields []string
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return fmt.Errorf("unmarshal fields for %s: %w", kind, err)
		}
		c := record.Empty(record.Kind(kind))
		if len(fields) > 0 {
			c.Fields = fields
		}
		run.Datasets[c.Kind] = c
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate datasets: %w", err)
	}
	return nil
}

func (s *Store) readRecords(ctx context.Context, run *Run, reg schema.Registry) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT kind, seq, record_hash, payload
		FROM records
		WHERE run_id = ?
		ORDER BY kind ASC, seq ASC
	`), run.ID)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, hash, payload string
		var seq int
		if err := rows.Scan(&kind, &seq, &hash, &payload); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}

		var r record.Record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return fmt.Errorf("unmarshal record %s/%d: %w", kind, seq, err)
		}
		if sch, ok := reg[record.Kind(kind)]; ok {
			r = normalize.Record(r, sch)
		}
		if got, err := record.Hash(r); err != nil || got != hash {
			return fmt.Errorf("record %s/%d: stored hash does not match payload", kind, seq)
		}

		c, ok := run.Datasets[record.Kind(kind)]
		if !ok {
			c = record.Empty(record.Kind(kind))
		}
		c.Records = append(c.Records, r)
		run.Datasets[c.Kind] = c
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate records: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRunSummary(row scanner) (RunSummary, error) {
	var sum RunSummary
	var createdAt, inputs string
	if err := row.Scan(&sum.ID, &createdAt, &sum.Prefer, &inputs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sum, err
		}
		return sum, fmt.Errorf("scan run: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return sum, fmt.Errorf("parse created_at of run %s: %w", sum.ID, err)
	}
	sum.CreatedAt = t

	if err := json.Unmarshal([]byte(inputs), &sum.Inputs); err != nil {
		return sum, fmt.Errorf("unmarshal inputs of run %s: %w", sum.ID, err)
	}
	sum.Counts = make(map[record.Kind]int)
	return sum, nil
}
