package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/fitmerge/internal/record"
)

// Run is one persisted pipeline result.
type Run struct {
	ID        string
	CreatedAt time.Time
	Prefer    string
	Inputs    map[string]string // input slot to path, e.g. "heart_rate_csv"
	Datasets  map[record.Kind]record.Collection
}

// WriteRun persists a run and its merged datasets in one transaction.
// A zero CreatedAt is filled from the store clock. Writing a run whose ID
// already exists changes nothing.
func (s *Store) WriteRun(ctx context.Context, run Run) (err error) {
	if run.ID == "" {
		return fmt.Errorf("write run: empty run id")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}

	inputs, err := json.Marshal(nonNil(run.Inputs))
	if err != nil {
		return fmt.Errorf("write run: marshal inputs: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.exec(ctx, tx, `
		INSERT INTO runs (id, created_at, prefer, inputs)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.Prefer,
		string(inputs),
	); err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	for _, kind := range record.Kinds() {
		c, ok := run.Datasets[kind]
		if !ok {
			continue
		}
		if err = s.writeDataset(ctx, tx, run.ID, kind, c); err != nil {
			return fmt.Errorf("write run %s: %w", kind, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

func (s *Store) writeDataset(ctx context.Context, tx execer, runID string, kind record.Kind, c record.Collection) error {
	fields, err := json.Marshal(nonNilFields(c.Fields))
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	if err := s.exec(ctx, tx, `
		INSERT INTO datasets (run_id, kind, fields)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, runID, string(kind), string(fields)); err != nil {
		return err
	}

	for seq, r := range c.Records {
		payload, err := record.MarshalCanonical(r)
		if err != nil {
			return fmt.Errorf("record %d: %w", seq, err)
		}
		hash, err := record.Hash(r)
		if err != nil {
			return fmt.Errorf("record %d: %w", seq, err)
		}
		if err := s.exec(ctx, tx, `
			INSERT INTO records (run_id, kind, seq, record_hash, payload)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, runID, string(kind), seq, hash, string(payload)); err != nil {
			return fmt.Errorf("record %d: %w", seq, err)
		}
	}
	return nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilFields(f []string) []string {
	if f == nil {
		return []string{}
	}
	return f
}
