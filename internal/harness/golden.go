package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fitmerge/internal/merge"
	"github.com/roach88/fitmerge/internal/pipeline"
	"github.com/roach88/fitmerge/internal/record"
)

// Snapshot is the deterministic view of a pipeline result stored in golden
// files. Paths are left out since scenarios run in temp directories.
type Snapshot struct {
	Scenario    string               `json:"scenario"`
	Prefer      string               `json:"prefer"`
	Datasets    []DatasetSnapshot    `json:"datasets"`
	Diagnostics []DiagnosticSnapshot `json:"diagnostics"`
}

// DatasetSnapshot holds one merged dataset with records in canonical form.
type DatasetSnapshot struct {
	Kind    record.Kind       `json:"kind"`
	Fields  []string          `json:"fields"`
	Stats   merge.Stats       `json:"stats"`
	Records []json.RawMessage `json:"records"`
}

// DiagnosticSnapshot is a Diagnostic without its path and message.
type DiagnosticSnapshot struct {
	Source pipeline.Source `json:"source"`
	Kind   record.Kind     `json:"kind,omitempty"`
	Code   string          `json:"code"`
}

// NewSnapshot builds a snapshot of res. Datasets appear in kind order.
func NewSnapshot(name string, res pipeline.Result) (*Snapshot, error) {
	snap := &Snapshot{
		Scenario:    name,
		Prefer:      string(res.Prefer),
		Datasets:    make([]DatasetSnapshot, 0, len(record.Kinds())),
		Diagnostics: make([]DiagnosticSnapshot, 0, len(res.Diagnostics)),
	}

	for _, kind := range record.Kinds() {
		c := res.Get(kind)
		ds := DatasetSnapshot{
			Kind:    kind,
			Fields:  c.Fields,
			Stats:   res.Stats[kind],
			Records: make([]json.RawMessage, 0, c.Len()),
		}
		if ds.Fields == nil {
			ds.Fields = []string{}
		}
		for i, r := range c.Records {
			b, err := record.MarshalCanonical(r)
			if err != nil {
				return nil, fmt.Errorf("%s record %d: %w", kind, i, err)
			}
			ds.Records = append(ds.Records, b)
		}
		snap.Datasets = append(snap.Datasets, ds)
	}

	for _, d := range res.Diagnostics {
		snap.Diagnostics = append(snap.Diagnostics, DiagnosticSnapshot{
			Source: d.Source,
			Kind:   d.Kind,
			Code:   string(d.Code),
		})
	}
	return snap, nil
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s *Snapshot) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// RunWithGolden runs a scenario, fails t on any unmet expectation, and
// compares its snapshot against testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...pipeline.Option) error {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("scenario %s: %s", scenario.Name, msg)
	}

	snap, err := NewSnapshot(scenario.Name, result.Pipeline)
	if err != nil {
		return err
	}
	AssertGolden(t, scenario.Name, snap)
	return nil
}

// AssertGolden compares a snapshot against its golden file.
func AssertGolden(t *testing.T, name string, snap *Snapshot) {
	t.Helper()

	data, err := snap.Marshal()
	if err != nil {
		t.Fatalf("failed to marshal snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
