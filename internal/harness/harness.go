package harness

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/fitmerge/internal/pipeline"
	"github.com/roach88/fitmerge/internal/record"
)

// fileNames maps slots to the names used inside the scenario directory.
var fileNames = map[string]string{
	SlotHeartRateCSV: "heart_rate.csv",
	SlotStepsCSV:     "steps.csv",
	SlotSleepCSV:     "sleep.csv",
	SlotJSON:         "fitness.json",
}

// Run executes a scenario in a fresh temp directory and checks its
// expectations. An error means the scenario could not be executed at all;
// failed expectations are reported in the Result.
func Run(scenario *Scenario, opts ...pipeline.Option) (*Result, error) {
	dir, err := os.MkdirTemp("", "fitmerge-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	in, err := materialize(scenario, dir)
	if err != nil {
		return nil, err
	}

	prefer, err := pipeline.ParsePrefer(scenario.Prefer)
	if err != nil {
		return nil, err
	}

	opts = append([]pipeline.Option{
		pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)

	result := NewResult()
	result.Pipeline = pipeline.Run(in, prefer, opts...)
	check(scenario.Expect, result)
	return result, nil
}

// materialize writes the scenario files into dir and returns the inputs.
func materialize(scenario *Scenario, dir string) (pipeline.Inputs, error) {
	paths := make(map[string]string, len(fileNames))
	for slot, body := range scenario.Files {
		path := filepath.Join(dir, fileNames[slot])
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return pipeline.Inputs{}, fmt.Errorf("failed to write %s: %w", slot, err)
		}
		paths[slot] = path
	}
	for _, slot := range scenario.Missing {
		paths[slot] = filepath.Join(dir, "missing", fileNames[slot])
	}

	return pipeline.Inputs{
		CSV: map[record.Kind]string{
			record.KindHeartRate: paths[SlotHeartRateCSV],
			record.KindSteps:     paths[SlotStepsCSV],
			record.KindSleep:     paths[SlotSleepCSV],
		},
		JSON: paths[SlotJSON],
	}, nil
}

func check(expect Expect, result *Result) {
	res := result.Pipeline

	for _, kind := range record.Kinds() {
		de, ok := expect.Datasets[string(kind)]
		if !ok {
			continue
		}
		c := res.Get(kind)

		if de.Count != nil && c.Len() != *de.Count {
			result.AddError("%s: expected %d records, got %d", kind, *de.Count, c.Len())
		}
		if de.Fields != nil && !slices.Equal(de.Fields, c.Fields) {
			result.AddError("%s: expected fields %v, got %v", kind, de.Fields, c.Fields)
		}
		if de.FirstTimestamp != "" {
			checkTimestamp(result, kind, "first", de.FirstTimestamp, c, 0)
		}
		if de.LastTimestamp != "" {
			checkTimestamp(result, kind, "last", de.LastTimestamp, c, c.Len()-1)
		}
		if de.DuplicatesDropped != nil {
			if got := res.Stats[kind].DuplicatesDropped; got != *de.DuplicatesDropped {
				result.AddError("%s: expected %d duplicates dropped, got %d", kind, *de.DuplicatesDropped, got)
			}
		}
	}

	if expect.Diagnostics != nil {
		got := make([]string, len(res.Diagnostics))
		for i, d := range res.Diagnostics {
			got[i] = string(d.Code)
		}
		if !slices.Equal(*expect.Diagnostics, got) {
			result.AddError("expected diagnostics %v, got %v", *expect.Diagnostics, got)
		}
	}
}

func checkTimestamp(result *Result, kind record.Kind, which, want string, c record.Collection, i int) {
	if c.IsEmpty() {
		result.AddError("%s: expected %s timestamp %s, dataset is empty", kind, which, want)
		return
	}
	got := record.Text(c.Records[i][record.FieldTimestamp])
	if got != want {
		result.AddError("%s: expected %s timestamp %s, got %s", kind, which, want, got)
	}
}
