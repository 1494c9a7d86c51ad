package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fitmerge/internal/pipeline"
	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/source"
)

// File slot names, shared by files and missing.
const (
	SlotHeartRateCSV = "hr_csv"
	SlotStepsCSV     = "steps_csv"
	SlotSleepCSV     = "sleep_csv"
	SlotJSON         = "json"
)

// Slots returns every file slot in load order.
func Slots() []string {
	return []string{SlotHeartRateCSV, SlotStepsCSV, SlotSleepCSV, SlotJSON}
}

// Scenario is one pipeline example with expectations.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario shows.
	Description string `yaml:"description"`

	// Prefer is the merge mode: csv, json, or both.
	Prefer string `yaml:"prefer"`

	// Files holds inline file contents keyed by slot.
	Files map[string]string `yaml:"files"`

	// Missing lists slots that point at a nonexistent file.
	Missing []string `yaml:"missing,omitempty"`

	// Expect holds the checks run against the pipeline result.
	Expect Expect `yaml:"expect"`
}

// Expect holds scenario expectations.
type Expect struct {
	// Datasets is keyed by dataset kind. Kinds not listed are not checked.
	Datasets map[string]DatasetExpect `yaml:"datasets,omitempty"`

	// Diagnostics lists the expected diagnostic codes in order. Omit to
	// skip the check; use an empty list to require none.
	Diagnostics *[]string `yaml:"diagnostics,omitempty"`
}

// DatasetExpect checks one merged dataset. Unset fields are not checked.
type DatasetExpect struct {
	Count             *int     `yaml:"count,omitempty"`
	Fields            []string `yaml:"fields,omitempty"`
	FirstTimestamp    string   `yaml:"first_timestamp,omitempty"`
	LastTimestamp     string   `yaml:"last_timestamp,omitempty"`
	DuplicatesDropped *int     `yaml:"duplicates_dropped,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file
// name. It stops at the first invalid file.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	scenarios := make([]*Scenario, 0, len(names))
	seen := make(map[string]string)
	for _, name := range names {
		path := filepath.Join(dir, name)
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("%s: duplicate scenario name %q (also in %s)", name, s.Name, prev)
		}
		seen[s.Name] = name
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("name must not contain path separators")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := pipeline.ParsePrefer(s.Prefer); err != nil {
		return err
	}

	for slot := range s.Files {
		if !slices.Contains(Slots(), slot) {
			return fmt.Errorf("files: unknown slot %q", slot)
		}
	}
	for i, slot := range s.Missing {
		if !slices.Contains(Slots(), slot) {
			return fmt.Errorf("missing[%d]: unknown slot %q", i, slot)
		}
		if _, ok := s.Files[slot]; ok {
			return fmt.Errorf("missing[%d]: slot %q also has file contents", i, slot)
		}
	}

	for kind, de := range s.Expect.Datasets {
		if _, err := record.ParseKind(kind); err != nil {
			return fmt.Errorf("expect.datasets: %w", err)
		}
		if de.Count != nil && *de.Count < 0 {
			return fmt.Errorf("expect.datasets.%s: count must be non-negative", kind)
		}
		if de.DuplicatesDropped != nil && *de.DuplicatesDropped < 0 {
			return fmt.Errorf("expect.datasets.%s: duplicates_dropped must be non-negative", kind)
		}
	}

	if s.Expect.Diagnostics != nil {
		for i, code := range *s.Expect.Diagnostics {
			switch source.Code(code) {
			case source.CodeMissingSource, source.CodeMalformedSource, source.CodeUnreadableSource:
			default:
				return fmt.Errorf("expect.diagnostics[%d]: unknown code %q", i, code)
			}
		}
	}
	return nil
}
