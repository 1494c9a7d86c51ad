// Package pipeline loads both fitness sources and merges them per dataset
// kind.
//
// Run never fails on bad data. Missing, malformed, and unreadable files
// become empty collections and are reported as Diagnostics.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/fitmerge/internal/merge"
	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/source"
)

// Source names where a collection came from.
type Source string

const (
	SourceCSV  Source = "csv"
	SourceJSON Source = "json"
)

// Default input paths, relative to the working directory.
const (
	DefaultHeartRateCSV = "sample_heart_rate.csv"
	DefaultStepsCSV     = "sample_steps.csv"
	DefaultSleepCSV     = "sample_sleep.csv"
	DefaultJSON         = "fitness_data.json"
)

// Inputs are the file paths to load. An empty path means no input for
// that slot.
type Inputs struct {
	CSV  map[record.Kind]string `json:"csv"`
	JSON string                 `json:"json"`
}

// DefaultInputs returns the sample file names.
func DefaultInputs() Inputs {
	return Inputs{
		CSV: map[record.Kind]string{
			record.KindHeartRate: DefaultHeartRateCSV,
			record.KindSteps:     DefaultStepsCSV,
			record.KindSleep:     DefaultSleepCSV,
		},
		JSON: DefaultJSON,
	}
}

// Diagnostic records a source file that contributed no records.
type Diagnostic struct {
	Source  Source      `json:"source"`
	Kind    record.Kind `json:"kind,omitempty"`
	Path    string      `json:"path"`
	Code    source.Code `json:"code"`
	Message string      `json:"message"`
}

// Sources holds the per-source collections before merging.
type Sources map[Source]map[record.Kind]record.Collection

// Get returns the collection for src and kind, empty if absent.
func (s Sources) Get(src Source, kind record.Kind) record.Collection {
	if c, ok := s[src][kind]; ok {
		return c
	}
	return record.Empty(kind)
}

// Result is the outcome of one pipeline run.
type Result struct {
	Prefer      Prefer
	Datasets    map[record.Kind]record.Collection
	Sources     Sources
	Stats       map[record.Kind]merge.Stats
	Diagnostics []Diagnostic
}

// Get returns the merged collection for kind, empty if absent.
func (r Result) Get(kind record.Kind) record.Collection {
	if c, ok := r.Datasets[kind]; ok {
		return c
	}
	return record.Empty(kind)
}

// Load reads every input without merging. Collections are returned for
// every source and kind, empty where nothing could be loaded.
func Load(in Inputs, opts ...Option) (Sources, []Diagnostic) {
	o := buildOptions(opts)
	return load(in, o)
}

// Run loads the inputs and merges each kind under prefer. It panics with
// *merge.PolicyError if prefer is not a valid mode.
func Run(in Inputs, prefer Prefer, opts ...Option) Result {
	o := buildOptions(opts)
	policy := prefer.Policy()
	if !policy.Valid() {
		panic(&merge.PolicyError{Value: string(prefer)})
	}

	sources, diags := load(in, o)

	res := Result{
		Prefer:      prefer,
		Datasets:    make(map[record.Kind]record.Collection, len(record.Kinds())),
		Sources:     sources,
		Stats:       make(map[record.Kind]merge.Stats, len(record.Kinds())),
		Diagnostics: diags,
	}
	for _, kind := range record.Kinds() {
		merged, stats := merge.MergeWithStats(sources.Get(SourceCSV, kind), sources.Get(SourceJSON, kind), policy)
		res.Datasets[kind] = merged
		res.Stats[kind] = stats

		o.logger.Debug("merged dataset",
			"kind", kind,
			"policy", policy,
			"csv", stats.InputA,
			"json", stats.InputB,
			"output", stats.Output,
			"duplicates_dropped", stats.DuplicatesDropped)
		if o.metrics != nil {
			o.metrics.RecordMerged(string(kind), stats.Output, stats.DuplicatesDropped)
		}
	}

	if o.metrics != nil {
		o.metrics.RecordRun(string(prefer))
	}
	o.logger.Info("pipeline complete",
		"prefer", prefer,
		"heart_rate", res.Get(record.KindHeartRate).Len(),
		"steps", res.Get(record.KindSteps).Len(),
		"sleep", res.Get(record.KindSleep).Len(),
		"diagnostics", len(diags))
	return res
}

func load(in Inputs, o options) (Sources, []Diagnostic) {
	sources := Sources{
		SourceCSV:  make(map[record.Kind]record.Collection, len(record.Kinds())),
		SourceJSON: make(map[record.Kind]record.Collection, len(record.Kinds())),
	}
	var diags []Diagnostic

	for _, kind := range record.Kinds() {
		s, err := o.registry.Lookup(kind)
		if err != nil {
			// A compiled registry always holds every kind.
			panic(err)
		}

		path := in.CSV[kind]
		if path == "" {
			sources[SourceCSV][kind] = record.Empty(kind)
			continue
		}
		c, err := source.LoadCSV(path, s)
		if err != nil {
			diags = append(diags, diagnose(o.logger, SourceCSV, kind, path, err))
		}
		sources[SourceCSV][kind] = c
	}

	if in.JSON == "" {
		for _, kind := range record.Kinds() {
			sources[SourceJSON][kind] = record.Empty(kind)
		}
	} else {
		collections, err := source.LoadJSON(in.JSON, o.registry)
		if err != nil {
			diags = append(diags, diagnose(o.logger, SourceJSON, "", in.JSON, err))
		}
		for _, kind := range record.Kinds() {
			sources[SourceJSON][kind] = collections[kind]
		}
	}

	for _, src := range []Source{SourceCSV, SourceJSON} {
		for _, kind := range record.Kinds() {
			c := sources[src][kind]
			o.logger.Debug("loaded source", "source", src, "kind", kind, "records", c.Len())
			if o.metrics != nil {
				o.metrics.RecordLoaded(string(src), string(kind), c.Len())
				o.metrics.RecordUnparsable(string(src), string(kind), countUnparsable(c))
			}
		}
	}
	if o.metrics != nil {
		for _, d := range diags {
			o.metrics.RecordDiagnostic(string(d.Source), string(d.Code))
		}
	}
	return sources, diags
}

func diagnose(logger *slog.Logger, src Source, kind record.Kind, path string, err error) Diagnostic {
	d := Diagnostic{
		Source:  src,
		Kind:    kind,
		Path:    path,
		Code:    source.CodeOf(err),
		Message: err.Error(),
	}
	var le *source.LoadError
	if errors.As(err, &le) && le.Err != nil {
		d.Message = le.Err.Error()
	}

	level := slog.LevelWarn
	if d.Code == source.CodeMissingSource {
		level = slog.LevelDebug
	}
	logger.Log(context.Background(), level, "source produced no records",
		"source", src,
		"kind", kind,
		"path", path,
		"code", d.Code,
		"error", d.Message)
	return d
}

// countUnparsable counts records whose timestamp is present but was kept
// as text.
func countUnparsable(c record.Collection) int {
	n := 0
	for _, r := range c.Records {
		v, ok := r[record.FieldTimestamp]
		if !ok {
			continue
		}
		switch v.(type) {
		case record.Time, record.Null:
		default:
			n++
		}
	}
	return n
}
