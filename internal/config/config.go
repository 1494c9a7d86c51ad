// Package config resolves run settings from defaults, an optional YAML run
// file, and the environment.
//
// Precedence, lowest first: built-in defaults, the run file, environment
// variables. Command-line flags are applied on top by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fitmerge/internal/pipeline"
	"github.com/roach88/fitmerge/internal/record"
)

// Environment variables read by Load.
const (
	EnvPrefer      = "FITMERGE_PREFER"
	EnvDB          = "FITMERGE_DB"
	EnvMetricsFile = "FITMERGE_METRICS_FILE"
	EnvSchema      = "FITMERGE_SCHEMA"
)

// Config holds resolved run settings. Empty input paths mean no input.
type Config struct {
	HeartRateCSV string
	StepsCSV     string
	SleepCSV     string
	JSON         string
	Prefer       string
	DB           string
	MetricsFile  string
	Schema       string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		HeartRateCSV: pipeline.DefaultHeartRateCSV,
		StepsCSV:     pipeline.DefaultStepsCSV,
		SleepCSV:     pipeline.DefaultSleepCSV,
		JSON:         pipeline.DefaultJSON,
		Prefer:       string(pipeline.PreferCSV),
	}
}

// Inputs returns the pipeline inputs.
func (c Config) Inputs() pipeline.Inputs {
	return pipeline.Inputs{
		CSV: map[record.Kind]string{
			record.KindHeartRate: c.HeartRateCSV,
			record.KindSteps:     c.StepsCSV,
			record.KindSleep:     c.SleepCSV,
		},
		JSON: c.JSON,
	}
}

// Error reports an unusable run file.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// File mirrors the YAML run file. Input paths are pointers so that an
// explicit empty string (no input) differs from an omitted key.
type File struct {
	HeartRateCSV *string `yaml:"hr_csv"`
	StepsCSV     *string `yaml:"steps_csv"`
	SleepCSV     *string `yaml:"sleep_csv"`
	JSON         *string `yaml:"json"`
	Prefer       string  `yaml:"prefer"`
	DB           string  `yaml:"db"`
	MetricsFile  string  `yaml:"metrics_file"`
	Schema       string  `yaml:"schema"`
}

// LoadFile reads a run file. Unknown keys are rejected. Relative paths
// resolve against the file's directory.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, &Error{Path: path, Err: err}
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, &Error{Path: path, Err: fmt.Errorf("failed to parse YAML: %w", err)}
	}

	if f.Prefer != "" {
		if _, err := pipeline.ParsePrefer(f.Prefer); err != nil {
			return File{}, &Error{Path: path, Err: err}
		}
	}

	base := filepath.Dir(path)
	for _, p := range []*string{f.HeartRateCSV, f.StepsCSV, f.SleepCSV, f.JSON} {
		if p != nil {
			*p = resolve(base, *p)
		}
	}
	f.DB = resolveDB(base, f.DB)
	f.MetricsFile = resolve(base, f.MetricsFile)
	f.Schema = resolve(base, f.Schema)
	return f, nil
}

// Load resolves settings from defaults, the run file at path (if any),
// and the environment.
func Load(path string) (Config, error) {
	return LoadFrom(Default(), path)
}

// LoadFrom is Load with caller-supplied defaults.
func LoadFrom(cfg Config, path string) (Config, error) {
	if path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		f.applyTo(&cfg)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func (f File) applyTo(cfg *Config) {
	if f.HeartRateCSV != nil {
		cfg.HeartRateCSV = *f.HeartRateCSV
	}
	if f.StepsCSV != nil {
		cfg.StepsCSV = *f.StepsCSV
	}
	if f.SleepCSV != nil {
		cfg.SleepCSV = *f.SleepCSV
	}
	if f.JSON != nil {
		cfg.JSON = *f.JSON
	}
	if f.Prefer != "" {
		cfg.Prefer = f.Prefer
	}
	if f.DB != "" {
		cfg.DB = f.DB
	}
	if f.MetricsFile != "" {
		cfg.MetricsFile = f.MetricsFile
	}
	if f.Schema != "" {
		cfg.Schema = f.Schema
	}
}

func applyEnv(cfg *Config) {
	cfg.Prefer = getEnv(EnvPrefer, cfg.Prefer)
	cfg.DB = getEnv(EnvDB, cfg.DB)
	cfg.MetricsFile = getEnv(EnvMetricsFile, cfg.MetricsFile)
	cfg.Schema = getEnv(EnvSchema, cfg.Schema)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// resolveDB leaves URLs and in-memory databases alone.
func resolveDB(base, dsn string) string {
	if dsn == ":memory:" || strings.Contains(dsn, "://") || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return resolve(base, dsn)
}
