package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/fitmerge/internal/config"
	"github.com/roach88/fitmerge/internal/observability"
	"github.com/roach88/fitmerge/internal/pipeline"
	"github.com/roach88/fitmerge/internal/schema"
	"github.com/roach88/fitmerge/internal/store"
)

// Flag names shared across commands. Input flags use underscores.
const (
	flagConfig       = "config"
	flagHeartRateCSV = "hr_csv"
	flagStepsCSV     = "steps_csv"
	flagSleepCSV     = "sleep_csv"
	flagJSON         = "json"
	flagPrefer       = "prefer"
	flagDB           = "db"
	flagMetricsFile  = "metrics-file"
	flagSchema       = "schema"
)

// settingsFlags binds run settings to a command and resolves them on top
// of the run file and environment. Only flags the user set override.
type settingsFlags struct {
	defaults   config.Config
	configPath string
	flags      config.Config
}

func newSettingsFlags(defaults config.Config) *settingsFlags {
	return &settingsFlags{defaults: defaults}
}

func (s *settingsFlags) bindConfig(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.configPath, flagConfig, "", "YAML run file")
	cmd.Flags().StringVar(&s.flags.Schema, flagSchema, "", "CUE schema file replacing the built-in schemas")
}

func (s *settingsFlags) bindInputs(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.flags.HeartRateCSV, flagHeartRateCSV, s.defaults.HeartRateCSV, "path to heart rate CSV")
	cmd.Flags().StringVar(&s.flags.StepsCSV, flagStepsCSV, s.defaults.StepsCSV, "path to steps CSV")
	cmd.Flags().StringVar(&s.flags.SleepCSV, flagSleepCSV, s.defaults.SleepCSV, "path to sleep CSV")
	cmd.Flags().StringVar(&s.flags.JSON, flagJSON, s.defaults.JSON, "path to fitness JSON")
}

func (s *settingsFlags) bindPrefer(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.flags.Prefer, flagPrefer, s.defaults.Prefer, "prefer csv, json, or both (union)")
}

func (s *settingsFlags) bindStore(cmd *cobra.Command, usage string) {
	cmd.Flags().StringVar(&s.flags.DB, flagDB, "", usage)
}

func (s *settingsFlags) bindMetrics(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.flags.MetricsFile, flagMetricsFile, "", "write Prometheus metrics in textfile format")
}

// resolve returns the effective settings: defaults, then the run file,
// then the environment, then explicitly set flags.
func (s *settingsFlags) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadFrom(s.defaults, s.configPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, ErrCodeInvalidConfig, "failed to load config", err)
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override(flagHeartRateCSV, &cfg.HeartRateCSV, s.flags.HeartRateCSV)
	override(flagStepsCSV, &cfg.StepsCSV, s.flags.StepsCSV)
	override(flagSleepCSV, &cfg.SleepCSV, s.flags.SleepCSV)
	override(flagJSON, &cfg.JSON, s.flags.JSON)
	override(flagPrefer, &cfg.Prefer, s.flags.Prefer)
	override(flagDB, &cfg.DB, s.flags.DB)
	override(flagMetricsFile, &cfg.MetricsFile, s.flags.MetricsFile)
	override(flagSchema, &cfg.Schema, s.flags.Schema)
	return cfg, nil
}

// resolvePrefer resolves the settings and parses their prefer mode.
func (s *settingsFlags) resolvePrefer(cmd *cobra.Command) (config.Config, pipeline.Prefer, error) {
	cfg, err := s.resolve(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	prefer, err := pipeline.ParsePrefer(cfg.Prefer)
	if err != nil {
		return config.Config{}, "", WrapExitError(ExitCommandError, ErrCodeInvalidPrefer, "invalid prefer", err)
	}
	return cfg, prefer, nil
}

// loadRegistry returns the schema registry named by cfg, or the embedded
// one.
func loadRegistry(cfg config.Config) (schema.Registry, error) {
	if cfg.Schema == "" {
		return schema.Default(), nil
	}
	reg, err := schema.LoadFile(cfg.Schema)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeSchema, "failed to load schema", err)
	}
	return reg, nil
}

// openStore opens the run store named by cfg.DB.
func openStore(opts *RootOptions, cfg config.Config) (*store.Store, error) {
	if cfg.DB == "" {
		return nil, &ExitError{
			Code:    ExitCommandError,
			ErrCode: ErrCodeStore,
			Message: "no run store configured (use --db or " + config.EnvDB + ")",
		}
	}
	var storeOpts []store.Option
	if opts.Clock != nil {
		storeOpts = append(storeOpts, store.WithClock(opts.Clock))
	}
	st, err := store.Open(cfg.DB, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeStore, "failed to open run store", err)
	}
	return st, nil
}

// writeMetrics exports m when a metrics file is configured.
func writeMetrics(m *observability.Metrics, path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := m.WriteTextfile(path); err != nil {
		return WrapExitError(ExitCommandError, ErrCodeWriteFailed, "failed to write metrics", err)
	}
	return nil
}

// inputMap records the configured input paths of a run, skipping empty
// slots.
func inputMap(cfg config.Config) map[string]string {
	out := make(map[string]string, 4)
	for name, path := range map[string]string{
		flagHeartRateCSV: cfg.HeartRateCSV,
		flagStepsCSV:     cfg.StepsCSV,
		flagSleepCSV:     cfg.SleepCSV,
		flagJSON:         cfg.JSON,
	} {
		if path != "" {
			out[name] = path
		}
	}
	return out
}
