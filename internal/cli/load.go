package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fitmerge/internal/config"
	"github.com/roach88/fitmerge/internal/observability"
	"github.com/roach88/fitmerge/internal/pipeline"
	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Show bool

	settings *settingsFlags
}

// LoadOutput is the JSON payload of the load command.
type LoadOutput struct {
	RunID       string                `json:"run_id,omitempty"`
	Prefer      pipeline.Prefer       `json:"prefer"`
	Datasets    []datasetView         `json:"datasets"`
	Diagnostics []pipeline.Diagnostic `json:"diagnostics"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{
		RootOptions: rootOpts,
		settings:    newSettingsFlags(config.Default()),
	}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load and merge fitness data",
		Long: `Load the heart rate, steps, and sleep CSVs and the fitness JSON, then merge
each dataset.

--prefer csv keeps the CSV records unless there are none, --prefer json does
the reverse, and --prefer both unions the two sources, drops exact
duplicates, and sorts by timestamp.

Missing or unreadable files produce empty datasets; the command still
exits 0.

Examples:
  fitmerge load --show
  fitmerge load --prefer both --json export.json --db runs.db
  fitmerge load --config run.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Show, "show", false, "print the first rows of each dataset")
	opts.settings.bindConfig(cmd)
	opts.settings.bindInputs(cmd)
	opts.settings.bindPrefer(cmd)
	opts.settings.bindStore(cmd, "persist the merged result to this run store (SQLite path or postgres:// URL)")
	opts.settings.bindMetrics(cmd)

	return cmd
}

func runLoad(opts *LoadOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, prefer, err := opts.settings.resolvePrefer(cmd)
	if err != nil {
		return reportError(formatter, err)
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return reportError(formatter, err)
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	var metrics *observability.Metrics
	if cfg.MetricsFile != "" {
		metrics = observability.NewMetrics()
	}

	popts := []pipeline.Option{pipeline.WithLogger(logger), pipeline.WithRegistry(reg)}
	if metrics != nil {
		popts = append(popts, pipeline.WithMetrics(metrics))
	}
	res := pipeline.Run(cfg.Inputs(), prefer, popts...)

	out := LoadOutput{
		Prefer:      res.Prefer,
		Datasets:    make([]datasetView, 0, len(record.Kinds())),
		Diagnostics: res.Diagnostics,
	}
	if out.Diagnostics == nil {
		out.Diagnostics = []pipeline.Diagnostic{}
	}
	for _, kind := range record.Kinds() {
		v := newDatasetView(res.Get(kind))
		stats := res.Stats[kind]
		v.Stats = &stats
		out.Datasets = append(out.Datasets, v)
	}

	if cfg.DB != "" {
		id, err := persistRun(commandContext(cmd), opts.RootOptions, cfg, res, logger)
		if err != nil {
			return reportError(formatter, err)
		}
		out.RunID = id
	}

	if err := writeMetrics(metrics, cfg.MetricsFile); err != nil {
		return reportError(formatter, err)
	}
	formatter.VerboseLog("Loaded with prefer=%s, %d diagnostic(s)", res.Prefer, len(res.Diagnostics))

	if formatter.JSON() {
		return formatter.Success(out)
	}
	writeLoadText(cmd, opts.Show, res, out.RunID)
	return nil
}

// persistRun writes res to the configured run store and returns its ID.
func persistRun(ctx context.Context, opts *RootOptions, cfg config.Config, res pipeline.Result, logger *slog.Logger) (string, error) {
	st, err := openStore(opts, cfg)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing run store", "error", closeErr)
		}
	}()

	run := store.Run{
		ID:       opts.runIDs().Generate(),
		Prefer:   string(res.Prefer),
		Inputs:   inputMap(cfg),
		Datasets: res.Datasets,
	}
	if err := st.WriteRun(ctx, run); err != nil {
		return "", WrapExitError(ExitCommandError, ErrCodeStore, "failed to save run", err)
	}
	logger.Info("run saved", "run_id", run.ID, "db", cfg.DB)
	return run.ID, nil
}

func writeLoadText(cmd *cobra.Command, show bool, res pipeline.Result, runID string) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Merged with prefer=%s\n", res.Prefer)
	for _, kind := range record.Kinds() {
		s := res.Stats[kind]
		fmt.Fprintf(w, "  %s: rows=%d (csv=%d json=%d duplicates_dropped=%d)\n",
			kind.Label(), s.Output, s.InputA, s.InputB, s.DuplicatesDropped)
	}

	if show {
		for _, kind := range record.Kinds() {
			writePreview(w, kind.Label(), res.Get(kind), emptyMerged, previewRows)
		}
	}

	writeDiagnostics(w, res.Diagnostics)

	if runID != "" {
		fmt.Fprintf(w, "\nSaved run %s\n", runID)
	}
}
