package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fitmerge/internal/config"
	"github.com/roach88/fitmerge/internal/record"
	"github.com/roach88/fitmerge/internal/store"
)

// RunView is the JSON shape of a stored run.
type RunView struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Prefer    string            `json:"prefer"`
	Inputs    map[string]string `json:"inputs"`
	Datasets  []datasetView     `json:"datasets"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	settings := newSettingsFlags(config.Default())

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs saved with load --db",
		Long: `List every run in the run store, oldest first, with its merge preference
and record counts.

Examples:
  fitmerge runs --db runs.db
  FITMERGE_DB=postgres://localhost/fitmerge fitmerge runs --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(rootOpts, settings, cmd)
		},
	}

	settings.bindConfig(cmd)
	settings.bindStore(cmd, "run store to read (SQLite path or postgres:// URL)")

	return cmd
}

func runRuns(opts *RootOptions, settings *settingsFlags, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := settings.resolve(cmd)
	if err != nil {
		return reportError(formatter, err)
	}
	st, err := openStore(opts, cfg)
	if err != nil {
		return reportError(formatter, err)
	}
	defer st.Close()

	runs, err := st.ListRuns(commandContext(cmd))
	if err != nil {
		return reportError(formatter, WrapExitError(ExitCommandError, ErrCodeStore, "failed to list runs", err))
	}

	if formatter.JSON() {
		return formatter.Success(runs)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPREFER\tHEART_RATE\tSTEPS\tSLEEP")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.Prefer,
			r.Counts[record.KindHeartRate],
			r.Counts[record.KindSteps],
			r.Counts[record.KindSleep])
	}
	return tw.Flush()
}

// ShowRunOptions holds flags for the show-run command.
type ShowRunOptions struct {
	*RootOptions
	Limit int

	settings *settingsFlags
}

// NewShowRunCommand creates the show-run command.
func NewShowRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowRunOptions{
		RootOptions: rootOpts,
		settings:    newSettingsFlags(config.Default()),
	}

	cmd := &cobra.Command{
		Use:   "show-run <id>",
		Short: "Print the datasets of a saved run",
		Long: `Read one run back from the run store and print its merged datasets.

Stored records are re-checked against their content hashes on read.

Examples:
  fitmerge show-run --db runs.db 0190a4c2-...
  fitmerge show-run --db runs.db --limit 0 <id>`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", previewRows, "records to print per dataset (0 for all)")
	opts.settings.bindConfig(cmd)
	opts.settings.bindStore(cmd, "run store to read (SQLite path or postgres:// URL)")

	return cmd
}

func runShowRun(opts *ShowRunOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := opts.settings.resolve(cmd)
	if err != nil {
		return reportError(formatter, err)
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return reportError(formatter, err)
	}
	st, err := openStore(opts.RootOptions, cfg)
	if err != nil {
		return reportError(formatter, err)
	}
	defer st.Close()

	run, err := st.ReadRun(commandContext(cmd), id, reg)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return reportError(formatter, WrapExitError(ExitCommandError, ErrCodeNotFound, "run not found", err))
		}
		return reportError(formatter, WrapExitError(ExitCommandError, ErrCodeStore, "failed to read run", err))
	}

	if formatter.JSON() {
		view := RunView{
			ID:        run.ID,
			CreatedAt: run.CreatedAt,
			Prefer:    run.Prefer,
			Inputs:    run.Inputs,
			Datasets:  []datasetView{},
		}
		for _, kind := range record.Kinds() {
			if c, ok := run.Datasets[kind]; ok {
				view.Datasets = append(view.Datasets, newDatasetView(c))
			}
		}
		return formatter.Success(view)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  created: %s\n", run.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "  prefer:  %s\n", run.Prefer)
	for _, kind := range record.Kinds() {
		c, ok := run.Datasets[kind]
		if !ok {
			continue
		}
		writePreview(w, kind.Label(), c, emptyMerged, opts.Limit)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
