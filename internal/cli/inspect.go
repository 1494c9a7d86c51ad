package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fitmerge/internal/config"
	"github.com/roach88/fitmerge/internal/pipeline"
	"github.com/roach88/fitmerge/internal/record"
)

// DefaultInspectJSON is the JSON file inspect reads when none is given.
const DefaultInspectJSON = "sample_data.json"

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Show bool

	settings *settingsFlags
}

// InspectOutput is the JSON payload of the inspect command.
type InspectOutput struct {
	Sources     []datasetView         `json:"sources"`
	Diagnostics []pipeline.Diagnostic `json:"diagnostics"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	defaults := config.Default()
	defaults.JSON = DefaultInspectJSON
	opts := &InspectOptions{
		RootOptions: rootOpts,
		settings:    newSettingsFlags(defaults),
	}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show each source without merging",
		Long: `Load every CSV and the JSON document and report the six source datasets
side by side, before any merge.

Examples:
  fitmerge inspect --show
  fitmerge inspect --json export.json --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Show, "show", false, "print the first rows of each source dataset")
	opts.settings.bindConfig(cmd)
	opts.settings.bindInputs(cmd)

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := opts.settings.resolve(cmd)
	if err != nil {
		return reportError(formatter, err)
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return reportError(formatter, err)
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	sources, diags := pipeline.Load(cfg.Inputs(), pipeline.WithLogger(logger), pipeline.WithRegistry(reg))

	if formatter.JSON() {
		out := InspectOutput{
			Sources:     make([]datasetView, 0, 2*len(record.Kinds())),
			Diagnostics: diags,
		}
		if out.Diagnostics == nil {
			out.Diagnostics = []pipeline.Diagnostic{}
		}
		for _, src := range []pipeline.Source{pipeline.SourceCSV, pipeline.SourceJSON} {
			for _, kind := range record.Kinds() {
				v := newDatasetView(sources.Get(src, kind))
				v.Source = src
				out.Sources = append(out.Sources, v)
			}
		}
		return formatter.Success(out)
	}

	w := cmd.OutOrStdout()
	for _, src := range []pipeline.Source{pipeline.SourceCSV, pipeline.SourceJSON} {
		for _, kind := range record.Kinds() {
			title := sourceLabel(src) + " " + kind.Label()
			c := sources.Get(src, kind)
			if opts.Show {
				writePreview(w, title, c, emptySource, previewRows)
				continue
			}
			if c.IsEmpty() {
				fmt.Fprintf(w, "%s: %s\n", title, emptySource)
			} else {
				fmt.Fprintf(w, "%s: rows=%d\n", title, c.Len())
			}
		}
	}
	writeDiagnostics(w, diags)
	return nil
}

func sourceLabel(src pipeline.Source) string {
	switch src {
	case pipeline.SourceCSV:
		return "CSV"
	case pipeline.SourceJSON:
		return "JSON"
	default:
		return string(src)
	}
}
