package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fitmerge/internal/config"
	"github.com/roach88/fitmerge/internal/normalize"
	"github.com/roach88/fitmerge/internal/pipeline"
	"github.com/roach88/fitmerge/internal/record"
)

// ErrCodeDataIssues marks a validate run that found schema issues.
const ErrCodeDataIssues = "E_DATA_ISSUES"

// RecordIssue is one schema issue located in a merged dataset.
type RecordIssue struct {
	Kind record.Kind `json:"kind"`
	Row  int         `json:"row"`
	normalize.Issue
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                  `json:"valid"`
	Prefer      pipeline.Prefer       `json:"prefer"`
	Checked     map[record.Kind]int   `json:"checked"`
	Issues      []RecordIssue         `json:"issues"`
	Diagnostics []pipeline.Diagnostic `json:"diagnostics"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	settings := newSettingsFlags(config.Default())

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check merged records against the schemas",
		Long: `Load and merge the inputs exactly like load, then check every merged record
against its schema: required fields, types, ranges, enum values, and
timestamps that could not be parsed.

Records with issues are still merged; validate only reports them.

Exit codes:
  0 - No issues
  1 - One or more issues found
  2 - Command error (bad flags, config, or schema)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, settings, cmd)
		},
	}

	settings.bindConfig(cmd)
	settings.bindInputs(cmd)
	settings.bindPrefer(cmd)

	return cmd
}

func runValidate(opts *RootOptions, settings *settingsFlags, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, prefer, err := settings.resolvePrefer(cmd)
	if err != nil {
		return reportError(formatter, err)
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return reportError(formatter, err)
	}

	logger := newLogger(opts, cmd.ErrOrStderr())
	res := pipeline.Run(cfg.Inputs(), prefer, pipeline.WithLogger(logger), pipeline.WithRegistry(reg))

	result := ValidationResult{
		Prefer:      res.Prefer,
		Checked:     make(map[record.Kind]int, len(record.Kinds())),
		Issues:      []RecordIssue{},
		Diagnostics: res.Diagnostics,
	}
	if result.Diagnostics == nil {
		result.Diagnostics = []pipeline.Diagnostic{}
	}
	for _, kind := range record.Kinds() {
		s := reg.MustLookup(kind)
		c := res.Get(kind)
		result.Checked[kind] = c.Len()
		for i, r := range c.Records {
			for _, issue := range normalize.Issues(r, s) {
				result.Issues = append(result.Issues, RecordIssue{Kind: kind, Row: i, Issue: issue})
			}
		}
		formatter.VerboseLog("Checked %d %s record(s)", c.Len(), kind)
	}
	result.Valid = len(result.Issues) == 0

	if result.Valid {
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %d record(s) checked, no issues\n", totalChecked(result.Checked))
		return nil
	}

	msg := fmt.Sprintf("%d issue(s) found", len(result.Issues))
	if formatter.JSON() {
		if err := formatter.Fail(ErrCodeDataIssues, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	w := cmd.OutOrStdout()
	for _, is := range result.Issues {
		fmt.Fprintf(w, "✗ %s[%d] %s\n", is.Kind, is.Row, is.Issue)
	}
	fmt.Fprintf(w, "\n%s in %d record(s)\n", msg, totalChecked(result.Checked))
	return NewExitError(ExitFailure, msg)
}

func totalChecked(checked map[record.Kind]int) int {
	n := 0
	for _, c := range checked {
		n += c
	}
	return n
}
