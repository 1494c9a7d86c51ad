package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/fitmerge/internal/harness"
	"github.com/roach88/fitmerge/internal/pipeline"
	"github.com/roach88/fitmerge/internal/schema"
)

// ErrCodeCheckFailed marks a check run with failing scenarios.
const ErrCodeCheckFailed = "E_TEST_FAILED"

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario name filter (glob pattern)
	Schema string
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// CheckResult holds the overall check result.
type CheckResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <scenarios-dir>",
		Short: "Run YAML pipeline scenarios",
		Long: `Run every scenario file in a directory through the pipeline and check its
expectations. When <scenarios-dir>/golden/<name>.golden exists, the merged
datasets must also match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, bad scenario files, etc.)

Examples:
  fitmerge check ./scenarios
  fitmerge check ./scenarios --filter "union-*"
  fitmerge check ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on their name")
	cmd.Flags().StringVar(&opts.Schema, flagSchema, "", "CUE schema file replacing the built-in schemas")

	return cmd
}

func runCheck(opts *CheckOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return reportError(formatter, &ExitError{
			Code:    ExitCommandError,
			ErrCode: ErrCodeNotFound,
			Message: fmt.Sprintf("scenarios directory not found: %s", dir),
		})
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return reportError(formatter, WrapExitError(ExitCommandError, ErrCodeGeneric, "invalid filter pattern", err))
		}
	}

	reg := schema.Default()
	if opts.Schema != "" {
		var err error
		if reg, err = schema.LoadFile(opts.Schema); err != nil {
			return reportError(formatter, WrapExitError(ExitCommandError, ErrCodeSchema, "failed to load schema", err))
		}
	}

	scenarios, err := harness.LoadDir(dir)
	if err != nil {
		return reportError(formatter, WrapExitError(ExitCommandError, ErrCodeGeneric, "failed to load scenarios", err))
	}

	popts := []pipeline.Option{
		pipeline.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())),
		pipeline.WithRegistry(reg),
	}

	result := CheckResult{Scenarios: []ScenarioResult{}}
	for _, s := range scenarios {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, s.Name); !ok {
				continue
			}
		}
		sr := checkScenario(opts.Update, dir, s, popts)
		if !formatter.JSON() {
			writeScenarioResult(cmd, sr)
		}
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.JSON() {
		if result.Failed > 0 {
			msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
			if err := formatter.Fail(ErrCodeCheckFailed, msg, result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		return formatter.Success(result)
	}
	return outputCheckText(cmd, result)
}

// checkScenario runs one scenario and compares it with its golden file.
func checkScenario(update bool, dir string, s *harness.Scenario, popts []pipeline.Option) ScenarioResult {
	res, err := harness.Run(s, popts...)
	if err != nil {
		return ScenarioResult{Name: s.Name, Errors: []string{fmt.Sprintf("execution failed: %v", err)}}
	}

	sr := ScenarioResult{Name: s.Name, Pass: res.Pass, Errors: res.Errors}

	snap, err := harness.NewSnapshot(s.Name, res.Pipeline)
	if err != nil {
		return fail(sr, fmt.Sprintf("snapshot failed: %v", err))
	}
	data, err := snap.Marshal()
	if err != nil {
		return fail(sr, fmt.Sprintf("snapshot failed: %v", err))
	}

	goldenPath := filepath.Join(dir, "golden", s.Name+".golden")
	if update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			return fail(sr, fmt.Sprintf("failed to create golden directory: %v", err))
		}
		if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
			return fail(sr, fmt.Sprintf("failed to write golden file: %v", err))
		}
		return sr
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return sr
	case err != nil:
		return fail(sr, fmt.Sprintf("failed to read golden file: %v", err))
	case !bytes.Equal(golden, data):
		return fail(sr, "merged datasets do not match golden file (run with --update to regenerate)")
	}
	return sr
}

func fail(sr ScenarioResult, msg string) ScenarioResult {
	sr.Pass = false
	sr.Errors = append(sr.Errors, msg)
	return sr
}

func writeScenarioResult(cmd *cobra.Command, sr ScenarioResult) {
	w := cmd.OutOrStdout()
	if sr.Pass {
		fmt.Fprintf(w, "✓ %s\n", sr.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", sr.Name)
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func outputCheckText(cmd *cobra.Command, result CheckResult) error {
	w := cmd.OutOrStdout()

	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Check Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
