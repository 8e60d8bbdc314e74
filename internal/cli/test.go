package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/eagraph/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string
	Update bool
}

// ScenarioResult is the per-scenario test result.
type ScenarioResult struct {
	Path     string   `json:"path"`
	Scenario string   `json:"scenario,omitempty"`
	Pass     bool     `json:"pass"`
	Golden   string   `json:"golden,omitempty"` // matched, updated, mismatch
	Errors   []string `json:"errors,omitempty"`
}

// TestSummary is the JSON payload of the test command.
type TestSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run governance scenarios",
		Long: `Run every YAML scenario below the directory. When
<scenarios-dir>/golden/<scenario>.golden exists the step trace must match it;
--update rewrites the golden files.

Exits 1 if any scenario fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "doublestar pattern over scenario paths relative to the directory")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden trace files")

	return cmd
}

func runTest(opts *TestOptions, dir string, out io.Writer) error {
	f := &OutputFormatter{Format: opts.Format, Writer: out, Verbose: opts.Verbose}

	info, err := os.Stat(dir)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeFileNotFound, fmt.Sprintf("scenario directory %s not found", dir), err)
	}
	if !info.IsDir() {
		return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("%s is not a directory", dir), nil)
	}

	results, err := harness.RunSuite(dir, opts.Filter, harness.WithLogger(opts.Logger()))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to discover scenarios", err)
	}

	summary := TestSummary{Scenarios: make([]ScenarioResult, 0, len(results))}
	for _, sr := range results {
		res := ScenarioResult{Path: sr.Path, Scenario: sr.Scenario}
		switch {
		case sr.Err != nil:
			res.Errors = []string{sr.Err.Error()}
		default:
			res.Errors = append(res.Errors, sr.Result.Errors...)
			golden, err := checkGolden(dir, sr.Scenario, sr.Result, opts.Update)
			res.Golden = golden
			if err != nil {
				res.Errors = append(res.Errors, err.Error())
			}
		}
		res.Pass = len(res.Errors) == 0
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
		summary.Scenarios = append(summary.Scenarios, res)
	}

	if err := f.Emit(summary, func(w io.Writer) error {
		return renderTest(w, summary)
	}); err != nil {
		return err
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", summary.Failed, len(summary.Scenarios)))
	}
	return nil
}

// checkGolden compares the trace against <dir>/golden/<name>.golden, or
// writes it when update is set. A missing golden file is not an error.
func checkGolden(dir, name string, result *harness.Result, update bool) (string, error) {
	trace, err := harness.TraceJSON(name, result)
	if err != nil {
		return "", fmt.Errorf("encode trace: %w", err)
	}
	path := filepath.Join(dir, "golden", name+".golden")

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("write golden: %w", err)
		}
		if err := os.WriteFile(path, trace, 0o644); err != nil {
			return "", fmt.Errorf("write golden: %w", err)
		}
		return "updated", nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read golden: %w", err)
	}
	if !bytes.Equal(want, trace) {
		return "mismatch", fmt.Errorf("trace does not match %s", path)
	}
	return "matched", nil
}

func renderTest(w io.Writer, summary TestSummary) error {
	if len(summary.Scenarios) == 0 {
		_, err := io.WriteString(w, "No scenarios found\n")
		return err
	}
	for _, res := range summary.Scenarios {
		name := res.Scenario
		if name == "" {
			name = res.Path
		}
		mark := "✓"
		if !res.Pass {
			mark = "✗"
		}
		line := fmt.Sprintf("%s %s", mark, name)
		if res.Golden != "" {
			line += fmt.Sprintf(" (golden %s)", res.Golden)
		}
		fmt.Fprintln(w, line)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	_, err := fmt.Fprintf(w, "\n%d passed, %d failed\n", summary.Passed, summary.Failed)
	return err
}
