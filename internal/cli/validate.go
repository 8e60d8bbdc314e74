package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/eagraph/internal/config"
	"github.com/roach88/eagraph/internal/gate"
	"github.com/roach88/eagraph/internal/governance"
	"github.com/roach88/eagraph/internal/graph"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Rules string
	Watch bool
}

// FileReport is the per-snapshot validate result.
type FileReport struct {
	Path     string             `json:"path"`
	Outcome  string             `json:"outcome"` // accepted, warned, rejected
	Messages []string           `json:"messages,omitempty"`
	Report   *governance.Report `json:"report"`
}

// ValidateResult is the JSON payload of the validate command.
// Evaluations counts gate checks by "mode/outcome" since the command started.
type ValidateResult struct {
	Mode        governance.Mode `json:"mode"`
	Files       []FileReport    `json:"files"`
	Accepted    int             `json:"accepted"`
	Rejected    int             `json:"rejected"`
	Evaluations map[string]int  `json:"evaluations"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <snapshot-glob>...",
		Short: "Evaluate snapshots against the governance policy",
		Long: `Load each snapshot, evaluate it with the configured policy and report
the outcome. Globs use doublestar syntax (**/*.json). Files ending in .zst
are read as zstd-compressed snapshots.

With --watch the config file named by --config is watched and the snapshots
are evaluated again whenever its governance policy changes. Watching stops on
interrupt.

Exits 1 if any snapshot is rejected in Strict mode.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", "", "rule table (CUE); overrides the config file")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-evaluate when the config file changes (requires --config)")

	return cmd
}

type loadedSnapshot struct {
	path string
	view graph.View
}

func runValidate(ctx context.Context, opts *ValidateOptions, patterns []string, out, errOut io.Writer) error {
	f := &OutputFormatter{Format: opts.Format, Writer: out, ErrWriter: errOut, Verbose: opts.Verbose}
	cfg := opts.Settings()
	logger := opts.Logger()

	if opts.Watch && opts.Config == "" {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--watch requires --config", nil)
	}

	rulesPath := opts.Rules
	if rulesPath == "" {
		rulesPath = cfg.Rules.Path
	}
	table, err := loadTable(rulesPath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load rule table", err)
	}

	paths, err := expandGlobs(patterns)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeFileNotFound, "failed to expand snapshot globs", err)
	}

	snapshots := make([]loadedSnapshot, 0, len(paths))
	for _, path := range paths {
		f.VerboseLog("loading %s", path)
		view, err := loadSnapshot(path, table)
		if err != nil {
			code := ErrCodeLoadFailed
			if errors.Is(err, os.ErrNotExist) {
				code = ErrCodeFileNotFound
			}
			return f.Fail(ExitCommandError, code, fmt.Sprintf("failed to load snapshot %s", path), err)
		}
		snapshots = append(snapshots, loadedSnapshot{path: path, view: view})
	}

	metrics := gate.NewMetrics(cfg.Metrics.Namespace)
	g := gate.New(cfg.Policy(),
		gate.WithTable(table),
		gate.WithLogger(logger),
		gate.WithMetrics(metrics))

	result, err := evaluateSnapshots(g, metrics, snapshots, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to gather gate metrics", err)
	}
	if err := emitValidate(f, result); err != nil {
		return err
	}
	if opts.Watch {
		return watchValidate(ctx, opts, f, g, metrics, snapshots)
	}

	if result.Rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d snapshots rejected", result.Rejected, len(result.Files)))
	}
	return nil
}

// watchValidate re-evaluates snapshots on every policy change until ctx ends.
func watchValidate(ctx context.Context, opts *ValidateOptions, f *OutputFormatter, g *gate.Gate, metrics *gate.Metrics, snapshots []loadedSnapshot) error {
	logger := opts.Logger()
	w, err := config.NewWatcher(opts.Config, opts.Settings(), config.WithWatchLogger(logger))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to watch config", err)
	}
	defer w.Close()

	// PushPolicy registers first so the gate holds the new policy before
	// the change signal arrives.
	w.PushPolicy(g)
	changed := make(chan struct{}, 1)
	w.OnChange(func(*config.Config) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	f.VerboseLog("watching %s", opts.Config)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			result, err := evaluateSnapshots(g, metrics, snapshots, logger)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to gather gate metrics", err)
			}
			if err := emitValidate(f, result); err != nil {
				return err
			}
		}
	}
}

func evaluateSnapshots(g *gate.Gate, metrics *gate.Metrics, snapshots []loadedSnapshot, logger *zap.Logger) (ValidateResult, error) {
	result := ValidateResult{Mode: g.Policy().Mode, Files: make([]FileReport, 0, len(snapshots))}
	for _, s := range snapshots {
		decision := g.Check(s.view)
		fr := FileReport{Path: s.path, Outcome: gate.OutcomeAccepted, Report: decision.Report}
		switch {
		case !decision.Accepted:
			fr.Outcome = gate.OutcomeRejected
			var rejection *gate.RejectionError
			if errors.As(decision.Err, &rejection) {
				fr.Messages = rejection.Messages
			}
			result.Rejected++
		case decision.Report.Debt.Total > 0:
			fr.Outcome = gate.OutcomeWarned
			result.Accepted++
		default:
			result.Accepted++
		}
		logger.Debug("snapshot evaluated",
			zap.String("path", s.path),
			zap.String("outcome", fr.Outcome),
			zap.Int("debt", decision.Report.Debt.Total))
		result.Files = append(result.Files, fr)
	}

	counts, err := metrics.EvaluationCounts()
	if err != nil {
		return result, err
	}
	result.Evaluations = counts
	return result, nil
}

func emitValidate(f *OutputFormatter, result ValidateResult) error {
	return f.Emit(result, func(w io.Writer) error {
		return renderValidate(w, result, f.Verbose)
	})
}

func renderValidate(w io.Writer, result ValidateResult, verbose bool) error {
	for _, fr := range result.Files {
		mark := "✓"
		switch fr.Outcome {
		case gate.OutcomeRejected:
			mark = "✗"
		case gate.OutcomeWarned:
			mark = "!"
		}
		fmt.Fprintf(w, "%s %s (%s, debt %d)\n", mark, fr.Path, fr.Outcome, fr.Report.Debt.Total)
		for _, msg := range fr.Messages {
			fmt.Fprintf(w, "    %s\n", msg)
		}
		if verbose || fr.Outcome == gate.OutcomeRejected {
			if err := fr.Report.Render(w); err != nil {
				return err
			}
		}
	}
	if _, err := fmt.Fprintf(w, "\n%d accepted, %d rejected (mode %s)\n", result.Accepted, result.Rejected, result.Mode); err != nil {
		return err
	}
	if verbose && len(result.Evaluations) > 0 {
		keys := make([]string, 0, len(result.Evaluations))
		for k := range result.Evaluations {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		fmt.Fprintln(w, "gate evaluations:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %-20s %d\n", k, result.Evaluations[k])
		}
	}
	return nil
}
