package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/eagraph/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // policy file; empty means config.Default()

	settings *config.Config
	logger   *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Settings returns the loaded policy file, or the defaults when none was
// loaded.
func (o *RootOptions) Settings() *config.Config {
	if o.settings == nil {
		o.settings = config.Default()
	}
	return o.settings
}

// Logger returns the command logger. Verbose runs get a development logger
// on stderr; otherwise logging is discarded.
func (o *RootOptions) Logger() *zap.Logger {
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o.logger
}

func (o *RootOptions) load() error {
	if !isValidFormat(o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}
	if o.Config != "" {
		cfg, err := config.Load(o.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		o.settings = cfg
	}
	if o.Verbose && o.logger == nil {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create logger", err)
		}
		o.logger = logger
	}
	return nil
}

// NewRootCommand creates the root command for the eagraph CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "eagraph",
		Short: "eagraph - governed enterprise architecture graphs",
		Long: `Validate architecture snapshots against the relationship rule table
and governance policy, manage baselines and run governance scenarios.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "policy file (YAML)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewBaselineCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
