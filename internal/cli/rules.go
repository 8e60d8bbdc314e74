package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/eagraph/internal/model"
	"github.com/roach88/eagraph/internal/rules"
)

// RuleEntry is one relationship type in the rules JSON output.
type RuleEntry struct {
	Type  model.RelationshipType `json:"type"`
	From  []model.ElementType    `json:"from"`
	To    []model.ElementType    `json:"to"`
	Pairs []rules.Pair           `json:"pairs,omitempty"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the relationship rule table",
		Long: `Compile the rule table and print one line per relationship type.
Without --rules the config file's table (or the built-in table) is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			if rulesPath == "" {
				rulesPath = rootOpts.Settings().Rules.Path
			}
			table, err := loadTable(rulesPath)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load rule table", err)
			}

			entries := make([]RuleEntry, 0, table.Len())
			for _, rt := range table.Types() {
				rule, _ := table.Lookup(rt)
				entries = append(entries, RuleEntry{Type: rt, From: rule.From, To: rule.To, Pairs: rule.Pairs})
			}
			return f.Emit(entries, func(w io.Writer) error {
				_, err := io.WriteString(w, table.String())
				return err
			})
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "rule table (CUE)")

	return cmd
}
