package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/eagraph/internal/archive"
	"github.com/roach88/eagraph/internal/baseline"
)

// BaselineOptions holds flags shared by the baseline subcommands.
type BaselineOptions struct {
	*RootOptions
	Archive string
}

// NewBaselineCommand creates the baseline command group.
func NewBaselineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BaselineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Capture and inspect archived baselines",
	}

	cmd.PersistentFlags().StringVar(&opts.Archive, "archive", "", "baseline archive (SQLite); overrides the config file")

	cmd.AddCommand(newBaselineCreateCommand(opts))
	cmd.AddCommand(newBaselineListCommand(opts))
	cmd.AddCommand(newBaselineShowCommand(opts))
	cmd.AddCommand(newBaselineDiffCommand(opts))

	return cmd
}

func (o *BaselineOptions) archivePath() (string, error) {
	path := o.Archive
	if path == "" {
		path = o.Settings().Archive.Path
	}
	if path == "" {
		return "", errors.New("no archive configured: pass --archive or set archive.path")
	}
	return path, nil
}

// openArchive opens the archive. Read-only commands require it to exist.
func (o *BaselineOptions) openArchive(f *OutputFormatter, mustExist bool) (*archive.Archive, error) {
	path, err := o.archivePath()
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeGeneric, "archive path is required", err)
	}
	if mustExist {
		if _, err := os.Stat(path); err != nil {
			return nil, f.Fail(ExitCommandError, ErrCodeFileNotFound, fmt.Sprintf("archive %s not found", path), err)
		}
	}
	a, err := archive.Open(path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeArchive, "failed to open archive", err)
	}
	return a, nil
}

func newBaselineCreateCommand(opts *BaselineOptions) *cobra.Command {
	var (
		req   baseline.Request
		rules string
	)

	cmd := &cobra.Command{
		Use:   "create <snapshot>",
		Short: "Capture a snapshot as a baseline and archive it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			if rules == "" {
				rules = opts.Settings().Rules.Path
			}
			table, err := loadTable(rules)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load rule table", err)
			}
			view, err := loadSnapshot(args[0], table)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeLoadFailed, fmt.Sprintf("failed to load snapshot %s", args[0]), err)
			}

			store := baseline.NewStore(baseline.WithLogger(opts.Logger()))
			b, err := store.CreateBaseline(view, req)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to create baseline", err)
			}

			a, err := opts.openArchive(f, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Export(cmd.Context(), b); err != nil {
				return f.Fail(ExitCommandError, ErrCodeArchive, "failed to archive baseline", err)
			}

			return f.Emit(summarize(b), func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "created baseline %s (%s): %d elements, %d relationships\ndigest %s\n",
					b.ID, b.Name, len(b.Elements), len(b.Relationships), b.Digest)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "baseline name (required)")
	cmd.Flags().StringVar(&req.Description, "description", "", "baseline description")
	cmd.Flags().StringVar(&req.CreatedBy, "created-by", "", "author recorded on the baseline")
	cmd.Flags().StringVar(&req.ID, "id", "", "baseline id; a UUIDv7 is generated when empty")
	cmd.Flags().StringVar(&rules, "rules", "", "rule table (CUE); overrides the config file")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newBaselineListCommand(opts *BaselineOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived baselines in archive order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			a, err := opts.openArchive(f, true)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.List(cmd.Context())
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeArchive, "failed to list baselines", err)
			}
			if list == nil {
				list = []archive.Summary{}
			}
			return f.Emit(list, func(w io.Writer) error {
				if len(list) == 0 {
					_, err := io.WriteString(w, "no baselines archived\n")
					return err
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCREATED\tELEMENTS\tRELATIONSHIPS")
				for _, s := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
						s.ID, s.Name, s.CreatedAt.Format(time.RFC3339), s.ElementCount, s.RelationshipCount)
				}
				return tw.Flush()
			})
		},
	}
}

func newBaselineShowCommand(opts *BaselineOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one archived baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			a, err := opts.openArchive(f, true)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := loadBaseline(cmd.Context(), f, a, args[0])
			if err != nil {
				return err
			}
			return f.Emit(b, func(w io.Writer) error {
				s := summarize(b)
				fmt.Fprintf(w, "baseline %s\n", s.ID)
				fmt.Fprintf(w, "  name:          %s\n", s.Name)
				if s.Description != "" {
					fmt.Fprintf(w, "  description:   %s\n", s.Description)
				}
				fmt.Fprintf(w, "  created:       %s\n", s.CreatedAt.Format(time.RFC3339))
				if s.CreatedBy != "" {
					fmt.Fprintf(w, "  created by:    %s\n", s.CreatedBy)
				}
				fmt.Fprintf(w, "  revisions:     elements=%d relationships=%d\n",
					s.Source.ElementsRevision, s.Source.RelationshipsRevision)
				fmt.Fprintf(w, "  elements:      %d\n", s.ElementCount)
				fmt.Fprintf(w, "  relationships: %d\n", s.RelationshipCount)
				_, err := fmt.Fprintf(w, "  digest:        %s\n", s.Digest)
				return err
			})
		},
	}
}

func newBaselineDiffCommand(opts *BaselineOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <from-id> <to-id>",
		Short: "Compare two archived baselines",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			a, err := opts.openArchive(f, true)
			if err != nil {
				return err
			}
			defer a.Close()

			from, err := loadBaseline(cmd.Context(), f, a, args[0])
			if err != nil {
				return err
			}
			to, err := loadBaseline(cmd.Context(), f, a, args[1])
			if err != nil {
				return err
			}

			d := baseline.Compare(from, to)
			return f.Emit(d, d.Render)
		},
	}
}

func loadBaseline(ctx context.Context, f *OutputFormatter, a *archive.Archive, id string) (*baseline.Baseline, error) {
	b, err := a.Load(ctx, id)
	switch {
	case errors.Is(err, archive.ErrNotFound):
		return nil, f.Fail(ExitCommandError, ErrCodeFileNotFound, fmt.Sprintf("baseline %s not found", id), err)
	case err != nil:
		return nil, f.Fail(ExitCommandError, ErrCodeArchive, fmt.Sprintf("failed to load baseline %s", id), err)
	}
	return b, nil
}

func summarize(b *baseline.Baseline) archive.Summary {
	return archive.Summary{
		ID:                b.ID,
		Name:              b.Name,
		Description:       b.Description,
		CreatedAt:         b.CreatedAt,
		CreatedBy:         b.CreatedBy,
		Source:            b.Source,
		ElementCount:      len(b.Elements),
		RelationshipCount: len(b.Relationships),
		Digest:            b.Digest,
	}
}
