package cli

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
	"github.com/heartmarshall/satstream-ledger/internal/service/template"
)

// NewTemplatesCommand groups the stream template operations.
func NewTemplatesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template"},
		Short:   "Manage reusable stream presets",
	}

	cmd.AddCommand(newTemplatesListCommand(opts))
	cmd.AddCommand(newTemplatesCreateCommand(opts))
	cmd.AddCommand(newTemplatesSeedCommand(opts))
	cmd.AddCommand(newTemplatesStartCommand(opts))
	return cmd
}

func printTemplates(p *printer, items []*domain.StreamTemplate) {
	p.line("ID\tNAME\tRATE\tDURATION\tLOCK\tUSED\tCREATOR")
	for _, t := range items {
		p.line("%d\t%s\t%d\t%s\t%s\t%d\t%s", t.ID, t.Name, t.Rate, t.Duration, btc(t.TotalFor()), t.UsageCount, t.Creator)
	}
}

func newTemplatesListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.Templates.ListTemplates(ctx)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(items, func(p *printer) { printTemplates(p, items) })
		},
	}
}

func newTemplatesCreateCommand(opts *RootOptions) *cobra.Command {
	var (
		in      template.CreateTemplateInput
		creator string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Creator = domain.Principal(creator)

			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.Templates.CreateTemplate(ctx, in)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(t, func(p *printer) {
				printTemplates(p, []*domain.StreamTemplate{t})
			})
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "unique template name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&in.Description, "description", "", "free text")
	cmd.Flags().Int64Var(&in.Rate, "rate", 0, "sats per second")
	cmd.Flags().DurationVar(&in.Duration, "duration", 0, "stream duration (0 = continuous)")
	cmd.Flags().StringVar(&creator, "creator", "system", "creating principal")
	return cmd
}

func newTemplatesSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Load templates from a YAML catalog, skipping existing names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Templates.SeedFromFile(ctx, args[0])
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(res, func(p *printer) {
				p.line("inserted %d, skipped %d", res.Inserted, res.Skipped)
			})
		},
	}
}

func newTemplatesStartCommand(opts *RootOptions) *cobra.Command {
	var (
		in        template.FromTemplateInput
		sender    string
		recipient string
	)

	cmd := &cobra.Command{
		Use:   "start <template-id>",
		Short: "Create a stream from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in.TemplateID = id
			in.Sender = domain.Principal(sender)
			in.Recipient = domain.Principal(recipient)

			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.Templates.CreateStreamFromTemplate(ctx, in)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(s, func(p *printer) {
				p.line("created stream #%d from template %d: %s -> %s, %s BTC locked",
					s.ID, id, s.Sender, s.Recipient, btc(s.TotalLocked))
			})
		},
	}

	cmd.Flags().StringVar(&sender, "from", "", "sender principal (required)")
	cmd.Flags().StringVar(&recipient, "to", "", "recipient principal (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().Int64Var(&in.TotalLocked, "lock", 0, "sats to lock (required for continuous templates)")
	cmd.Flags().StringVar(&in.DedupToken, "dedup", "", "idempotency token")
	return cmd
}
