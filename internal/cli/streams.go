package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
	"github.com/heartmarshall/satstream-ledger/internal/service/ledger"
)

// NewStreamsCommand groups the stream operations.
func NewStreamsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "streams",
		Aliases: []string{"stream"},
		Short:   "Create, inspect and drive payment streams",
	}

	cmd.AddCommand(newStreamsListCommand(opts))
	cmd.AddCommand(newStreamsShowCommand(opts))
	cmd.AddCommand(newStreamsCreateCommand(opts))
	cmd.AddCommand(newStreamsClaimCommand(opts))
	cmd.AddCommand(newStreamsLifecycleCommand(opts, "pause", "Freeze accrual of a stream (sender only)"))
	cmd.AddCommand(newStreamsLifecycleCommand(opts, "resume", "Restart accrual of a paused stream (sender only)"))
	cmd.AddCommand(newStreamsCancelCommand(opts))

	return cmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitUsage, fmt.Sprintf("invalid stream id %q", arg))
	}
	return id, nil
}

func newStreamsListCommand(opts *RootOptions) *cobra.Command {
	var (
		principal string
		role      string
		status    string
		limit     int
		offset    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the streams a principal sends or receives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.StreamFilter{
				Role:   domain.StreamRole(strings.ToUpper(role)),
				Limit:  limit,
				Offset: offset,
			}
			if status != "" {
				st := domain.StreamStatus(strings.ToUpper(status))
				if !st.IsValid() {
					return NewExitError(ExitUsage, fmt.Sprintf("unknown status %q", status))
				}
				filter.Status = &st
			}

			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			views, err := a.Engine.ListStreamsForUser(ctx, domain.Principal(principal), filter)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(views, func(p *printer) {
				p.line("ID\tSENDER\tRECIPIENT\tSTATUS\tRATE\tLOCKED\tCLAIMED\tBUFFER")
				for _, v := range views {
					p.line("%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s",
						v.ID, v.Sender, v.Recipient, v.Status, v.Rate,
						btc(v.TotalLocked), btc(v.Claimed), btc(v.Buffer))
				}
			})
		},
	}

	cmd.Flags().StringVarP(&principal, "principal", "p", "", "principal whose streams to list (required)")
	_ = cmd.MarkFlagRequired("principal")
	cmd.Flags().StringVar(&role, "role", "", "sender|recipient (default both)")
	cmd.Flags().StringVar(&status, "status", "", "active|paused|completed|cancelled")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func newStreamsShowCommand(opts *RootOptions) *cobra.Command {
	var history int

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stream with its claimable buffer and transition history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			v, err := a.Engine.Buffer(ctx, id)
			if err != nil {
				return err
			}
			var events []domain.StreamEvent
			if history != 0 {
				if events, err = a.Engine.History(ctx, id, history); err != nil {
					return err
				}
			}

			out := struct {
				Stream  domain.StreamView    `json:"stream"`
				History []domain.StreamEvent `json:"history,omitempty"`
			}{v, events}
			return newPrinter(opts, cmd).emit(out, func(p *printer) {
				p.line("stream\t#%d", v.ID)
				p.line("sender\t%s", v.Sender)
				p.line("recipient\t%s", v.Recipient)
				p.line("status\t%s", v.Status)
				p.line("rate\t%d sat/s", v.Rate)
				p.line("locked\t%s BTC", btc(v.TotalLocked))
				p.line("claimed\t%s BTC", btc(v.Claimed))
				p.line("buffer\t%s BTC", btc(v.Buffer))
				p.line("remaining\t%s BTC", btc(v.RemainingLocked))
				p.line("time remaining\t%s", v.TimeRemaining)
				if v.Refunded > 0 {
					p.line("refunded\t%s BTC", btc(v.Refunded))
				}
				for _, ev := range events {
					p.line("event %d\t%s %s by %s %s", ev.Seq, ts(ev.At), ev.Type, ev.Actor, btc(ev.Amount))
				}
			})
		},
	}

	cmd.Flags().IntVar(&history, "history", -1, "number of events to include (-1 = all, 0 = none)")
	return cmd
}

func newStreamsCreateCommand(opts *RootOptions) *cobra.Command {
	var (
		in         ledger.CreateStreamInput
		sender     string
		recipient  string
		templateID int64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Lock funds into a new stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Sender = domain.Principal(sender)
			in.Recipient = domain.Principal(recipient)
			if templateID != 0 {
				in.TemplateID = &templateID
			}

			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.Engine.CreateStream(ctx, in)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(s, func(p *printer) {
				p.line("created stream #%d: %s -> %s, %d sat/s, %s BTC locked",
					s.ID, s.Sender, s.Recipient, s.Rate, btc(s.TotalLocked))
			})
		},
	}

	cmd.Flags().StringVar(&sender, "from", "", "sender principal (required)")
	cmd.Flags().StringVar(&recipient, "to", "", "recipient principal (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().Int64Var(&in.Rate, "rate", 0, "sats per second")
	cmd.Flags().Int64Var(&in.TotalLocked, "lock", 0, "sats to lock (default rate * duration)")
	cmd.Flags().DurationVar(&in.Duration, "duration", 0, "stream duration, whole seconds")
	cmd.Flags().StringVar(&in.DedupToken, "dedup", "", "idempotency token; repeats return the first stream")
	cmd.Flags().Int64Var(&templateID, "template-id", 0, "template the stream was started from")
	return cmd
}

func newStreamsClaimCommand(opts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "claim <id>",
		Short: "Withdraw the claimable buffer (recipient only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			amount, err := a.Engine.ClaimStream(ctx, id, domain.Principal(caller))
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(map[string]int64{"stream_id": id, "claimed": amount}, func(p *printer) {
				p.line("claimed %s BTC from stream #%d", btc(amount), id)
			})
		},
	}

	cmd.Flags().StringVar(&caller, "as", "", "calling principal (required)")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func newStreamsLifecycleCommand(opts *RootOptions, verb, short string) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			op := a.Engine.PauseStream
			if verb == "resume" {
				op = a.Engine.ResumeStream
			}
			if err := op(ctx, id, domain.Principal(caller)); err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(map[string]any{"stream_id": id, "action": verb}, func(p *printer) {
				p.line("stream #%d: %s ok", id, verb)
			})
		},
	}

	cmd.Flags().StringVar(&caller, "as", "", "calling principal (required)")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func newStreamsCancelCommand(opts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Stop a stream and refund the un-accrued remainder (sender only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Engine.CancelStream(ctx, id, domain.Principal(caller))
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(res, func(p *printer) {
				p.line("stream #%d cancelled: refunded %s BTC (fee %s BTC)", id, btc(res.Refund-res.Fee), btc(res.Fee))
			})
		},
	}

	cmd.Flags().StringVar(&caller, "as", "", "calling principal (required)")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}
