package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
	"github.com/heartmarshall/satstream-ledger/internal/service/notification"
)

// NewNotificationsCommand groups the notification inbox operations.
func NewNotificationsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"inbox"},
		Short:   "Read and maintain principals' notifications",
	}

	cmd.AddCommand(newNotificationsListCommand(opts))
	cmd.AddCommand(newNotificationsReadCommand(opts, "read", "Mark a notification read"))
	cmd.AddCommand(newNotificationsReadCommand(opts, "delete", "Delete a notification"))
	cmd.AddCommand(newNotificationsClearCommand(opts))
	cmd.AddCommand(newNotificationsNotifyCommand(opts))
	cmd.AddCommand(newNotificationsPurgeCommand(opts))
	cmd.AddCommand(newNotificationsLowBalanceCommand(opts))
	return cmd
}

func newNotificationsListCommand(opts *RootOptions) *cobra.Command {
	var (
		principal string
		in        notification.ListInput
		typ       string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a principal's notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if typ != "" {
				t := domain.NotificationType(strings.ToUpper(typ))
				in.Type = &t
			}

			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Notifications.List(ctx, domain.Principal(principal), in)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(res, func(p *printer) {
				p.line("%d notification(s), %d unread", res.TotalCount, res.UnreadCount)
				for _, n := range res.Items {
					mark := " "
					if !n.Read {
						mark = "*"
					}
					p.line("%s\t%s\t%s\t%s\t%s", mark, n.ID, ts(n.CreatedAt), n.Type, n.Message)
				}
			})
		},
	}

	cmd.Flags().StringVar(&principal, "for", "", "recipient principal (required)")
	_ = cmd.MarkFlagRequired("for")
	cmd.Flags().BoolVar(&in.UnreadOnly, "unread", false, "only unread notifications")
	cmd.Flags().StringVar(&typ, "type", "", "only this notification type")
	cmd.Flags().IntVar(&in.Limit, "limit", 0, fmt.Sprintf("page size (default %d, max %d)", notification.DefaultLimit, notification.MaxLimit))
	cmd.Flags().IntVar(&in.Offset, "offset", 0, "page offset")
	return cmd
}

func newNotificationsReadCommand(opts *RootOptions, verb, short string) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return WrapExitError(ExitUsage, "invalid notification id", err)
			}

			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			op := a.Notifications.MarkRead
			if verb == "delete" {
				op = a.Notifications.Delete
			}
			if err := op(ctx, id, domain.Principal(caller)); err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(map[string]any{"id": id, "action": verb}, func(p *printer) {
				p.line("notification %s: %s ok", id, verb)
			})
		},
	}

	cmd.Flags().StringVar(&caller, "as", "", "owning principal (required)")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func newNotificationsClearCommand(opts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every notification of a principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Notifications.ClearAll(ctx, domain.Principal(caller))
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(map[string]int{"deleted": n}, func(p *printer) {
				p.line("deleted %d notification(s)", n)
			})
		},
	}

	cmd.Flags().StringVar(&caller, "as", "", "owning principal (required)")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func newNotificationsNotifyCommand(opts *RootOptions) *cobra.Command {
	var (
		recipient string
		message   string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a SYSTEM notification to a principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.Notifications.NotifySystem(ctx, notification.SystemInput{
				Recipient: domain.Principal(recipient),
				Message:   message,
			})
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(map[string]any{"id": id}, func(p *printer) {
				p.line("sent %s", id)
			})
		},
	}

	cmd.Flags().StringVar(&recipient, "to", "", "recipient principal (required)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text (required)")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newNotificationsPurgeCommand(opts *RootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete read notifications older than the retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Notifications.PurgeRead(ctx, olderThan)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(map[string]int{"purged": n}, func(p *printer) {
				p.line("purged %d read notification(s)", n)
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "retention (default notifications.read_retention)")
	return cmd
}

func newNotificationsLowBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-low-balance",
		Short: "Warn senders whose active streams are nearly drained",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Notifications.CheckLowBalance(ctx)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd).emit(map[string]int{"warned": n}, func(p *printer) {
				p.line("warned %d stream(s)", n)
			})
		},
	}
}
