package cli

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// NewStatsCommand prints global statistics, or one principal's with --principal.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	var principal string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show ledger-wide or per-principal statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := newPrinter(opts, cmd)
			if principal == "" {
				gs, err := a.Stats.GlobalStats(ctx)
				if err != nil {
					return err
				}
				return out.emit(gs, func(p *printer) { printGlobalStats(p, gs) })
			}

			us, err := a.Stats.UserStats(ctx, domain.Principal(principal))
			if err != nil {
				return err
			}
			return out.emit(us, func(p *printer) { printUserStats(p, us) })
		},
	}

	cmd.Flags().StringVarP(&principal, "principal", "p", "", "principal to report on")
	return cmd
}

func printGlobalStats(p *printer, gs domain.GlobalStats) {
	p.line("streams created\t%d", gs.TotalStreamsCreated)
	p.line("volume locked\t%s BTC", btc(gs.TotalVolumeLocked))
	p.line("volume claimed\t%s BTC", btc(gs.TotalVolumeClaimed))
	p.line("active\t%d", gs.ActiveStreams)
	p.line("paused\t%d", gs.PausedStreams)
	p.line("completed\t%d", gs.CompletedStreams)
	p.line("cancelled\t%d", gs.CancelledStreams)
}

func printUserStats(p *printer, us domain.UserStats) {
	p.line("principal\t%s", us.Principal)
	p.line("streams created\t%d", us.StreamsCreated)
	p.line("streams received\t%d", us.StreamsReceived)
	p.line("total sent\t%s BTC", btc(us.TotalSent))
	p.line("total received\t%s BTC", btc(us.TotalReceived))
	p.line("avg stream size\t%s BTC", btc(us.AvgStreamSize))
	p.line("fees paid\t%s BTC", btc(us.TotalFeesPaid))
	p.line("active streams\t%d", us.ActiveStreams)
	p.line("unread notifications\t%d", us.UnreadNotifications)
}
