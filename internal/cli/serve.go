package cli

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/satstream-ledger/internal/app"
)

// NewServeCommand runs the ledger until SIGINT or SIGTERM.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger, its notification generator and the ops server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Log.InfoContext(ctx, "starting satstream",
				slog.String("version", app.BuildVersion()),
				slog.String("log_level", a.Config.Log.Level),
			)
			if err := a.Serve(ctx); err != nil {
				return WrapExitError(ExitCommandError, "serve", err)
			}
			a.Log.Info("satstream stopped")
			return nil
		},
	}
}
