package cli

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/satstream-ledger/internal/adapter/postgres"
	"github.com/heartmarshall/satstream-ledger/internal/app"
	"github.com/heartmarshall/satstream-ledger/internal/config"
	"github.com/heartmarshall/satstream-ledger/migrations"
)

// NewMigrateCommand applies pending schema migrations.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return NewExitError(ExitUsage, "migrate needs database.driver "+config.DriverPostgres)
			}
			log := app.NewLogger(cfg.Log)

			ctx := cmd.Context()
			pool, err := postgres.NewPool(ctx, cfg.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "connect", err)
			}
			defer pool.Close()

			n, err := postgres.Migrate(ctx, pool, migrations.FS, log)
			if err != nil {
				return WrapExitError(ExitCommandError, "migrate", err)
			}
			return newPrinter(opts, cmd).emit(map[string]int{"applied": n}, func(p *printer) {
				p.line("applied %d migration(s)", n)
			})
		},
	}
}
