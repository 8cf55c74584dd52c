package cli

import (
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/R3E-Network/ordzaar/internal/app/runtime"
	"github.com/R3E-Network/ordzaar/internal/app/storage/postgres"
)

// NewMigrateCommand creates the migrate command and its subcommands.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, rootOpts, func(out *Printer, db *sqlx.DB) error {
				if err := postgres.MigrateUp(db.DB); err != nil {
					return err
				}
				out.Success("schema is up to date")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, rootOpts, func(out *Printer, db *sqlx.DB) error {
				if err := postgres.MigrateDown(db.DB); err != nil {
					return err
				}
				out.Success("schema rolled back")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, rootOpts, func(out *Printer, db *sqlx.DB) error {
				version, dirty, err := postgres.MigrationVersion(db.DB)
				if err != nil {
					return err
				}
				if dirty {
					out.Warning("version %d (dirty)", version)
					return nil
				}
				out.Info("version %d", version)
				return nil
			})
		},
	})
	return cmd
}

func withDatabase(cmd *cobra.Command, rootOpts *RootOptions, fn func(*Printer, *sqlx.DB) error) error {
	cfg, err := rootOpts.Config()
	if err != nil {
		return err
	}
	db, err := runtime.OpenDatabase(cmd.Context(), cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(NewPrinter(cmd.OutOrStdout()), db)
}
