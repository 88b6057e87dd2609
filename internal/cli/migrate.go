package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bher20/stromdeals/internal/migrate"
)

func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQL schema (sqlite and postgres only)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				return err
			}
			switch opts.cfg.DB.Driver {
			case "sqlite", "postgres":
				return nil
			}
			return fmt.Errorf("migrate needs db.driver sqlite or postgres, got %q", opts.cfg.DB.Driver)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := migrate.Up(cmd.Context(), opts.cfg.DB.Driver, opts.cfg.DB.DSN); err != nil {
					return err
				}
				v, err := migrate.Version(cmd.Context(), opts.cfg.DB.Driver, opts.cfg.DB.DSN)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate.Down(cmd.Context(), opts.cfg.DB.Driver, opts.cfg.DB.DSN)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate.Status(cmd.Context(), opts.cfg.DB.Driver, opts.cfg.DB.DSN)
			},
		},
	)
	return cmd
}
