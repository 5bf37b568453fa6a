package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bher20/utilitybill/internal/migrate"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQL schema (sqlite, postgres and postgrespool drivers)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(); err != nil {
				return err
			}
			switch c.cfg.Storage.Driver {
			case "sqlite", "postgres", "postgrespool":
				return nil
			}
			return fmt.Errorf("driver %q has no SQL schema", c.cfg.Storage.Driver)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := migrate.Up(cmd.Context(), c.cfg.Storage.Driver, c.cfg.Storage.DSN); err != nil {
					return err
				}
				v, err := migrate.Version(cmd.Context(), c.cfg.Storage.Driver, c.cfg.Storage.DSN)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "schema at version %d\n", v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate.Down(cmd.Context(), c.cfg.Storage.Driver, c.cfg.Storage.DSN)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate.Status(cmd.Context(), c.cfg.Storage.Driver, c.cfg.Storage.DSN)
			},
		},
	)
	return cmd
}
