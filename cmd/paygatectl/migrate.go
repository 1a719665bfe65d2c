package main

import (
	"fmt"

	"paygate/internal/config"
	"paygate/internal/db"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply the embedded SQL migrations to DB_ADDR in name order. Each migration runs in
its own transaction and is recorded in schema_migrations, so re-running is safe.

Examples:
  paygatectl migrate
  paygatectl migrate --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				migrations, err := db.Migrations()
				if err != nil {
					return err
				}
				for _, m := range migrations {
					fmt.Fprintln(cmd.OutOrStdout(), m.Version)
				}
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DB.Addr == "" {
				return fmt.Errorf("DB_ADDR is not set")
			}

			applied, err := db.Migrate(cmd.Context(), cfg.DB.Addr)
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list embedded migrations without connecting")
	return cmd
}
