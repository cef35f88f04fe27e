package main

import (
	"github.com/spf13/cobra"

	"esgledger/internal/platform/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Create or update the esgledger tables. Every statement is idempotent so the
command is safe to run on every deploy.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := requireDatabase(a, "migrate"); err != nil {
				return err
			}
			if err := database.Migrate(ctx, a.DB); err != nil {
				return err
			}
			cliLogger.Info("schema applied")
			return nil
		},
	}
}
