package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"esgledger/internal/rollover/rules"
	id "esgledger/pkg/domain"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage global rollover rules",
	}
	cmd.AddCommand(rulesSeedCmd())
	cmd.AddCommand(rulesListCmd())
	return cmd
}

func rulesSeedCmd() *cobra.Command {
	var (
		file  string
		actor string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Publish rules from a YAML seed file",
		Long: `Publish every rule in the seed file whose active version differs. A new
version supersedes the previous one; history is kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()

			ctx := cmd.Context()
			a, _, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(a)

			n, err := rules.LoadSeed(ctx, a.Rules, f, id.UserID(actor))
			if err != nil {
				return err
			}
			cliLogger.Info("rules seeded", "file", file, "published", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML seed file")
	cmd.Flags().StringVar(&actor, "actor", "system", "author recorded on published rules")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the active rule per data type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(a)

			active, err := a.Rules.ListActive(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), active)
		},
	}
}
