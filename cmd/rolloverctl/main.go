package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"esgledger/internal/platform/config"
	"esgledger/internal/platform/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "rolloverctl",
		Short: "Operate ESG period rollovers and gap-status transitions",
		Long: `rolloverctl runs period rollovers, previews reconciliation reports,
transitions data point gap statuses and maintains the rollover rule registry
against the same stores the API server uses.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./esgledger.yaml)")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis URL for the distributed rollover lock")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))
	_ = viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis-url"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(rolloverCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(transitionCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(outboxCmd())
	rootCmd.AddCommand(migrateCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("esgledger")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ESGLEDGER")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	log, err := logger.NewWithWriter(os.Stderr, viper.GetString("logging.format"), viper.GetString("logging.level"))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	setLogger(log)
	return nil
}
