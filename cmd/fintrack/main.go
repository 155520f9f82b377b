package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = config.New()
	cfg     *config.Config
	logger  *log.Logger

	rootCmd = &cobra.Command{
		Use:   "fintrack",
		Short: "Personal finance ledger with a JSON API",
		Long: `fintrack records accounts, categories and transactions and reports
monthly income, expenses and per-category spending.

Settings come from flags, environment variables (PORT, DATA_BACKEND,
SQLITE_DB_PATH, ...), an optional config file and a local .env file.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "sqlite", "data backend (sqlite, memory)")
	rootCmd.PersistentFlags().String("db", "./data/fintrack.db", "SQLite database path")

	_ = v.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag(config.KeyDataBackend, rootCmd.PersistentFlags().Lookup("backend"))
	_ = v.BindPFlag(config.KeySQLiteDBPath, rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(importOFXCmd())
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	loaded, err := cli.LoadAndValidateConfig(v)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = cli.SetupLogger(cfg, log.ComponentApp)
	return nil
}

// openBackend creates the configured store. withEvents=false skips the
// broker even when AMQP_URL is set.
func openBackend(ctx context.Context, withEvents bool) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !withEvents {
		bc.AMQPURL = ""
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bc)
}

func cleanup(res *backend.BackendResult) {
	if res.Cleanup == nil {
		return
	}
	if err := res.Cleanup(); err != nil {
		logger.Warn("Backend cleanup failed", log.FieldError, err)
	}
}
