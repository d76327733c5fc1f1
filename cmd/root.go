package cmd

import (
	"fmt"
	"os"

	"covinance/internal/config"
	"covinance/internal/logger"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "covinance",
	Short: "Trade routes and market data for the commander",
	Long: "covinance answers trading questions (best prices, trade routes, rare goods) from cached\n" +
		"remote market data and the player's current ship, read from the game journal.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(statsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("covinance %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SetVersionInfo is called from main with build-time values.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// loadConfig reads configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	logger.Init(cfg.Logging.Level)
	return cfg, nil
}
