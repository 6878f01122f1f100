// Package main is the portfoliolab command line: rolling-window portfolio
// allocation sweeps with out-of-sample backtests, a long-short strategy
// simulator, and an HTTP server over stored runs.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/portfoliolab/internal/config"
	"github.com/aristath/portfoliolab/pkg/logger"
)

var (
	flagLogLevel string
	flagDataDir  string
	flagPretty   bool

	cfg *config.Config
	log zerolog.Logger
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "portfoliolab",
	Short: "Portfolio allocation research toolkit",
	Long: `portfoliolab allocates a ticker universe over overlapping calendar-year
windows with five methods (Monte Carlo min-variance and max-Sharpe, analytic
tangency, capped tangency and global minimum variance), backtests each
allocation on a later window, and simulates a long-short strategy driven by
next-day direction predictions.

Configuration comes from the environment (and an optional .env file);
command flags override it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagDataDir != "" {
			if err := os.Setenv("PORTFOLIOLAB_DATA_DIR", flagDataDir); err != nil {
				return err
			}
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
		if flagLogLevel != "" {
			cfg.LogLevel = flagLogLevel
		}

		log = logger.New(logger.Config{
			Level:  cfg.LogLevel,
			Pretty: flagPretty,
			Output: os.Stderr,
		})
		logger.SetGlobalLogger(log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Directory for the results and cache databases (default from PORTFOLIOLAB_DATA_DIR)")
	rootCmd.PersistentFlags().BoolVar(&flagPretty, "pretty", true, "Human-readable log output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
