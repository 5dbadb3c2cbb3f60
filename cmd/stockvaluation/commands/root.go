package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/stockvaluation/backend/pkg/config"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockvaluation",
	Short: "Stock valuation report service",
	Long: `Stock Valuation Service CLI

Answers valuation report requests for a ticker by combining a discounted
cash flow valuation with analyst price target data. Data is served from an
in-memory cache, then PostgreSQL, then the Financial Modeling Prep API.

Usage:
  go run ./cmd/stockvaluation [command]

Examples:
  go run ./cmd/stockvaluation api
  go run ./cmd/stockvaluation fetch AAPL MSFT
  go run ./cmd/stockvaluation migrate
  go run ./cmd/stockvaluation test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig loads the environment and applies global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
