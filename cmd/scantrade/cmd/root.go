package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/scantrade/config"
	"github.com/rustyeddy/scantrade/internal/logx"
)

var rootCmd = &cobra.Command{
	Use:   "scantrade",
	Short: "Market scanners, paper-trading bots and a risk governor",
	Long: `ScanTrade runs a set of market scanners and paper-trading bots over a
watchlist, keeps a ledger of positions and trades, and pauses trading when
the portfolio health score degrades.

It provides tools for:
  - Running the trading engine with its dashboard API
  - One-off scans of the watchlist
  - Downloading bars and backtesting a bot against them
  - Generating and validating configuration files
  - Querying and exporting the trade journal`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); SCANTRADE_* env vars override it")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug|info|warn|error")
}

// loadConfig reads --config, applies the environment and the flag
// overrides, and builds the logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log, err := logx.New(cfg.Log)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}
