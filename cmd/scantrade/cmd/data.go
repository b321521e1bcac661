package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scantrade/feed"
	"github.com/rustyeddy/scantrade/market"
)

var dataCmd = &cobra.Command{
	Use:   "data SYMBOL",
	Short: "Download bars from the configured provider as CSV",
	Long: `Fetch one symbol's bars over a window and write them in the CSV format
the backtest command reads.

Examples:
  scantrade data AAPL --period 3mo --interval 1d -o aapl.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runData,
}

var (
	dataPeriod   string
	dataInterval string
	dataOut      string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.Flags().StringVar(&dataPeriod, "period", "", "lookback period (default: config window)")
	dataCmd.Flags().StringVar(&dataInterval, "interval", "", "bar interval (default: config window)")
	dataCmd.Flags().StringVarP(&dataOut, "output", "o", "", "output file (default: stdout)")
}

func runData(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	w, err := cfg.MarketWindow()
	if err != nil {
		return err
	}
	if dataPeriod != "" {
		w.Period = dataPeriod
	}
	if dataInterval != "" {
		w.Interval = dataInterval
	}
	if _, err := w.Bars(); err != nil {
		return fmt.Errorf("window %s: %w", w, err)
	}

	prov, err := feed.Build(cmd.Context(), cfg.Provider, cfg.Cache, nil, log)
	if err != nil {
		return err
	}
	if c, ok := prov.(interface{ Close() error }); ok {
		defer c.Close()
	}

	sym := strings.ToUpper(args[0])
	s, err := prov.Series(cmd.Context(), sym, w)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", sym, err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if dataOut != "" {
		f, err := os.Create(dataOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := market.WriteCSV(out, s); err != nil {
		return err
	}
	log.Info().Str("symbol", sym).Int("bars", len(s)).Stringer("window", w).Msg("wrote bars")
	return nil
}
