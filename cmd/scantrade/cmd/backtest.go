package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/scantrade/backtest"
	"github.com/rustyeddy/scantrade/bots"
	"github.com/rustyeddy/scantrade/config"
	"github.com/rustyeddy/scantrade/feed"
	"github.com/rustyeddy/scantrade/market"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay bars through one bot against a fresh paper ledger",
	Long: `Replay historical bars through a bot policy. Bars come from CSV files
(time,open,high,low,close,volume) or, without --csv, from the configured
provider over the configured window.

Examples:
  scantrade backtest --bot support_bounce
  scantrade backtest --bot vwap_mean_reversion --csv AAPL=aapl.csv --csv SPY=spy.csv`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

var (
	btBot      string
	btSymbols  []string
	btCSV      []string
	btCloseEnd bool
	btNoRisk   bool
	btJSON     bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	f := backtestCmd.Flags()
	f.StringVar(&btBot, "bot", "", "bot policy id (required)")
	f.StringSliceVar(&btSymbols, "symbols", nil, "symbols to fetch (default: config symbols)")
	f.StringArrayVar(&btCSV, "csv", nil, "SYMBOL=path bar file, repeatable")
	f.BoolVar(&btCloseEnd, "close-end", true, "close open positions at the last bar")
	f.BoolVar(&btNoRisk, "no-risk", false, "skip the risk governor")
	f.BoolVar(&btJSON, "json", false, "print the result as JSON")
	_ = backtestCmd.MarkFlagRequired("bot")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	pol, err := bots.NewPolicy(btBot)
	if err != nil {
		return err
	}
	window, err := cfg.MarketWindow()
	if err != nil {
		return err
	}

	data, err := backtestData(cmd, cfg, window, log)
	if err != nil {
		return err
	}

	opts := backtest.Options{
		Portfolio:     cfg.Portfolio(),
		Window:        window,
		CapitalPct:    cfg.Bots.CapitalPct[btBot],
		MinConfidence: cfg.Bots.MinConfidence,
		CloseEnd:      btCloseEnd,
	}
	if !btNoRisk && cfg.Risk.EnableChecks {
		p := cfg.RiskPolicy()
		opts.Risk = &p
	}

	res, err := backtest.Run(cmd.Context(), pol, data, opts, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if btJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	backtest.Print(out, res)
	return nil
}

func backtestData(cmd *cobra.Command, cfg *config.Config, w market.Window, log zerolog.Logger) (map[string]market.Series, error) {
	data := make(map[string]market.Series)
	if len(btCSV) > 0 {
		for _, arg := range btCSV {
			sym, path, ok := strings.Cut(arg, "=")
			if !ok || sym == "" || path == "" {
				return nil, fmt.Errorf("--csv %q: want SYMBOL=path", arg)
			}
			s, err := readSeries(path)
			if err != nil {
				return nil, err
			}
			data[strings.ToUpper(sym)] = s
		}
		return data, nil
	}

	prov, err := feed.Build(cmd.Context(), cfg.Provider, cfg.Cache, nil, log)
	if err != nil {
		return nil, err
	}
	if c, ok := prov.(interface{ Close() error }); ok {
		defer c.Close()
	}

	syms := cfg.Symbols
	if len(btSymbols) > 0 {
		syms = btSymbols
	}
	for _, sym := range syms {
		s, err := prov.Series(cmd.Context(), sym, w)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", sym, err)
		}
		data[sym] = s
	}
	return data, nil
}

func readSeries(path string) (market.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := market.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
