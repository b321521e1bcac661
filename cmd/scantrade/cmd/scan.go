package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scantrade/feed"
	"github.com/rustyeddy/scantrade/scanners"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run every scanner once over the watchlist and print the signals",
	Long: `Run one scan pass without trading. Signals are printed, not stored.

Examples:
  scantrade scan
  scantrade scan --scanner trend_alignment --symbols AAPL,MSFT --json`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanScanners []string
	scanSymbols  []string
	scanJSON     bool
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringSliceVar(&scanScanners, "scanner", nil, "scanner ids to run (default: all enabled)")
	scanCmd.Flags().StringSliceVar(&scanSymbols, "symbols", nil, "symbols to scan (default: config symbols)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print signals as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	prov, err := feed.Build(ctx, cfg.Provider, cfg.Cache, nil, log)
	if err != nil {
		return err
	}
	if c, ok := prov.(interface{ Close() error }); ok {
		defer c.Close()
	}
	window, err := cfg.MarketWindow()
	if err != nil {
		return err
	}

	ids := scanScanners
	if len(ids) == 0 {
		ids = cfg.ScannerIDs()
	}
	syms := cfg.Symbols
	if len(scanSymbols) > 0 {
		syms = scanSymbols
	}

	var sigs []scanners.Signal
	for _, id := range ids {
		a, err := scanners.NewAnalyzer(id)
		if err != nil {
			return err
		}
		sc := scanners.New(a, scanners.Deps{Provider: prov, Symbols: syms, Window: window, Log: log})
		sigs = append(sigs, sc.Scan(ctx)...)
	}

	out := cmd.OutOrStdout()
	if scanJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if sigs == nil {
			sigs = []scanners.Signal{}
		}
		return enc.Encode(sigs)
	}

	if len(sigs) == 0 {
		fmt.Fprintln(out, "no signals")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCANNER\tSYMBOL\tSIGNAL\tCONFIDENCE\tPRICE\tCONDITION")
	for _, s := range sigs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%.2f\t%s\n", s.ScannerID, s.Symbol, s.Kind, s.Confidence, s.Price, s.Condition)
	}
	return tw.Flush()
}
