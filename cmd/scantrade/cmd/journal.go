package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scantrade/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and export the trade and signal journal.

Subcommands:
  trades  - List closed trades, newest first
  signals - List scanner signals, newest first
  trade   - Show a single trade by ID
  export  - Write trades as CSV or Org-mode

Examples:
  scantrade journal trades --bot support_bounce --limit 10
  scantrade journal signals --scanner trend_alignment
  scantrade journal trade 01J8Z3...
  scantrade journal export --format csv -o trades.csv`,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List closed trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalTrades,
}

var journalSignalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "List scanner signals",
	Args:  cobra.NoArgs,
	RunE:  runJournalSignals,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export closed trades as csv or org",
	Args:  cobra.NoArgs,
	RunE:  runJournalExport,
}

var (
	journalBot     string
	journalScanner string
	journalLimit   int
	signalsFormat  string
	exportFormat   string
	journalOut     string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradesCmd, journalSignalsCmd, journalTradeCmd, journalExportCmd)

	journalCmd.PersistentFlags().IntVarP(&journalLimit, "limit", "n", journal.DefaultLimit, "maximum rows")
	journalTradesCmd.Flags().StringVar(&journalBot, "bot", "", "only trades by this bot id")
	journalSignalsCmd.Flags().StringVar(&journalScanner, "scanner", "", "only signals from this scanner id")
	journalSignalsCmd.Flags().StringVar(&signalsFormat, "format", "text", "text or json")
	journalExportCmd.Flags().StringVar(&exportFormat, "format", "csv", "csv or org")
	journalExportCmd.Flags().StringVarP(&journalOut, "output", "o", "", "output file (default stdout)")
}

func openJournal() (journal.Journal, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	j, err := journal.Open(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return j, nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	trades, err := j.ListTrades(cmd.Context(), journal.TradeFilter{BotID: journalBot, Limit: journalLimit})
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(trades))
	return nil
}

func runJournalSignals(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	sigs, err := j.ListSignals(cmd.Context(), journal.SignalFilter{ScannerID: journalScanner, Limit: journalLimit})
	if err != nil {
		return fmt.Errorf("query signals: %w", err)
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(signalsFormat) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sigs)
	case "text", "":
		for _, s := range sigs {
			fmt.Fprintf(out, "%s  %-24s %-6s %-10s %5.1f  %s\n",
				s.Timestamp.Local().Format("2006-01-02 15:04"), s.ScannerID, s.Symbol, s.Kind, s.Confidence, s.Condition)
		}
		return nil
	}
	return fmt.Errorf("unknown format %q (want text or json)", signalsFormat)
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	trades, err := j.ListTrades(cmd.Context(), journal.TradeFilter{Limit: journalLimit})
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if journalOut != "" {
		f, err := os.Create(journalOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch strings.ToLower(exportFormat) {
	case "csv":
		return journal.WriteTradesCSV(w, trades)
	case "org":
		_, err := io.WriteString(w, journal.FormatTradesOrg(trades)+"\n")
		return err
	}
	return fmt.Errorf("unknown format %q (want csv or org)", exportFormat)
}
