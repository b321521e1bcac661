package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scantrade/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading engine and the dashboard API",
	Long: `Start the scan and trade cycle together with the HTTP API, the status
websocket and the metrics endpoint. The process runs until SIGINT or SIGTERM.

Example:
  scantrade run -c scantrade.yaml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, app.Options{Version: version})
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().Str("addr", cfg.Server.Addr()).Str("provider", cfg.Provider.Source).
		Str("journal", cfg.Journal.Type).Bool("notify", cfg.Notify.Enabled()).Msg("scantrade starting")
	return a.Run(ctx)
}
