package journal

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rustyeddy/scantrade/portfolio"
)

var tradeHeader = []string{
	"id", "symbol", "direction", "quantity", "entry_price", "exit_price",
	"realized_pnl", "bot_id", "strategy", "status", "entry_reason", "exit_reason",
	"opened_at", "closed_at",
}

// WriteTradesCSV writes trades with a header row.
func WriteTradesCSV(w io.Writer, trades []portfolio.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		err := cw.Write([]string{
			t.ID,
			t.Symbol,
			string(t.Direction),
			f(t.Quantity),
			f(t.EntryPrice),
			f(t.ExitPrice),
			f(t.RealizedPnL),
			t.BotID,
			t.Strategy,
			string(t.Status),
			t.EntryReason,
			t.ExitReason,
			t.OpenedAt.UTC().Format(time.RFC3339),
			t.Timestamp.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
