package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/scantrade/portfolio"
)

// FormatTradeOrg renders a trade as an Org-mode entry: the facts go in a
// PROPERTIES drawer and the Thesis/Execution/Review headings are left
// for notes.
func FormatTradeOrg(t portfolio.Trade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s (%s)\n", t.Symbol, shortID(t.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", t.ID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":BOT: %s\n", t.BotID)
	fmt.Fprintf(&b, ":STRATEGY: %s\n", t.Strategy)
	fmt.Fprintf(&b, ":QUANTITY: %.4f\n", t.Quantity)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.2f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.2f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":OPENED_AT: %s\n", t.OpenedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CLOSED_AT: %s\n", t.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":REALIZED_PNL: %.2f\n", t.RealizedPnL)
	fmt.Fprintf(&b, ":ENTRY_REASON: %s\n", t.EntryReason)
	fmt.Fprintf(&b, ":EXIT_REASON: %s\n", t.ExitReason)
	b.WriteString(":END:\n\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders trades separated by blank lines.
func FormatTradesOrg(trades []portfolio.Trade) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
