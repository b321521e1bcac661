// Package notify broadcasts scanner signals to chat channels.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rustyeddy/scantrade/scanners"
)

// Notifier delivers one signal to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, sig scanners.Signal) error
}

func kindEmoji(k scanners.Kind) string {
	switch k {
	case scanners.Bullish, scanners.Oversold, scanners.Breakout, scanners.Ready:
		return "🚀"
	case scanners.Bearish, scanners.Overbought:
		return "🔻"
	}
	return "ℹ️"
}

// FormatSignal renders the broadcast text. bold is the channel's bold
// marker: "*" for Telegram Markdown, "**" for Discord.
func FormatSignal(sig scanners.Signal, bold string) string {
	b := func(s string) string { return bold + s + bold }
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n\n", b("SCANTRADE SIGNAL"), kindEmoji(sig.Kind))
	fmt.Fprintf(&sb, "%s • %s\n", b(sig.Symbol), sig.Kind)
	fmt.Fprintf(&sb, "Price: $%s\n", commaf(sig.Price))
	fmt.Fprintf(&sb, "Confidence: %.1f%%\n", sig.Confidence)
	fmt.Fprintf(&sb, "Setup: %s\n\n", sig.Condition)
	sb.WriteString("_" + sig.ScannerName + "_")
	return sb.String()
}

// commaf formats v with two decimals and thousands separators.
func commaf(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")
	var out []byte
	for i := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, intPart[i])
	}
	res := string(out) + "." + frac
	if neg {
		res = "-" + res
	}
	return res
}
