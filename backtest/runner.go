// Package backtest replays recorded bars through a bot policy against a
// paper ledger.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scantrade/bots"
	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/portfolio"
	"github.com/rustyeddy/scantrade/risk"
)

// Options controls how the runner behaves.
type Options struct {
	Portfolio portfolio.Config
	// Risk enables the governor: entries are gated on health and bars
	// where trading would pause are skipped.
	Risk *risk.Policy
	// Window is the lookback handed to the policy on each bar.
	Window        market.Window
	CapitalPct    float64
	MinConfidence float64

	// If true, close all open positions at the last bar.
	// Close reason will be CloseReason (or "EndOfReplay" if empty).
	CloseEnd    bool
	CloseReason string
}

// Result is a summary of a backtest run.
type Result struct {
	Policy  string    `json:"policy"`
	Symbols []string  `json:"symbols"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Bars    int       `json:"bars"`

	Trades     []portfolio.Trade `json:"trades"`
	Wins       int               `json:"wins"`
	Losses     int               `json:"losses"`
	Rejections map[string]int    `json:"rejections"`
	Paused     int               `json:"paused_bars"`

	Stats portfolio.Stats `json:"stats"`
}

// Run steps through the union of bar times in data. On each step it
// reprices the ledger, then lets the bot evaluate every symbol with only
// the bars seen so far.
func Run(ctx context.Context, p bots.Policy, data map[string]market.Series, opts Options, log zerolog.Logger) (Result, error) {
	if p == nil {
		return Result{}, errors.New("backtest: policy is required")
	}
	if opts.Portfolio.InitialCapital <= 0 {
		opts.Portfolio = portfolio.DefaultConfig()
	}
	if opts.Window == (market.Window{}) {
		opts.Window = market.DefaultWindow
	}
	if _, err := opts.Window.Bars(); err != nil {
		return Result{}, fmt.Errorf("backtest: window: %w", err)
	}

	rp := NewReplay(data)
	timeline := rp.Timeline()
	if len(timeline) == 0 {
		return Result{}, errors.New("backtest: no bars")
	}

	syms := make([]string, 0, len(data))
	for s := range data {
		syms = append(syms, s)
	}
	sort.Strings(syms)

	ledger := portfolio.New(opts.Portfolio, nil, log)
	ledger.SetClock(rp.Now)

	var gov *risk.Governor
	if opts.Risk != nil {
		gov = risk.NewGovernor(*opts.Risk, ledger, log)
	}

	res := Result{Policy: p.ID(), Symbols: syms, Start: timeline[0], End: timeline[len(timeline)-1], Rejections: map[string]int{}}
	deps := bots.Deps{
		Provider:      rp,
		Ledger:        ledger,
		Symbols:       syms,
		Window:        opts.Window,
		Log:           log,
		CapitalPct:    opts.CapitalPct,
		MinConfidence: opts.MinConfidence,
		OnReject:      func(_, _ string, v risk.Violation) { res.Rejections[v.Code]++ },
	}
	if gov != nil {
		deps.Gate = gov
	}
	bot := bots.New(p, deps)
	bot.Activate()

	for _, t := range timeline {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		rp.Advance(t)
		res.Bars++

		prices, _ := rp.LatestPrices(ctx, ledger.Symbols())
		ledger.UpdatePositions(ctx, prices)

		if gov != nil && gov.ShouldPauseTrading() {
			res.Paused++
		} else {
			bot.Execute(ctx)
		}
		if gov != nil {
			gov.CalculateHealthScore()
		}
	}

	if opts.CloseEnd {
		reason := opts.CloseReason
		if reason == "" {
			reason = "EndOfReplay"
		}
		for _, pos := range ledger.Positions() {
			if _, err := ledger.Close(ctx, pos.Symbol, pos.CurrentPrice, reason); err != nil {
				return Result{}, err
			}
		}
	}

	res.Trades = ledger.Trades()
	for _, tr := range res.Trades {
		switch {
		case tr.Win():
			res.Wins++
		case tr.RealizedPnL < 0:
			res.Losses++
		}
	}
	res.Stats = ledger.Stats()
	return res, nil
}

// Print writes a human-readable report of r.
func Print(w io.Writer, r Result) {
	line := strings.Repeat("-", 50)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, strings.Repeat("=", 50))

	fmt.Fprintf(w, "Policy:        %s\n", r.Policy)
	fmt.Fprintf(w, "Symbols:       %s\n", strings.Join(r.Symbols, ","))
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)
	if r.Paused > 0 {
		fmt.Fprintf(w, "Paused bars:   %d\n", r.Paused)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Trades:        %d\n", len(r.Trades))
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.Stats.WinRate)
	if len(r.Rejections) > 0 {
		codes := make([]string, 0, len(r.Rejections))
		for c := range r.Rejections {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		for _, c := range codes {
			fmt.Fprintf(w, "Rejected:      %s x%d\n", c, r.Rejections[c])
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Start Value:   %.2f\n", r.Stats.InitialCapital)
	fmt.Fprintf(w, "End Value:     %.2f\n", r.Stats.PortfolioValue)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", r.Stats.TotalPnL)
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.Stats.TotalPnLPct)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.Stats.MaxDrawdown)
	fmt.Fprintf(w, "Sharpe:        %s\n", ratio(r.Stats.SharpeRatio))
	fmt.Fprintf(w, "Sortino:       %s\n", ratio(r.Stats.SortinoRatio))
	fmt.Fprintln(w)
}

func ratio(r portfolio.Ratio) string {
	f := float64(r)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", f)
}
