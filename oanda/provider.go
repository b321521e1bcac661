package oanda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/scantrade/market"
)

var granularities = []struct {
	d time.Duration
	g Granularity
}{
	{5 * time.Second, S5},
	{time.Minute, M1},
	{5 * time.Minute, M5},
	{15 * time.Minute, M15},
	{30 * time.Minute, M30},
	{time.Hour, H1},
	{4 * time.Hour, H4},
	{24 * time.Hour, D},
	{7 * 24 * time.Hour, W},
	{30 * 24 * time.Hour, M},
}

// GranularityFor maps a bar interval such as "1h" to an OANDA granularity.
func GranularityFor(interval string) (Granularity, error) {
	d, err := market.ParseSpan(interval)
	if err != nil {
		return "", err
	}
	for _, g := range granularities {
		if g.d == d {
			return g.g, nil
		}
	}
	return "", fmt.Errorf("no OANDA granularity for interval %q", interval)
}

// Provider serves market.Provider from OANDA candles. Symbols are looked
// up in Instruments first, so "SPY" can be served from "SPX500_USD".
type Provider struct {
	client      *Client
	instruments map[string]string
}

func NewProvider(c *Client, instruments map[string]string) *Provider {
	return &Provider{client: c, instruments: instruments}
}

func (p *Provider) instrument(symbol string) string {
	if in, ok := p.instruments[symbol]; ok {
		return in
	}
	return symbol
}

// Series fetches the window's worth of complete bars, capped at MaxCount.
func (p *Provider) Series(ctx context.Context, symbol string, w market.Window) (market.Series, error) {
	g, err := GranularityFor(w.Interval)
	if err != nil {
		return nil, err
	}
	n, err := w.Bars()
	if err != nil {
		return nil, err
	}
	if n > MaxCount {
		n = MaxCount
	}
	return p.client.GetCandles(ctx, CandlesRequest{
		Instrument:  p.instrument(symbol),
		Granularity: g,
		Count:       n,
	})
}

// LatestPrice is the close of the newest M1 candle, complete or not.
func (p *Provider) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	s, err := p.client.GetCandles(ctx, CandlesRequest{
		Instrument:        p.instrument(symbol),
		Granularity:       M1,
		Count:             1,
		IncludeIncomplete: true,
	})
	if err != nil {
		return 0, err
	}
	if len(s) == 0 {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return s.Last().Close, nil
}

func (p *Provider) LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	var errs []error
	for _, sym := range symbols {
		px, err := p.LatestPrice(ctx, sym)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sym, err))
			continue
		}
		out[sym] = px
	}
	return out, errors.Join(errs...)
}
