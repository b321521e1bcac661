package feed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/rustyeddy/scantrade/market"
)

// MaxSyntheticBars caps a single synthetic series.
const MaxSyntheticBars = 5000

// Synthetic generates deterministic bars for any symbol. The same symbol
// and timestamp always produce the same price, so repeated fetches agree
// and tests are reproducible. It never fails.
type Synthetic struct {
	now func() time.Time
}

func NewSynthetic() *Synthetic {
	return &Synthetic{now: time.Now}
}

type waveParams struct {
	base   float64
	amps   [3]float64 // fraction of base
	period [3]float64 // hours
	phase  [3]float64
}

func paramsFor(symbol string) waveParams {
	seed := xxh3.HashString(symbol)
	p := waveParams{base: 20 + float64(seed%480)}
	for i := 0; i < 3; i++ {
		h := xxh3.HashString(fmt.Sprintf("%s/%d", symbol, i))
		p.period[i] = []float64{6, 60, 600}[i] * (1 + float64(h%1000)/1000)
		p.amps[i] = []float64{0.004, 0.02, 0.08}[i]
		p.phase[i] = float64((h>>16)%6283) / 1000
	}
	return p
}

// unit maps a hash into [-1, 1).
func unit(h uint64) float64 {
	return float64(h%20001)/10000 - 1
}

func noise(symbol string, ts int64, salt string) float64 {
	return unit(xxh3.HashString(fmt.Sprintf("%s|%d|%s", symbol, ts, salt)))
}

func (p waveParams) price(symbol string, t time.Time) float64 {
	hours := float64(t.Unix()) / 3600
	v := 1.0
	for i := 0; i < 3; i++ {
		v += p.amps[i] * math.Sin(2*math.Pi*hours/p.period[i]+p.phase[i])
	}
	v += 0.001 * noise(symbol, t.Unix(), "n")
	return p.base * v
}

func (s *Synthetic) Series(_ context.Context, symbol string, w market.Window) (market.Series, error) {
	n, err := w.Bars()
	if err != nil {
		return nil, err
	}
	iv, err := w.IntervalDuration()
	if err != nil {
		return nil, err
	}
	if n > MaxSyntheticBars {
		n = MaxSyntheticBars
	}

	p := paramsFor(symbol)
	end := s.now().Truncate(iv)
	start := end.Add(-time.Duration(n-1) * iv)
	out := make(market.Series, 0, n)
	prev := p.price(symbol, start.Add(-iv))
	for i := 0; i < n; i++ {
		t := start.Add(time.Duration(i) * iv)
		cl := p.price(symbol, t)
		hi := math.Max(prev, cl) * (1 + 0.002*math.Abs(noise(symbol, t.Unix(), "h")))
		lo := math.Min(prev, cl) * (1 - 0.002*math.Abs(noise(symbol, t.Unix(), "l")))
		vol := math.Round(50000 * (1.5 + noise(symbol, t.Unix(), "v")))
		out = append(out, market.Candle{Time: t, Open: prev, High: hi, Low: lo, Close: cl, Volume: vol})
		prev = cl
	}
	return out, nil
}

func (s *Synthetic) LatestPrice(_ context.Context, symbol string) (float64, error) {
	return paramsFor(symbol).price(symbol, s.now().Truncate(time.Second)), nil
}

func (s *Synthetic) LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	var errs []error
	for _, sym := range symbols {
		px, err := s.LatestPrice(ctx, sym)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[sym] = px
	}
	return out, errors.Join(errs...)
}
