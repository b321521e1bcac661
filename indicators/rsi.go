package indicators

import (
	"fmt"

	"github.com/rustyeddy/scantrade/market"
)

// RSI is Wilder's relative strength index. Gains and losses are smoothed
// with alpha 1/n starting from the first close-to-close change.
type RSI struct {
	n       int
	prev    float64
	hasPrev bool
	avgGain float64
	avgLoss float64
	changes int
}

func NewRSI(n int) *RSI {
	if n < 1 {
		n = 1
	}
	return &RSI{n: n}
}

func (r *RSI) Name() string { return fmt.Sprintf("RSI(%d)", r.n) }

// Warmup counts candles: n changes need n+1 closes.
func (r *RSI) Warmup() int { return r.n + 1 }
func (r *RSI) Ready() bool { return r.changes >= r.n }

func (r *RSI) Reset() {
	*r = RSI{n: r.n}
}

func (r *RSI) Update(c market.Candle) {
	if !r.hasPrev {
		r.prev = c.Close
		r.hasPrev = true
		return
	}
	d := c.Close - r.prev
	r.prev = c.Close

	gain, loss := 0.0, 0.0
	if d > 0 {
		gain = d
	} else {
		loss = -d
	}
	if r.changes == 0 {
		r.avgGain, r.avgLoss = gain, loss
	} else {
		a := 1.0 / float64(r.n)
		r.avgGain = a*gain + (1-a)*r.avgGain
		r.avgLoss = a*loss + (1-a)*r.avgLoss
	}
	r.changes++
}

func (r *RSI) Float64() float64 {
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}

// RSISeries runs an n-period RSI over the closes of s.
func RSISeries(s market.Series, n int) []float64 {
	return run(NewRSI(n), s)
}
