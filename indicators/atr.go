package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scantrade/market"
)

func trueRange(c, prev market.Candle) float64 {
	return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev.Close), math.Abs(c.Low-prev.Close)))
}

// ATR is the Wilder average true range. The first candle contributes
// high-low; the first value is the mean of n true ranges.
type ATR struct {
	n       int
	atr     float64
	count   int
	sum     float64
	prev    market.Candle
	hasPrev bool
}

func NewATR(n int) *ATR {
	if n < 1 {
		n = 1
	}
	return &ATR{n: n}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR(%d)", a.n) }
func (a *ATR) Warmup() int  { return a.n }
func (a *ATR) Ready() bool  { return a.count >= a.n }

func (a *ATR) Reset() {
	*a = ATR{n: a.n}
}

func (a *ATR) Update(c market.Candle) {
	tr := c.High - c.Low
	if a.hasPrev {
		tr = trueRange(c, a.prev)
	}
	a.prev = c
	a.hasPrev = true
	a.count++

	if a.count <= a.n {
		a.sum += tr
		if a.count == a.n {
			a.atr = a.sum / float64(a.n)
		}
		return
	}
	a.atr = (a.atr*float64(a.n-1) + tr) / float64(a.n)
}

func (a *ATR) Float64() float64 { return a.atr }

func ATRSeries(s market.Series, n int) []float64 {
	return run(NewATR(n), s)
}
