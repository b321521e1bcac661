// Package indicators computes the technical indicators scanners and bots
// consume. Streaming types follow the Indicator interface; the *Series
// helpers run them over a whole market.Series and return one value per
// bar, with NaN where the indicator is not defined yet.
package indicators

import (
	"math"

	"github.com/rustyeddy/scantrade/market"
)

// Indicator computes a single streaming value from candles.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready can be true.
	Warmup() int

	Reset()

	// Update consumes the next closed candle.
	Update(c market.Candle)

	Ready() bool

	// Float64 returns the current value. Callers check Ready first.
	Float64() float64
}

// Last returns the final element of xs, or NaN if xs is empty.
func Last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

// Defined reports whether every value is a usable number.
func Defined(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// run feeds every candle to ind and records Float64 once it is ready.
func run(ind Indicator, s market.Series) []float64 {
	out := nanSeries(len(s))
	for i, c := range s {
		ind.Update(c)
		if ind.Ready() {
			out[i] = ind.Float64()
		}
	}
	return out
}
