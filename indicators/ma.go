package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scantrade/market"
)

// EMA is an exponential moving average of closes with alpha 2/(n+1).
// It is seeded with the first value and becomes Ready after n updates.
type EMA struct {
	n     int
	k     float64
	v     float64
	count int
}

func NewEMA(n int) *EMA {
	if n < 1 {
		n = 1
	}
	return &EMA{n: n, k: 2.0 / float64(n+1)}
}

func (e *EMA) Name() string { return fmt.Sprintf("EMA(%d)", e.n) }
func (e *EMA) Warmup() int  { return e.n }
func (e *EMA) Ready() bool  { return e.count >= e.n }

func (e *EMA) Reset() {
	e.v = 0
	e.count = 0
}

func (e *EMA) Update(c market.Candle) { e.UpdateValue(c.Close) }

// UpdateValue feeds a raw value, used when smoothing derived series such
// as the MACD line.
func (e *EMA) UpdateValue(x float64) {
	if e.count == 0 {
		e.v = x
	} else {
		e.v = e.k*x + (1-e.k)*e.v
	}
	e.count++
}

func (e *EMA) Float64() float64 { return e.v }

// EMASeries returns the EMA of values. NaN inputs are skipped and do not
// advance the warmup.
func EMASeries(values []float64, n int) []float64 {
	out := nanSeries(len(values))
	e := NewEMA(n)
	for i, x := range values {
		if math.IsNaN(x) {
			continue
		}
		e.UpdateValue(x)
		if e.Ready() {
			out[i] = e.Float64()
		}
	}
	return out
}

// SMASeries returns the simple moving average over n values.
func SMASeries(values []float64, n int) []float64 {
	out := nanSeries(len(values))
	if n < 1 {
		return out
	}
	sum := 0.0
	for i, x := range values {
		sum += x
		if i >= n {
			sum -= values[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// StdSeries returns the rolling population standard deviation over n values.
func StdSeries(values []float64, n int) []float64 {
	out := nanSeries(len(values))
	if n < 1 {
		return out
	}
	for i := n - 1; i < len(values); i++ {
		w := values[i-n+1 : i+1]
		mean := 0.0
		for _, x := range w {
			mean += x
		}
		mean /= float64(n)
		ss := 0.0
		for _, x := range w {
			ss += (x - mean) * (x - mean)
		}
		out[i] = math.Sqrt(ss / float64(n))
	}
	return out
}

// Mean of the last n defined values of xs; NaN if fewer than n exist.
func TrailingMean(xs []float64, n int) float64 {
	if n < 1 || len(xs) < n {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs[len(xs)-n:] {
		if math.IsNaN(x) {
			return math.NaN()
		}
		sum += x
	}
	return sum / float64(n)
}
