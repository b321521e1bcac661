package indicators

import "math"

// Bands holds Bollinger band series. Width is (upper-lower)/middle*100 and
// PctB is (close-lower)/(upper-lower).
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
	Width  []float64
	PctB   []float64
}

// Bollinger computes n-period bands k population standard deviations wide.
func Bollinger(closes []float64, n int, k float64) Bands {
	mid := SMASeries(closes, n)
	std := StdSeries(closes, n)

	b := Bands{
		Upper:  nanSeries(len(closes)),
		Middle: mid,
		Lower:  nanSeries(len(closes)),
		Width:  nanSeries(len(closes)),
		PctB:   nanSeries(len(closes)),
	}
	for i := range closes {
		if math.IsNaN(mid[i]) {
			continue
		}
		u := mid[i] + k*std[i]
		l := mid[i] - k*std[i]
		b.Upper[i], b.Lower[i] = u, l
		if mid[i] != 0 {
			b.Width[i] = (u - l) / mid[i] * 100
		}
		if u != l {
			b.PctB[i] = (closes[i] - l) / (u - l)
		}
	}
	return b
}
