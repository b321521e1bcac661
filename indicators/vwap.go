package indicators

import "github.com/rustyeddy/scantrade/market"

// VWAPSeries is a rolling n-bar volume weighted average of the typical
// price. Windows with zero volume stay NaN.
func VWAPSeries(s market.Series, n int) []float64 {
	out := nanSeries(len(s))
	if n < 1 {
		return out
	}
	var pv, vol float64
	for i, c := range s {
		pv += c.TypicalPrice() * c.Volume
		vol += c.Volume
		if i >= n {
			old := s[i-n]
			pv -= old.TypicalPrice() * old.Volume
			vol -= old.Volume
		}
		if i >= n-1 && vol > 0 {
			out[i] = pv / vol
		}
	}
	return out
}
