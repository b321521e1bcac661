package indicators

// MACD holds the line, signal and histogram series.
type MACD struct {
	Line   []float64
	Signal []float64
	Hist   []float64
}

// MACDSeries computes MACD(fast, slow, signal) over closes. The signal line
// is an EMA of the MACD line starting from its first defined value.
func MACDSeries(closes []float64, fast, slow, signal int) MACD {
	f := EMASeries(closes, fast)
	sl := EMASeries(closes, slow)

	line := nanSeries(len(closes))
	for i := range closes {
		line[i] = f[i] - sl[i] // NaN propagates
	}
	sig := EMASeries(line, signal)
	hist := nanSeries(len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return MACD{Line: line, Signal: sig, Hist: hist}
}
