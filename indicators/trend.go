package indicators

import "github.com/rustyeddy/scantrade/market"

type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendNeutral Trend = "NEUTRAL"
)

// DetectTrend compares the latest fast, mid and slow EMAs of the closes.
// Stacked upward is bullish, stacked downward bearish, anything else or
// too little data is neutral.
func DetectTrend(s market.Series, fast, mid, slow int) Trend {
	closes := s.Closes()
	f := Last(EMASeries(closes, fast))
	m := Last(EMASeries(closes, mid))
	sl := Last(EMASeries(closes, slow))
	if !Defined(f, m, sl) {
		return TrendNeutral
	}
	switch {
	case f > m && m > sl:
		return TrendBullish
	case f < m && m < sl:
		return TrendBearish
	}
	return TrendNeutral
}
