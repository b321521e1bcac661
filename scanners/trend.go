package scanners

import (
	"fmt"

	"github.com/rustyeddy/scantrade/indicators"
	"github.com/rustyeddy/scantrade/market"
)

type TrendConfig struct {
	Fast int `yaml:"fast" json:"fast"`
	Mid  int `yaml:"mid" json:"mid"`
	Slow int `yaml:"slow" json:"slow"`

	BaseConfidence float64 `yaml:"base_confidence" json:"base_confidence"`
	MaxConfidence  float64 `yaml:"max_confidence" json:"max_confidence"`
	// Confidence points per percent of EMA separation.
	SeparationWeight float64 `yaml:"separation_weight" json:"separation_weight"`
}

func DefaultTrendConfig() TrendConfig {
	return TrendConfig{Fast: 20, Mid: 50, Slow: 200, BaseConfidence: 70, MaxConfidence: 94, SeparationWeight: 10}
}

// TrendAlignment fires when the fast, mid and slow EMAs are stacked in
// order. Wider separation raises confidence.
type TrendAlignment struct {
	cfg TrendConfig
}

func NewTrendAlignment(cfg TrendConfig) *TrendAlignment { return &TrendAlignment{cfg: cfg} }

func (a *TrendAlignment) ID() string   { return "trend_alignment" }
func (a *TrendAlignment) Name() string { return "Trend Alignment Scanner" }
func (a *TrendAlignment) MinBars() int { return a.cfg.Slow }

func (a *TrendAlignment) Condition() string {
	return fmt.Sprintf("EMA %d > EMA %d > EMA %d", a.cfg.Fast, a.cfg.Mid, a.cfg.Slow)
}

func (a *TrendAlignment) Analyze(symbol string, s market.Series) (Signal, bool) {
	if len(s) < a.MinBars() {
		return Signal{}, false
	}
	closes := s.Closes()
	fast := indicators.Last(indicators.EMASeries(closes, a.cfg.Fast))
	mid := indicators.Last(indicators.EMASeries(closes, a.cfg.Mid))
	slow := indicators.Last(indicators.EMASeries(closes, a.cfg.Slow))
	if !indicators.Defined(fast, mid, slow) || mid == 0 || slow == 0 {
		return Signal{}, false
	}

	var (
		kind          Kind
		sepSlow, sepF float64
		op            string
	)
	switch {
	case fast > mid && mid > slow:
		kind, op = Bullish, ">"
		sepSlow = (mid - slow) / slow * 100
		sepF = (fast - mid) / mid * 100
	case fast < mid && mid < slow:
		kind, op = Bearish, "<"
		sepSlow = (slow - mid) / slow * 100
		sepF = (mid - fast) / mid * 100
	default:
		return Signal{}, false
	}

	conf := min(a.cfg.MaxConfidence, a.cfg.BaseConfidence+sepSlow*a.cfg.SeparationWeight+sepF*a.cfg.SeparationWeight)
	return Signal{
		Symbol:     symbol,
		Kind:       kind,
		Confidence: conf,
		Price:      s.Last().Close,
		Indicators: map[string]float64{
			fmt.Sprintf("ema_%d", a.cfg.Fast): fast,
			fmt.Sprintf("ema_%d", a.cfg.Mid):  mid,
			fmt.Sprintf("ema_%d", a.cfg.Slow): slow,
		},
		Condition: fmt.Sprintf("EMA %d %s EMA %d %s EMA %d", a.cfg.Fast, op, a.cfg.Mid, op, a.cfg.Slow),
	}, true
}
