package bots

import (
	"fmt"

	"github.com/rustyeddy/scantrade/indicators"
	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/risk"
)

type BreakoutConfig struct {
	Period       int     `yaml:"period" json:"period"`
	StdDev       float64 `yaml:"std_dev" json:"std_dev"`
	AvgWindow    int     `yaml:"avg_window" json:"avg_window"`
	SqueezeRatio float64 `yaml:"squeeze_ratio" json:"squeeze_ratio"`
	ATRPeriod    int     `yaml:"atr_period" json:"atr_period"`

	UpConfidence   float64 `yaml:"up_confidence" json:"up_confidence"`
	DownConfidence float64 `yaml:"down_confidence" json:"down_confidence"`

	// Exits in multiples of ATR.
	ProfitATR float64 `yaml:"profit_atr" json:"profit_atr"`
	StopATR   float64 `yaml:"stop_atr" json:"stop_atr"`

	MinBars int `yaml:"min_bars" json:"min_bars"`
}

func DefaultBreakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		Period:         20,
		StdDev:         2,
		AvgWindow:      50,
		SqueezeRatio:   0.7,
		ATRPeriod:      14,
		UpConfidence:   65,
		DownConfidence: 45,
		ProfitATR:      3,
		StopATR:        1.5,
		MinBars:        50,
	}
}

// VolatilityBreakout enters when price leaves the Bollinger bands during
// a squeeze and exits on ATR-sized moves.
type VolatilityBreakout struct {
	cfg BreakoutConfig
}

func NewVolatilityBreakout(cfg BreakoutConfig) *VolatilityBreakout {
	return &VolatilityBreakout{cfg: cfg}
}

func (p *VolatilityBreakout) ID() string       { return "volatility_breakout" }
func (p *VolatilityBreakout) Name() string     { return "Volatility Compression" }
func (p *VolatilityBreakout) Strategy() string { return "Breakout" }
func (p *VolatilityBreakout) Tier() risk.Tier  { return risk.TierHigh }
func (p *VolatilityBreakout) MinBars() int     { return p.cfg.MinBars }

func (p *VolatilityBreakout) ShouldEnter(_ string, s market.Series) Decision {
	if len(s) < p.MinBars() {
		return no("Insufficient data")
	}
	bb := indicators.Bollinger(s.Closes(), p.cfg.Period, p.cfg.StdDev)
	upper, lower := indicators.Last(bb.Upper), indicators.Last(bb.Lower)
	width := indicators.Last(bb.Width)
	avg := indicators.TrailingMean(bb.Width, p.cfg.AvgWindow)
	if !indicators.Defined(upper, lower, width) {
		return no("Indicator calculation failed")
	}

	cur, prev := s.Last().Close, s.Prev().Close
	squeezed := width < avg*p.cfg.SqueezeRatio
	up := prev <= upper && cur > upper
	down := prev >= lower && cur < lower

	if squeezed && (up || down) {
		conf, dir := p.cfg.UpConfidence, "upward"
		if !up {
			conf, dir = p.cfg.DownConfidence, "downward"
		}
		return Decision{OK: true, Confidence: conf, Reason: fmt.Sprintf("Breakout %s from squeeze", dir)}
	}
	return no("No breakout signal")
}

func (p *VolatilityBreakout) ShouldExit(_ string, s market.Series, entry float64) Decision {
	if len(s) == 0 {
		return no("No data")
	}
	atr := indicators.Last(indicators.ATRSeries(s, p.cfg.ATRPeriod))
	pnl := s.Last().Close - entry
	if pnl > atr*p.cfg.ProfitATR {
		return Decision{OK: true, Reason: "Profit target reached"}
	}
	if pnl < -atr*p.cfg.StopATR {
		return Decision{OK: true, Reason: "Stop loss triggered"}
	}
	return no("Holding")
}
