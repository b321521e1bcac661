package bots

import (
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/scantrade/indicators"
	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/risk"
)

type TrendConfig struct {
	ADXPeriod int     `yaml:"adx_period" json:"adx_period"`
	MinADX    float64 `yaml:"min_adx" json:"min_adx"`
	ExitADX   float64 `yaml:"exit_adx" json:"exit_adx"`

	FastEMA int `yaml:"fast_ema" json:"fast_ema"`
	MidEMA  int `yaml:"mid_ema" json:"mid_ema"`
	SlowEMA int `yaml:"slow_ema" json:"slow_ema"`

	BaseConfidence float64 `yaml:"base_confidence" json:"base_confidence"`
	ADXWeight      float64 `yaml:"adx_weight" json:"adx_weight"`
	MaxConfidence  float64 `yaml:"max_confidence" json:"max_confidence"`
	StopLossPct    float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	MinBars        int     `yaml:"min_bars" json:"min_bars"`
}

func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		ADXPeriod:      14,
		MinADX:         25,
		ExitADX:        20,
		FastEMA:        20,
		MidEMA:         50,
		SlowEMA:        200,
		BaseConfidence: 50,
		ADXWeight:      0.8,
		MaxConfidence:  80,
		StopLossPct:    7,
		MinBars:        200,
	}
}

// TrendFollowing joins strong, aligned up-trends and leaves when the trend
// fades or reverses.
type TrendFollowing struct {
	cfg TrendConfig
}

func NewTrendFollowing(cfg TrendConfig) *TrendFollowing { return &TrendFollowing{cfg: cfg} }

func (p *TrendFollowing) ID() string       { return "trend_following_pro" }
func (p *TrendFollowing) Name() string     { return "Trend Following PRO" }
func (p *TrendFollowing) Strategy() string { return "Trend" }
func (p *TrendFollowing) Tier() risk.Tier  { return risk.TierMedium }
func (p *TrendFollowing) MinBars() int     { return p.cfg.MinBars }

func (p *TrendFollowing) emas(s market.Series) (fast, mid float64) {
	closes := s.Closes()
	return indicators.Last(indicators.EMASeries(closes, p.cfg.FastEMA)),
		indicators.Last(indicators.EMASeries(closes, p.cfg.MidEMA))
}

func (p *TrendFollowing) ShouldEnter(_ string, s market.Series) Decision {
	if len(s) < p.MinBars() {
		return no("Insufficient data")
	}
	adx := indicators.Last(indicators.ADXSeries(s, p.cfg.ADXPeriod))
	if !indicators.Defined(adx) {
		return no("ADX calculation failed")
	}
	trend := indicators.DetectTrend(s, p.cfg.FastEMA, p.cfg.MidEMA, p.cfg.SlowEMA)
	fast, mid := p.emas(s)

	if adx > p.cfg.MinADX && trend == indicators.TrendBullish && fast > mid {
		return Decision{
			OK:         true,
			Confidence: math.Min(p.cfg.MaxConfidence, p.cfg.BaseConfidence+adx*p.cfg.ADXWeight),
			Reason:     fmt.Sprintf("Strong %s trend (ADX: %.1f)", strings.ToLower(string(trend)), adx),
		}
	}
	return no("No strong trend")
}

func (p *TrendFollowing) ShouldExit(_ string, s market.Series, entry float64) Decision {
	if len(s) == 0 {
		return no("No data")
	}
	if adx := indicators.Last(indicators.ADXSeries(s, p.cfg.ADXPeriod)); adx < p.cfg.ExitADX {
		return Decision{OK: true, Reason: "Trend weakened"}
	}
	if fast, mid := p.emas(s); fast < mid {
		return Decision{OK: true, Reason: "Trend reversal detected"}
	}
	if pnl := pnlPct(s.Last().Close, entry); pnl < -p.cfg.StopLossPct {
		return Decision{OK: true, Reason: fmt.Sprintf("Stop loss (%.1f%%)", pnl)}
	}
	return no("Holding")
}
