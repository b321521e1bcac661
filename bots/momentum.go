package bots

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scantrade/indicators"
	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/risk"
)

type MomentumConfig struct {
	RSIPeriod int     `yaml:"rsi_period" json:"rsi_period"`
	RSILow    float64 `yaml:"rsi_low" json:"rsi_low"`
	RSIHigh   float64 `yaml:"rsi_high" json:"rsi_high"`
	ExitRSI   float64 `yaml:"exit_rsi" json:"exit_rsi"`

	FastEMA    int `yaml:"fast_ema" json:"fast_ema"`
	SlowEMA    int `yaml:"slow_ema" json:"slow_ema"`
	MACDFast   int `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow" json:"macd_slow"`
	MACDSignal int `yaml:"macd_signal" json:"macd_signal"`

	BaseConfidence float64 `yaml:"base_confidence" json:"base_confidence"`
	RSIWeight      float64 `yaml:"rsi_weight" json:"rsi_weight"`
	MaxConfidence  float64 `yaml:"max_confidence" json:"max_confidence"`
	StopLossPct    float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	MinBars        int     `yaml:"min_bars" json:"min_bars"`
}

func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		RSIPeriod:      14,
		RSILow:         50,
		RSIHigh:        70,
		ExitRSI:        75,
		FastEMA:        20,
		SlowEMA:        50,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		BaseConfidence: 55,
		RSIWeight:      0.3,
		MaxConfidence:  75,
		StopLossPct:    5,
		MinBars:        50,
	}
}

// MomentumAccumulation rides established up-moves that are not yet
// overbought.
type MomentumAccumulation struct {
	cfg MomentumConfig
}

func NewMomentumAccumulation(cfg MomentumConfig) *MomentumAccumulation {
	return &MomentumAccumulation{cfg: cfg}
}

func (p *MomentumAccumulation) ID() string       { return "momentum_accumulation" }
func (p *MomentumAccumulation) Name() string     { return "Momentum Accumulation" }
func (p *MomentumAccumulation) Strategy() string { return "Momentum" }
func (p *MomentumAccumulation) Tier() risk.Tier  { return risk.TierMedium }
func (p *MomentumAccumulation) MinBars() int     { return p.cfg.MinBars }

func (p *MomentumAccumulation) macdHist(s market.Series) float64 {
	return indicators.Last(indicators.MACDSeries(s.Closes(), p.cfg.MACDFast, p.cfg.MACDSlow, p.cfg.MACDSignal).Hist)
}

func (p *MomentumAccumulation) ShouldEnter(_ string, s market.Series) Decision {
	if len(s) < p.MinBars() {
		return no("Insufficient data")
	}
	rsi := indicators.Last(indicators.RSISeries(s, p.cfg.RSIPeriod))
	hist := p.macdHist(s)
	closes := s.Closes()
	fast := indicators.Last(indicators.EMASeries(closes, p.cfg.FastEMA))
	slow := indicators.Last(indicators.EMASeries(closes, p.cfg.SlowEMA))
	if !indicators.Defined(rsi, hist) {
		return no("Indicator calculation failed")
	}

	if rsi > p.cfg.RSILow && rsi < p.cfg.RSIHigh && hist > 0 && fast > slow {
		return Decision{
			OK:         true,
			Confidence: math.Min(p.cfg.MaxConfidence, p.cfg.BaseConfidence+rsi*p.cfg.RSIWeight),
			Reason:     "Strong momentum detected",
		}
	}
	return no("No momentum signal")
}

func (p *MomentumAccumulation) ShouldExit(_ string, s market.Series, entry float64) Decision {
	if len(s) == 0 {
		return no("No data")
	}
	if rsi := indicators.Last(indicators.RSISeries(s, p.cfg.RSIPeriod)); rsi > p.cfg.ExitRSI {
		return Decision{OK: true, Reason: "RSI overbought"}
	}
	if p.macdHist(s) < 0 {
		return Decision{OK: true, Reason: "MACD turned bearish"}
	}
	if pnl := pnlPct(s.Last().Close, entry); pnl < -p.cfg.StopLossPct {
		return Decision{OK: true, Reason: fmt.Sprintf("Stop loss (%.1f%%)", pnl)}
	}
	return no("Holding")
}
