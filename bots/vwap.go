package bots

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scantrade/indicators"
	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/risk"
)

type VWAPConfig struct {
	VWAPPeriod    int     `yaml:"vwap_period" json:"vwap_period"`
	DeviationPct  float64 `yaml:"deviation_pct" json:"deviation_pct"`
	MaxConfidence float64 `yaml:"max_confidence" json:"max_confidence"`
	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	MinBars       int     `yaml:"min_bars" json:"min_bars"`
}

func DefaultVWAPConfig() VWAPConfig {
	return VWAPConfig{VWAPPeriod: 14, DeviationPct: 2, MaxConfidence: 90, StopLossPct: 3, MinBars: 50}
}

// VWAPReversion buys stretches below VWAP and sells the return to it.
type VWAPReversion struct {
	cfg VWAPConfig
}

func NewVWAPReversion(cfg VWAPConfig) *VWAPReversion { return &VWAPReversion{cfg: cfg} }

func (p *VWAPReversion) ID() string       { return "vwap_mean_reversion" }
func (p *VWAPReversion) Name() string     { return "VWAP Mean Reversion" }
func (p *VWAPReversion) Strategy() string { return "Mean Reversion" }
func (p *VWAPReversion) Tier() risk.Tier  { return risk.TierLow }
func (p *VWAPReversion) MinBars() int     { return p.cfg.MinBars }

func (p *VWAPReversion) ShouldEnter(_ string, s market.Series) Decision {
	if len(s) < p.MinBars() {
		return no("Insufficient data")
	}
	vwap := indicators.Last(indicators.VWAPSeries(s, p.cfg.VWAPPeriod))
	if !indicators.Defined(vwap) || vwap == 0 {
		return no("VWAP calculation failed")
	}
	dev := (s.Last().Close - vwap) / vwap * 100
	if dev < -p.cfg.DeviationPct {
		return Decision{
			OK:         true,
			Confidence: math.Min(p.cfg.MaxConfidence, 60+math.Abs(dev)*5),
			Reason:     fmt.Sprintf("Price %.1f%% below VWAP", math.Abs(dev)),
		}
	}
	return no("No signal")
}

func (p *VWAPReversion) ShouldExit(_ string, s market.Series, entry float64) Decision {
	if len(s) == 0 {
		return no("No data")
	}
	price := s.Last().Close
	vwap := indicators.Last(indicators.VWAPSeries(s, p.cfg.VWAPPeriod))
	if price >= vwap {
		return Decision{OK: true, Reason: "Price reached VWAP target"}
	}
	if pnl := pnlPct(price, entry); pnl < -p.cfg.StopLossPct {
		return Decision{OK: true, Reason: fmt.Sprintf("Stop loss triggered (%.1f%%)", pnl)}
	}
	return no("Holding")
}
