package bots

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scantrade/indicators"
	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/risk"
)

type BounceConfig struct {
	Window       int     `yaml:"window" json:"window"`
	ProximityPct float64 `yaml:"proximity_pct" json:"proximity_pct"`
	VolumeWindow int     `yaml:"volume_window" json:"volume_window"`
	VolumeRatio  float64 `yaml:"volume_ratio" json:"volume_ratio"`

	ConfirmedConfidence   float64 `yaml:"confirmed_confidence" json:"confirmed_confidence"`
	UnconfirmedConfidence float64 `yaml:"unconfirmed_confidence" json:"unconfirmed_confidence"`

	TargetPct   float64 `yaml:"target_pct" json:"target_pct"`
	StopLossPct float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	MinBars     int     `yaml:"min_bars" json:"min_bars"`
}

func DefaultBounceConfig() BounceConfig {
	return BounceConfig{
		Window:                20,
		ProximityPct:          1,
		VolumeWindow:          20,
		VolumeRatio:           1.1,
		ConfirmedConfidence:   60,
		UnconfirmedConfidence: 50,
		TargetPct:             3,
		StopLossPct:           2,
		MinBars:               50,
	}
}

// SupportBounce buys an up-close near a known support level.
type SupportBounce struct {
	cfg BounceConfig
}

func NewSupportBounce(cfg BounceConfig) *SupportBounce { return &SupportBounce{cfg: cfg} }

func (p *SupportBounce) ID() string       { return "support_bounce" }
func (p *SupportBounce) Name() string     { return "Support Bounce" }
func (p *SupportBounce) Strategy() string { return "Reversal" }
func (p *SupportBounce) Tier() risk.Tier  { return risk.TierLow }
func (p *SupportBounce) MinBars() int     { return p.cfg.MinBars }

func (p *SupportBounce) ShouldEnter(_ string, s market.Series) Decision {
	if len(s) < p.MinBars() {
		return no("Insufficient data")
	}
	lv := indicators.SupportResistance(s, p.cfg.Window)
	if len(lv.Support) == 0 {
		return no("No support levels found")
	}

	cur, prev := s.Last().Close, s.Prev().Close
	vol := s.Last().Volume
	avgVol := indicators.TrailingMean(s.Volumes(), p.cfg.VolumeWindow)

	for _, sp := range lv.Support {
		if math.Abs((cur-sp)/sp)*100 >= p.cfg.ProximityPct {
			continue
		}
		if cur <= prev {
			continue
		}
		conf := p.cfg.UnconfirmedConfidence
		if vol > avgVol*p.cfg.VolumeRatio {
			conf = p.cfg.ConfirmedConfidence
		}
		return Decision{OK: true, Confidence: conf, Reason: fmt.Sprintf("Bounce from support at $%.2f", sp)}
	}
	return no("No support bounce")
}

func (p *SupportBounce) ShouldExit(_ string, s market.Series, entry float64) Decision {
	if len(s) == 0 {
		return no("No data")
	}
	pnl := pnlPct(s.Last().Close, entry)
	if pnl > p.cfg.TargetPct {
		return Decision{OK: true, Reason: fmt.Sprintf("Profit target reached (%.1f%%)", pnl)}
	}
	if pnl < -p.cfg.StopLossPct {
		return Decision{OK: true, Reason: fmt.Sprintf("Stop loss (%.1f%%)", pnl)}
	}
	return no("Holding")
}
