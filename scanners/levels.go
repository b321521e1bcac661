package scanners

import (
	"fmt"

	"github.com/rustyeddy/scantrade/indicators"
	"github.com/rustyeddy/scantrade/market"
)

type LevelsConfig struct {
	Window       int `yaml:"window" json:"window"`
	VolumeWindow int `yaml:"volume_window" json:"volume_window"`
	MinBars      int `yaml:"min_bars" json:"min_bars"`

	BreakoutBase        float64 `yaml:"breakout_base" json:"breakout_base"`
	BreakoutVolumeRatio float64 `yaml:"breakout_volume_ratio" json:"breakout_volume_ratio"`
	BreakoutDistancePct float64 `yaml:"breakout_distance_pct" json:"breakout_distance_pct"`
	BreakoutCap         float64 `yaml:"breakout_cap" json:"breakout_cap"`

	SupportBase        float64 `yaml:"support_base" json:"support_base"`
	SupportVolumeRatio float64 `yaml:"support_volume_ratio" json:"support_volume_ratio"`
	SupportDistancePct float64 `yaml:"support_distance_pct" json:"support_distance_pct"`
	SupportCap         float64 `yaml:"support_cap" json:"support_cap"`
	// Support counts as reached when it is at or above this fraction of price.
	SupportProximity float64 `yaml:"support_proximity" json:"support_proximity"`
}

func DefaultLevelsConfig() LevelsConfig {
	return LevelsConfig{
		Window:              20,
		VolumeWindow:        20,
		MinBars:             50,
		BreakoutBase:        62,
		BreakoutVolumeRatio: 1.2,
		BreakoutDistancePct: 0.5,
		BreakoutCap:         75,
		SupportBase:         60,
		SupportVolumeRatio:  1.1,
		SupportDistancePct:  1,
		SupportCap:          70,
		SupportProximity:    0.99,
	}
}

// SupportResistance watches pivot levels: a close through resistance is a
// BREAKOUT, a drop onto support is WAITING for a bounce.
type SupportResistance struct {
	cfg LevelsConfig
}

func NewSupportResistance(cfg LevelsConfig) *SupportResistance {
	return &SupportResistance{cfg: cfg}
}

func (a *SupportResistance) ID() string        { return "support_resistance" }
func (a *SupportResistance) Name() string      { return "Support/Resistance Break" }
func (a *SupportResistance) Condition() string { return "Price crosses key level" }
func (a *SupportResistance) MinBars() int      { return a.cfg.MinBars }

func (a *SupportResistance) Analyze(symbol string, s market.Series) (Signal, bool) {
	if len(s) < a.MinBars() {
		return Signal{}, false
	}
	lv := indicators.SupportResistance(s, a.cfg.Window)
	if len(lv.Resistance) == 0 && len(lv.Support) == 0 {
		return Signal{}, false
	}

	cur, prev := s.Last().Close, s.Prev().Close
	vol := s.Last().Volume
	avgVol := indicators.TrailingMean(s.Volumes(), a.cfg.VolumeWindow)
	volRatio := 1.0
	if avgVol > 0 {
		volRatio = vol / avgVol
	}

	for _, r := range lv.Resistance {
		if !(prev < r && r <= cur) {
			continue
		}
		dist := (cur - r) / r * 100
		conf := a.cfg.BreakoutBase
		if vol > avgVol*a.cfg.BreakoutVolumeRatio {
			conf += 15
		}
		if dist > a.cfg.BreakoutDistancePct {
			conf += 10
		}
		return Signal{
			Symbol:     symbol,
			Kind:       Breakout,
			Confidence: min(conf, a.cfg.BreakoutCap),
			Price:      cur,
			Indicators: map[string]float64{"resistance_level": r, "volume_ratio": volRatio, "distance_pct": dist},
			Condition:  fmt.Sprintf("Price broke above resistance at $%.2f", r),
		}, true
	}

	for _, sp := range lv.Support {
		if !(prev > sp && sp >= cur*a.cfg.SupportProximity) {
			continue
		}
		dist := (sp - cur) / sp * 100
		conf := a.cfg.SupportBase
		if vol > avgVol*a.cfg.SupportVolumeRatio {
			conf += 10
		}
		if dist < a.cfg.SupportDistancePct {
			conf += 8
		}
		return Signal{
			Symbol:     symbol,
			Kind:       Waiting,
			Confidence: min(conf, a.cfg.SupportCap),
			Price:      cur,
			Indicators: map[string]float64{"support_level": sp, "volume_ratio": volRatio, "distance_pct": dist},
			Condition:  fmt.Sprintf("Price near support at $%.2f", sp),
		}, true
	}
	return Signal{}, false
}
