package scanners

import (
	"fmt"

	"github.com/rustyeddy/scantrade/indicators"
	"github.com/rustyeddy/scantrade/market"
)

type CompressionConfig struct {
	Period    int     `yaml:"period" json:"period"`
	StdDev    float64 `yaml:"std_dev" json:"std_dev"`
	AvgWindow int     `yaml:"avg_window" json:"avg_window"`
	ATRPeriod int     `yaml:"atr_period" json:"atr_period"`

	// Squeeze when width is at most this fraction of its average.
	SqueezeRatio float64 `yaml:"squeeze_ratio" json:"squeeze_ratio"`

	BaseConfidence float64 `yaml:"base_confidence" json:"base_confidence"`
	MaxConfidence  float64 `yaml:"max_confidence" json:"max_confidence"`
	MinBars        int     `yaml:"min_bars" json:"min_bars"`
}

func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Period:         20,
		StdDev:         2,
		AvgWindow:      50,
		ATRPeriod:      14,
		SqueezeRatio:   0.7,
		BaseConfidence: 60,
		MaxConfidence:  87,
		MinBars:        50,
	}
}

// VolatilityCompression flags Bollinger squeezes: band width well under
// its recent average, hinting that a breakout is building.
type VolatilityCompression struct {
	cfg CompressionConfig
}

func NewVolatilityCompression(cfg CompressionConfig) *VolatilityCompression {
	return &VolatilityCompression{cfg: cfg}
}

func (a *VolatilityCompression) ID() string        { return "volatility_compression" }
func (a *VolatilityCompression) Name() string      { return "Volatility Compression" }
func (a *VolatilityCompression) Condition() string { return "BB Squeeze detected" }
func (a *VolatilityCompression) MinBars() int      { return a.cfg.MinBars }

func (a *VolatilityCompression) Analyze(symbol string, s market.Series) (Signal, bool) {
	if len(s) < a.MinBars() {
		return Signal{}, false
	}
	bb := indicators.Bollinger(s.Closes(), a.cfg.Period, a.cfg.StdDev)
	width := indicators.Last(bb.Width)
	avg := indicators.TrailingMean(bb.Width, a.cfg.AvgWindow)
	if !indicators.Defined(width, avg) || avg <= 0 {
		return Signal{}, false
	}

	ratio := width / avg
	if ratio > a.cfg.SqueezeRatio {
		return Signal{}, false
	}

	pct := indicators.Last(bb.PctB)
	hint := "pending"
	switch {
	case pct > 0.8:
		hint = "upward"
	case pct < 0.2:
		hint = "downward"
	}

	conf := min(a.cfg.MaxConfidence, a.cfg.BaseConfidence+(1-ratio)*100*0.5)
	return Signal{
		Symbol:     symbol,
		Kind:       Ready,
		Confidence: conf,
		Price:      s.Last().Close,
		Indicators: map[string]float64{
			"bb_width":       width,
			"bb_width_ratio": ratio,
			"atr":            indicators.Last(indicators.ATRSeries(s, a.cfg.ATRPeriod)),
			"bb_pct":         pct,
		},
		Condition: fmt.Sprintf("BB Squeeze detected (width %.2fx avg), potential %s breakout", ratio, hint),
	}, true
}
