package scanners

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scantrade/indicators"
	"github.com/rustyeddy/scantrade/market"
)

type MomentumConfig struct {
	RSIPeriod  int     `yaml:"rsi_period" json:"rsi_period"`
	Oversold   float64 `yaml:"oversold" json:"oversold"`
	Overbought float64 `yaml:"overbought" json:"overbought"`
	MACDFast   int     `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow   int     `yaml:"macd_slow" json:"macd_slow"`
	MACDSignal int     `yaml:"macd_signal" json:"macd_signal"`

	MaxConfidence float64 `yaml:"max_confidence" json:"max_confidence"`
	MinBars       int     `yaml:"min_bars" json:"min_bars"`
}

func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		RSIPeriod:     14,
		Oversold:      30,
		Overbought:    70,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		MaxConfidence: 78,
		MinBars:       50,
	}
}

// MomentumDivergence pairs RSI extremes with a MACD histogram pointing
// the other way.
type MomentumDivergence struct {
	cfg MomentumConfig
}

func NewMomentumDivergence(cfg MomentumConfig) *MomentumDivergence {
	return &MomentumDivergence{cfg: cfg}
}

func (a *MomentumDivergence) ID() string   { return "momentum_divergence" }
func (a *MomentumDivergence) Name() string { return "Momentum Divergence" }
func (a *MomentumDivergence) MinBars() int { return a.cfg.MinBars }

func (a *MomentumDivergence) Condition() string {
	return fmt.Sprintf("RSI < %g & MACD Bullish", a.cfg.Oversold)
}

func (a *MomentumDivergence) Analyze(symbol string, s market.Series) (Signal, bool) {
	if len(s) < a.MinBars() {
		return Signal{}, false
	}
	rsi := indicators.Last(indicators.RSISeries(s, a.cfg.RSIPeriod))
	m := indicators.MACDSeries(s.Closes(), a.cfg.MACDFast, a.cfg.MACDSlow, a.cfg.MACDSignal)
	line, sig, hist := indicators.Last(m.Line), indicators.Last(m.Signal), indicators.Last(m.Hist)
	if !indicators.Defined(rsi, line, sig, hist) {
		return Signal{}, false
	}

	var (
		kind        Kind
		rsiStrength float64
		cond        string
	)
	switch {
	case rsi < a.cfg.Oversold && hist > 0 && line > sig:
		kind = Oversold
		rsiStrength = (a.cfg.Oversold - rsi) / 30 * 100
		cond = fmt.Sprintf("RSI %.1f < %g & MACD Bullish", rsi, a.cfg.Oversold)
	case rsi > a.cfg.Overbought && hist < 0 && line < sig:
		kind = Overbought
		rsiStrength = (rsi - a.cfg.Overbought) / 30 * 100
		cond = fmt.Sprintf("RSI %.1f > %g & MACD Bearish", rsi, a.cfg.Overbought)
	default:
		return Signal{}, false
	}

	macdStrength := math.Min(100, math.Abs(hist)*10)
	return Signal{
		Symbol:     symbol,
		Kind:       kind,
		Confidence: math.Min(a.cfg.MaxConfidence, Confidence(rsiStrength, macdStrength)),
		Price:      s.Last().Close,
		Indicators: map[string]float64{
			"rsi":            rsi,
			"macd":           line,
			"macd_signal":    sig,
			"macd_histogram": hist,
		},
		Condition: cond,
	}, true
}
