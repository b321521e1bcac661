package scanners

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scantrade/indicators"
	"github.com/rustyeddy/scantrade/market"
)

type ProfileConfig struct {
	Bins       int     `yaml:"bins" json:"bins"`
	ValueArea  float64 `yaml:"value_area" json:"value_area"`
	VWAPPeriod int     `yaml:"vwap_period" json:"vwap_period"`
	// Price within this fraction of the POC counts as at the POC.
	POCBand float64 `yaml:"poc_band" json:"poc_band"`

	MaxConfidence float64 `yaml:"max_confidence" json:"max_confidence"`
	MinBars       int     `yaml:"min_bars" json:"min_bars"`
}

func DefaultProfileConfig() ProfileConfig {
	return ProfileConfig{Bins: 50, ValueArea: 0.7, VWAPPeriod: 14, POCBand: 0.005, MaxConfidence: 75, MinBars: 50}
}

// VolumeProfile places the last close against the value area and the
// point of control, confirmed by which side of VWAP it sits on.
type VolumeProfile struct {
	cfg ProfileConfig
}

func NewVolumeProfile(cfg ProfileConfig) *VolumeProfile { return &VolumeProfile{cfg: cfg} }

func (a *VolumeProfile) ID() string        { return "volume_profile" }
func (a *VolumeProfile) Name() string      { return "Volume Profile Analyst" }
func (a *VolumeProfile) Condition() string { return "POC crossing detected" }
func (a *VolumeProfile) MinBars() int      { return a.cfg.MinBars }

func (a *VolumeProfile) Analyze(symbol string, s market.Series) (Signal, bool) {
	if len(s) < a.MinBars() {
		return Signal{}, false
	}
	vp, ok := indicators.VolumeProfile(s, a.cfg.Bins, a.cfg.ValueArea)
	vwap := indicators.Last(indicators.VWAPSeries(s, a.cfg.VWAPPeriod))
	if !ok || !indicators.Defined(vwap) || vwap == 0 {
		return Signal{}, false
	}

	price := s.Last().Close
	var (
		kind Kind
		conf float64
		pos  string
	)
	switch {
	case price > vp.VAH:
		kind, conf, pos = Bullish, 65, "above value area"
	case price < vp.VAL:
		kind, conf, pos = Bearish, 65, "below value area"
	case vp.POC != 0 && math.Abs(price-vp.POC)/vp.POC < a.cfg.POCBand:
		kind, conf, pos = Neutral, 71, "at POC"
	default:
		kind, conf, pos = Neutral, 60, "in value area"
	}

	side := "below"
	if price > vwap {
		side = "above"
	}
	if (kind == Bullish && side == "above") || (kind == Bearish && side == "below") {
		conf += 6
	}

	return Signal{
		Symbol:     symbol,
		Kind:       kind,
		Confidence: math.Min(conf, a.cfg.MaxConfidence),
		Price:      price,
		Indicators: map[string]float64{
			"poc":               vp.POC,
			"vah":               vp.VAH,
			"val":               vp.VAL,
			"vwap":              vwap,
			"vwap_distance_pct": math.Abs((price-vwap)/vwap) * 100,
		},
		Condition: fmt.Sprintf("Price %s, %s VWAP", pos, side),
	}, true
}
