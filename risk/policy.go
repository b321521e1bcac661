package risk

import "fmt"

// Policy holds the limits the governor enforces. Percentages are of
// portfolio value.
type Policy struct {
	MaxPositionPct float64 // 5
	MaxExposurePct float64 // 20
	MaxDrawdownPct float64 // 10

	// Health thresholds
	PauseBelow    float64 // 40
	MinEntryScore float64 // 50

	PaperTrading bool
	EnableChecks bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxPositionPct: 5,
		MaxExposurePct: 20,
		MaxDrawdownPct: 10,
		PauseBelow:     40,
		MinEntryScore:  50,
		PaperTrading:   true,
		EnableChecks:   true,
	}
}

// Tier is a bot's risk appetite. It sets the default share of the
// portfolio a single entry may use.
type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

// CapitalPct returns the default allocation for the tier in percent.
func (t Tier) CapitalPct() float64 {
	switch t {
	case TierLow:
		return 3
	case TierMedium:
		return 4
	}
	return 5
}

// Rule is one line of the governance rule list.
type Rule struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	Active bool   `json:"active"`
}

// Rules lists the limits in force.
func (p Policy) Rules() []Rule {
	paper := "Disabled"
	if p.PaperTrading {
		paper = "Enabled"
	}
	return []Rule{
		{ID: "max_position_size", Name: "Maximum Position Size", Type: "limit", Value: fmt.Sprintf("%g%%", p.MaxPositionPct), Active: true},
		{ID: "max_portfolio_exposure", Name: "Maximum Portfolio Exposure", Type: "limit", Value: fmt.Sprintf("%g%%", p.MaxExposurePct), Active: true},
		{ID: "max_drawdown", Name: "Maximum Drawdown", Type: "limit", Value: fmt.Sprintf("%g%%", p.MaxDrawdownPct), Active: true},
		{ID: "paper_trading", Name: "Paper Trading Mode", Type: "mode", Value: paper, Active: p.PaperTrading},
	}
}
