// Package bots holds the paper-trading strategy agents. A Policy decides
// entries and exits from a bar series; a Bot runs a Policy over its
// symbols against the portfolio ledger and the risk governor.
package bots

import (
	"fmt"
	"sync"

	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/risk"
)

// Decision is a policy verdict. Confidence is only meaningful for entries.
type Decision struct {
	OK         bool
	Confidence float64
	Reason     string
}

func no(reason string) Decision { return Decision{Reason: reason} }

// Policy is a pure entry/exit rule set.
type Policy interface {
	ID() string
	Name() string
	Strategy() string
	Tier() risk.Tier
	MinBars() int

	ShouldEnter(symbol string, s market.Series) Decision
	ShouldExit(symbol string, s market.Series, entryPrice float64) Decision
}

func pnlPct(price, entry float64) float64 {
	if entry == 0 {
		return 0
	}
	return (price - entry) / entry * 100
}

type Factory func() Policy

var (
	regMu    sync.Mutex
	registry = map[string]Factory{}
	order    []string
)

// Register adds a policy factory under id.
func Register(id string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, ok := registry[id]; !ok {
		order = append(order, id)
	}
	registry[id] = f
}

// NewPolicy builds the policy registered under id.
func NewPolicy(id string) (Policy, error) {
	regMu.Lock()
	f, ok := registry[id]
	regMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown bot %q (have %v)", id, IDs())
	}
	return f(), nil
}

// IDs lists registered policies in registration order.
func IDs() []string {
	regMu.Lock()
	defer regMu.Unlock()
	return append([]string(nil), order...)
}

func init() {
	Register("vwap_mean_reversion", func() Policy { return NewVWAPReversion(DefaultVWAPConfig()) })
	Register("volatility_breakout", func() Policy { return NewVolatilityBreakout(DefaultBreakoutConfig()) })
	Register("momentum_accumulation", func() Policy { return NewMomentumAccumulation(DefaultMomentumConfig()) })
	Register("support_bounce", func() Policy { return NewSupportBounce(DefaultBounceConfig()) })
	Register("trend_following_pro", func() Policy { return NewTrendFollowing(DefaultTrendConfig()) })
}
