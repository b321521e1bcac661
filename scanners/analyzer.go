// Package scanners turns bar series into typed market signals. Each
// Analyzer holds one detection rule; Scanner runs an Analyzer over a
// symbol list on every engine tick.
package scanners

import (
	"fmt"
	"sync"

	"github.com/rustyeddy/scantrade/market"
)

// Analyzer inspects the series for one symbol. It returns false when
// there is too little data or no rule fires. Implementations fill Kind,
// Confidence, Price, Indicators and Condition; the Scanner stamps the rest.
type Analyzer interface {
	ID() string
	Name() string

	// Condition is a short description of what the analyzer looks for.
	Condition() string

	MinBars() int
	Analyze(symbol string, s market.Series) (Signal, bool)
}

// Factory builds a fresh analyzer with its default configuration.
type Factory func() Analyzer

var (
	regMu    sync.Mutex
	registry = map[string]Factory{}
	order    []string
)

// Register adds an analyzer factory under id. Registering an id twice
// replaces the earlier factory but keeps its position.
func Register(id string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, ok := registry[id]; !ok {
		order = append(order, id)
	}
	registry[id] = f
}

// NewAnalyzer builds the analyzer registered under id.
func NewAnalyzer(id string) (Analyzer, error) {
	regMu.Lock()
	f, ok := registry[id]
	regMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown scanner %q (have %v)", id, IDs())
	}
	return f(), nil
}

// IDs lists registered analyzers in registration order.
func IDs() []string {
	regMu.Lock()
	defer regMu.Unlock()
	return append([]string(nil), order...)
}

func init() {
	Register("trend_alignment", func() Analyzer { return NewTrendAlignment(DefaultTrendConfig()) })
	Register("volatility_compression", func() Analyzer { return NewVolatilityCompression(DefaultCompressionConfig()) })
	Register("momentum_divergence", func() Analyzer { return NewMomentumDivergence(DefaultMomentumConfig()) })
	Register("support_resistance", func() Analyzer { return NewSupportResistance(DefaultLevelsConfig()) })
	Register("volume_profile", func() Analyzer { return NewVolumeProfile(DefaultProfileConfig()) })
}
