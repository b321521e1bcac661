// Package risk turns ledger statistics into a health score, decides when
// trading pauses and gates each new entry.
package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scantrade/portfolio"
)

// Ledger is the part of portfolio.Ledger the governor reads.
type Ledger interface {
	Stats() portfolio.Stats
	CanOpen(symbol string, qty, price float64) error
}

// Health labels.
const (
	StatusOptimal  = "OPTIMAL"
	StatusCaution  = "CAUTION"
	StatusCritical = "CRITICAL"
)

// HealthStatus labels a score: above 70 is OPTIMAL, above 40 CAUTION.
func HealthStatus(score float64) string {
	switch {
	case score > 70:
		return StatusOptimal
	case score > 40:
		return StatusCaution
	}
	return StatusCritical
}

// Status is the risk-limits snapshot.
type Status struct {
	HealthScore       float64 `json:"health_score"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	MaxDrawdownLimit  float64 `json:"max_drawdown_limit"`
	ExposurePct       float64 `json:"exposure_pct"`
	ExposureLimit     float64 `json:"exposure_limit"`
	PositionSizeLimit float64 `json:"position_size_limit"`
	TradingPaused     bool    `json:"trading_paused"`
	PaperTrading      bool    `json:"paper_trading"`
}

type Governor struct {
	mu     sync.Mutex
	policy Policy
	ledger Ledger
	score  float64
	paused bool
	events *ring
	log    zerolog.Logger
	now    func() time.Time
}

func NewGovernor(p Policy, l Ledger, log zerolog.Logger) *Governor {
	return &Governor{
		policy: p,
		ledger: l,
		score:  100,
		events: newRing(EventLogSize),
		log:    log.With().Str("component", "governor").Logger(),
		now:    time.Now,
	}
}

func (g *Governor) Policy() Policy { return g.policy }

// Score computes the health score for a stats snapshot without storing it.
func (p Policy) Score(s portfolio.Stats) float64 {
	score := 100.0
	score -= math.Min(s.MaxDrawdown/p.MaxDrawdownPct, 1) * 40
	score -= math.Min(s.ExposurePct/p.MaxExposurePct, 1) * 30
	if s.WinRate < 50 {
		score -= (50 - s.WinRate) / 50 * 20
	}
	if s.TotalPnL < 0 {
		score -= math.Min(10, math.Abs(s.TotalPnLPct))
	}
	return math.Max(0, math.Min(100, score))
}

// CalculateHealthScore recomputes and stores the score from a fresh
// ledger snapshot.
func (g *Governor) CalculateHealthScore() float64 {
	s := g.ledger.Stats()
	score := g.policy.Score(s)

	g.mu.Lock()
	g.score = score
	g.mu.Unlock()
	return score
}

// HealthScore returns the last computed score, 100 before the first run.
func (g *Governor) HealthScore() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.score
}

func (g *Governor) pauseReason(score float64, s portfolio.Stats) string {
	switch {
	case score < g.policy.PauseBelow:
		return fmt.Sprintf("health score %.1f below %g", score, g.policy.PauseBelow)
	case s.MaxDrawdown > g.policy.MaxDrawdownPct:
		return fmt.Sprintf("max drawdown %.2f%% exceeds %g%%", s.MaxDrawdown, g.policy.MaxDrawdownPct)
	case s.ExposurePct > g.policy.MaxExposurePct:
		return fmt.Sprintf("exposure %.2f%% exceeds %g%%", s.ExposurePct, g.policy.MaxExposurePct)
	}
	return ""
}

// ShouldPauseTrading re-evaluates the pause conditions against the stored
// score and the current ledger. It is not sticky: once every condition
// clears, trading resumes. Transitions are written to the event log.
func (g *Governor) ShouldPauseTrading() bool {
	s := g.ledger.Stats()

	g.mu.Lock()
	defer g.mu.Unlock()

	reason := g.pauseReason(g.score, s)
	paused := reason != ""
	if paused != g.paused {
		g.paused = paused
		if paused {
			g.events.push(newEvent(g.now(), LevelWarn, "TRADING_PAUSED", "trading paused: "+reason))
			g.log.Warn().Str("reason", reason).Msg("trading paused")
		} else {
			g.events.push(newEvent(g.now(), LevelInfo, "TRADING_RESUMED", "trading resumed"))
			g.log.Info().Msg("trading resumed")
		}
	}
	return paused
}

// Paused reports the result of the last ShouldPauseTrading call.
func (g *Governor) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// CheckPositionRisk decides whether a new entry may go ahead. The health
// gate applies only when checks are enabled; the ledger's capacity checks
// always apply.
func (g *Governor) CheckPositionRisk(symbol string, qty, price float64) Decision {
	d := Decision{Allowed: true}

	score := g.HealthScore()
	if g.policy.EnableChecks && score < g.policy.MinEntryScore {
		d.add(CodeHealthTooLow, fmt.Sprintf("health score too low (%.1f)", score))
		return d
	}
	d.fromLedger(g.ledger.CanOpen(symbol, qty, price))
	return d
}

// Status reports the current limits and where the portfolio stands.
func (g *Governor) Status() Status {
	s := g.ledger.Stats()
	score := g.HealthScore()
	return Status{
		HealthScore:       score,
		MaxDrawdown:       s.MaxDrawdown,
		MaxDrawdownLimit:  g.policy.MaxDrawdownPct,
		ExposurePct:       s.ExposurePct,
		ExposureLimit:     g.policy.MaxExposurePct,
		PositionSizeLimit: g.policy.MaxPositionPct,
		TradingPaused:     g.pauseReason(score, s) != "",
		PaperTrading:      g.policy.PaperTrading,
	}
}

func (g *Governor) Rules() []Rule { return g.policy.Rules() }

// Record appends an event to the system log.
func (g *Governor) Record(level Level, code, msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events.push(newEvent(g.now(), level, code, msg))
}

// Events returns up to limit events, newest first.
func (g *Governor) Events(limit int) []Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.events.newest(limit)
}
