// Package engine drives the scanners and bots on a fixed interval and
// keeps the governor's health score current.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scantrade/bots"
	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/portfolio"
	"github.com/rustyeddy/scantrade/risk"
	"github.com/rustyeddy/scantrade/scanners"
)

const (
	DefaultInterval     = 60 * time.Second
	DefaultErrorBackoff = 10 * time.Second
)

type Config struct {
	Interval     time.Duration `yaml:"interval" json:"interval"`
	ErrorBackoff time.Duration `yaml:"error_backoff" json:"error_backoff"`
}

// SignalSink receives every signal a tick produces, e.g. notify.Dispatcher.
type SignalSink interface {
	Publish(sig scanners.Signal) bool
}

// Observer is the metrics side of a tick.
type Observer interface {
	ObserveTick(d time.Duration, err error)
	ObserveSignal(sig scanners.Signal)
	SetPortfolio(s portfolio.Stats, health float64, paused bool)
}

// TickListener is called with the system status after every tick.
type TickListener func(SystemStatus)

type Deps struct {
	Provider market.Provider
	Ledger   *portfolio.Ledger
	Governor *risk.Governor
	Scanners []*scanners.Scanner
	Bots     []*bots.Bot

	Sink     SignalSink // optional
	Observer Observer   // optional
	Log      zerolog.Logger
}

type Engine struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger
	now  func() time.Time

	mu         sync.Mutex
	running    bool
	lastUpdate time.Time
	listeners  []TickListener
}

func New(cfg Config, deps Deps) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	return &Engine{
		cfg:  cfg,
		deps: deps,
		log:  deps.Log.With().Str("component", "engine").Logger(),
		now:  time.Now,
	}
}

// OnTick registers fn to run after every tick.
func (e *Engine) OnTick(fn TickListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) Ledger() *portfolio.Ledger     { return e.deps.Ledger }
func (e *Engine) Governor() *risk.Governor      { return e.deps.Governor }
func (e *Engine) Scanners() []*scanners.Scanner { return e.deps.Scanners }
func (e *Engine) Bots() []*bots.Bot             { return e.deps.Bots }

func (e *Engine) Scanner(id string) (*scanners.Scanner, bool) {
	for _, s := range e.deps.Scanners {
		if s.ID() == id {
			return s, true
		}
	}
	return nil, false
}

func (e *Engine) Bot(id string) (*bots.Bot, bool) {
	for _, b := range e.deps.Bots {
		if b.ID() == id {
			return b, true
		}
	}
	return nil, false
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run ticks until ctx is cancelled. A tick always runs to completion;
// cancellation is noticed while waiting for the next one.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.log.Info().Dur("interval", e.cfg.Interval).Int("scanners", len(e.deps.Scanners)).
		Int("bots", len(e.deps.Bots)).Msg("engine started")

	for {
		wait := e.cfg.Interval
		if err := e.Tick(context.WithoutCancel(ctx)); err != nil {
			wait = e.cfg.ErrorBackoff
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			e.log.Info().Msg("engine stopped")
			return nil
		case <-t.C:
		}
	}
}

// Tick runs one full cycle. A panic anywhere in the cycle is recovered
// and returned as an error.
func (e *Engine) Tick(ctx context.Context) (err error) {
	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
		if err != nil {
			e.log.Error().Err(err).Msg("tick failed")
			e.deps.Governor.Record(risk.LevelError, "TICK_FAILED", err.Error())
		}
		if e.deps.Observer != nil {
			e.deps.Observer.ObserveTick(e.now().Sub(start), err)
		}
	}()

	e.refreshPrices(ctx)
	e.runScanners(ctx)

	if e.deps.Governor.ShouldPauseTrading() {
		e.log.Info().Msg("trading paused, skipping bots")
	} else {
		for _, b := range e.deps.Bots {
			b.Execute(ctx)
		}
	}

	score := e.deps.Governor.CalculateHealthScore()
	st := e.deps.Ledger.Stats()
	if e.deps.Observer != nil {
		e.deps.Observer.SetPortfolio(st, score, e.deps.Governor.Status().TradingPaused)
	}

	e.mu.Lock()
	e.lastUpdate = e.now()
	listeners := append([]TickListener(nil), e.listeners...)
	e.mu.Unlock()

	status := e.SystemStatus()
	for _, fn := range listeners {
		fn(status)
	}
	e.log.Debug().Float64("health", score).Float64("value", st.PortfolioValue).Msg("tick complete")
	return nil
}

func (e *Engine) refreshPrices(ctx context.Context) {
	syms := e.deps.Ledger.Symbols()
	if len(syms) == 0 {
		return
	}
	prices, err := e.deps.Provider.LatestPrices(ctx, syms)
	if err != nil {
		e.log.Warn().Err(err).Msg("price refresh incomplete")
	}
	e.deps.Ledger.UpdatePositions(ctx, prices)
}

func (e *Engine) runScanners(ctx context.Context) {
	for _, s := range e.deps.Scanners {
		for _, sig := range s.Scan(ctx) {
			if e.deps.Observer != nil {
				e.deps.Observer.ObserveSignal(sig)
			}
			if e.deps.Sink != nil {
				e.deps.Sink.Publish(sig)
			}
		}
	}
}

// SystemStatus is the dashboard summary of the whole engine.
type SystemStatus struct {
	Running        bool       `json:"running"`
	LastUpdate     *time.Time `json:"last_update"`
	ActiveScanners int        `json:"active_scanners"`
	TotalScanners  int        `json:"total_scanners"`
	ActiveBots     int        `json:"active_bots"`
	TotalBots      int        `json:"total_bots"`
	HealthScore    float64    `json:"health_score"`
	HealthStatus   string     `json:"health_status"`
	PortfolioValue float64    `json:"portfolio_value"`
	OpenPositions  int        `json:"open_positions"`
	TradingPaused  bool       `json:"trading_paused"`
}

func (e *Engine) SystemStatus() SystemStatus {
	e.mu.Lock()
	st := SystemStatus{Running: e.running}
	if !e.lastUpdate.IsZero() {
		t := e.lastUpdate
		st.LastUpdate = &t
	}
	e.mu.Unlock()

	st.TotalScanners = len(e.deps.Scanners)
	for _, s := range e.deps.Scanners {
		if s.Active() {
			st.ActiveScanners++
		}
	}
	st.TotalBots = len(e.deps.Bots)
	for _, b := range e.deps.Bots {
		if b.State() == bots.StateActive {
			st.ActiveBots++
		}
	}

	ls := e.deps.Ledger.Stats()
	st.HealthScore = e.deps.Governor.HealthScore()
	st.HealthStatus = risk.HealthStatus(st.HealthScore)
	st.PortfolioValue = ls.PortfolioValue
	st.OpenPositions = ls.OpenPositions
	st.TradingPaused = e.deps.Governor.Paused()
	return st
}

// RejectRecorder returns a bots.RejectFunc that writes every refused
// entry to the governor's event log before handing it to next.
func RejectRecorder(g *risk.Governor, next bots.RejectFunc) bots.RejectFunc {
	return func(botID, symbol string, v risk.Violation) {
		g.Record(risk.LevelWarn, v.Code, fmt.Sprintf("%s %s: %s", botID, symbol, v.Msg))
		if next != nil {
			next(botID, symbol, v)
		}
	}
}
