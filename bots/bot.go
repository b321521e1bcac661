package bots

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/portfolio"
	"github.com/rustyeddy/scantrade/risk"
)

// State is a bot's run state. Bots start inactive; once toggled they
// alternate between active and paused.
type State string

const (
	StateInactive State = "inactive"
	StateActive   State = "active"
	StatePaused   State = "paused"
)

// Ledger is the slice of portfolio.Ledger a bot trades against.
type Ledger interface {
	Position(symbol string) (portfolio.Position, bool)
	Value() float64
	Config() portfolio.Config
	Open(ctx context.Context, req portfolio.OpenRequest) (portfolio.Position, error)
	Close(ctx context.Context, symbol string, price float64, reason string) (portfolio.Trade, error)
}

// Gate approves entries before they reach the ledger.
type Gate interface {
	CheckPositionRisk(symbol string, qty, price float64) risk.Decision
}

// RejectFunc is told about every refused entry.
type RejectFunc func(botID, symbol string, v risk.Violation)

type Deps struct {
	Provider market.Provider
	Ledger   Ledger
	Gate     Gate // optional
	Symbols  []string
	Window   market.Window
	Log      zerolog.Logger

	// CapitalPct overrides the tier allocation when positive.
	CapitalPct float64
	// MinConfidence is the entry threshold; entries must exceed it.
	MinConfidence float64

	OnReject RejectFunc // optional
}

// Bot runs a Policy over its symbols on each Execute.
type Bot struct {
	policy Policy
	deps   Deps
	log    zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     State
	trades    int
	wins      int
	pnl       float64
	lastTrade time.Time
}

func New(p Policy, deps Deps) *Bot {
	if deps.Window == (market.Window{}) {
		deps.Window = market.DefaultWindow
	}
	if deps.MinConfidence == 0 {
		deps.MinConfidence = 60
	}
	return &Bot{
		policy: p,
		deps:   deps,
		log:    deps.Log.With().Str("bot", p.ID()).Logger(),
		now:    time.Now,
		state:  StateInactive,
	}
}

func (b *Bot) ID() string     { return b.policy.ID() }
func (b *Bot) Name() string   { return b.policy.Name() }
func (b *Bot) Policy() Policy { return b.policy }

func (b *Bot) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Activate puts the bot in the active state.
func (b *Bot) Activate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateActive
}

// Toggle pauses an active bot and activates any other. It returns the
// new state.
func (b *Bot) Toggle() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateActive {
		b.state = StatePaused
	} else {
		b.state = StateActive
	}
	return b.state
}

// CapitalPct is the allocation used for each entry.
func (b *Bot) CapitalPct() float64 {
	if b.deps.CapitalPct > 0 {
		return b.deps.CapitalPct
	}
	return b.policy.Tier().CapitalPct()
}

// Execute evaluates every symbol once. It does nothing unless the bot is
// active. Failures are isolated per symbol.
func (b *Bot) Execute(ctx context.Context) {
	if b.State() != StateActive {
		return
	}
	for _, sym := range b.deps.Symbols {
		if ctx.Err() != nil {
			return
		}
		if err := b.executeSymbol(ctx, sym); err != nil {
			b.log.Warn().Err(err).Str("symbol", sym).Msg("execute failed")
		}
	}
}

func (b *Bot) executeSymbol(ctx context.Context, sym string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", sym, r)
		}
	}()

	pos, held := b.deps.Ledger.Position(sym)
	series, err := b.deps.Provider.Series(ctx, sym, b.deps.Window)
	if err != nil {
		return fmt.Errorf("series %s: %w", sym, err)
	}
	if len(series) == 0 {
		return nil
	}
	price := series.Last().Close

	if held {
		d := b.policy.ShouldExit(sym, series, pos.EntryPrice)
		if !d.OK {
			return nil
		}
		return b.exit(ctx, sym, price, d.Reason)
	}

	d := b.policy.ShouldEnter(sym, series)
	if !d.OK || d.Confidence <= b.deps.MinConfidence {
		return nil
	}
	return b.enter(ctx, sym, price, d)
}

func (b *Bot) exit(ctx context.Context, sym string, price float64, reason string) error {
	tr, err := b.deps.Ledger.Close(ctx, sym, price, reason)
	if errors.Is(err, portfolio.ErrNoPosition) {
		return nil
	}
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.trades++
	if tr.Win() {
		b.wins++
	}
	b.pnl += tr.RealizedPnL
	b.lastTrade = b.now()
	b.mu.Unlock()

	b.log.Info().Str("symbol", sym).Float64("price", price).Float64("pnl", tr.RealizedPnL).Str("reason", reason).Msg("closed position")
	return nil
}

func (b *Bot) enter(ctx context.Context, sym string, price float64, d Decision) error {
	sz := risk.Size(risk.Inputs{Equity: b.deps.Ledger.Value(), CapitalPct: b.CapitalPct(), Price: price})
	if sz.Quantity <= 0 {
		return nil
	}

	if b.deps.Gate != nil {
		rd := b.deps.Gate.CheckPositionRisk(sym, sz.Quantity, price)
		if !rd.Allowed {
			for _, v := range rd.Violations {
				b.reject(sym, v)
			}
			return nil
		}
	}

	_, err := b.deps.Ledger.Open(ctx, portfolio.OpenRequest{
		Symbol:   sym,
		Quantity: sz.Quantity,
		Price:    price,
		BotID:    b.ID(),
		Strategy: b.policy.Strategy(),
		Reason:   d.Reason,
	})
	if rej, ok := portfolio.AsRejection(err); ok {
		b.reject(sym, risk.Violation{Code: rej.Code, Msg: rej.Msg})
		return nil
	}
	if err != nil {
		return err
	}
	b.log.Info().Str("symbol", sym).Float64("price", price).Float64("quantity", sz.Quantity).
		Float64("confidence", d.Confidence).Str("reason", d.Reason).Msg("opened position")
	return nil
}

func (b *Bot) reject(sym string, v risk.Violation) {
	b.log.Info().Str("symbol", sym).Str("code", v.Code).Msg(v.Msg)
	if b.deps.OnReject != nil {
		b.deps.OnReject(b.ID(), sym, v)
	}
}

// Status is the dashboard view of a bot.
type Status struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Strategy  string     `json:"strategy"`
	Status    State      `json:"status"`
	Risk      risk.Tier  `json:"risk"`
	Capital   string     `json:"capital"`
	Returns   string     `json:"returns"`
	Trades    int        `json:"trades"`
	WinRate   float64    `json:"winRate"`
	TotalPnL  float64    `json:"total_pnl"`
	LastTrade *time.Time `json:"lastTrade"`
}

func (b *Bot) Status() Status {
	initial := b.deps.Ledger.Config().InitialCapital

	b.mu.Lock()
	defer b.mu.Unlock()

	st := Status{
		ID:       b.ID(),
		Name:     b.Name(),
		Strategy: b.policy.Strategy(),
		Status:   b.state,
		Risk:     b.policy.Tier(),
		Capital:  fmt.Sprintf("%g%%", b.CapitalPct()),
		Returns:  formatReturns(b.pnl, initial),
		Trades:   b.trades,
		TotalPnL: b.pnl,
	}
	if b.trades > 0 {
		st.WinRate = float64(b.wins) / float64(b.trades) * 100
	}
	if !b.lastTrade.IsZero() {
		t := b.lastTrade
		st.LastTrade = &t
	}
	return st
}

// formatReturns renders pnl as a signed percent of initial capital,
// e.g. "+1.2%" or "-0.4%".
func formatReturns(pnl, initial float64) string {
	pct := 0.0
	if initial != 0 {
		pct = pnl / initial * 100
	}
	sign := ""
	if pnl > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f%%", sign, pct)
}
