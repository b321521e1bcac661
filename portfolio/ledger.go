package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/scantrade/internal/id"
)

// Config holds the starting capital and the capacity limits, all
// percentages of portfolio value.
type Config struct {
	InitialCapital float64
	MaxPositionPct float64
	MaxExposurePct float64
	MaxDrawdownPct float64
	RiskFreeRate   float64
}

func DefaultConfig() Config {
	return Config{
		InitialCapital: 100_000,
		MaxPositionPct: 5,
		MaxExposurePct: 20,
		MaxDrawdownPct: 10,
		RiskFreeRate:   0.02,
	}
}

// Ledger owns cash, positions and closed trades. All state is guarded by
// mu; persistence and listeners run after it is released.
type Ledger struct {
	mu sync.Mutex

	cfg       Config
	cash      decimal.Decimal
	realized  decimal.Decimal
	positions map[string]*Position
	trades    []Trade
	peak      float64
	maxDD     float64

	store    Store
	listener Listener
	log      zerolog.Logger
	now      func() time.Time
}

// New returns a ledger holding cfg.InitialCapital in cash. A nil store
// disables persistence.
func New(cfg Config, store Store, log zerolog.Logger) *Ledger {
	if store == nil {
		store = nopStore{}
	}
	return &Ledger{
		cfg:       cfg,
		cash:      decimal.NewFromFloat(cfg.InitialCapital),
		positions: make(map[string]*Position),
		peak:      cfg.InitialCapital,
		store:     store,
		log:       log.With().Str("component", "ledger").Logger(),
		now:       time.Now,
	}
}

// SetListener installs an optional execution listener.
func (l *Ledger) SetListener(lis Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listener = lis
}

// SetClock replaces time.Now, mostly for tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Ledger) Config() Config { return l.cfg }

func (l *Ledger) positionsValueLocked() float64 {
	sum := 0.0
	for _, p := range l.positions {
		sum += p.Value()
	}
	return sum
}

func (l *Ledger) valueLocked() float64 {
	return l.cash.InexactFloat64() + l.positionsValueLocked()
}

func (l *Ledger) exposureLocked() float64 {
	v := l.valueLocked()
	if v == 0 {
		return 0
	}
	return l.positionsValueLocked() / v * 100
}

func (l *Ledger) canOpenLocked(symbol string, qty, price float64) error {
	if _, ok := l.positions[symbol]; ok {
		return reject(CodePositionExists, "position already exists for %s", symbol)
	}

	posValue := qty * price
	value := l.valueLocked()
	posPct := math.Inf(1)
	if value > 0 {
		posPct = posValue / value * 100
	}
	if posPct > l.cfg.MaxPositionPct {
		return reject(CodePositionSize, "position size %.1f%% exceeds limit %g%%", posPct, l.cfg.MaxPositionPct)
	}

	if exp := l.exposureLocked() + posPct; exp > l.cfg.MaxExposurePct {
		return reject(CodeExposure, "total exposure %.1f%% would exceed limit %g%%", exp, l.cfg.MaxExposurePct)
	}

	if decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price)).GreaterThan(l.cash) {
		return reject(CodeInsufficientCash, "need $%.2f, have $%s", posValue, l.cash.StringFixed(2))
	}

	if qty <= 0 || price <= 0 {
		return reject(CodeInvalidOrder, "quantity %g and price %g must be positive", qty, price)
	}
	return nil
}

// CanOpen checks whether a position could be opened right now. It returns
// a *Rejection describing the first failed check.
func (l *Ledger) CanOpen(symbol string, qty, price float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.canOpenLocked(symbol, qty, price)
}

// Open validates and opens a position, debiting its cost from cash.
func (l *Ledger) Open(ctx context.Context, req OpenRequest) (Position, error) {
	l.mu.Lock()
	if err := l.canOpenLocked(req.Symbol, req.Quantity, req.Price); err != nil {
		l.mu.Unlock()
		return Position{}, err
	}

	now := l.now()
	p := &Position{
		ID:           id.NewAt(now),
		Symbol:       req.Symbol,
		Quantity:     req.Quantity,
		EntryPrice:   req.Price,
		CurrentPrice: req.Price,
		BotID:        req.BotID,
		Strategy:     req.Strategy,
		EntryReason:  req.Reason,
		OpenedAt:     now,
		UpdatedAt:    now,
	}
	cost := decimal.NewFromFloat(req.Quantity).Mul(decimal.NewFromFloat(req.Price))
	l.cash = l.cash.Sub(cost)
	l.positions[req.Symbol] = p

	out := *p
	lis := l.listener
	l.mu.Unlock()

	if err := l.store.SavePosition(ctx, out); err != nil {
		l.log.Error().Err(err).Str("symbol", out.Symbol).Msg("persist position failed")
	}
	if lis != nil {
		lis.OnPositionOpened(out)
	}
	return out, nil
}

// Close sells the whole position in symbol at price and records the trade.
func (l *Ledger) Close(ctx context.Context, symbol string, price float64, reason string) (Trade, error) {
	l.mu.Lock()
	p, ok := l.positions[symbol]
	if !ok {
		l.mu.Unlock()
		return Trade{}, fmt.Errorf("close %s: %w", symbol, ErrNoPosition)
	}

	now := l.now()
	qty := decimal.NewFromFloat(p.Quantity)
	px := decimal.NewFromFloat(price)
	pnl := px.Sub(decimal.NewFromFloat(p.EntryPrice)).Mul(qty)

	l.cash = l.cash.Add(qty.Mul(px))
	l.realized = l.realized.Add(pnl)

	t := Trade{
		ID:          id.NewAt(now),
		Symbol:      symbol,
		Direction:   Sell,
		Quantity:    p.Quantity,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   price,
		RealizedPnL: pnl.InexactFloat64(),
		BotID:       p.BotID,
		Strategy:    p.Strategy,
		Status:      StatusExecuted,
		EntryReason: p.EntryReason,
		ExitReason:  reason,
		OpenedAt:    p.OpenedAt,
		Timestamp:   now,
	}
	l.trades = append(l.trades, t)
	delete(l.positions, symbol)
	lis := l.listener
	l.mu.Unlock()

	if err := l.store.DeletePosition(ctx, symbol); err != nil {
		l.log.Error().Err(err).Str("symbol", symbol).Msg("delete position failed")
	}
	if err := l.store.RecordTrade(ctx, t); err != nil {
		l.log.Error().Err(err).Str("symbol", symbol).Msg("record trade failed")
	}
	if lis != nil {
		lis.OnTradeClosed(t)
	}
	return t, nil
}

// UpdatePositions reprices open positions and then updates the peak value
// and max drawdown. Non-positive prices are ignored.
func (l *Ledger) UpdatePositions(ctx context.Context, prices map[string]float64) {
	l.mu.Lock()
	now := l.now()
	var changed []Position
	for sym, p := range l.positions {
		px, ok := prices[sym]
		if !ok || px <= 0 {
			continue
		}
		p.reprice(px, now)
		changed = append(changed, *p)
	}

	v := l.valueLocked()
	if v > l.peak {
		l.peak = v
	}
	if l.peak > 0 {
		if dd := (l.peak - v) / l.peak * 100; dd > l.maxDD {
			l.maxDD = dd
		}
	}
	l.mu.Unlock()

	for _, p := range changed {
		if err := l.store.UpdatePosition(ctx, p); err != nil {
			l.log.Error().Err(err).Str("symbol", p.Symbol).Msg("update position failed")
		}
	}
}

// Position returns a copy of the open position in symbol.
func (l *Ledger) Position(symbol string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of the open positions ordered by symbol.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols lists the symbols with an open position.
func (l *Ledger) Symbols() []string {
	ps := l.Positions()
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Symbol
	}
	return out
}

// Trades returns the closed trades, oldest first.
func (l *Ledger) Trades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Trade(nil), l.trades...)
}

func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash.InexactFloat64()
}

// Value is cash plus every position at its current price.
func (l *Ledger) Value() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.valueLocked()
}

// Exposure is the share of portfolio value held in positions, in percent.
func (l *Ledger) Exposure() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exposureLocked()
}

func (l *Ledger) MaxDrawdown() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxDD
}

func (l *Ledger) TotalPnL() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realized.InexactFloat64()
}

func (l *Ledger) WinRate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return winRate(l.trades)
}

func (l *Ledger) Sharpe(rf float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sharpe(l.returnsLocked(), rf)
}

func (l *Ledger) Sortino(rf float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortino(l.returnsLocked(), rf)
}

func (l *Ledger) returnsLocked() []float64 {
	out := make([]float64, len(l.trades))
	for i, t := range l.trades {
		out[i] = t.RealizedPnL / l.cfg.InitialCapital
	}
	return out
}

// Stats returns a consistent snapshot of the ledger.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	rets := l.returnsLocked()
	total := l.realized.InexactFloat64()
	s := Stats{
		InitialCapital: l.cfg.InitialCapital,
		Cash:           l.cash.InexactFloat64(),
		PositionsValue: l.positionsValueLocked(),
		PortfolioValue: l.valueLocked(),
		TotalPnL:       total,
		PeakValue:      l.peak,
		MaxDrawdown:    l.maxDD,
		ExposurePct:    l.exposureLocked(),
		SharpeRatio:    Ratio(sharpe(rets, l.cfg.RiskFreeRate)),
		SortinoRatio:   Ratio(sortino(rets, l.cfg.RiskFreeRate)),
		WinRate:        winRate(l.trades),
		TotalTrades:    len(l.trades),
		OpenPositions:  len(l.positions),
	}
	if l.cfg.InitialCapital != 0 {
		s.TotalPnLPct = total / l.cfg.InitialCapital * 100
	}
	for _, p := range l.positions {
		s.UnrealizedPnL += p.UnrealizedPnL
	}
	for _, t := range l.trades {
		if t.Win() {
			s.WinningTrades++
		}
	}
	return s
}
