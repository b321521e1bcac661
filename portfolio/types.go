// Package portfolio is the paper-trading ledger: cash, open positions and
// the closed-trade history, with the capacity checks that guard entries.
package portfolio

import (
	"encoding/json"
	"math"
	"time"
)

type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

type TradeStatus string

const (
	StatusPending   TradeStatus = "PENDING"
	StatusExecuted  TradeStatus = "EXECUTED"
	StatusCancelled TradeStatus = "CANCELLED"
	StatusFailed    TradeStatus = "FAILED"
)

// Position is an open long holding. There is at most one per symbol.
type Position struct {
	ID               string    `json:"id"`
	Symbol           string    `json:"symbol"`
	Quantity         float64   `json:"quantity"`
	EntryPrice       float64   `json:"entry_price"`
	CurrentPrice     float64   `json:"current_price"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	UnrealizedPnLPct float64   `json:"unrealized_pnl_pct"`
	BotID            string    `json:"bot_id,omitempty"`
	Strategy         string    `json:"strategy,omitempty"`
	EntryReason      string    `json:"entry_reason,omitempty"`
	OpenedAt         time.Time `json:"opened_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Value is quantity at the current price.
func (p Position) Value() float64 { return p.Quantity * p.CurrentPrice }

func (p *Position) reprice(price float64, now time.Time) {
	p.CurrentPrice = price
	p.UnrealizedPnL = (price - p.EntryPrice) * p.Quantity
	if p.EntryPrice != 0 {
		p.UnrealizedPnLPct = (price - p.EntryPrice) / p.EntryPrice * 100
	}
	p.UpdatedAt = now
}

// Trade is the record of a closed position. It is written once, on close.
type Trade struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Direction   Direction   `json:"direction"`
	Quantity    float64     `json:"quantity"`
	EntryPrice  float64     `json:"entry_price"`
	ExitPrice   float64     `json:"exit_price"`
	RealizedPnL float64     `json:"realized_pnl"`
	Fees        float64     `json:"fees"`
	BotID       string      `json:"bot_id,omitempty"`
	Strategy    string      `json:"strategy,omitempty"`
	Status      TradeStatus `json:"status"`
	EntryReason string      `json:"entry_reason,omitempty"`
	ExitReason  string      `json:"exit_reason,omitempty"`
	OpenedAt    time.Time   `json:"opened_at"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Win reports whether the trade made money.
func (t Trade) Win() bool { return t.RealizedPnL > 0 }

// OpenRequest describes a position a bot wants to enter.
type OpenRequest struct {
	Symbol   string
	Quantity float64
	Price    float64
	BotID    string
	Strategy string
	Reason   string
}

// Ratio is a float that encodes non-finite values as JSON null.
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// Stats is a snapshot of the ledger taken under a single lock.
type Stats struct {
	InitialCapital float64 `json:"initial_capital"`
	Cash           float64 `json:"cash"`
	PositionsValue float64 `json:"positions_value"`
	PortfolioValue float64 `json:"portfolio_value"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalPnLPct    float64 `json:"total_pnl_pct"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	PeakValue      float64 `json:"peak_value"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	ExposurePct    float64 `json:"exposure_pct"`
	SharpeRatio    Ratio   `json:"sharpe_ratio"`
	SortinoRatio   Ratio   `json:"sortino_ratio"`
	WinRate        float64 `json:"win_rate"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	OpenPositions  int     `json:"open_positions"`
}
