package journal

import (
	"encoding/json"
	"time"

	"github.com/rustyeddy/scantrade/portfolio"
	"github.com/rustyeddy/scantrade/scanners"
)

const positionCols = `symbol, id, quantity, entry_price, current_price, unrealized_pnl,
	unrealized_pnl_pct, bot_id, strategy, entry_reason, opened_at, updated_at`

type positionRow struct {
	Symbol           string    `db:"symbol"`
	ID               string    `db:"id"`
	Quantity         float64   `db:"quantity"`
	EntryPrice       float64   `db:"entry_price"`
	CurrentPrice     float64   `db:"current_price"`
	UnrealizedPnL    float64   `db:"unrealized_pnl"`
	UnrealizedPnLPct float64   `db:"unrealized_pnl_pct"`
	BotID            string    `db:"bot_id"`
	Strategy         string    `db:"strategy"`
	EntryReason      string    `db:"entry_reason"`
	OpenedAt         time.Time `db:"opened_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func toPositionRow(p portfolio.Position) positionRow {
	return positionRow{
		Symbol:           p.Symbol,
		ID:               p.ID,
		Quantity:         p.Quantity,
		EntryPrice:       p.EntryPrice,
		CurrentPrice:     p.CurrentPrice,
		UnrealizedPnL:    p.UnrealizedPnL,
		UnrealizedPnLPct: p.UnrealizedPnLPct,
		BotID:            p.BotID,
		Strategy:         p.Strategy,
		EntryReason:      p.EntryReason,
		OpenedAt:         p.OpenedAt.UTC(),
		UpdatedAt:        p.UpdatedAt.UTC(),
	}
}

func (r positionRow) position() portfolio.Position {
	return portfolio.Position{
		ID:               r.ID,
		Symbol:           r.Symbol,
		Quantity:         r.Quantity,
		EntryPrice:       r.EntryPrice,
		CurrentPrice:     r.CurrentPrice,
		UnrealizedPnL:    r.UnrealizedPnL,
		UnrealizedPnLPct: r.UnrealizedPnLPct,
		BotID:            r.BotID,
		Strategy:         r.Strategy,
		EntryReason:      r.EntryReason,
		OpenedAt:         r.OpenedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

const tradeCols = `id, symbol, direction, quantity, entry_price, exit_price, realized_pnl,
	fees, bot_id, strategy, status, entry_reason, exit_reason, opened_at, closed_at`

type tradeRow struct {
	ID          string    `db:"id"`
	Symbol      string    `db:"symbol"`
	Direction   string    `db:"direction"`
	Quantity    float64   `db:"quantity"`
	EntryPrice  float64   `db:"entry_price"`
	ExitPrice   float64   `db:"exit_price"`
	RealizedPnL float64   `db:"realized_pnl"`
	Fees        float64   `db:"fees"`
	BotID       string    `db:"bot_id"`
	Strategy    string    `db:"strategy"`
	Status      string    `db:"status"`
	EntryReason string    `db:"entry_reason"`
	ExitReason  string    `db:"exit_reason"`
	OpenedAt    time.Time `db:"opened_at"`
	ClosedAt    time.Time `db:"closed_at"`
}

func toTradeRow(t portfolio.Trade) tradeRow {
	return tradeRow{
		ID:          t.ID,
		Symbol:      t.Symbol,
		Direction:   string(t.Direction),
		Quantity:    t.Quantity,
		EntryPrice:  t.EntryPrice,
		ExitPrice:   t.ExitPrice,
		RealizedPnL: t.RealizedPnL,
		Fees:        t.Fees,
		BotID:       t.BotID,
		Strategy:    t.Strategy,
		Status:      string(t.Status),
		EntryReason: t.EntryReason,
		ExitReason:  t.ExitReason,
		OpenedAt:    t.OpenedAt.UTC(),
		ClosedAt:    t.Timestamp.UTC(),
	}
}

func (r tradeRow) trade() portfolio.Trade {
	return portfolio.Trade{
		ID:          r.ID,
		Symbol:      r.Symbol,
		Direction:   portfolio.Direction(r.Direction),
		Quantity:    r.Quantity,
		EntryPrice:  r.EntryPrice,
		ExitPrice:   r.ExitPrice,
		RealizedPnL: r.RealizedPnL,
		Fees:        r.Fees,
		BotID:       r.BotID,
		Strategy:    r.Strategy,
		Status:      portfolio.TradeStatus(r.Status),
		EntryReason: r.EntryReason,
		ExitReason:  r.ExitReason,
		OpenedAt:    r.OpenedAt.UTC(),
		Timestamp:   r.ClosedAt.UTC(),
	}
}

const signalCols = `id, scanner_id, scanner_name, symbol, signal_type, confidence, price,
	indicators, condition_text, created_at`

type signalRow struct {
	ID          string    `db:"id"`
	ScannerID   string    `db:"scanner_id"`
	ScannerName string    `db:"scanner_name"`
	Symbol      string    `db:"symbol"`
	Kind        string    `db:"signal_type"`
	Confidence  float64   `db:"confidence"`
	Price       float64   `db:"price"`
	Indicators  string    `db:"indicators"`
	Condition   string    `db:"condition_text"`
	CreatedAt   time.Time `db:"created_at"`
}

func toSignalRow(s scanners.Signal) (signalRow, error) {
	ind := "{}"
	if len(s.Indicators) > 0 {
		b, err := json.Marshal(s.Indicators)
		if err != nil {
			return signalRow{}, err
		}
		ind = string(b)
	}
	return signalRow{
		ID:          s.ID,
		ScannerID:   s.ScannerID,
		ScannerName: s.ScannerName,
		Symbol:      s.Symbol,
		Kind:        string(s.Kind),
		Confidence:  s.Confidence,
		Price:       s.Price,
		Indicators:  ind,
		Condition:   s.Condition,
		CreatedAt:   s.Timestamp.UTC(),
	}, nil
}

func (r signalRow) signal() (scanners.Signal, error) {
	s := scanners.Signal{
		ID:          r.ID,
		ScannerID:   r.ScannerID,
		ScannerName: r.ScannerName,
		Symbol:      r.Symbol,
		Kind:        scanners.Kind(r.Kind),
		Confidence:  r.Confidence,
		Price:       r.Price,
		Condition:   r.Condition,
		Timestamp:   r.CreatedAt.UTC(),
	}
	if r.Indicators != "" && r.Indicators != "{}" {
		if err := json.Unmarshal([]byte(r.Indicators), &s.Indicators); err != nil {
			return s, err
		}
	}
	return s, nil
}
