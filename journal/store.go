package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rustyeddy/scantrade/portfolio"
	"github.com/rustyeddy/scantrade/scanners"
)

// sqlStore holds the queries both drivers share. Statements are written
// with ? placeholders and rebound for the driver.
type sqlStore struct {
	db      *sqlx.DB
	timeout time.Duration
	isDup   func(error) bool
}

func (s *sqlStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *sqlStore) migrate(schema string) error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *sqlStore) SavePosition(ctx context.Context, p portfolio.Position) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.NamedExecContext(ctx, `INSERT INTO positions (`+positionCols+`)
		VALUES (:symbol, :id, :quantity, :entry_price, :current_price, :unrealized_pnl,
		:unrealized_pnl_pct, :bot_id, :strategy, :entry_reason, :opened_at, :updated_at)`,
		toPositionRow(p))
	if err != nil && s.isDup != nil && s.isDup(err) {
		return fmt.Errorf("save position %s: %w", p.Symbol, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("save position %s: %w", p.Symbol, err)
	}
	return nil
}

func (s *sqlStore) UpdatePosition(ctx context.Context, p portfolio.Position) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.NamedExecContext(ctx, `UPDATE positions SET current_price = :current_price,
		unrealized_pnl = :unrealized_pnl, unrealized_pnl_pct = :unrealized_pnl_pct,
		updated_at = :updated_at WHERE symbol = :symbol`, toPositionRow(p))
	if err != nil {
		return fmt.Errorf("update position %s: %w", p.Symbol, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update position %s: %w", p.Symbol, ErrNotFound)
	}
	return nil
}

func (s *sqlStore) DeletePosition(ctx context.Context, symbol string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM positions WHERE symbol = ?`), symbol); err != nil {
		return fmt.Errorf("delete position %s: %w", symbol, err)
	}
	return nil
}

func (s *sqlStore) ClearPositions(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	return nil
}

func (s *sqlStore) RecordTrade(ctx context.Context, t portfolio.Trade) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.NamedExecContext(ctx, `INSERT INTO trades (`+tradeCols+`)
		VALUES (:id, :symbol, :direction, :quantity, :entry_price, :exit_price, :realized_pnl,
		:fees, :bot_id, :strategy, :status, :entry_reason, :exit_reason, :opened_at, :closed_at)`,
		toTradeRow(t))
	if err != nil {
		return fmt.Errorf("record trade %s: %w", t.ID, err)
	}
	return nil
}

func (s *sqlStore) RecordSignal(ctx context.Context, sig scanners.Signal) error {
	row, err := toSignalRow(sig)
	if err != nil {
		return fmt.Errorf("record signal %s: %w", sig.ID, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err = s.db.NamedExecContext(ctx, `INSERT INTO signals (`+signalCols+`)
		VALUES (:id, :scanner_id, :scanner_name, :symbol, :signal_type, :confidence, :price,
		:indicators, :condition_text, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("record signal %s: %w", sig.ID, err)
	}
	return nil
}

// ListTrades returns closed trades, newest first.
func (s *sqlStore) ListTrades(ctx context.Context, f TradeFilter) ([]portfolio.Trade, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := `SELECT ` + tradeCols + ` FROM trades`
	var args []any
	if f.BotID != "" {
		q += ` WHERE bot_id = ?`
		args = append(args, f.BotID)
	}
	q += ` ORDER BY closed_at DESC, id DESC LIMIT ?`
	args = append(args, limitOr(f.Limit))

	var rows []tradeRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	out := make([]portfolio.Trade, len(rows))
	for i, r := range rows {
		out[i] = r.trade()
	}
	return out, nil
}

func (s *sqlStore) GetTrade(ctx context.Context, id string) (portfolio.Trade, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var r tradeRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT `+tradeCols+` FROM trades WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return portfolio.Trade{}, fmt.Errorf("trade %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return portfolio.Trade{}, fmt.Errorf("get trade %q: %w", id, err)
	}
	return r.trade(), nil
}

// ListSignals returns signals, newest first.
func (s *sqlStore) ListSignals(ctx context.Context, f SignalFilter) ([]scanners.Signal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := `SELECT ` + signalCols + ` FROM signals`
	var args []any
	if f.ScannerID != "" {
		q += ` WHERE scanner_id = ?`
		args = append(args, f.ScannerID)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limitOr(f.Limit))

	var rows []signalRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	out := make([]scanners.Signal, 0, len(rows))
	for _, r := range rows {
		sig, err := r.signal()
		if err != nil {
			return nil, fmt.Errorf("signal %s: %w", r.ID, err)
		}
		out = append(out, sig)
	}
	return out, nil
}

func (s *sqlStore) LatestSignal(ctx context.Context, scannerID string) (scanners.Signal, error) {
	sigs, err := s.ListSignals(ctx, SignalFilter{ScannerID: scannerID, Limit: 1})
	if err != nil {
		return scanners.Signal{}, err
	}
	if len(sigs) == 0 {
		return scanners.Signal{}, fmt.Errorf("signal for %q: %w", scannerID, ErrNotFound)
	}
	return sigs[0], nil
}

func (s *sqlStore) ListPositions(ctx context.Context) ([]portfolio.Position, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []positionRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+positionCols+` FROM positions ORDER BY symbol`); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	out := make([]portfolio.Position, len(rows))
	for i, r := range rows {
		out[i] = r.position()
	}
	return out, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
