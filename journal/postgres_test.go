package journal

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scantrade/portfolio"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newPostgres(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func TestPostgresMigrate(t *testing.T) {
	t.Parallel()
	j, mock := newMockPostgres(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS positions").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, j.migrate(postgresSchema))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDuplicatePosition(t *testing.T) {
	t.Parallel()
	j, mock := newMockPostgres(t)

	p := portfolio.Position{ID: "P1", Symbol: "AAPL", Quantity: 3, EntryPrice: 190, CurrentPrice: 190, OpenedAt: t0, UpdatedAt: t0}
	mock.ExpectExec(`INSERT INTO positions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO positions`).WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	require.NoError(t, j.SavePosition(context.Background(), p))
	err := j.SavePosition(context.Background(), p)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateMissing(t *testing.T) {
	t.Parallel()
	j, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE positions SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	err := j.UpdatePosition(context.Background(), portfolio.Position{Symbol: "GONE"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func tradeColumns() []string {
	return []string{"id", "symbol", "direction", "quantity", "entry_price", "exit_price", "realized_pnl",
		"fees", "bot_id", "strategy", "status", "entry_reason", "exit_reason", "opened_at", "closed_at"}
}

func tradeValues(tr portfolio.Trade) []driver.Value {
	r := toTradeRow(tr)
	return []driver.Value{r.ID, r.Symbol, r.Direction, r.Quantity, r.EntryPrice, r.ExitPrice, r.RealizedPnL,
		r.Fees, r.BotID, r.Strategy, r.Status, r.EntryReason, r.ExitReason, r.OpenedAt, r.ClosedAt}
}

func TestPostgresListTrades(t *testing.T) {
	t.Parallel()
	j, mock := newMockPostgres(t)

	rows := sqlmock.NewRows(tradeColumns()).
		AddRow(tradeValues(trade("T2", "support_bounce", t0.Add(time.Hour), 12))...).
		AddRow(tradeValues(trade("T1", "support_bounce", t0, -8))...)
	mock.ExpectQuery(`FROM trades WHERE bot_id = \$1 ORDER BY closed_at DESC, id DESC LIMIT \$2`).
		WithArgs("support_bounce", 20).
		WillReturnRows(rows)

	got, err := j.ListTrades(context.Background(), TradeFilter{BotID: "support_bounce"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "T2", got[0].ID)
	assert.Equal(t, -8.0, got[1].RealizedPnL)
	assert.True(t, got[1].Timestamp.Equal(t0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetTradeNotFound(t *testing.T) {
	t.Parallel()
	j, mock := newMockPostgres(t)

	mock.ExpectQuery(`FROM trades WHERE id = \$1`).WithArgs("T9").WillReturnRows(sqlmock.NewRows(tradeColumns()))
	_, err := j.GetTrade(context.Background(), "T9")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDup(t *testing.T) {
	t.Parallel()

	assert.True(t, pgDup(&pq.Error{Code: "23505"}))
	assert.False(t, pgDup(&pq.Error{Code: "23503"}))
	assert.False(t, pgDup(assert.AnError))
}
