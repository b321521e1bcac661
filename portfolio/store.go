package portfolio

import "context"

// Store persists ledger changes. Failures are logged by the ledger and
// never undo the in-memory mutation.
type Store interface {
	SavePosition(ctx context.Context, p Position) error
	UpdatePosition(ctx context.Context, p Position) error
	DeletePosition(ctx context.Context, symbol string) error
	RecordTrade(ctx context.Context, t Trade) error
}

// Listener is told about executions after the ledger lock is released.
type Listener interface {
	OnPositionOpened(p Position)
	OnTradeClosed(t Trade)
}

type nopStore struct{}

func (nopStore) SavePosition(context.Context, Position) error   { return nil }
func (nopStore) UpdatePosition(context.Context, Position) error { return nil }
func (nopStore) DeletePosition(context.Context, string) error   { return nil }
func (nopStore) RecordTrade(context.Context, Trade) error       { return nil }
