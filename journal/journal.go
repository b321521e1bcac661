// Package journal persists the live positions, closed trades and scanner
// signals, and answers the history queries behind the API and CLI.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/scantrade/portfolio"
	"github.com/rustyeddy/scantrade/scanners"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// DefaultLimit caps list queries that do not set one.
const DefaultLimit = 20

type TradeFilter struct {
	BotID string
	Limit int
}

type SignalFilter struct {
	ScannerID string
	Limit     int
}

func limitOr(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}

// History is the read side of a journal.
type History interface {
	ListTrades(ctx context.Context, f TradeFilter) ([]portfolio.Trade, error)
	ListSignals(ctx context.Context, f SignalFilter) ([]scanners.Signal, error)
	ListPositions(ctx context.Context) ([]portfolio.Position, error)
	GetTrade(ctx context.Context, id string) (portfolio.Trade, error)
	LatestSignal(ctx context.Context, scannerID string) (scanners.Signal, error)
}

// Journal is a complete store: the ledger and scanners write to it and
// History reads from it.
type Journal interface {
	portfolio.Store
	scanners.SignalStore
	History

	// ClearPositions drops every stored position. The ledger always starts
	// flat, so the run command calls it on startup.
	ClearPositions(ctx context.Context) error
	Close() error
}

type Config struct {
	Type    string        `yaml:"type" json:"type"` // sqlite or postgres
	Path    string        `yaml:"path" json:"path"`
	DSN     string        `yaml:"dsn" json:"dsn"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Open returns the journal selected by cfg.Type.
func Open(cfg Config) (Journal, error) {
	switch cfg.Type {
	case "", "sqlite", "sqlite3":
		if cfg.Path == "" {
			return nil, errors.New("journal: path is required")
		}
		return NewSQLite(cfg.Path)
	case "postgres":
		if cfg.DSN == "" {
			return nil, errors.New("journal: dsn is required")
		}
		return NewPostgres(cfg.DSN, cfg.Timeout)
	}
	return nil, fmt.Errorf("journal: unknown type %q", cfg.Type)
}
