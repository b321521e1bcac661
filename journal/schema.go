package journal

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS positions (
	symbol TEXT PRIMARY KEY,
	id TEXT NOT NULL,
	quantity REAL NOT NULL,
	entry_price REAL NOT NULL,
	current_price REAL NOT NULL,
	unrealized_pnl REAL NOT NULL DEFAULT 0,
	unrealized_pnl_pct REAL NOT NULL DEFAULT 0,
	bot_id TEXT NOT NULL DEFAULT '',
	strategy TEXT NOT NULL DEFAULT '',
	entry_reason TEXT NOT NULL DEFAULT '',
	opened_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	quantity REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	fees REAL NOT NULL DEFAULT 0,
	bot_id TEXT NOT NULL DEFAULT '',
	strategy TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	entry_reason TEXT NOT NULL DEFAULT '',
	exit_reason TEXT NOT NULL DEFAULT '',
	opened_at DATETIME NOT NULL,
	closed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_bot ON trades(bot_id, closed_at);

CREATE TABLE IF NOT EXISTS signals (
	id TEXT PRIMARY KEY,
	scanner_id TEXT NOT NULL,
	scanner_name TEXT NOT NULL,
	symbol TEXT NOT NULL,
	signal_type TEXT NOT NULL,
	confidence REAL NOT NULL,
	price REAL NOT NULL,
	indicators TEXT NOT NULL DEFAULT '{}',
	condition_text TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_scanner ON signals(scanner_id, created_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS positions (
	symbol TEXT PRIMARY KEY,
	id TEXT NOT NULL,
	quantity DOUBLE PRECISION NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	current_price DOUBLE PRECISION NOT NULL,
	unrealized_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
	unrealized_pnl_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
	bot_id TEXT NOT NULL DEFAULT '',
	strategy TEXT NOT NULL DEFAULT '',
	entry_reason TEXT NOT NULL DEFAULT '',
	opened_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	quantity DOUBLE PRECISION NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	exit_price DOUBLE PRECISION NOT NULL,
	realized_pnl DOUBLE PRECISION NOT NULL,
	fees DOUBLE PRECISION NOT NULL DEFAULT 0,
	bot_id TEXT NOT NULL DEFAULT '',
	strategy TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	entry_reason TEXT NOT NULL DEFAULT '',
	exit_reason TEXT NOT NULL DEFAULT '',
	opened_at TIMESTAMPTZ NOT NULL,
	closed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_bot ON trades(bot_id, closed_at);

CREATE TABLE IF NOT EXISTS signals (
	id TEXT PRIMARY KEY,
	scanner_id TEXT NOT NULL,
	scanner_name TEXT NOT NULL,
	symbol TEXT NOT NULL,
	signal_type TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	indicators TEXT NOT NULL DEFAULT '{}',
	condition_text TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_scanner ON signals(scanner_id, created_at);
`
