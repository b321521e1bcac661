package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scantrade/bots"
	"github.com/rustyeddy/scantrade/engine"
	"github.com/rustyeddy/scantrade/journal"
	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/metrics"
	"github.com/rustyeddy/scantrade/portfolio"
	"github.com/rustyeddy/scantrade/risk"
	"github.com/rustyeddy/scantrade/scanners"
)

type flatProvider struct{}

func (flatProvider) Series(context.Context, string, market.Window) (market.Series, error) {
	s := make(market.Series, 10)
	for i := range s {
		s[i] = market.Candle{Time: time.Unix(int64(i)*60, 0), Open: 50, High: 51, Low: 49, Close: 50, Volume: 100}
	}
	return s, nil
}

func (flatProvider) LatestPrice(context.Context, string) (float64, error) { return 50, nil }

func (flatProvider) LatestPrices(_ context.Context, syms []string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, s := range syms {
		out[s] = 50
	}
	return out, nil
}

type oversold struct{}

func (oversold) ID() string        { return "momentum_rsi" }
func (oversold) Name() string      { return "Momentum RSI" }
func (oversold) Condition() string { return "RSI < 30" }
func (oversold) MinBars() int      { return 1 }
func (oversold) Analyze(string, market.Series) (scanners.Signal, bool) {
	return scanners.Signal{Kind: scanners.Oversold, Confidence: 75, Price: 50}, true
}

type buyer struct{}

func (buyer) ID() string       { return "dip_buyer" }
func (buyer) Name() string     { return "Dip Buyer" }
func (buyer) Strategy() string { return "Testing" }
func (buyer) Tier() risk.Tier  { return risk.TierMedium }
func (buyer) MinBars() int     { return 1 }
func (buyer) ShouldEnter(string, market.Series) bots.Decision {
	return bots.Decision{OK: true, Confidence: 80, Reason: "dip"}
}
func (buyer) ShouldExit(string, market.Series, float64) bots.Decision {
	return bots.Decision{Reason: "hold"}
}

type fixture struct {
	srv    *Server
	eng    *engine.Engine
	ledger *portfolio.Ledger
	j      *journal.SQLite
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	log := zerolog.Nop()
	prov := flatProvider{}
	syms := []string{"AAPL"}
	ledger := portfolio.New(portfolio.DefaultConfig(), j, log)
	gov := risk.NewGovernor(risk.DefaultPolicy(), ledger, log)
	sc := scanners.New(oversold{}, scanners.Deps{Provider: prov, Store: j, Symbols: syms, Log: log})
	bot := bots.New(buyer{}, bots.Deps{Provider: prov, Ledger: ledger, Gate: gov, Symbols: syms, Log: log})

	eng := engine.New(engine.Config{}, engine.Deps{
		Provider: prov, Ledger: ledger, Governor: gov,
		Scanners: []*scanners.Scanner{sc}, Bots: []*bots.Bot{bot}, Log: log,
	})
	srv := NewServer(DefaultConfig(), Deps{Engine: eng, History: j, Metrics: metrics.New().Handler(), Version: "test", Log: log})
	return &fixture{srv: srv, eng: eng, ledger: ledger, j: j}
}

func (f *fixture) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func obj(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "want object, got %T", v)
	return m
}

func arr(t *testing.T, v any) []any {
	t.Helper()
	a, ok := v.([]any)
	require.True(t, ok, "want array, got %T", v)
	return a
}

func TestRootAndHealth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec, body := f.do(t, "GET", "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", obj(t, body)["version"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	_, body = f.do(t, "GET", "/health")
	assert.Equal(t, map[string]any{"status": "healthy", "engine_running": false}, body)

	rec, body = f.do(t, "GET", "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", obj(t, body)["detail"])
}

func TestDashboard(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, body := f.do(t, "GET", "/api/health-score")
	assert.Equal(t, map[string]any{"score": 100.0, "status": "OPTIMAL"}, body)

	_, body = f.do(t, "GET", "/api/quick-stats")
	qs := obj(t, body)
	assert.Equal(t, 100_000.0, qs["portfolio_value"])
	assert.Contains(t, qs, "sharpe_ratio")
	assert.Equal(t, 0.0, qs["open_positions"])

	require.NoError(t, f.eng.Tick(context.Background()))

	_, body = f.do(t, "GET", "/api/system-status")
	st := obj(t, body)
	assert.Equal(t, 1.0, st["total_scanners"])
	assert.Equal(t, 0.0, st["active_bots"], "bots start inactive")
	assert.NotNil(t, st["last_update"])

	_, body = f.do(t, "GET", "/api/portfolio")
	p := obj(t, body)
	assert.Empty(t, arr(t, p["positions"]))
	assert.Equal(t, 100_000.0, obj(t, p["stats"])["cash"])
}

func TestScanners(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, body := f.do(t, "GET", "/api/scanners")
	list := arr(t, body)
	require.Len(t, list, 1)
	sc := obj(t, list[0])
	assert.Equal(t, "NEUTRAL", sc["signal"])
	assert.Equal(t, "active", sc["status"])
	assert.Equal(t, "RSI < 30", sc["condition"])

	require.NoError(t, f.eng.Tick(context.Background()))

	_, body = f.do(t, "GET", "/api/scanners")
	sc = obj(t, arr(t, body)[0])
	assert.Equal(t, "OVERSOLD", sc["signal"])
	assert.Equal(t, 1.0, sc["signals"])
	assert.NotNil(t, sc["lastUpdate"])

	_, body = f.do(t, "GET", "/api/scanners/momentum_rsi/signals?limit=5")
	sigs := arr(t, body)
	require.Len(t, sigs, 1)
	assert.Equal(t, "AAPL", obj(t, sigs[0])["symbol"])

	rec, _ := f.do(t, "GET", "/api/scanners/momentum_rsi/signals?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, body = f.do(t, "GET", "/api/scanners/momentum_rsi")
	assert.Equal(t, "Momentum RSI", obj(t, body)["name"])

	_, body = f.do(t, "POST", "/api/scanners/momentum_rsi/toggle")
	assert.Equal(t, map[string]any{"status": "inactive"}, body)

	rec, body = f.do(t, "GET", "/api/scanners/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Scanner not found", obj(t, body)["detail"])

	rec, _ = f.do(t, "GET", "/api/scanners/momentum_rsi/toggle")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBots(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, body := f.do(t, "GET", "/api/bots")
	b := obj(t, arr(t, body)[0])
	assert.Equal(t, "inactive", b["status"])
	assert.Equal(t, "4%", b["capital"])

	_, body = f.do(t, "POST", "/api/bots/dip_buyer/toggle")
	assert.Equal(t, map[string]any{"status": "active"}, body)

	require.NoError(t, f.eng.Tick(context.Background()))
	_, ok := f.ledger.Position("AAPL")
	require.True(t, ok)

	_, err := f.ledger.Close(context.Background(), "AAPL", 55, "manual")
	require.NoError(t, err)

	_, body = f.do(t, "GET", "/api/bots/dip_buyer/trades")
	trades := arr(t, body)
	require.Len(t, trades, 1)
	assert.Equal(t, "SELL", obj(t, trades[0])["direction"])

	_, body = f.do(t, "GET", "/api/logs/trades?limit=10")
	logs := arr(t, body)
	require.Len(t, logs, 1)
	l := obj(t, logs[0])
	assert.Equal(t, "trade", l["type"])
	assert.Equal(t, 55.0, l["price"])
	assert.Equal(t, "manual", l["reason"])

	_, body = f.do(t, "POST", "/api/bots/dip_buyer/toggle")
	assert.Equal(t, map[string]any{"status": "paused"}, body)

	rec, _ := f.do(t, "GET", "/api/bots/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = f.do(t, "GET", "/api/bots/ghost/trades")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGovernanceAndLogs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, body := f.do(t, "GET", "/api/governance/risk-limits")
	rl := obj(t, body)
	assert.Equal(t, 10.0, rl["max_drawdown_limit"])
	assert.Equal(t, true, rl["paper_trading"])

	_, body = f.do(t, "GET", "/api/governance/rules")
	assert.Len(t, arr(t, obj(t, body)["rules"]), 4)

	f.eng.Governor().Record(risk.LevelInfo, "ENGINE_STARTED", "Trading engine started")
	_, body = f.do(t, "GET", "/api/logs/system?limit=5")
	ev := arr(t, body)
	require.Len(t, ev, 1)
	assert.Equal(t, "Trading engine started", obj(t, ev[0])["message"])

	require.NoError(t, f.eng.Tick(context.Background()))
	_, body = f.do(t, "GET", "/api/logs/signals")
	sl := obj(t, arr(t, body)[0])
	assert.Equal(t, "signal", sl["type"])
	assert.Equal(t, "OVERSOLD", sl["signal_type"])
}

func TestCORS(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/bots", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/bots", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLocalOrigin(t *testing.T) {
	t.Parallel()
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"https://localhost", true},
		{"http://127.0.0.1:5173", true},
		{"http://[::1]:8080", true},
		{"http://localhost.attacker.example", false},
		{"http://127.0.0.1.nip.io", false},
		{"http://localhost@evil.example", false},
		{"file://localhost/etc", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, localOrigin(tt.origin), tt.origin)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rec, _ := f.do(t, "GET", "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scantrade_ticks_total")
}

func TestWebsocketStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first engine.SystemStatus
	require.NoError(t, conn.ReadJSON(&first))
	assert.Nil(t, first.LastUpdate)

	require.Eventually(t, func() bool { return f.srv.Hub().Len() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, f.eng.Tick(context.Background()))

	var next engine.SystemStatus
	require.NoError(t, conn.ReadJSON(&next))
	assert.NotNil(t, next.LastUpdate)
	assert.Equal(t, 1, next.TotalBots)

	f.srv.Hub().Close()
	assert.Equal(t, 0, f.srv.Hub().Len())
}
