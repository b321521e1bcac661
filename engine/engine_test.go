package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scantrade/bots"
	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/portfolio"
	"github.com/rustyeddy/scantrade/risk"
	"github.com/rustyeddy/scantrade/scanners"
)

type fakeProvider struct {
	mu     sync.Mutex
	closes map[string]float64
	prices map[string]float64
	panics bool
}

func (p *fakeProvider) Series(_ context.Context, sym string, _ market.Window) (market.Series, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.closes[sym]
	if !ok {
		return nil, nil
	}
	s := make(market.Series, 30)
	for i := range s {
		s[i] = market.Candle{Time: time.Unix(int64(i)*3600, 0), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return s, nil
}

func (p *fakeProvider) LatestPrice(ctx context.Context, sym string) (float64, error) {
	m, err := p.LatestPrices(ctx, []string{sym})
	return m[sym], err
}

func (p *fakeProvider) LatestPrices(_ context.Context, syms []string) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panics {
		panic("feed exploded")
	}
	out := map[string]float64{}
	for _, s := range syms {
		if px, ok := p.prices[s]; ok {
			out[s] = px
		}
	}
	return out, nil
}

type alwaysBullish struct{}

func (alwaysBullish) ID() string        { return "always_bullish" }
func (alwaysBullish) Name() string      { return "Always Bullish" }
func (alwaysBullish) Condition() string { return "always" }
func (alwaysBullish) MinBars() int      { return 1 }
func (alwaysBullish) Analyze(sym string, s market.Series) (scanners.Signal, bool) {
	return scanners.Signal{Kind: scanners.Bullish, Confidence: 80, Price: s.Last().Close}, true
}

type buyer struct{ exit bool }

func (buyer) ID() string       { return "buyer" }
func (buyer) Name() string     { return "Buyer" }
func (buyer) Strategy() string { return "Testing" }
func (buyer) Tier() risk.Tier  { return risk.TierLow }
func (buyer) MinBars() int     { return 1 }
func (buyer) ShouldEnter(string, market.Series) bots.Decision {
	return bots.Decision{OK: true, Confidence: 90, Reason: "buy"}
}
func (b buyer) ShouldExit(string, market.Series, float64) bots.Decision {
	return bots.Decision{OK: b.exit, Reason: "sell"}
}

type sink struct {
	mu  sync.Mutex
	got []scanners.Signal
}

func (s *sink) Publish(sig scanners.Signal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, sig)
	return true
}

type observer struct {
	mu      sync.Mutex
	ticks   int
	errs    int
	signals int
	health  float64
	paused  bool
}

func (o *observer) ObserveTick(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks++
	if err != nil {
		o.errs++
	}
}

func (o *observer) ObserveSignal(scanners.Signal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.signals++
}

func (o *observer) SetPortfolio(_ portfolio.Stats, health float64, paused bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.health, o.paused = health, paused
}

type rig struct {
	prov   *fakeProvider
	ledger *portfolio.Ledger
	gov    *risk.Governor
	sink   *sink
	obs    *observer
	bot    *bots.Bot
	eng    *Engine
}

func newRig(t *testing.T, pol risk.Policy, b bots.Policy, symbols ...string) *rig {
	t.Helper()
	r := &rig{
		prov: &fakeProvider{closes: map[string]float64{}, prices: map[string]float64{}},
		sink: &sink{},
		obs:  &observer{},
	}
	for _, s := range symbols {
		r.prov.closes[s] = 100
	}
	r.ledger = portfolio.New(portfolio.DefaultConfig(), nil, zerolog.Nop())
	r.gov = risk.NewGovernor(pol, r.ledger, zerolog.Nop())
	sc := scanners.New(alwaysBullish{}, scanners.Deps{Provider: r.prov, Symbols: symbols, Log: zerolog.Nop()})
	r.bot = bots.New(b, bots.Deps{
		Provider: r.prov, Ledger: r.ledger, Gate: r.gov, Symbols: symbols, Log: zerolog.Nop(),
		OnReject: RejectRecorder(r.gov, nil),
	})
	r.bot.Activate()
	r.eng = New(Config{}, Deps{
		Provider: r.prov, Ledger: r.ledger, Governor: r.gov,
		Scanners: []*scanners.Scanner{sc}, Bots: []*bots.Bot{r.bot},
		Sink: r.sink, Observer: r.obs, Log: zerolog.Nop(),
	})
	return r
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	e := New(Config{}, Deps{Log: zerolog.Nop()})
	assert.Equal(t, DefaultInterval, e.cfg.Interval)
	assert.Equal(t, DefaultErrorBackoff, e.cfg.ErrorBackoff)
}

func TestTickPipeline(t *testing.T) {
	t.Parallel()
	r := newRig(t, risk.DefaultPolicy(), buyer{}, "AAPL")

	var got []SystemStatus
	r.eng.OnTick(func(s SystemStatus) { got = append(got, s) })

	require.NoError(t, r.eng.Tick(context.Background()))

	require.Len(t, r.sink.got, 1)
	assert.Equal(t, "AAPL", r.sink.got[0].Symbol)
	assert.Equal(t, 1, r.obs.signals)
	assert.Equal(t, 1, r.obs.ticks)

	pos, ok := r.ledger.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, 100.0, pos.EntryPrice)

	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].OpenPositions)
	assert.Equal(t, 1, got[0].ActiveBots)
	assert.Equal(t, 1, got[0].ActiveScanners)
	assert.NotNil(t, got[0].LastUpdate)
	assert.Equal(t, risk.HealthStatus(got[0].HealthScore), got[0].HealthStatus)
	assert.Equal(t, r.gov.HealthScore(), r.obs.health)

	r.prov.prices["AAPL"] = 110
	require.NoError(t, r.eng.Tick(context.Background()))
	pos, _ = r.ledger.Position("AAPL")
	assert.Equal(t, 110.0, pos.CurrentPrice, "open positions are repriced each tick")
}

func TestTickSkipsBotsWhilePaused(t *testing.T) {
	t.Parallel()
	pol := risk.DefaultPolicy()
	pol.MaxExposurePct = 1
	r := newRig(t, pol, buyer{}, "MSFT")

	_, err := r.ledger.Open(context.Background(), portfolio.OpenRequest{Symbol: "SPY", Quantity: 40, Price: 100})
	require.NoError(t, err)

	require.NoError(t, r.eng.Tick(context.Background()))
	_, ok := r.ledger.Position("MSFT")
	assert.False(t, ok, "bots do not run while paused")
	assert.Len(t, r.sink.got, 1, "scanners still run")
	assert.True(t, r.obs.paused)
	assert.True(t, r.eng.SystemStatus().TradingPaused)

	evs := r.gov.Events(10)
	require.NotEmpty(t, evs)
	assert.Equal(t, "TRADING_PAUSED", evs[0].Code)
}

func TestTickRecoversPanic(t *testing.T) {
	t.Parallel()
	r := newRig(t, risk.DefaultPolicy(), buyer{}, "AAPL")
	require.NoError(t, r.eng.Tick(context.Background()))

	r.prov.panics = true
	err := r.eng.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed exploded")
	assert.Equal(t, 1, r.obs.errs)

	evs := r.gov.Events(1)
	require.Len(t, evs, 1)
	assert.Equal(t, "TICK_FAILED", evs[0].Code)
	assert.Equal(t, risk.LevelError, evs[0].Level)
}

func TestRunUntilCancelled(t *testing.T) {
	t.Parallel()
	r := newRig(t, risk.DefaultPolicy(), buyer{}, "AAPL")
	r.eng.cfg.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan struct{}, 16)
	r.eng.OnTick(func(SystemStatus) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- r.eng.Run(ctx) }()

	<-ticks
	<-ticks
	assert.True(t, r.eng.Running())
	assert.Error(t, r.eng.Run(ctx), "second Run is refused")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.False(t, r.eng.Running())
}

func TestLookup(t *testing.T) {
	t.Parallel()
	r := newRig(t, risk.DefaultPolicy(), buyer{}, "AAPL")

	s, ok := r.eng.Scanner("always_bullish")
	require.True(t, ok)
	assert.Equal(t, "Always Bullish", s.Name())
	_, ok = r.eng.Scanner("nope")
	assert.False(t, ok)

	b, ok := r.eng.Bot("buyer")
	require.True(t, ok)
	assert.Same(t, r.bot, b)
	_, ok = r.eng.Bot("nope")
	assert.False(t, ok)

	st := r.eng.SystemStatus()
	assert.False(t, st.Running)
	assert.Nil(t, st.LastUpdate)
	assert.Equal(t, 100.0, st.HealthScore)
	assert.Equal(t, risk.StatusOptimal, st.HealthStatus)
	assert.Equal(t, 100_000.0, st.PortfolioValue)
}

func TestRejectRecorder(t *testing.T) {
	t.Parallel()
	l := portfolio.New(portfolio.DefaultConfig(), nil, zerolog.Nop())
	g := risk.NewGovernor(risk.DefaultPolicy(), l, zerolog.Nop())

	var codes []string
	fn := RejectRecorder(g, func(_, _ string, v risk.Violation) { codes = append(codes, v.Code) })
	fn("vwap_mean_reversion", "AAPL", risk.Violation{Code: "POSITION_SIZE", Msg: "position too large"})

	assert.Equal(t, []string{"POSITION_SIZE"}, codes)
	evs := g.Events(1)
	require.Len(t, evs, 1)
	assert.Equal(t, "vwap_mean_reversion AAPL: position too large", evs[0].Message)
	assert.Equal(t, risk.LevelWarn, evs[0].Level)
}
