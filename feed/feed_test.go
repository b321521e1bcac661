package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scantrade/market"
)

var clock = time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)

func fixedSynthetic() *Synthetic {
	return &Synthetic{now: func() time.Time { return clock }}
}

type countingProvider struct {
	mu     sync.Mutex
	calls  int
	err    error
	series market.Series
}

func (p *countingProvider) Series(context.Context, string, market.Window) (market.Series, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.series, p.err
}

func (p *countingProvider) LatestPrice(context.Context, string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return 101.5, p.err
}

func (p *countingProvider) LatestPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return map[string]float64{symbols[0]: 1}, p.err
}

type recObserver struct {
	mu       sync.Mutex
	ops      []string
	failures int
	hits     int
	misses   int
}

func (o *recObserver) ProviderRequest(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, op)
	if err != nil {
		o.failures++
	}
}

func (o *recObserver) CacheLookup(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func TestSyntheticDeterministic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, b := fixedSynthetic(), fixedSynthetic()

	s1, err := a.Series(ctx, "AAPL", market.DefaultWindow)
	require.NoError(t, err)
	s2, err := b.Series(ctx, "AAPL", market.DefaultWindow)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	require.Len(t, s1, 720)

	other, err := a.Series(ctx, "MSFT", market.DefaultWindow)
	require.NoError(t, err)
	assert.NotEqual(t, s1.Last().Close, other.Last().Close)

	assert.Equal(t, clock.Truncate(time.Hour), s1.Last().Time)
	for i, c := range s1 {
		assert.GreaterOrEqual(t, c.High, c.Open, i)
		assert.GreaterOrEqual(t, c.High, c.Close, i)
		assert.LessOrEqual(t, c.Low, c.Open, i)
		assert.LessOrEqual(t, c.Low, c.Close, i)
		assert.Positive(t, c.Volume, i)
		if i > 0 {
			assert.Equal(t, s1[i-1].Close, c.Open, i)
			assert.Equal(t, time.Hour, c.Time.Sub(s1[i-1].Time), i)
		}
	}
}

func TestSyntheticLimitsAndPrices(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := fixedSynthetic()

	big, err := s.Series(ctx, "SPY", market.Window{Period: "1y", Interval: "1m"})
	require.NoError(t, err)
	assert.Len(t, big, MaxSyntheticBars)

	_, err = s.Series(ctx, "SPY", market.Window{Period: "1d", Interval: "1wk"})
	assert.Error(t, err)

	px, err := s.LatestPrice(ctx, "SPY")
	require.NoError(t, err)
	assert.Positive(t, px)

	m, err := s.LatestPrices(ctx, []string{"SPY", "QQQ"})
	require.NoError(t, err)
	assert.Equal(t, px, m["SPY"])
	qqq, err := s.LatestPrice(ctx, "QQQ")
	require.NoError(t, err)
	assert.Equal(t, qqq, m["QQQ"])
	assert.Len(t, m, 2)
}

func TestGuardedTripsBreaker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	next := &countingProvider{err: errors.New("upstream 502")}
	obs := &recObserver{}
	g := NewGuarded(next, GuardConfig{RPS: 1000, Burst: 10, BreakerTimeout: time.Hour}, obs, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := g.Series(ctx, "AAPL", market.DefaultWindow)
		assert.ErrorContains(t, err, "upstream 502")
	}
	_, err := g.LatestPrice(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, next.calls, "open breaker does not call through")
	assert.Equal(t, 4, obs.failures)
	assert.Equal(t, []string{"series", "series", "series", "price"}, obs.ops)
}

// symbolProvider fails every call for the symbols in bad.
type symbolProvider struct {
	mu    sync.Mutex
	bad   map[string]bool
	calls map[string]int
}

func (p *symbolProvider) hit(sym string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[sym]++
	if p.bad[sym] {
		return fmt.Errorf("%s: unknown instrument (400)", sym)
	}
	return nil
}

func (p *symbolProvider) Series(_ context.Context, sym string, _ market.Window) (market.Series, error) {
	if err := p.hit(sym); err != nil {
		return nil, err
	}
	return market.Series{{Close: 10}}, nil
}

func (p *symbolProvider) LatestPrice(_ context.Context, sym string) (float64, error) {
	if err := p.hit(sym); err != nil {
		return 0, err
	}
	return 10, nil
}

func (p *symbolProvider) LatestPrices(_ context.Context, syms []string) (map[string]float64, error) {
	out := map[string]float64{}
	var errs []error
	for _, sym := range syms {
		if err := p.hit(sym); err != nil {
			errs = append(errs, err)
			continue
		}
		out[sym] = 10
	}
	return out, errors.Join(errs...)
}

func TestGuardedIsolatesFailingSymbol(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	next := &symbolProvider{bad: map[string]bool{"BAD": true}}
	g := NewGuarded(next, GuardConfig{RPS: 1000, Burst: 10, BreakerTimeout: time.Hour}, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := g.Series(ctx, "BAD", market.DefaultWindow)
		assert.ErrorContains(t, err, "unknown instrument")
	}
	_, err := g.Series(ctx, "BAD", market.DefaultWindow)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	s, err := g.Series(ctx, "GOOD", market.DefaultWindow)
	require.NoError(t, err)
	assert.Len(t, s, 1)
	px, err := g.LatestPrice(ctx, "GOOD")
	require.NoError(t, err)
	assert.Equal(t, 10.0, px)

	m, err := g.LatestPrices(ctx, []string{"GOOD", "BAD"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, map[string]float64{"GOOD": 10}, m)
	assert.Equal(t, 3, next.calls["BAD"], "open breaker keeps BAD out of the batch")
}

func TestGuardedBatchCountsPerSymbol(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	next := &symbolProvider{bad: map[string]bool{"BAD": true}}
	g := NewGuarded(next, GuardConfig{RPS: 1000, Burst: 10, BreakerTimeout: time.Hour}, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		m, err := g.LatestPrices(ctx, []string{"GOOD", "BAD"})
		assert.Error(t, err)
		assert.Equal(t, 10.0, m["GOOD"])
	}
	_, err := g.LatestPrice(ctx, "BAD")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	_, err = g.LatestPrice(ctx, "GOOD")
	assert.NoError(t, err)
}

func TestGuardedPassesThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	next := &countingProvider{series: market.Series{{Close: 1}, {Close: 2}}}
	g := NewGuarded(next, GuardConfig{}, nil, zerolog.Nop())

	s, err := g.Series(ctx, "AAPL", market.DefaultWindow)
	require.NoError(t, err)
	assert.Len(t, s, 2)

	px, err := g.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 101.5, px)

	next.err = errors.New("QQQ failed")
	m, err := g.LatestPrices(ctx, []string{"SPY", "QQQ"})
	assert.Error(t, err)
	assert.Equal(t, map[string]float64{"SPY": 1}, m, "partial prices survive")
}

func TestGuardedRespectsContext(t *testing.T) {
	t.Parallel()
	g := NewGuarded(&countingProvider{}, GuardConfig{RPS: 0.001, Burst: 1}, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	_, err := g.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	cancel()
	_, err = g.LatestPrice(ctx, "AAPL")
	assert.ErrorContains(t, err, "rate limit")
}

func TestMemoryCacheExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := clock
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)

	_, ok, _ = c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := newRedisCache(db)

	mock.ExpectGet("scantrade:series:AAPL:1mo:1h").RedisNil()
	mock.ExpectSet("scantrade:series:AAPL:1mo:1h", []byte(`[]`), time.Minute).SetVal("OK")
	mock.ExpectGet("scantrade:series:AAPL:1mo:1h").SetVal(`[]`)
	mock.ExpectGet("scantrade:boom").SetErr(errors.New("connection refused"))

	_, ok, err := c.Get(ctx, "series:AAPL:1mo:1h")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "series:AAPL:1mo:1h", []byte(`[]`), time.Minute))

	v, ok, err := c.Get(ctx, "series:AAPL:1mo:1h")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`[]`), v)

	_, _, err = c.Get(ctx, "boom")
	assert.ErrorContains(t, err, "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedSeries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	next := &countingProvider{series: market.Series{
		{Time: clock, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
	}}
	obs := &recObserver{}
	c := NewCached(next, NewMemoryCache(), 0, obs, zerolog.Nop())
	assert.Equal(t, DefaultTTL, c.ttl)

	s1, err := c.Series(ctx, "AAPL", market.DefaultWindow)
	require.NoError(t, err)
	s2, err := c.Series(ctx, "AAPL", market.DefaultWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
	assert.True(t, s1[0].Time.Equal(s2[0].Time))
	assert.Equal(t, s1[0].Close, s2[0].Close)
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)

	_, err = c.Series(ctx, "AAPL", market.Window{Period: "5d", Interval: "15m"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls, "different window is a different key")

	_, err = c.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	_, err = c.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 4, next.calls, "prices are never cached")
}

func TestCachedSkipsEmptyAndErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	next := &countingProvider{}
	c := NewCached(next, NewMemoryCache(), time.Minute, nil, zerolog.Nop())

	s, err := c.Series(ctx, "NONE", market.DefaultWindow)
	require.NoError(t, err)
	assert.Empty(t, s)
	_, _ = c.Series(ctx, "NONE", market.DefaultWindow)
	assert.Equal(t, 2, next.calls)

	next.err = errors.New("down")
	_, err = c.Series(ctx, "AAPL", market.DefaultWindow)
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p, err := Build(ctx, ProviderConfig{}, CacheConfig{}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Cached{}, p)

	_, err = Build(ctx, ProviderConfig{Source: "oanda"}, CacheConfig{}, nil, zerolog.Nop())
	assert.ErrorContains(t, err, "token is required")

	_, err = Build(ctx, ProviderConfig{Source: "oanda", Token: "t", Env: "nowhere"}, CacheConfig{}, nil, zerolog.Nop())
	assert.Error(t, err)

	p, err = Build(ctx, ProviderConfig{Source: "oanda", Token: "t"}, CacheConfig{}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = Build(ctx, ProviderConfig{Source: "yahoo"}, CacheConfig{}, nil, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown source")
}
