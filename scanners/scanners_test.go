package scanners

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scantrade/market"
)

var t0 = time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC)

func fromCloses(closes ...float64) market.Series {
	s := make(market.Series, len(closes))
	for i, c := range closes {
		s[i] = market.Candle{Time: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return s
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// triangle oscillates between lo and lo+amp with the given period.
func triangle(n int, lo, amp float64, period int) []float64 {
	half := period / 2
	out := make([]float64, n)
	for i := range out {
		p := i % period
		if p > half {
			p = period - p
		}
		out[i] = lo + amp*float64(p)/float64(half)
	}
	return out
}

func TestConfidence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Confidence())
	assert.Equal(t, 50.0, Confidence(40, 60))
	assert.InDelta(t, 20.0, Confidence(10, 20, 30), 1e-12)
}

func TestShortSeriesNoSignal(t *testing.T) {
	t.Parallel()

	require.Len(t, IDs(), 5)
	for _, id := range IDs() {
		a, err := NewAnalyzer(id)
		require.NoError(t, err)
		assert.Equal(t, id, a.ID())

		s := fromCloses(ramp(a.MinBars()-1, 100, 1)...)
		_, ok := a.Analyze("AAPL", s)
		assert.False(t, ok, id)

		_, ok = a.Analyze("AAPL", nil)
		assert.False(t, ok, id)
	}

	_, err := NewAnalyzer("nope")
	assert.Error(t, err)
}

func TestTrendAlignment(t *testing.T) {
	t.Parallel()
	a := NewTrendAlignment(DefaultTrendConfig())

	sig, ok := a.Analyze("SPY", fromCloses(ramp(260, 100, 0.5)...))
	require.True(t, ok)
	assert.Equal(t, Bullish, sig.Kind)
	assert.Greater(t, sig.Confidence, 70.0)
	assert.LessOrEqual(t, sig.Confidence, 94.0)
	assert.Equal(t, "EMA 20 > EMA 50 > EMA 200", sig.Condition)
	assert.Contains(t, sig.Indicators, "ema_200")
	assert.Equal(t, 229.5, sig.Price)

	sig, ok = a.Analyze("SPY", fromCloses(ramp(260, 400, -0.5)...))
	require.True(t, ok)
	assert.Equal(t, Bearish, sig.Kind)
	assert.Equal(t, "EMA 20 < EMA 50 < EMA 200", sig.Condition)

	flat := make([]float64, 260)
	for i := range flat {
		flat[i] = 50
	}
	_, ok = a.Analyze("SPY", fromCloses(flat...))
	assert.False(t, ok)
}

func TestVolatilityCompression(t *testing.T) {
	t.Parallel()
	a := NewVolatilityCompression(DefaultCompressionConfig())

	closes := make([]float64, 0, 130)
	for i := 0; i < 100; i++ {
		closes = append(closes, 100+5*float64(i%2*2-1))
	}
	for i := 0; i < 30; i++ {
		closes = append(closes, 100+0.05*float64(i%2*2-1))
	}

	sig, ok := a.Analyze("QQQ", fromCloses(closes...))
	require.True(t, ok)
	assert.Equal(t, Ready, sig.Kind)
	assert.Equal(t, 87.0, sig.Confidence)
	assert.Less(t, sig.Indicators["bb_width_ratio"], 0.7)
	assert.Contains(t, sig.Condition, "BB Squeeze detected")

	// steady volatility never squeezes
	_, ok = a.Analyze("QQQ", fromCloses(closes[:100]...))
	assert.False(t, ok)
}

func TestMomentumDivergence(t *testing.T) {
	t.Parallel()
	a := NewMomentumDivergence(DefaultMomentumConfig())

	down := ramp(200, 300, -1)
	down = append(down, down[len(down)-1]+0.5)
	sig, ok := a.Analyze("TSLA", fromCloses(down...))
	require.True(t, ok)
	assert.Equal(t, Oversold, sig.Kind)
	assert.Less(t, sig.Indicators["rsi"], 30.0)
	assert.Greater(t, sig.Indicators["macd_histogram"], 0.0)
	assert.LessOrEqual(t, sig.Confidence, 78.0)
	assert.Contains(t, sig.Condition, "MACD Bullish")

	up := ramp(200, 100, 1)
	up = append(up, up[len(up)-1]-0.5)
	sig, ok = a.Analyze("TSLA", fromCloses(up...))
	require.True(t, ok)
	assert.Equal(t, Overbought, sig.Kind)
	assert.Contains(t, sig.Condition, "MACD Bearish")

	_, ok = a.Analyze("TSLA", fromCloses(triangle(120, 100, 4, 8)...))
	assert.False(t, ok)
}

func TestSupportResistanceBreakout(t *testing.T) {
	t.Parallel()
	a := NewSupportResistance(DefaultLevelsConfig())

	closes := triangle(80, 100, 10, 20)
	closes[79] = 112
	s := fromCloses(closes...)
	s[79].Volume = 5000

	sig, ok := a.Analyze("NVDA", s)
	require.True(t, ok)
	assert.Equal(t, Breakout, sig.Kind)
	assert.Equal(t, 75.0, sig.Confidence)
	assert.Equal(t, 111.0, sig.Indicators["resistance_level"])
	assert.Equal(t, "Price broke above resistance at $111.00", sig.Condition)
}

func TestSupportResistanceSupport(t *testing.T) {
	t.Parallel()
	a := NewSupportResistance(DefaultLevelsConfig())

	closes := triangle(80, 100, 10, 20)
	closes[79] = 99.5
	sig, ok := a.Analyze("NVDA", fromCloses(closes...))
	require.True(t, ok)
	assert.Equal(t, Waiting, sig.Kind)
	assert.Equal(t, 68.0, sig.Confidence)
	assert.Equal(t, 99.0, sig.Indicators["support_level"])
}

func TestVolumeProfileAboveValueArea(t *testing.T) {
	t.Parallel()
	a := NewVolumeProfile(DefaultProfileConfig())

	sig, ok := a.Analyze("AMZN", fromCloses(ramp(60, 100, 1)...))
	require.True(t, ok)
	assert.Equal(t, Bullish, sig.Kind)
	assert.Equal(t, 71.0, sig.Confidence)
	assert.Equal(t, "Price above value area, above VWAP", sig.Condition)
}

type fakeProvider struct {
	series map[string]market.Series
	errs   map[string]error
}

func (f *fakeProvider) Series(_ context.Context, sym string, _ market.Window) (market.Series, error) {
	if err := f.errs[sym]; err != nil {
		return nil, err
	}
	return f.series[sym], nil
}

func (f *fakeProvider) LatestPrice(_ context.Context, sym string) (float64, error) {
	return f.series[sym].Last().Close, nil
}

func (f *fakeProvider) LatestPrices(ctx context.Context, syms []string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, s := range syms {
		out[s], _ = f.LatestPrice(ctx, s)
	}
	return out, nil
}

type stubAnalyzer struct {
	panicOn string
}

func (stubAnalyzer) ID() string        { return "stub" }
func (stubAnalyzer) Name() string      { return "Stub" }
func (stubAnalyzer) Condition() string { return "always" }
func (stubAnalyzer) MinBars() int      { return 1 }

func (a stubAnalyzer) Analyze(sym string, s market.Series) (Signal, bool) {
	if sym == a.panicOn {
		panic("boom")
	}
	return Signal{Kind: Bullish, Confidence: 66, Price: s.Last().Close}, true
}

type memSignals struct {
	mu   sync.Mutex
	sigs []Signal
	err  error
}

func (m *memSignals) RecordSignal(_ context.Context, s Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sigs = append(m.sigs, s)
	return m.err
}

func TestScannerRun(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		series: map[string]market.Series{
			"AAPL": fromCloses(1, 2, 3),
			"MSFT": fromCloses(4, 5),
			"META": fromCloses(9),
		},
		errs: map[string]error{"GOOGL": errors.New("timeout")},
	}
	store := &memSignals{err: errors.New("db locked")}
	sc := New(stubAnalyzer{panicOn: "META"}, Deps{
		Provider: p,
		Store:    store,
		Symbols:  []string{"AAPL", "GOOGL", "MSFT", "EMPTY", "META"},
		Log:      zerolog.Nop(),
	})

	st := sc.Status()
	assert.True(t, st.Active)
	assert.Nil(t, st.LastScan)
	_, ok := sc.Latest()
	assert.False(t, ok)

	sigs := sc.Scan(context.Background())
	require.Len(t, sigs, 2)
	assert.Equal(t, "AAPL", sigs[0].Symbol)
	assert.Equal(t, "stub", sigs[0].ScannerID)
	assert.Equal(t, "Stub", sigs[0].ScannerName)
	assert.Equal(t, 3.0, sigs[0].Price)
	assert.NotEmpty(t, sigs[0].ID)
	assert.False(t, sigs[0].Timestamp.IsZero())
	assert.Len(t, store.sigs, 2)

	st = sc.Status()
	assert.Equal(t, 2, st.SignalsGenerated)
	assert.Equal(t, 5, st.SymbolsCount)
	assert.NotNil(t, st.LastScan)

	latest, ok := sc.Latest()
	require.True(t, ok)
	assert.Equal(t, "MSFT", latest.Symbol)

	assert.False(t, sc.Toggle())
	assert.Empty(t, sc.Scan(context.Background()))
	assert.True(t, sc.Toggle())
}

func TestScannerDefaultsWindow(t *testing.T) {
	t.Parallel()

	sc := New(stubAnalyzer{}, Deps{Provider: &fakeProvider{}, Log: zerolog.Nop()})
	assert.Equal(t, market.DefaultWindow, sc.deps.Window)
}

type undefinedAnalyzer struct{ stubAnalyzer }

func (undefinedAnalyzer) Analyze(_ string, s market.Series) (Signal, bool) {
	return Signal{Kind: Ready, Confidence: 70, Price: s.Last().Close, Indicators: map[string]float64{
		"atr": 2, "bb_pct": math.NaN(), "ratio": math.Inf(1),
	}}, true
}

func TestScanDropsUndefinedIndicators(t *testing.T) {
	t.Parallel()
	store := &memSignals{}
	sc := New(undefinedAnalyzer{}, Deps{
		Provider: &fakeProvider{series: map[string]market.Series{"DIA": fromCloses(1, 2)}},
		Store:    store,
		Symbols:  []string{"DIA"},
		Log:      zerolog.Nop(),
	})

	sigs := sc.Scan(context.Background())
	require.Len(t, sigs, 1)
	assert.Equal(t, map[string]float64{"atr": 2}, sigs[0].Indicators)
	require.Len(t, store.sigs, 1)
	_, err := json.Marshal(store.sigs[0])
	assert.NoError(t, err)
}
