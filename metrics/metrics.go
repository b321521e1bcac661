// Package metrics exposes the engine's Prometheus metrics on a private
// registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyeddy/scantrade/portfolio"
	"github.com/rustyeddy/scantrade/risk"
	"github.com/rustyeddy/scantrade/scanners"
)

type Metrics struct {
	reg *prometheus.Registry

	Ticks            *prometheus.CounterVec
	TickDuration     prometheus.Histogram
	Signals          *prometheus.CounterVec
	PositionsOpened  *prometheus.CounterVec
	TradesClosed     *prometheus.CounterVec
	Rejections       *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	CacheRequests    *prometheus.CounterVec

	HealthScore    prometheus.Gauge
	ExposurePct    prometheus.Gauge
	MaxDrawdownPct prometheus.Gauge
	PortfolioValue prometheus.Gauge
	TradingPaused  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),

		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scantrade_ticks_total",
			Help: "Engine ticks by result",
		}, []string{"result"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scantrade_tick_duration_seconds",
			Help:    "Wall time of one engine tick",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scantrade_signals_total",
			Help: "Signals produced by scanner and kind",
		}, []string{"scanner", "kind"}),
		PositionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scantrade_positions_opened_total",
			Help: "Positions opened by bot",
		}, []string{"bot"}),
		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scantrade_trades_closed_total",
			Help: "Closed trades by bot and outcome",
		}, []string{"bot", "outcome"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scantrade_rejections_total",
			Help: "Entries refused by violation code",
		}, []string{"code"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scantrade_provider_requests_total",
			Help: "Market data provider calls by operation and result",
		}, []string{"op", "result"}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scantrade_cache_requests_total",
			Help: "Series cache lookups by result",
		}, []string{"result"}),

		HealthScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scantrade_health_score",
			Help: "Portfolio health score (0-100)",
		}),
		ExposurePct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scantrade_exposure_pct",
			Help: "Open position value as a percentage of portfolio value",
		}),
		MaxDrawdownPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scantrade_max_drawdown_pct",
			Help: "Largest peak-to-trough decline in percent",
		}),
		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scantrade_portfolio_value",
			Help: "Cash plus marked position value",
		}),
		TradingPaused: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scantrade_trading_paused",
			Help: "1 while the governor has paused trading",
		}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Ticks, m.TickDuration, m.Signals, m.PositionsOpened, m.TradesClosed,
		m.Rejections, m.ProviderRequests, m.CacheRequests,
		m.HealthScore, m.ExposurePct, m.MaxDrawdownPct, m.PortfolioValue, m.TradingPaused,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveTick(d time.Duration, err error) {
	m.Ticks.WithLabelValues(result(err)).Inc()
	m.TickDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveSignal(sig scanners.Signal) {
	m.Signals.WithLabelValues(sig.ScannerID, string(sig.Kind)).Inc()
}

// Reject has the shape of a bots.RejectFunc.
func (m *Metrics) Reject(_, _ string, v risk.Violation) {
	m.Rejections.WithLabelValues(v.Code).Inc()
}

// SetPortfolio refreshes the gauges from a stats snapshot.
func (m *Metrics) SetPortfolio(s portfolio.Stats, health float64, paused bool) {
	m.HealthScore.Set(health)
	m.ExposurePct.Set(s.ExposurePct)
	m.MaxDrawdownPct.Set(s.MaxDrawdown)
	m.PortfolioValue.Set(s.PortfolioValue)
	if paused {
		m.TradingPaused.Set(1)
	} else {
		m.TradingPaused.Set(0)
	}
}

// portfolio.Listener

func (m *Metrics) OnPositionOpened(p portfolio.Position) {
	m.PositionsOpened.WithLabelValues(p.BotID).Inc()
}

func (m *Metrics) OnTradeClosed(t portfolio.Trade) {
	outcome := "loss"
	if t.Win() {
		outcome = "win"
	}
	m.TradesClosed.WithLabelValues(t.BotID, outcome).Inc()
}

// feed.Observer

func (m *Metrics) ProviderRequest(op string, err error) {
	m.ProviderRequests.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if hit {
		m.CacheRequests.WithLabelValues("hit").Inc()
		return
	}
	m.CacheRequests.WithLabelValues("miss").Inc()
}
