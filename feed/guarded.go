// Package feed builds the market.Provider the engine runs on: a data
// source wrapped in rate limiting, a circuit breaker and a series cache.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/scantrade/market"
)

// Observer receives provider and cache outcomes, typically for metrics.
type Observer interface {
	ProviderRequest(op string, err error)
	CacheLookup(hit bool)
}

type nopObserver struct{}

func (nopObserver) ProviderRequest(string, error) {}
func (nopObserver) CacheLookup(bool)              {}

// ErrCircuitOpen is returned while the breaker refuses calls.
var ErrCircuitOpen = errors.New("provider circuit open")

type GuardConfig struct {
	RPS            float64
	Burst          int
	BreakerTimeout time.Duration
}

// Guarded rate-limits calls to the wrapped provider. Each symbol has its
// own circuit breaker, so a symbol that keeps failing is skipped until the
// breaker timeout passes while the others are still fetched.
type Guarded struct {
	next     market.Provider
	limiter  *rate.Limiter
	settings gobreaker.Settings
	obs      Observer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewGuarded(next market.Provider, cfg GuardConfig, obs Observer, log zerolog.Logger) *Guarded {
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 60 * time.Second
	}
	if obs == nil {
		obs = nopObserver{}
	}
	st := gobreaker.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.ConsecutiveFailures >= 3 {
				return true
			}
			return c.Requests >= 20 && float64(c.TotalFailures)/float64(c.Requests) > 0.05
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}
	return &Guarded{
		next:     next,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		settings: st,
		obs:      obs,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (g *Guarded) breaker(symbol string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb, ok := g.breakers[symbol]
	if !ok {
		st := g.settings
		st.Name = "provider:" + symbol
		cb = gobreaker.NewCircuitBreaker(st)
		g.breakers[symbol] = cb
	}
	return cb
}

func openErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

func (g *Guarded) call(ctx context.Context, op, symbol string, fn func() (any, error)) (any, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		g.obs.ProviderRequest(op, err)
		return nil, fmt.Errorf("%s: rate limit: %w", op, err)
	}
	v, err := g.breaker(symbol).Execute(fn)
	err = openErr(err)
	g.obs.ProviderRequest(op, err)
	return v, err
}

func (g *Guarded) Series(ctx context.Context, symbol string, w market.Window) (market.Series, error) {
	v, err := g.call(ctx, "series", symbol, func() (any, error) {
		return g.next.Series(ctx, symbol, w)
	})
	if err != nil {
		return nil, err
	}
	return v.(market.Series), nil
}

func (g *Guarded) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	v, err := g.call(ctx, "price", symbol, func() (any, error) {
		return g.next.LatestPrice(ctx, symbol)
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// LatestPrices makes one upstream request for the symbols whose breakers
// are not open, then counts a success or failure on each symbol's breaker
// depending on whether its price came back.
func (g *Guarded) LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	var (
		ask  []string
		errs []error
	)
	for _, sym := range symbols {
		if g.breaker(sym).State() == gobreaker.StateOpen {
			errs = append(errs, fmt.Errorf("%s: %w", sym, ErrCircuitOpen))
			continue
		}
		ask = append(ask, sym)
	}

	out := make(map[string]float64, len(ask))
	if len(ask) > 0 {
		if err := g.limiter.Wait(ctx); err != nil {
			g.obs.ProviderRequest("prices", err)
			return out, fmt.Errorf("prices: rate limit: %w", err)
		}
		m, berr := g.next.LatestPrices(ctx, ask)
		for _, sym := range ask {
			v, err := g.breaker(sym).Execute(func() (any, error) {
				if px, ok := m[sym]; ok {
					return px, nil
				}
				if berr != nil {
					return nil, berr
				}
				return nil, errors.New("no price returned")
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", sym, openErr(err)))
				continue
			}
			out[sym] = v.(float64)
		}
	}

	err := errors.Join(errs...)
	g.obs.ProviderRequest("prices", err)
	return out, err
}
