package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scantrade/market"
)

// DefaultTTL is how long a fetched series is served from cache.
const DefaultTTL = 60 * time.Second

// Cached serves series from a Cache and refills it from the wrapped
// provider on a miss. Prices are always fetched live. Empty series are
// not cached.
type Cached struct {
	next  market.Provider
	cache Cache
	ttl   time.Duration
	obs   Observer
	log   zerolog.Logger
}

func NewCached(next market.Provider, c Cache, ttl time.Duration, obs Observer, log zerolog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Cached{next: next, cache: c, ttl: ttl, obs: obs, log: log}
}

func seriesKey(symbol string, w market.Window) string {
	return "series:" + symbol + ":" + w.Period + ":" + w.Interval
}

func (c *Cached) Series(ctx context.Context, symbol string, w market.Window) (market.Series, error) {
	key := seriesKey(symbol, w)

	b, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		// a broken cache degrades to a miss
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("cache get failed")
	}
	if ok {
		var s market.Series
		if err := json.Unmarshal(b, &s); err == nil {
			c.obs.CacheLookup(true)
			return s, nil
		}
		c.log.Warn().Str("symbol", symbol).Msg("dropping undecodable cache entry")
	}
	c.obs.CacheLookup(false)

	s, err := c.next.Series(ctx, symbol, w)
	if err != nil || len(s) == 0 {
		return s, err
	}
	if b, err := json.Marshal(s); err == nil {
		if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("cache set failed")
		}
	}
	return s, nil
}

func (c *Cached) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	return c.next.LatestPrice(ctx, symbol)
}

func (c *Cached) LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	return c.next.LatestPrices(ctx, symbols)
}

// Close releases the cache when it holds a connection.
func (c *Cached) Close() error {
	if cl, ok := c.cache.(interface{ Close() error }); ok {
		return cl.Close()
	}
	return nil
}
