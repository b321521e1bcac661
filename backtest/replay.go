package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/scantrade/market"
)

// Replay is a market.Provider over recorded series. Only bars at or
// before the current replay time are visible.
type Replay struct {
	mu      sync.Mutex
	data    map[string]market.Series
	visible map[string]int
	at      time.Time
}

func NewReplay(data map[string]market.Series) *Replay {
	return &Replay{data: data, visible: make(map[string]int, len(data))}
}

// Timeline is the sorted union of every bar time.
func (r *Replay) Timeline() []time.Time {
	seen := make(map[time.Time]struct{})
	for _, s := range r.data {
		for _, c := range s {
			seen[c.Time] = struct{}{}
		}
	}
	out := make([]time.Time, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Advance moves the replay clock to t. Time only moves forward.
func (r *Replay) Advance(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Before(r.at) {
		return
	}
	r.at = t
	for sym, s := range r.data {
		n := r.visible[sym]
		for n < len(s) && !s[n].Time.After(t) {
			n++
		}
		r.visible[sym] = n
	}
}

func (r *Replay) Now() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.at
}

// Series returns the visible bars, trimmed to the bars w asks for.
func (r *Replay) Series(_ context.Context, symbol string, w market.Window) (market.Series, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.visible[symbol]
	lo := 0
	if bars, err := w.Bars(); err == nil && n > bars {
		lo = n - bars
	}
	return r.data[symbol][lo:n:n], nil
}

func (r *Replay) LatestPrice(_ context.Context, symbol string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.visible[symbol]
	if n == 0 {
		return 0, fmt.Errorf("%s: no bars before %s", symbol, r.at.Format(time.RFC3339))
	}
	return r.data[symbol][n-1].Close, nil
}

func (r *Replay) LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	var errs []error
	for _, sym := range symbols {
		px, err := r.LatestPrice(ctx, sym)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[sym] = px
	}
	return out, errors.Join(errs...)
}
