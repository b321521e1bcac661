package market

import (
	"context"
)

// Provider supplies bars and prices for symbols. An empty Series with a
// nil error means there is no data for the symbol and callers skip it.
type Provider interface {
	Series(ctx context.Context, symbol string, w Window) (Series, error)
	LatestPrice(ctx context.Context, symbol string) (float64, error)

	// LatestPrices returns every price it could fetch. Symbols that
	// failed are missing from the map and reported in the joined error.
	LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}
