package exchange

import (
	"context"

	"github.com/amirphl/spot-trend-trader/internal/candle"
)

// MarketData supplies ordered candle sequences and ticker prices.
type MarketData interface {
	// FetchLatestCandles returns up to count most recent candles for the
	// symbol and timeframe, ordered oldest first.
	FetchLatestCandles(ctx context.Context, symbol, timeframe string, count int) ([]candle.Candle, error)
	// FetchPrice returns the current market price for the symbol.
	FetchPrice(ctx context.Context, symbol string) (float64, error)
}

// Trading places orders and answers account queries.
type Trading interface {
	FetchBalance(ctx context.Context, asset string) (Balance, error)
	FetchConstraints(ctx context.Context, symbol string) (Constraints, error)
	// PlaceMarketOrder submits a market order and returns the fill.
	// Failures are classified as TransientError or FatalError.
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Fill, error)
}

// Client is the full surface the engine needs from a spot exchange.
type Client interface {
	Name() string
	MarketData
	Trading
}
