package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/spot-trend-trader/internal/candle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	price   float64
	balance Balance
	orders  int
}

func (s *stubClient) Name() string { return "stub" }

func (s *stubClient) FetchLatestCandles(ctx context.Context, symbol, timeframe string, count int) ([]candle.Candle, error) {
	return []candle.Candle{{OpenTime: time.Now(), Open: s.price, High: s.price, Low: s.price, Close: s.price, Volume: 1}}, nil
}

func (s *stubClient) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	return s.price, nil
}

func (s *stubClient) FetchBalance(ctx context.Context, asset string) (Balance, error) {
	return s.balance, nil
}

func (s *stubClient) FetchConstraints(ctx context.Context, symbol string) (Constraints, error) {
	return Constraints{MinNotional: 10, StepSize: 0.001}, nil
}

func (s *stubClient) PlaceMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Fill, error) {
	s.orders++
	return Fill{OrderID: "real", Price: s.price, Quantity: quantity}, nil
}

func TestPaperClientSimulatesOrders(t *testing.T) {
	real := &stubClient{price: 50100}
	paper := NewPaperClient(real, 1000)

	assert.Equal(t, "paper-stub", paper.Name())

	fill, err := paper.PlaceMarketOrder(context.Background(), "BTCUSDT", SideBuy, 0.0332)
	require.NoError(t, err)

	// The simulated fill uses the live price and never reaches the real
	// exchange.
	assert.InDelta(t, 50100.0, fill.Price, 1e-9)
	assert.InDelta(t, 0.0332, fill.Quantity, 1e-9)
	assert.Contains(t, fill.OrderID, "dry_")
	assert.Equal(t, 0, real.orders)
}

func TestPaperClientBalance(t *testing.T) {
	real := &stubClient{balance: Balance{Asset: "USDT", Available: 42}}

	// A configured paper balance shadows the real account.
	paper := NewPaperClient(real, 1000)
	b, err := paper.FetchBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, b.Available, 1e-9)

	// Without one, the real account is consulted.
	paper = NewPaperClient(real, 0)
	b, err = paper.FetchBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.InDelta(t, 42.0, b.Available, 1e-9)
}

func TestPaperClientProxiesMarketData(t *testing.T) {
	real := &stubClient{price: 123}
	paper := NewPaperClient(real, 1000)

	p, err := paper.FetchPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 123.0, p, 1e-9)

	c, err := paper.FetchConstraints(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, c.MinNotional, 1e-9)
}
