package trader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/spot-trend-trader/internal/candle"
	"github.com/amirphl/spot-trend-trader/internal/config"
	"github.com/amirphl/spot-trend-trader/internal/exchange"
	"github.com/amirphl/spot-trend-trader/internal/journal"
	"github.com/amirphl/spot-trend-trader/internal/notifier"
	"github.com/amirphl/spot-trend-trader/internal/position"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type placedOrder struct {
	side     exchange.Side
	quantity float64
}

// fakeExchange serves canned candles and prices and records orders.
type fakeExchange struct {
	candles   []candle.Candle
	candleErr error
	price     float64
	priceErr  error
	balance   float64
	orders    []placedOrder
	orderErr  error
}

func (f *fakeExchange) Name() string { return "fake" }

func (f *fakeExchange) FetchLatestCandles(ctx context.Context, symbol, timeframe string, count int) ([]candle.Candle, error) {
	if f.candleErr != nil {
		return nil, f.candleErr
	}
	return f.candles, nil
}

func (f *fakeExchange) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	return f.price, nil
}

func (f *fakeExchange) FetchBalance(ctx context.Context, asset string) (exchange.Balance, error) {
	return exchange.Balance{Asset: asset, Available: f.balance}, nil
}

func (f *fakeExchange) FetchConstraints(ctx context.Context, symbol string) (exchange.Constraints, error) {
	return exchange.Constraints{MinNotional: 10, StepSize: 0.001}, nil
}

func (f *fakeExchange) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.Side, quantity float64) (exchange.Fill, error) {
	if f.orderErr != nil {
		return exchange.Fill{}, f.orderErr
	}
	f.orders = append(f.orders, placedOrder{side: side, quantity: quantity})
	return exchange.Fill{OrderID: "fake-order", Price: f.price, Quantity: quantity}, nil
}

// trendingCandles builds an upward drift with alternating +5/-4 closes.
// The mixed gains and losses hold the RSI in the neutral band while the
// drift keeps the fast EMA above the slow one. The last candle carries
// elevated volume.
func trendingCandles(n int) []candle.Candle {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]candle.Candle, n)
	price := 1000.0
	for i := range out {
		if i > 0 {
			if i%2 == 1 {
				price += 5
			} else {
				price -= 4
			}
		}
		vol := 100.0
		if i == n-1 {
			vol = 200
		}
		out[i] = candle.Candle{
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     price,
			High:     price + 1,
			Low:      price - 1,
			Close:    price,
			Volume:   vol,
		}
	}
	return out
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.StopLossPct = 0.02
	cfg.TakeProfitPct = 0.04
	cfg.CandleLookback = 400
	return cfg
}

func newTestLoop(t *testing.T, fake *fakeExchange) (*Loop, *journal.MemoryRecorder, *position.Machine) {
	t.Helper()
	cfg := testConfig()
	rec := journal.NewMemoryRecorder()
	machine := position.NewMachine(cfg.Symbol, cfg.MaxDuration(), fake, rec, notifier.Noop{})

	loop, err := New(cfg, fake, machine, rec)
	require.NoError(t, err)

	loop.constraints = exchange.Constraints{MinNotional: 10, StepSize: 0.001}
	loop.now = func() time.Time { return time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC) }
	return loop, rec, machine
}

func TestNewRejectsBadParameters(t *testing.T) {
	cfg := testConfig()
	cfg.EMAFast = 200
	cfg.EMASlow = 50

	_, err := New(cfg, &fakeExchange{}, nil, nil)
	assert.Error(t, err)
}

func TestTickSkipsOnInsufficientData(t *testing.T) {
	fake := &fakeExchange{candles: trendingCandles(100), price: 1000, balance: 10000}
	loop, _, machine := newTestLoop(t, fake)

	err := loop.tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fake.orders)
	assert.False(t, machine.IsOpen())
}

func TestTickSkipsOnTransientError(t *testing.T) {
	fake := &fakeExchange{candleErr: exchange.Transient("FetchLatestCandles", errors.New("timeout"))}
	loop, _, machine := newTestLoop(t, fake)

	err := loop.tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fake.orders)
	assert.False(t, machine.IsOpen())
}

func TestTickFatalErrorPropagates(t *testing.T) {
	fake := &fakeExchange{
		candles:  trendingCandles(210),
		priceErr: exchange.Fatal("FetchPrice", errors.New("invalid api key")),
	}
	loop, _, _ := newTestLoop(t, fake)

	err := loop.tick(context.Background())
	require.Error(t, err)
	assert.True(t, exchange.IsFatal(err))
}

func TestTickNoEntryWhenVolumeRuleFails(t *testing.T) {
	candles := trendingCandles(210)
	// Flatten the last candle's volume so it no longer exceeds its SMA.
	candles[len(candles)-1].Volume = 100

	last := candles[len(candles)-1].Close
	fake := &fakeExchange{candles: candles, price: last, balance: 10000}
	loop, _, machine := newTestLoop(t, fake)

	err := loop.tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fake.orders)
	assert.False(t, machine.IsOpen())
}

func TestTickEntryThenTakeProfit(t *testing.T) {
	candles := trendingCandles(210)
	entryPrice := candles[len(candles)-1].Close

	fake := &fakeExchange{candles: candles, price: entryPrice, balance: 10000}
	loop, rec, machine := newTestLoop(t, fake)

	// First tick: every entry rule holds and a position opens.
	err := loop.tick(context.Background())
	require.NoError(t, err)
	require.True(t, machine.IsOpen())
	require.Len(t, fake.orders, 1)
	assert.Equal(t, exchange.SideBuy, fake.orders[0].side)

	pos, ok := machine.Current()
	require.True(t, ok)
	assert.InDelta(t, entryPrice*0.98, pos.StopLossPrice, 0.01)
	assert.InDelta(t, entryPrice*1.04, pos.TakeProfitPrice, 0.01)

	// Second tick: price is past the target, the position closes.
	fake.price = entryPrice * 1.05
	err = loop.tick(context.Background())
	require.NoError(t, err)
	assert.False(t, machine.IsOpen())
	require.Len(t, fake.orders, 2)
	assert.Equal(t, exchange.SideSell, fake.orders[1].side)

	trades := rec.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, string(position.ExitTakeProfit), trades[0].Reason)
	assert.Greater(t, trades[0].PnL, 0.0)
}

func TestTickEntryRejectedBySizing(t *testing.T) {
	candles := trendingCandles(210)
	last := candles[len(candles)-1].Close

	// A balance this small cannot cover the exchange minimum notional
	// within the risk overrun threshold.
	fake := &fakeExchange{candles: candles, price: last, balance: 10}
	loop, _, machine := newTestLoop(t, fake)

	err := loop.tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fake.orders)
	assert.False(t, machine.IsOpen())
}

func TestRunShutdownFlattensOpenPosition(t *testing.T) {
	candles := trendingCandles(210)
	fake := &fakeExchange{candles: candles, price: 1000, balance: 10000}
	loop, rec, machine := newTestLoop(t, fake)

	// Open a position, then cancel before the first tick fires.
	err := loop.tick(context.Background())
	require.NoError(t, err)
	require.True(t, machine.IsOpen())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = loop.Run(ctx)
	require.NoError(t, err)

	assert.False(t, machine.IsOpen())
	trades := rec.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, string(position.ExitShutdown), trades[0].Reason)
}
