package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/spot-trend-trader/internal/candle"
	"github.com/amirphl/spot-trend-trader/internal/tfutils"
	wallex "github.com/wallexchange/wallex-go"
)

// WallexClient adapts the Wallex spot API to the engine's exchange surface.
// Wallex does not publish lot filters, so constraints come from
// configuration (falling back to the engine defaults).
type WallexClient struct {
	client      *wallex.Client
	constraints Constraints
	policy      Policy
}

func NewWallexClient(apiKey string, constraints Constraints) *WallexClient {
	if constraints.MinNotional <= 0 {
		constraints.MinNotional = DefaultMinNotional
	}
	if constraints.StepSize <= 0 {
		constraints.StepSize = DefaultStepSize
	}
	return &WallexClient{
		client:      wallex.New(wallex.ClientOptions{APIKey: apiKey}),
		constraints: constraints,
		policy:      DefaultPolicy(),
	}
}

func (w *WallexClient) Name() string { return "wallex" }

func (w *WallexClient) FetchLatestCandles(ctx context.Context, symbol, timeframe string, count int) ([]candle.Candle, error) {
	if !tfutils.IsValidTimeframe(timeframe) {
		return nil, Fatal("FetchLatestCandles", fmt.Errorf("unsupported timeframe: %s", timeframe))
	}
	duration := tfutils.GetTimeframeDuration(timeframe)
	end := time.Now().UTC()
	start := end.Add(-duration * time.Duration(count))

	var wallexCandles []*wallex.Candle
	err := w.policy.Do(ctx, "FetchLatestCandles", func() error {
		var err error
		wallexCandles, err = w.client.Candles(symbol, timeframe, start, end)
		if err != nil {
			return Transient("FetchLatestCandles", fmt.Errorf("fetching candles: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	candles := make([]candle.Candle, 0, len(wallexCandles))
	for _, wc := range wallexCandles {
		open, _ := strconv.ParseFloat(string(wc.Open), 64)
		high, _ := strconv.ParseFloat(string(wc.High), 64)
		low, _ := strconv.ParseFloat(string(wc.Low), 64)
		closePrice, _ := strconv.ParseFloat(string(wc.Close), 64)
		volume, _ := strconv.ParseFloat(string(wc.Volume), 64)

		c := candle.Candle{
			OpenTime: wc.Timestamp.UTC(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			Volume:   volume,
		}
		if err := c.Validate(); err != nil {
			continue // Skip invalid candles
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func (w *WallexClient) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	var trades []*wallex.MarketTrade
	err := w.policy.Do(ctx, "FetchPrice", func() error {
		var err error
		trades, err = w.client.MarketTrades(symbol)
		if err != nil {
			return Transient("FetchPrice", fmt.Errorf("fetching trades: %w", err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(trades) == 0 {
		return 0, Transient("FetchPrice", fmt.Errorf("no trades found for symbol %s", symbol))
	}
	return numberToFloat(&trades[0].Price), nil
}

func (w *WallexClient) FetchBalance(ctx context.Context, asset string) (Balance, error) {
	var balances map[string]*wallex.Balance
	err := w.policy.Do(ctx, "FetchBalance", func() error {
		var err error
		balances, err = w.client.Balances()
		if err != nil {
			return Transient("FetchBalance", fmt.Errorf("fetching balances: %w", err))
		}
		return nil
	})
	if err != nil {
		return Balance{}, err
	}

	wb, ok := balances[asset]
	if !ok {
		return Balance{Asset: asset}, nil
	}
	available, _ := strconv.ParseFloat(string(wb.Value), 64)
	locked, _ := strconv.ParseFloat(string(wb.Locked), 64)
	return Balance{Asset: asset, Available: available, Locked: locked}, nil
}

func (w *WallexClient) FetchConstraints(ctx context.Context, symbol string) (Constraints, error) {
	return w.constraints, nil
}

func (w *WallexClient) PlaceMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Fill, error) {
	qty := strconv.FormatFloat(quantity, 'f', 8, 64)
	params := &wallex.OrderParams{
		Symbol:   symbol,
		Type:     "MARKET",
		Side:     string(side),
		Quantity: wallex.Number(qty),
	}

	resp, err := w.client.PlaceOrder(params)
	if err != nil {
		return Fill{}, Transient("PlaceMarketOrder", err)
	}

	if !strings.EqualFold(resp.Status, "FILLED") {
		return Fill{}, Transient("PlaceMarketOrder", fmt.Errorf("order %s not filled: status %s", resp.ClientOrderID, resp.Status))
	}

	fillPrice := numberToFloat(resp.ExecutedPrice)
	if fillPrice <= 0 {
		p, err := w.FetchPrice(ctx, symbol)
		if err != nil {
			return Fill{}, err
		}
		fillPrice = p
	}

	filledQty := numberToFloat(resp.ExecutedQty)
	if filledQty <= 0 {
		filledQty = quantity
	}
	return Fill{
		OrderID:  resp.ClientOrderID,
		Price:    fillPrice,
		Quantity: filledQty,
	}, nil
}

// numberToFloat safely dereferences a *wallex.Number.
func numberToFloat(n *wallex.Number) float64 {
	if n == nil {
		return 0
	}
	out, _ := strconv.ParseFloat(string(*n), 64)
	return out
}
