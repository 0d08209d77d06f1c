package exchange

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/amirphl/spot-trend-trader/internal/candle"
	"github.com/amirphl/spot-trend-trader/internal/utils"
)

// PaperClient is a dry-run wrapper: market data, constraints, and balances
// proxy to a real exchange while orders are simulated at the live ticker
// price. With a positive paper balance set, the account query is simulated
// too, so dry runs work without trade-enabled credentials.
type PaperClient struct {
	real         Client
	paperBalance float64
	orderCounter int64
}

func NewPaperClient(real Client, paperBalance float64) *PaperClient {
	return &PaperClient{real: real, paperBalance: paperBalance, orderCounter: 1000}
}

func (p *PaperClient) Name() string { return "paper-" + p.real.Name() }

// ===== PROXY FUNCTIONS - These call the real exchange =====

func (p *PaperClient) FetchLatestCandles(ctx context.Context, symbol, timeframe string, count int) ([]candle.Candle, error) {
	return p.real.FetchLatestCandles(ctx, symbol, timeframe, count)
}

func (p *PaperClient) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	return p.real.FetchPrice(ctx, symbol)
}

func (p *PaperClient) FetchConstraints(ctx context.Context, symbol string) (Constraints, error) {
	return p.real.FetchConstraints(ctx, symbol)
}

func (p *PaperClient) FetchBalance(ctx context.Context, asset string) (Balance, error) {
	if p.paperBalance > 0 {
		return Balance{Asset: asset, Available: p.paperBalance}, nil
	}
	return p.real.FetchBalance(ctx, asset)
}

// ===== MOCK FUNCTIONS - These simulate order execution =====

func (p *PaperClient) PlaceMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Fill, error) {
	price, err := p.real.FetchPrice(ctx, symbol)
	if err != nil {
		return Fill{}, err
	}

	counter := atomic.AddInt64(&p.orderCounter, 1)
	orderID := fmt.Sprintf("dry_%d_%d", time.Now().Unix(), counter)

	utils.GetLogger().Printf("PaperClient | [DRY RUN] Market %s: %.8f %s @ %.2f (order %s)", side, quantity, symbol, price, orderID)

	return Fill{
		OrderID:  orderID,
		Price:    price,
		Quantity: quantity,
	}, nil
}
