package indicator

import (
	"errors"
	"math"
)

// CalculateEMA computes the exponential moving average series of prices.
// The first period-1 elements are NaN (warm-up). The EMA is seeded with the
// simple average of the first period values and then smoothed recursively
// with factor 2/(period+1).
func CalculateEMA(prices []float64, period int) []float64 {
	if len(prices) < period || period <= 0 {
		return nil
	}
	ema := make([]float64, len(prices))
	for i := 0; i < period-1; i++ {
		ema[i] = math.NaN()
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema[period-1] = sum / float64(period)
	k := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema[i] = prices[i]*k + ema[i-1]*(1-k)
	}
	return ema
}

// CalculateLastEMA returns the EMA at the most recent price.
func CalculateLastEMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("EMA period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough prices for EMA")
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	k := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = prices[i]*k + ema*(1-k)
	}
	return ema, nil
}
