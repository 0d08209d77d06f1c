package indicator

import (
	"errors"
	"math"
)

// CalculateRSI computes the RSI series of prices using Wilder's smoothing.
// The first period-1 elements are NaN (warm-up). The first value is seeded
// by the simple average of gains and losses over the initial window; RSI is
// 100 when the average loss is zero.
func CalculateRSI(prices []float64, period int) []float64 {
	if len(prices) < period || period <= 0 {
		return nil
	}
	rsi := make([]float64, len(prices))
	for i := 0; i < period-1; i++ {
		rsi[i] = math.NaN()
	}
	var gain, loss float64
	for i := 1; i < period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss += -change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	rsi[period-1] = rsiValue(avgGain, avgLoss)
	for i := period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain = change
			loss = 0
		} else {
			gain = 0
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		rsi[i] = rsiValue(avgGain, avgLoss)
	}
	return rsi
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// CalculateLastRSI returns the RSI at the most recent price.
func CalculateLastRSI(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("RSI period must be positive")
	}
	rsi := CalculateRSI(prices, period)
	if rsi == nil {
		return 0, errors.New("not enough prices for RSI")
	}
	return rsi[len(rsi)-1], nil
}
