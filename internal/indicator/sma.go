package indicator

import "errors"

// CalculateLastSMA returns the arithmetic mean of the trailing period values.
func CalculateLastSMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("SMA period must be positive")
	}
	if len(values) < period {
		return 0, errors.New("not enough values for SMA")
	}
	var sum float64
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), nil
}
