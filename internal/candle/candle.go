// Package candle
package candle

import (
	"errors"
	"fmt"
	"time"
)

// Candle is one OHLCV bar. Sequences are ordered oldest first, most
// recent last, and are never mutated after they are fetched.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Validate checks if a candle has valid data
func (c *Candle) Validate() error {
	if c.OpenTime.IsZero() {
		return errors.New("candle open time is zero")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.New("candle prices must be positive")
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Open < c.Low || c.Open > c.High {
		return errors.New("candle open price must be between high and low")
	}
	if c.Close < c.Low || c.Close > c.High {
		return errors.New("candle close price must be between high and low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	return nil
}

// ValidateSeries checks every candle and the oldest-first ordering of the sequence.
func ValidateSeries(candles []Candle) error {
	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return fmt.Errorf("candle %d at %s: %w", i, candles[i].OpenTime, err)
		}
		if i > 0 && !candles[i].OpenTime.After(candles[i-1].OpenTime) {
			return fmt.Errorf("candle %d at %s is not after candle %d", i, candles[i].OpenTime, i-1)
		}
	}
	return nil
}

// Closes extracts the close prices of a candle sequence, oldest first.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the volumes of a candle sequence, oldest first.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// Last returns the most recent candle of a sequence.
func Last(candles []Candle) (Candle, bool) {
	if len(candles) == 0 {
		return Candle{}, false
	}
	return candles[len(candles)-1], true
}
