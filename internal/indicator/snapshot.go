package indicator

import (
	"errors"
	"fmt"

	"github.com/amirphl/spot-trend-trader/internal/candle"
)

// ErrInsufficientData is returned when the candle sequence is shorter than
// the largest indicator window. Callers skip signal evaluation for that tick.
var ErrInsufficientData = errors.New("insufficient candle data for indicators")

// Params holds the indicator periods used to build a snapshot.
type Params struct {
	EMAFastPeriod   int
	EMASlowPeriod   int
	RSIPeriod       int
	VolumeSMAPeriod int
}

// DefaultParams returns the strategy's standard periods: EMA(50), EMA(200),
// RSI(14), Volume-SMA(20).
func DefaultParams() Params {
	return Params{
		EMAFastPeriod:   50,
		EMASlowPeriod:   200,
		RSIPeriod:       14,
		VolumeSMAPeriod: 20,
	}
}

// MinCandles returns the minimum sequence length required to compute every
// indicator. The slow EMA dominates in practice; callers should fetch well
// beyond this (400+) so the EMA seed has converged.
func (p Params) MinCandles() int {
	minLen := p.EMASlowPeriod
	if p.EMAFastPeriod > minLen {
		minLen = p.EMAFastPeriod
	}
	if p.RSIPeriod+1 > minLen {
		minLen = p.RSIPeriod + 1
	}
	if p.VolumeSMAPeriod > minLen {
		minLen = p.VolumeSMAPeriod
	}
	return minLen
}

// Validate checks that every period is positive.
func (p Params) Validate() error {
	if p.EMAFastPeriod <= 0 || p.EMASlowPeriod <= 0 || p.RSIPeriod <= 0 || p.VolumeSMAPeriod <= 0 {
		return errors.New("indicator periods must be positive")
	}
	if p.EMAFastPeriod >= p.EMASlowPeriod {
		return errors.New("fast EMA period must be shorter than slow EMA period")
	}
	return nil
}

// Snapshot holds the indicator values at the most recent candle of one
// timeframe. Snapshots are immutable values; build a new one per tick.
type Snapshot struct {
	EMAFast   float64
	EMASlow   float64
	RSI       float64
	Volume    float64
	VolumeSMA float64
}

// Compute derives a Snapshot from an ordered candle sequence. It is a pure
// function of its input: same candles, same params, bit-identical output.
func Compute(candles []candle.Candle, p Params) (Snapshot, error) {
	if err := p.Validate(); err != nil {
		return Snapshot{}, err
	}
	if len(candles) < p.MinCandles() {
		return Snapshot{}, fmt.Errorf("%w: have %d candles, need %d", ErrInsufficientData, len(candles), p.MinCandles())
	}

	closes := candle.Closes(candles)
	volumes := candle.Volumes(candles)

	emaFast, err := CalculateLastEMA(closes, p.EMAFastPeriod)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fast EMA: %w", err)
	}
	emaSlow, err := CalculateLastEMA(closes, p.EMASlowPeriod)
	if err != nil {
		return Snapshot{}, fmt.Errorf("slow EMA: %w", err)
	}
	rsi, err := CalculateLastRSI(closes, p.RSIPeriod)
	if err != nil {
		return Snapshot{}, fmt.Errorf("RSI: %w", err)
	}
	volSMA, err := CalculateLastSMA(volumes, p.VolumeSMAPeriod)
	if err != nil {
		return Snapshot{}, fmt.Errorf("volume SMA: %w", err)
	}

	return Snapshot{
		EMAFast:   emaFast,
		EMASlow:   emaSlow,
		RSI:       rsi,
		Volume:    volumes[len(volumes)-1],
		VolumeSMA: volSMA,
	}, nil
}
