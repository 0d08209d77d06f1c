// Package strategy
package strategy

import (
	"testing"

	"github.com/amirphl/spot-trend-trader/internal/indicator"
	"github.com/stretchr/testify/assert"
)

// bullish returns a snapshot that satisfies every indicator rule when the
// close sits above both EMAs.
func bullish() indicator.Snapshot {
	return indicator.Snapshot{
		EMAFast:   105,
		EMASlow:   100,
		RSI:       50,
		Volume:    200,
		VolumeSMA: 150,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name         string
		fast, slow   indicator.Snapshot
		fastClose    float64
		slowClose    float64
		positionOpen bool
		approved     bool
		failed       []Rule
	}{
		{
			name:      "all rules hold",
			fast:      bullish(),
			slow:      bullish(),
			fastClose: 110,
			slowClose: 110,
			approved:  true,
		},
		{
			name:      "close below slow EMA on fast timeframe",
			fast:      bullish(),
			slow:      bullish(),
			fastClose: 99,
			slowClose: 110,
			failed:    []Rule{RulePriceAboveSlowEMA},
		},
		{
			name:      "close below slow EMA on slow timeframe",
			fast:      bullish(),
			slow:      bullish(),
			fastClose: 110,
			slowClose: 99,
			failed:    []Rule{RulePriceAboveSlowEMA},
		},
		{
			name: "fast EMA below slow EMA",
			fast: indicator.Snapshot{
				EMAFast: 95, EMASlow: 100, RSI: 50, Volume: 200, VolumeSMA: 150,
			},
			slow:      bullish(),
			fastClose: 110,
			slowClose: 110,
			failed:    []Rule{RuleEMAAlignment},
		},
		{
			name: "RSI too high",
			fast: indicator.Snapshot{
				EMAFast: 105, EMASlow: 100, RSI: 61, Volume: 200, VolumeSMA: 150,
			},
			slow:      bullish(),
			fastClose: 110,
			slowClose: 110,
			failed:    []Rule{RuleRSIInRange},
		},
		{
			name: "RSI too low",
			fast: indicator.Snapshot{
				EMAFast: 105, EMASlow: 100, RSI: 39.9, Volume: 200, VolumeSMA: 150,
			},
			slow:      bullish(),
			fastClose: 110,
			slowClose: 110,
			failed:    []Rule{RuleRSIInRange},
		},
		{
			name: "RSI bounds are inclusive",
			fast: indicator.Snapshot{
				EMAFast: 105, EMASlow: 100, RSI: 40, Volume: 200, VolumeSMA: 150,
			},
			slow:      bullish(),
			fastClose: 110,
			slowClose: 110,
			approved:  true,
		},
		{
			name: "volume at the average is not above it",
			fast: indicator.Snapshot{
				EMAFast: 105, EMASlow: 100, RSI: 50, Volume: 150, VolumeSMA: 150,
			},
			slow:      bullish(),
			fastClose: 110,
			slowClose: 110,
			failed:    []Rule{RuleVolumeAboveAverage},
		},
		{
			name:         "open position blocks entry",
			fast:         bullish(),
			slow:         bullish(),
			fastClose:    110,
			slowClose:    110,
			positionOpen: true,
			failed:       []Rule{RuleNoOpenPosition},
		},
		{
			name: "every failed rule is reported",
			fast: indicator.Snapshot{
				EMAFast: 95, EMASlow: 100, RSI: 75, Volume: 100, VolumeSMA: 150,
			},
			slow:         bullish(),
			fastClose:    90,
			slowClose:    110,
			positionOpen: true,
			failed: []Rule{
				RulePriceAboveSlowEMA,
				RuleEMAAlignment,
				RuleRSIInRange,
				RuleVolumeAboveAverage,
				RuleNoOpenPosition,
			},
		},
	}

	e := NewEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Evaluate(tt.fast, tt.slow, tt.fastClose, tt.slowClose, tt.positionOpen)
			assert.Equal(t, tt.approved, d.Approved)
			assert.Equal(t, tt.failed, d.FailedRules)
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := NewEvaluator()
	fast, slow := bullish(), bullish()

	first := e.Evaluate(fast, slow, 110, 110, false)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Evaluate(fast, slow, 110, 110, false))
	}
}
