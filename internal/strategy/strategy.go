// Package strategy
package strategy

import "github.com/amirphl/spot-trend-trader/internal/indicator"

// Rule identifies one entry condition. Every rule must hold for an entry
// to be approved.
type Rule string

const (
	RulePriceAboveSlowEMA  Rule = "price_above_slow_ema"
	RuleEMAAlignment       Rule = "ema_fast_above_slow"
	RuleRSIInRange         Rule = "rsi_in_range"
	RuleVolumeAboveAverage Rule = "volume_above_average"
	RuleNoOpenPosition     Rule = "no_open_position"
)

// EntryDecision is the outcome of one evaluation. FailedRules lists every
// rule that did not hold, not just the first, so the caller can log full
// diagnostics per tick. Decisions are produced fresh each tick and never
// persisted.
type EntryDecision struct {
	Approved    bool
	FailedRules []Rule
}

// Evaluator combines fast and slow timeframe snapshots into an entry
// decision for a LONG-only trend-following entry.
type Evaluator struct {
	RSIMin float64
	RSIMax float64
}

// NewEvaluator returns an Evaluator with the strategy's standard RSI band
// of [40, 60], bounds inclusive.
func NewEvaluator() Evaluator {
	return Evaluator{RSIMin: 40, RSIMax: 60}
}

// Evaluate applies the five entry rules:
//  1. close above the slow EMA on both timeframes
//  2. fast EMA above slow EMA on both timeframes
//  3. fast-timeframe RSI inside [RSIMin, RSIMax]
//  4. fast-timeframe volume above its SMA
//  5. no position currently open
//
// Pure function: no hidden state, no I/O.
func (e Evaluator) Evaluate(fast, slow indicator.Snapshot, fastClose, slowClose float64, positionOpen bool) EntryDecision {
	var failed []Rule

	if !(fastClose > fast.EMASlow && slowClose > slow.EMASlow) {
		failed = append(failed, RulePriceAboveSlowEMA)
	}
	if !(fast.EMAFast > fast.EMASlow && slow.EMAFast > slow.EMASlow) {
		failed = append(failed, RuleEMAAlignment)
	}
	if !(fast.RSI >= e.RSIMin && fast.RSI <= e.RSIMax) {
		failed = append(failed, RuleRSIInRange)
	}
	if !(fast.Volume > fast.VolumeSMA) {
		failed = append(failed, RuleVolumeAboveAverage)
	}
	if positionOpen {
		failed = append(failed, RuleNoOpenPosition)
	}

	return EntryDecision{
		Approved:    len(failed) == 0,
		FailedRules: failed,
	}
}
