// Package risk
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/amirphl/spot-trend-trader/internal/exchange"
)

// ErrInvalidConfiguration is returned when the configured stop produces a
// non-positive stop distance. It is fatal: the caller must abort before
// trading starts.
var ErrInvalidConfiguration = errors.New("invalid risk configuration")

// RejectionReason classifies why a sizing attempt was rejected.
type RejectionReason string

const (
	BelowMinSize        RejectionReason = "BELOW_MIN_SIZE"
	RiskExceeded        RejectionReason = "RISK_EXCEEDED"
	InsufficientBalance RejectionReason = "INSUFFICIENT_BALANCE"
)

// RejectionError is a recoverable sizing rejection. The entry opportunity
// is skipped with no state change.
type RejectionError struct {
	Reason RejectionReason
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("sizing rejected (%s): %s", e.Reason, e.Detail)
}

// IsRejection reports whether err is a sizing rejection and returns it.
func IsRejection(err error) (*RejectionError, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// SizeResult is an accepted position size. Quantity is a positive multiple
// of the step size, its notional meets the exchange minimum, and the stop
// and take-profit prices are fixed here for the life of the position.
type SizeResult struct {
	Quantity        float64
	StopLossPrice   float64
	TakeProfitPrice float64
	ActualRisk      float64
	Notional        float64
}

// Manager converts an entry price plus account balance and exchange
// constraints into a concrete position size or a rejection. All percentages
// are fractions (0.01 = 1%).
type Manager struct {
	MaxRiskPct    float64
	StopLossPct   float64
	TakeProfitPct float64
	// OverrunFactor bounds how far past the risk budget the min-notional
	// bump may push realized risk before the entry is rejected.
	OverrunFactor float64
	// BalanceCapPct is the largest share of the free balance a single
	// entry may spend.
	BalanceCapPct float64
}

// NewManager returns a Manager with the strategy defaults: 1% risk, 0.6%
// stop, 1.2% take-profit, 2x overrun threshold, 95% balance cap.
func NewManager() Manager {
	return Manager{
		MaxRiskPct:    0.01,
		StopLossPct:   0.006,
		TakeProfitPct: 0.012,
		OverrunFactor: 2.0,
		BalanceCapPct: 0.95,
	}
}

// Validate checks the manager's parameters at startup.
func (m Manager) Validate() error {
	if m.MaxRiskPct <= 0 || m.MaxRiskPct >= 1 {
		return fmt.Errorf("%w: max risk per trade must be in (0, 1), got %v", ErrInvalidConfiguration, m.MaxRiskPct)
	}
	if m.StopLossPct <= 0 || m.StopLossPct >= 1 {
		return fmt.Errorf("%w: stop loss pct must be in (0, 1), got %v", ErrInvalidConfiguration, m.StopLossPct)
	}
	if m.TakeProfitPct <= 0 {
		return fmt.Errorf("%w: take profit pct must be positive, got %v", ErrInvalidConfiguration, m.TakeProfitPct)
	}
	if m.OverrunFactor < 1 {
		return fmt.Errorf("%w: risk overrun factor must be >= 1, got %v", ErrInvalidConfiguration, m.OverrunFactor)
	}
	if m.BalanceCapPct <= 0 || m.BalanceCapPct > 1 {
		return fmt.Errorf("%w: balance cap pct must be in (0, 1], got %v", ErrInvalidConfiguration, m.BalanceCapPct)
	}
	return nil
}

// Size computes the position size for an entry at entryPrice with the given
// free balance, honoring the exchange lot constraints.
func (m Manager) Size(entryPrice, balance float64, c exchange.Constraints) (SizeResult, error) {
	if entryPrice <= 0 {
		return SizeResult{}, fmt.Errorf("%w: entry price must be positive, got %v", ErrInvalidConfiguration, entryPrice)
	}

	stopLoss := entryPrice * (1 - m.StopLossPct)
	takeProfit := entryPrice * (1 + m.TakeProfitPct)

	stopDistance := entryPrice - stopLoss
	if stopDistance <= 0 {
		return SizeResult{}, fmt.Errorf("%w: stop distance is not positive (entry=%v stop=%v)", ErrInvalidConfiguration, entryPrice, stopLoss)
	}

	riskAmount := balance * m.MaxRiskPct
	rawQuantity := riskAmount / stopDistance

	// Round toward zero first: never exceed the risk budget at this stage.
	quantity := RoundToStep(rawQuantity, c.StepSize)

	if quantity*entryPrice < c.MinNotional {
		// Bump to the smallest step multiple that satisfies the exchange
		// minimum. This necessarily pushes realized risk past the budget.
		quantity = CeilToStep(c.MinNotional/entryPrice, c.StepSize)
	}

	actualRisk := quantity * stopDistance
	if actualRisk > riskAmount*m.OverrunFactor {
		return SizeResult{}, &RejectionError{
			Reason: RiskExceeded,
			Detail: fmt.Sprintf("min notional requires risk %.4f, budget %.4f (factor %.1f)", actualRisk, riskAmount, m.OverrunFactor),
		}
	}
	if quantity <= 0 {
		return SizeResult{}, &RejectionError{
			Reason: BelowMinSize,
			Detail: fmt.Sprintf("quantity rounded to zero (raw=%.10f step=%.10f)", rawQuantity, c.StepSize),
		}
	}

	notional := quantity * entryPrice
	if notional > balance*m.BalanceCapPct {
		return SizeResult{}, &RejectionError{
			Reason: InsufficientBalance,
			Detail: fmt.Sprintf("notional %.2f exceeds %.0f%% of balance %.2f", notional, m.BalanceCapPct*100, balance),
		}
	}

	return SizeResult{
		Quantity:        quantity,
		StopLossPrice:   stopLoss,
		TakeProfitPrice: takeProfit,
		ActualRisk:      actualRisk,
		Notional:        notional,
	}, nil
}

// RoundToStep rounds quantity down to an exact multiple of step.
func RoundToStep(quantity, step float64) float64 {
	if step <= 0 {
		return quantity
	}
	return math.Floor(quantity/step) * step
}

// CeilToStep rounds quantity up to an exact multiple of step.
func CeilToStep(quantity, step float64) float64 {
	if step <= 0 {
		return quantity
	}
	return math.Ceil(quantity/step) * step
}

// Metrics describes the risk/reward profile of an accepted size, for
// logging at entry time.
type Metrics struct {
	RiskAmount       float64
	RewardAmount     float64
	RiskRewardRatio  float64
	PotentialLossPct float64
	PotentialGainPct float64
}

// RiskMetrics computes the risk/reward profile of a sized entry.
func RiskMetrics(entryPrice float64, r SizeResult) Metrics {
	riskPerUnit := entryPrice - r.StopLossPrice
	rewardPerUnit := r.TakeProfitPrice - entryPrice

	var ratio float64
	if riskPerUnit > 0 {
		ratio = rewardPerUnit / riskPerUnit
	}

	return Metrics{
		RiskAmount:       riskPerUnit * r.Quantity,
		RewardAmount:     rewardPerUnit * r.Quantity,
		RiskRewardRatio:  ratio,
		PotentialLossPct: riskPerUnit / entryPrice * 100,
		PotentialGainPct: rewardPerUnit / entryPrice * 100,
	}
}
