// Package risk
package risk

import (
	"testing"

	"github.com/amirphl/spot-trend-trader/internal/exchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundToStep(t *testing.T) {
	// balance=1000, 1% risk, entry=50100, 0.6% stop: raw quantity
	// 10/300.6 = 0.033267 floors to 0.0332 with a 0.0001 step.
	raw := 10.0 / 300.6
	assert.InDelta(t, 0.0332, RoundToStep(raw, 0.0001), 1e-9)

	assert.InDelta(t, 1.23, RoundToStep(1.2399, 0.01), 1e-9)
	assert.InDelta(t, 0.0, RoundToStep(0.4, 1), 1e-9)

	// Zero step passes quantities through untouched.
	assert.InDelta(t, raw, RoundToStep(raw, 0), 1e-12)
}

func TestCeilToStep(t *testing.T) {
	assert.InDelta(t, 0.0333, CeilToStep(0.033267, 0.0001), 1e-9)
	assert.InDelta(t, 2.0, CeilToStep(1.01, 1), 1e-9)
	assert.InDelta(t, 0.5, CeilToStep(0.5, 0), 1e-12)
}

func TestManagerValidate(t *testing.T) {
	assert.NoError(t, NewManager().Validate())

	tests := []struct {
		name   string
		mutate func(*Manager)
	}{
		{"zero risk", func(m *Manager) { m.MaxRiskPct = 0 }},
		{"risk at 100%", func(m *Manager) { m.MaxRiskPct = 1 }},
		{"zero stop", func(m *Manager) { m.StopLossPct = 0 }},
		{"stop at 100%", func(m *Manager) { m.StopLossPct = 1 }},
		{"negative take profit", func(m *Manager) { m.TakeProfitPct = -0.01 }},
		{"overrun below one", func(m *Manager) { m.OverrunFactor = 0.5 }},
		{"zero balance cap", func(m *Manager) { m.BalanceCapPct = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			tt.mutate(&m)
			err := m.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestSizeAccepted(t *testing.T) {
	m := Manager{
		MaxRiskPct:    0.01,
		StopLossPct:   0.02,
		TakeProfitPct: 0.04,
		OverrunFactor: 2.0,
		BalanceCapPct: 0.95,
	}
	c := exchange.Constraints{MinNotional: 10, StepSize: 0.25}

	// risk = 100, stop distance = 2, quantity = 50 exactly.
	r, err := m.Size(100, 10000, c)
	require.NoError(t, err)

	assert.InDelta(t, 50.0, r.Quantity, 1e-9)
	assert.InDelta(t, 98.0, r.StopLossPrice, 1e-9)
	assert.InDelta(t, 104.0, r.TakeProfitPrice, 1e-9)
	assert.InDelta(t, 100.0, r.ActualRisk, 1e-9)
	assert.InDelta(t, 5000.0, r.Notional, 1e-9)
}

func TestSizeFloorsTowardZero(t *testing.T) {
	m := Manager{
		MaxRiskPct:    0.01,
		StopLossPct:   0.02,
		TakeProfitPct: 0.04,
		OverrunFactor: 2.0,
		BalanceCapPct: 0.95,
	}
	c := exchange.Constraints{MinNotional: 10, StepSize: 0.0001}

	// risk = 10, stop distance = 1002, raw quantity 0.009980 floors to 0.0099.
	r, err := m.Size(50100, 1000, c)
	require.NoError(t, err)

	assert.InDelta(t, 0.0099, r.Quantity, 1e-9)
	assert.InDelta(t, 49098.0, r.StopLossPrice, 1e-6)
	// The floored quantity never exceeds the risk budget.
	assert.LessOrEqual(t, r.ActualRisk, 10.0)
}

func TestSizeMinNotionalBump(t *testing.T) {
	m := Manager{
		MaxRiskPct:    0.01,
		StopLossPct:   0.02,
		TakeProfitPct: 0.04,
		OverrunFactor: 2.0,
		BalanceCapPct: 1.0,
	}
	c := exchange.Constraints{MinNotional: 1000, StepSize: 0.25}

	// Risk-based quantity 5 has notional 500, below the 1000 minimum, so
	// the quantity bumps to 10. Realized risk doubles to 20, which is at
	// the 2x threshold but not past it.
	r, err := m.Size(100, 1000, c)
	require.NoError(t, err)

	assert.InDelta(t, 10.0, r.Quantity, 1e-9)
	assert.InDelta(t, 1000.0, r.Notional, 1e-9)
	assert.InDelta(t, 20.0, r.ActualRisk, 1e-9)
}

func TestSizeRiskExceeded(t *testing.T) {
	m := Manager{
		MaxRiskPct:    0.01,
		StopLossPct:   0.02,
		TakeProfitPct: 0.04,
		OverrunFactor: 1.5,
		BalanceCapPct: 1.0,
	}
	c := exchange.Constraints{MinNotional: 1000, StepSize: 0.25}

	// Same bump as above, but a 1.5x threshold rejects the 2x realized risk.
	_, err := m.Size(100, 1000, c)
	require.Error(t, err)

	rej, ok := IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RiskExceeded, rej.Reason)
}

func TestSizeBelowMinSize(t *testing.T) {
	m := Manager{
		MaxRiskPct:    0.01,
		StopLossPct:   0.02,
		TakeProfitPct: 0.04,
		OverrunFactor: 2.0,
		BalanceCapPct: 0.95,
	}
	// A step of 10 floors the raw quantity of 5 to zero; no minimum
	// notional means no bump rescues it.
	c := exchange.Constraints{MinNotional: 0, StepSize: 10}

	_, err := m.Size(100, 1000, c)
	require.Error(t, err)

	rej, ok := IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, BelowMinSize, rej.Reason)
}

func TestSizeInsufficientBalance(t *testing.T) {
	// With the default 0.6% stop, spending the full 1% risk budget needs
	// a notional of ~1.67x the balance, which the 95% cap rejects.
	m := NewManager()
	c := exchange.Constraints{MinNotional: 10, StepSize: 0.0001}

	_, err := m.Size(50100, 1000, c)
	require.Error(t, err)

	rej, ok := IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, InsufficientBalance, rej.Reason)
}

func TestSizeInvalidEntry(t *testing.T) {
	m := NewManager()
	c := exchange.Constraints{MinNotional: 10, StepSize: 0.0001}

	_, err := m.Size(0, 1000, c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, ok := IsRejection(err)
	assert.False(t, ok, "configuration errors are not recoverable rejections")
}

func TestRiskMetrics(t *testing.T) {
	r := SizeResult{
		Quantity:        50,
		StopLossPrice:   98,
		TakeProfitPrice: 104,
	}

	m := RiskMetrics(100, r)
	assert.InDelta(t, 100.0, m.RiskAmount, 1e-9)
	assert.InDelta(t, 200.0, m.RewardAmount, 1e-9)
	assert.InDelta(t, 2.0, m.RiskRewardRatio, 1e-9)
	assert.InDelta(t, 2.0, m.PotentialLossPct, 1e-9)
	assert.InDelta(t, 4.0, m.PotentialGainPct, 1e-9)
}
