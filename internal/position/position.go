// Package position
package position

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/spot-trend-trader/internal/exchange"
	"github.com/amirphl/spot-trend-trader/internal/indicator"
	"github.com/amirphl/spot-trend-trader/internal/journal"
	"github.com/amirphl/spot-trend-trader/internal/notifier"
	"github.com/amirphl/spot-trend-trader/internal/risk"
	"github.com/amirphl/spot-trend-trader/internal/utils"
)

// Status of a held position. A Position value exists only while OPEN; the
// FLAT state is the absence of one.
type Status string

const StatusOpen Status = "OPEN"

// ExitReason identifies which exit condition closed a position.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitTime       ExitReason = "TIME_EXIT"
	ExitEmergency  ExitReason = "EMERGENCY_EXIT"
	ExitShutdown   ExitReason = "SHUTDOWN"
	ExitError      ExitReason = "ERROR"
)

// Position is the single open trade slot.
type Position struct {
	Symbol          string    `json:"symbol"`
	EntryPrice      float64   `json:"entry_price"`
	Quantity        float64   `json:"quantity"`
	StopLossPrice   float64   `json:"stop_loss_price"`
	TakeProfitPrice float64   `json:"take_profit_price"`
	OpenedAt        time.Time `json:"opened_at"`
	Status          Status    `json:"status"`
}

// ExitDecision is the outcome of one exit evaluation.
type ExitDecision struct {
	Triggered bool
	Reason    ExitReason
}

// Tick carries the inputs for one exit evaluation.
type Tick struct {
	Now          time.Time
	Price        float64
	FastSnapshot indicator.Snapshot
}

// exitCondition pairs a reason with its predicate. Conditions are checked
// in slice order and the first match wins, which makes the exit priority an
// explicit, testable structure.
type exitCondition struct {
	reason    ExitReason
	triggered func(t Tick) bool
}

// Machine owns the single position slot. Every mutation of the slot goes
// through Open, EvaluateTick, or ForceClose, all driven by one goroutine.
type Machine struct {
	symbol      string
	maxDuration time.Duration

	exchange exchange.Trading
	recorder journal.Recorder
	notifier notifier.Notifier

	pos *Position

	// prevFast is the fast snapshot of the previous tick, kept solely for
	// edge-triggered EMA cross detection. Updated only after the exit
	// conditions for the current tick have been evaluated.
	prevFast *indicator.Snapshot

	// pendingExit holds the exit reason of a close order that failed.
	// While set, the next tick retries the same reason instead of
	// re-evaluating the conditions.
	pendingExit *ExitReason

	exits []exitCondition
}

// NewMachine creates a position state machine in the FLAT state.
func NewMachine(symbol string, maxDuration time.Duration, ex exchange.Trading, rec journal.Recorder, n notifier.Notifier) *Machine {
	m := &Machine{
		symbol:      symbol,
		maxDuration: maxDuration,
		exchange:    ex,
		recorder:    rec,
		notifier:    n,
	}
	m.exits = []exitCondition{
		{ExitStopLoss, func(t Tick) bool { return t.Price <= m.pos.StopLossPrice }},
		{ExitTakeProfit, func(t Tick) bool { return t.Price >= m.pos.TakeProfitPrice }},
		{ExitTime, func(t Tick) bool { return t.Now.Sub(m.pos.OpenedAt) >= m.maxDuration }},
		{ExitEmergency, m.emaCrossedBelow},
	}
	return m
}

// emaCrossedBelow detects the tick at which the fast EMA drops below the
// slow EMA. The previous snapshot must have been at or above: a plain
// level comparison would fire on every tick once the trend has already
// reversed.
func (m *Machine) emaCrossedBelow(t Tick) bool {
	if m.prevFast == nil {
		return false
	}
	return m.prevFast.EMAFast >= m.prevFast.EMASlow && t.FastSnapshot.EMAFast < t.FastSnapshot.EMASlow
}

// IsOpen reports whether a position is held.
func (m *Machine) IsOpen() bool { return m.pos != nil }

// Current returns a copy of the held position, if any.
func (m *Machine) Current() (Position, bool) {
	if m.pos == nil {
		return Position{}, false
	}
	return *m.pos, true
}

// Open transitions FLAT to OPEN: submits the entry order and stores the
// position with the stop and take-profit prices fixed at sizing time.
func (m *Machine) Open(ctx context.Context, now time.Time, size risk.SizeResult) error {
	if m.pos != nil {
		return fmt.Errorf("position already open for %s", m.symbol)
	}

	fill, err := m.exchange.PlaceMarketOrder(ctx, m.symbol, exchange.SideBuy, size.Quantity)
	if err != nil {
		return fmt.Errorf("entry order failed: %w", err)
	}

	m.pos = &Position{
		Symbol:          m.symbol,
		EntryPrice:      fill.Price,
		Quantity:        fill.Quantity,
		StopLossPrice:   size.StopLossPrice,
		TakeProfitPrice: size.TakeProfitPrice,
		OpenedAt:        now,
		Status:          StatusOpen,
	}

	m.logEvent(ctx, "position", "position_opened", map[string]any{
		"symbol":      m.symbol,
		"order_id":    fill.OrderID,
		"entry_price": fill.Price,
		"quantity":    fill.Quantity,
		"stop_loss":   size.StopLossPrice,
		"take_profit": size.TakeProfitPrice,
	})
	m.notify(fmt.Sprintf("Opened %s: qty=%.8f entry=%.2f SL=%.2f TP=%.2f",
		m.symbol, fill.Quantity, fill.Price, size.StopLossPrice, size.TakeProfitPrice))
	return nil
}

// EvaluateTick evaluates the exit conditions in priority order and closes
// the position on the first match. It must be called once per tick,
// whether FLAT or OPEN, so the cross detector always sees the previous
// fast snapshot.
//
// If the close order fails, the machine stays OPEN, remembers the matched
// reason, and retries that same reason on the next tick; the trade record
// is emitted exactly once, on the successful close.
func (m *Machine) EvaluateTick(ctx context.Context, t Tick) (ExitDecision, error) {
	defer func() {
		snap := t.FastSnapshot
		m.prevFast = &snap
	}()

	if m.pos == nil {
		return ExitDecision{}, nil
	}

	var reason ExitReason
	if m.pendingExit != nil {
		reason = *m.pendingExit
	} else {
		matched := false
		for _, cond := range m.exits {
			if cond.triggered(t) {
				reason = cond.reason
				matched = true
				break
			}
		}
		if !matched {
			return ExitDecision{}, nil
		}
	}

	if err := m.close(ctx, t.Now, reason); err != nil {
		m.pendingExit = &reason
		return ExitDecision{Triggered: true, Reason: reason}, err
	}
	return ExitDecision{Triggered: true, Reason: reason}, nil
}

// ForceClose makes one attempt to flatten an open position, used on
// shutdown and on fatal errors. FLAT is not an error.
func (m *Machine) ForceClose(ctx context.Context, now time.Time, reason ExitReason) error {
	if m.pos == nil {
		return nil
	}
	return m.close(ctx, now, reason)
}

// close submits the exit order and, on success, records the trade and
// clears the slot (OPEN to FLAT).
func (m *Machine) close(ctx context.Context, now time.Time, reason ExitReason) error {
	fill, err := m.exchange.PlaceMarketOrder(ctx, m.symbol, exchange.SideSell, m.pos.Quantity)
	if err != nil {
		m.logEvent(ctx, "error", "exit_order_failed", map[string]any{
			"symbol": m.symbol,
			"reason": string(reason),
			"error":  err.Error(),
		})
		return fmt.Errorf("exit order (%s) failed: %w", reason, err)
	}

	pos := *m.pos
	pnl := (fill.Price - pos.EntryPrice) * pos.Quantity
	pnlPct := (fill.Price - pos.EntryPrice) / pos.EntryPrice * 100
	duration := now.Sub(pos.OpenedAt)

	record := journal.TradeRecord{
		Time:       now,
		Symbol:     pos.Symbol,
		Side:       string(exchange.SideSell),
		EntryPrice: pos.EntryPrice,
		ExitPrice:  fill.Price,
		Quantity:   pos.Quantity,
		PnL:        pnl,
		PnLPct:     pnlPct,
		Reason:     string(reason),
		Duration:   duration,
	}
	if err := m.recorder.RecordTrade(ctx, record); err != nil {
		// The exit order went through: the position is gone on the
		// exchange, so the slot must clear even if persistence failed.
		utils.GetLogger().Printf("Position | Failed to record trade for %s: %v", m.symbol, err)
	}

	m.pos = nil
	m.pendingExit = nil

	m.logEvent(ctx, "position", "position_closed", map[string]any{
		"symbol":     pos.Symbol,
		"order_id":   fill.OrderID,
		"reason":     string(reason),
		"exit_price": fill.Price,
		"pnl":        pnl,
		"pnl_pct":    pnlPct,
		"duration":   duration.String(),
	})
	m.notify(fmt.Sprintf("Closed %s (%s): exit=%.2f pnl=%.2f (%+.2f%%) after %s",
		pos.Symbol, reason, fill.Price, pnl, pnlPct, duration.Round(time.Second)))
	return nil
}

func (m *Machine) logEvent(ctx context.Context, typ, desc string, data map[string]any) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.LogEvent(ctx, journal.Event{
		Time:        time.Now().UTC(),
		Type:        typ,
		Description: desc,
		Data:        data,
	}); err != nil {
		utils.GetLogger().Printf("Position | Failed to log event %s: %v", desc, err)
	}
}

func (m *Machine) notify(msg string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.SendWithRetry(msg); err != nil {
		utils.GetLogger().Printf("Position | Notification failed: %v", err)
	}
}
