// Package journal
package journal

import (
	"context"
	"errors"
	"time"
)

// TradeRecord is one completed round trip, produced exactly once per
// OPEN to FLAT transition.
type TradeRecord struct {
	Time       time.Time     `json:"time"`
	Symbol     string        `json:"symbol"`
	Side       string        `json:"side"`
	EntryPrice float64       `json:"entry_price"`
	ExitPrice  float64       `json:"exit_price"`
	Quantity   float64       `json:"quantity"`
	PnL        float64       `json:"pnl"`
	PnLPct     float64       `json:"pnl_pct"`
	Fee        float64       `json:"fee"`
	Reason     string        `json:"reason"`
	Duration   time.Duration `json:"duration"`
}

// Event is a journaled state change: entries, exits, errors, skipped ticks.
type Event struct {
	Time        time.Time      `json:"time"`
	Type        string         `json:"type"` // e.g., "order", "signal", "error"
	Description string         `json:"description"`
	Data        map[string]any `json:"data"`
}

// Recorder persists completed trades and journal events.
type Recorder interface {
	RecordTrade(ctx context.Context, t TradeRecord) error
	LogEvent(ctx context.Context, e Event) error
	Close() error
}

// Multi fans out to several recorders; every recorder sees every record
// and the errors are joined.
type Multi []Recorder

func (m Multi) RecordTrade(ctx context.Context, t TradeRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordTrade(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) LogEvent(ctx context.Context, e Event) error {
	var errs []error
	for _, r := range m {
		if err := r.LogEvent(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
