package journal

import (
	"context"
	"sync"
)

// MemoryRecorder keeps trades and events in memory. Used in tests and as
// the fallback when no trade log or database is configured.
type MemoryRecorder struct {
	mu     sync.RWMutex
	trades []TradeRecord
	events []Event
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		trades: make([]TradeRecord, 0, 64),
		events: make([]Event, 0, 1024),
	}
}

func (m *MemoryRecorder) RecordTrade(ctx context.Context, t TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return nil
}

func (m *MemoryRecorder) LogEvent(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryRecorder) Close() error { return nil }

// Trades returns a copy of the recorded trades.
func (m *MemoryRecorder) Trades() []TradeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TradeRecord, len(m.trades))
	copy(out, m.trades)
	return out
}

// Events returns a copy of the journaled events.
func (m *MemoryRecorder) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
