package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var csvHeader = []string{
	"timestamp", "symbol", "side", "entry_price", "exit_price",
	"quantity", "pnl", "pnl_pct", "fee", "reason", "duration_minutes",
}

// CSVRecorder appends completed trades to a CSV file, writing the header
// only when the file is new or empty. Events go to the process log, not
// the trade file.
type CSVRecorder struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

func NewCSVRecorder(path string) (*CSVRecorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating trade log directory: %w", err)
		}
	}

	writeHeader := true
	if stat, err := os.Stat(path); err == nil && stat.Size() > 0 {
		writeHeader = false
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening trade log: %w", err)
	}

	r := &CSVRecorder{file: file, w: csv.NewWriter(file)}
	if writeHeader {
		if err := r.w.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("writing trade log header: %w", err)
		}
		r.w.Flush()
	}
	return r, nil
}

func (r *CSVRecorder) RecordTrade(ctx context.Context, t TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := []string{
		t.Time.UTC().Format("2006-01-02T15:04:05Z07:00"),
		t.Symbol,
		t.Side,
		fmt.Sprintf("%.8f", t.EntryPrice),
		fmt.Sprintf("%.8f", t.ExitPrice),
		fmt.Sprintf("%.8f", t.Quantity),
		fmt.Sprintf("%.8f", t.PnL),
		fmt.Sprintf("%.2f", t.PnLPct),
		fmt.Sprintf("%.8f", t.Fee),
		t.Reason,
		fmt.Sprintf("%.2f", t.Duration.Minutes()),
	}
	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("writing trade record: %w", err)
	}
	r.w.Flush()
	return r.w.Error()
}

func (r *CSVRecorder) LogEvent(ctx context.Context, e Event) error { return nil }

func (r *CSVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w.Flush()
	return r.file.Close()
}
