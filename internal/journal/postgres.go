package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresRecorder persists trades and events to Postgres.
type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(connStr string, maxOpen, maxIdle int) (*PostgresRecorder, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	r := &PostgresRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRecorder) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id BIGSERIAL PRIMARY KEY,
			time TIMESTAMPTZ NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			pnl DOUBLE PRECISION NOT NULL,
			pnl_pct DOUBLE PRECISION NOT NULL,
			fee DOUBLE PRECISION NOT NULL DEFAULT 0,
			reason TEXT NOT NULL,
			duration_seconds DOUBLE PRECISION NOT NULL
		);
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			time TIMESTAMPTZ NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL,
			data JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_trades_time ON trades (time);
		CREATE INDEX IF NOT EXISTS idx_events_type_time ON events (type, time);
	`)
	if err != nil {
		return fmt.Errorf("migrating journal schema: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) RecordTrade(ctx context.Context, t TradeRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trades (time, symbol, side, entry_price, exit_price, quantity, pnl, pnl_pct, fee, reason, duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.Time.UTC(), t.Symbol, t.Side, t.EntryPrice, t.ExitPrice,
		t.Quantity, t.PnL, t.PnLPct, t.Fee, t.Reason, t.Duration.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting trade: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) LogEvent(ctx context.Context, e Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshaling event data: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (time, type, description, data)
		VALUES ($1, $2, $3, $4)`,
		e.Time.UTC(), e.Type, e.Description, data,
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}
