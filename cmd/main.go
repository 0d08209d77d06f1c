package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirphl/spot-trend-trader/internal/config"
	"github.com/amirphl/spot-trend-trader/internal/exchange"
	"github.com/amirphl/spot-trend-trader/internal/journal"
	"github.com/amirphl/spot-trend-trader/internal/notifier"
	"github.com/amirphl/spot-trend-trader/internal/position"
	"github.com/amirphl/spot-trend-trader/internal/trader"
)

func main() {
	cfg := config.MustLoad()
	log.Printf("Starting Spot Trend Trader: %s on %s (dry_run=%v)", cfg.Symbol, cfg.Exchange, cfg.DryRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM. The loop flattens any open
	// position before returning.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	recorder := buildRecorder(cfg)
	defer recorder.Close()

	ex := buildExchange(cfg)

	var notify notifier.Notifier = notifier.Noop{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notify = notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, cfg.NotificationRetries, cfg.NotificationDelay)
	}

	machine := position.NewMachine(cfg.Symbol, cfg.MaxDuration(), ex, recorder, notify)

	loop, err := trader.New(cfg, ex, machine, recorder)
	if err != nil {
		log.Fatalf("Failed to build trading loop: %v", err)
	}

	if err := loop.Run(ctx); err != nil {
		log.Fatalf("Trading loop terminated: %v", err)
	}
	log.Println("Shutdown complete")
}

// buildRecorder assembles the journal fan-out: CSV trade log and, when a
// connection string is set, Postgres. Falls back to in-memory so the
// machine always has a recorder.
func buildRecorder(cfg config.Config) journal.Recorder {
	var recorders journal.Multi

	if cfg.TradeLog != "" {
		csvRec, err := journal.NewCSVRecorder(cfg.TradeLog)
		if err != nil {
			log.Fatalf("Failed to open trade log %s: %v", cfg.TradeLog, err)
		}
		recorders = append(recorders, csvRec)
	}

	if cfg.DBConnStr != "" {
		pgRec, err := journal.NewPostgresRecorder(cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		log.Println("Connected to Postgres journal")
		recorders = append(recorders, pgRec)
	}

	if len(recorders) == 0 {
		recorders = append(recorders, journal.NewMemoryRecorder())
	}
	return recorders
}

// buildExchange creates the configured exchange client, wrapped for paper
// trading when dry_run is set.
func buildExchange(cfg config.Config) exchange.Client {
	var real exchange.Client
	switch cfg.Exchange {
	case "wallex":
		real = exchange.NewWallexClient(cfg.WallexAPIKey, exchange.Constraints{
			MinNotional: cfg.MinNotional,
			StepSize:    cfg.StepSize,
		})
	default:
		real = exchange.NewBinanceClient(cfg.BinanceAPIKey, cfg.BinanceAPISecret, "")
	}

	if cfg.DryRun {
		return exchange.NewPaperClient(real, cfg.PaperBalance)
	}
	return real
}
