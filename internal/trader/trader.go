// Package trader drives the tick loop: fetch candles, compute indicators,
// evaluate exits before entries, size and open positions.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/spot-trend-trader/internal/candle"
	"github.com/amirphl/spot-trend-trader/internal/config"
	"github.com/amirphl/spot-trend-trader/internal/exchange"
	"github.com/amirphl/spot-trend-trader/internal/indicator"
	"github.com/amirphl/spot-trend-trader/internal/journal"
	"github.com/amirphl/spot-trend-trader/internal/position"
	"github.com/amirphl/spot-trend-trader/internal/risk"
	"github.com/amirphl/spot-trend-trader/internal/strategy"
	"github.com/amirphl/spot-trend-trader/internal/utils"
)

// clock lets tests control time. Production uses time.Now.
type clock func() time.Time

// Loop is the single-goroutine trading loop. It owns the tick cadence and
// the error policy: transient failures skip the tick, fatal failures
// flatten the position and terminate.
type Loop struct {
	cfg       config.Config
	ex        exchange.Client
	machine   *position.Machine
	evaluator strategy.Evaluator
	sizer     risk.Manager
	params    indicator.Params
	recorder  journal.Recorder

	constraints exchange.Constraints

	now    clock
	logger *log.Logger
}

// New wires a trading loop from the configuration and its collaborators.
func New(cfg config.Config, ex exchange.Client, m *position.Machine, rec journal.Recorder) (*Loop, error) {
	params := indicator.Params{
		EMAFastPeriod:   cfg.EMAFast,
		EMASlowPeriod:   cfg.EMASlow,
		RSIPeriod:       cfg.RSIPeriod,
		VolumeSMAPeriod: cfg.VolumeSMAPeriod,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	sizer := risk.NewManager()
	sizer.MaxRiskPct = cfg.MaxRiskPerTradePct
	sizer.StopLossPct = cfg.StopLossPct
	sizer.TakeProfitPct = cfg.TakeProfitPct
	sizer.OverrunFactor = cfg.RiskOverrunFactor
	if err := sizer.Validate(); err != nil {
		return nil, err
	}

	return &Loop{
		cfg:       cfg,
		ex:        ex,
		machine:   m,
		evaluator: strategy.NewEvaluator(),
		sizer:     sizer,
		params:    params,
		recorder:  rec,
		now:       time.Now,
		logger:    utils.GetLogger(),
	}, nil
}

// Run executes the loop until the context is canceled or a fatal error
// occurs. On cancellation it makes one best-effort attempt to flatten any
// open position before returning. On a fatal error it flattens and returns
// the error.
func (l *Loop) Run(ctx context.Context) error {
	l.banner()

	constraints, err := l.ex.FetchConstraints(ctx, l.cfg.Symbol)
	if err != nil {
		if exchange.IsFatal(err) {
			return fmt.Errorf("fetching constraints: %w", err)
		}
		constraints = exchange.Constraints{
			MinNotional: exchange.DefaultMinNotional,
			StepSize:    exchange.DefaultStepSize,
		}
		l.logger.Printf("Trader | Constraints unavailable (%v), using defaults min_notional=%.2f step=%.8f",
			err, constraints.MinNotional, constraints.StepSize)
	}
	l.constraints = constraints
	l.logger.Printf("Trader | %s constraints: min_notional=%.2f step=%.8f",
		l.cfg.Symbol, constraints.MinNotional, constraints.StepSize)

	ticker := time.NewTicker(l.cfg.LoopInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case <-ticker.C:
			if err := l.tick(ctx); err != nil {
				l.logger.Printf("Trader | Fatal error, terminating: %v", err)
				l.flatten(position.ExitError)
				return err
			}
		}
	}
}

// tick runs one iteration. A nil return means the loop continues; a non-nil
// return is fatal and terminates the loop.
func (l *Loop) tick(ctx context.Context) error {
	now := l.now()

	fastCandles, err := l.ex.FetchLatestCandles(ctx, l.cfg.Symbol, l.cfg.Timeframes.Fast, l.cfg.CandleLookback)
	if err != nil {
		return l.classify("fetching fast candles", err)
	}
	slowCandles, err := l.ex.FetchLatestCandles(ctx, l.cfg.Symbol, l.cfg.Timeframes.Slow, l.cfg.CandleLookback)
	if err != nil {
		return l.classify("fetching slow candles", err)
	}

	fastSnap, err := indicator.Compute(fastCandles, l.params)
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientData) {
			l.logger.Printf("Trader | Skipping tick: %v", err)
			return nil
		}
		return fmt.Errorf("fast indicators: %w", err)
	}
	slowSnap, err := indicator.Compute(slowCandles, l.params)
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientData) {
			l.logger.Printf("Trader | Skipping tick: %v", err)
			return nil
		}
		return fmt.Errorf("slow indicators: %w", err)
	}

	price, err := l.ex.FetchPrice(ctx, l.cfg.Symbol)
	if err != nil {
		return l.classify("fetching price", err)
	}

	// Exits first. EvaluateTick runs every tick, open or flat, so the EMA
	// cross detector always has the previous fast snapshot.
	decision, err := l.machine.EvaluateTick(ctx, position.Tick{
		Now:          now,
		Price:        price,
		FastSnapshot: fastSnap,
	})
	if err != nil {
		if exchange.IsFatal(err) {
			return fmt.Errorf("closing position: %w", err)
		}
		l.logger.Printf("Trader | Exit attempt (%s) failed, retrying next tick: %v", decision.Reason, err)
		return nil
	}
	if decision.Triggered {
		l.logger.Printf("Trader | Position closed: %s at %.2f", decision.Reason, price)
		return nil
	}
	if l.machine.IsOpen() {
		return nil
	}

	return l.tryEnter(ctx, now, fastSnap, slowSnap, fastCandles, slowCandles)
}

// tryEnter evaluates the entry rules and, if all hold, sizes and opens a
// position.
func (l *Loop) tryEnter(ctx context.Context, now time.Time, fastSnap, slowSnap indicator.Snapshot, fastCandles, slowCandles []candle.Candle) error {
	fastLast, ok := candle.Last(fastCandles)
	if !ok {
		return nil
	}
	slowLast, ok := candle.Last(slowCandles)
	if !ok {
		return nil
	}

	entry := l.evaluator.Evaluate(fastSnap, slowSnap, fastLast.Close, slowLast.Close, l.machine.IsOpen())
	if !entry.Approved {
		l.logger.Printf("Trader | No entry: failed rules %v (close=%.2f ema50=%.2f ema200=%.2f rsi=%.1f)",
			entry.FailedRules, fastLast.Close, fastSnap.EMAFast, fastSnap.EMASlow, fastSnap.RSI)
		return nil
	}

	balance, err := l.ex.FetchBalance(ctx, l.cfg.QuoteAsset)
	if err != nil {
		return l.classify("fetching balance", err)
	}

	size, err := l.sizer.Size(fastLast.Close, balance.Available, l.constraints)
	if err != nil {
		if rej, ok := risk.IsRejection(err); ok {
			l.logger.Printf("Trader | Entry rejected: %v", rej)
			l.logEvent(ctx, "risk", "entry_rejected", map[string]any{
				"symbol":  l.cfg.Symbol,
				"reason":  string(rej.Reason),
				"detail":  rej.Detail,
				"price":   fastLast.Close,
				"balance": balance.Available,
			})
			return nil
		}
		// Non-rejection sizing errors mean the configuration is broken.
		return fmt.Errorf("sizing: %w", err)
	}

	metrics := risk.RiskMetrics(fastLast.Close, size)
	l.logger.Printf("Trader | Entry approved: qty=%.8f notional=%.2f risk=%.2f reward=%.2f rr=%.2f",
		size.Quantity, size.Notional, metrics.RiskAmount, metrics.RewardAmount, metrics.RiskRewardRatio)

	if err := l.machine.Open(ctx, now, size); err != nil {
		if exchange.IsFatal(err) {
			return fmt.Errorf("opening position: %w", err)
		}
		l.logger.Printf("Trader | Entry order failed, skipping tick: %v", err)
		return nil
	}
	return nil
}

// classify turns an exchange error into the loop's policy: fatal errors
// propagate, everything else logs and skips the tick.
func (l *Loop) classify(op string, err error) error {
	if exchange.IsFatal(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	l.logger.Printf("Trader | Skipping tick, %s: %v", op, err)
	return nil
}

// shutdown handles context cancellation: one best-effort close of any open
// position, then return.
func (l *Loop) shutdown() {
	l.logger.Printf("Trader | Shutdown requested")
	l.flatten(position.ExitShutdown)
	l.logger.Printf("Trader | Stopped")
}

// flatten makes a single attempt to close the open position with the given
// reason. The parent context is already canceled at this point, so a fresh
// short-lived one covers the exit order.
func (l *Loop) flatten(reason position.ExitReason) {
	if !l.machine.IsOpen() {
		return
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := l.machine.ForceClose(closeCtx, l.now(), reason); err != nil {
		l.logger.Printf("Trader | Force close (%s) failed, position may remain open: %v", reason, err)
	}
}

func (l *Loop) banner() {
	mode := "LIVE"
	if l.cfg.DryRun {
		mode = "DRY RUN"
	}
	l.logger.Printf("Trader | Starting %s on %s [%s]", l.cfg.Symbol, l.ex.Name(), mode)
	l.logger.Printf("Trader | Timeframes fast=%s slow=%s | EMA %d/%d RSI %d VolSMA %d",
		l.cfg.Timeframes.Fast, l.cfg.Timeframes.Slow, l.cfg.EMAFast, l.cfg.EMASlow, l.cfg.RSIPeriod, l.cfg.VolumeSMAPeriod)
	l.logger.Printf("Trader | Risk %.2f%% per trade | SL %.2f%% TP %.2f%% | max duration %s",
		l.cfg.MaxRiskPerTradePct*100, l.cfg.StopLossPct*100, l.cfg.TakeProfitPct*100, l.cfg.MaxDuration())
}

func (l *Loop) logEvent(ctx context.Context, typ, desc string, data map[string]any) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.LogEvent(ctx, journal.Event{
		Time:        time.Now().UTC(),
		Type:        typ,
		Description: desc,
		Data:        data,
	}); err != nil {
		l.logger.Printf("Trader | Failed to log event %s: %v", desc, err)
	}
}
