// Package config
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/amirphl/spot-trend-trader/internal/tfutils"
	"gopkg.in/yaml.v3"
)

/*
YAML config example:
exchange: "binance"
symbol: "BTCUSDT"
quote_asset: "USDT"
dry_run: true
paper_balance: 1000.0
timeframes:
  fast: "5m"
  slow: "15m"
ema_fast: 50
ema_slow: 200
rsi_period: 14
volume_sma_period: 20
max_risk_per_trade_pct: 0.01
stop_loss_pct: 0.006
take_profit_pct: 0.012
risk_overrun_factor: 2.0
max_duration_minutes: 45
max_open_positions: 1
loop_interval_seconds: 5
candle_lookback: 400
trade_log: "trades.csv"
db_conn_str: ""
*/

// ErrInvalidConfiguration marks configuration that must abort the process
// before trading starts.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Timeframes holds the two analysis timeframes of the strategy.
type Timeframes struct {
	Fast string `yaml:"fast"`
	Slow string `yaml:"slow"`
}

type Config struct {
	Exchange     string  `yaml:"exchange"`
	Symbol       string  `yaml:"symbol"`
	QuoteAsset   string  `yaml:"quote_asset"`
	DryRun       bool    `yaml:"dry_run"`
	PaperBalance float64 `yaml:"paper_balance"`

	Timeframes Timeframes `yaml:"timeframes"`

	EMAFast         int `yaml:"ema_fast"`
	EMASlow         int `yaml:"ema_slow"`
	RSIPeriod       int `yaml:"rsi_period"`
	VolumeSMAPeriod int `yaml:"volume_sma_period"`

	// Percentages are fractions: 0.01 is 1%.
	MaxRiskPerTradePct float64 `yaml:"max_risk_per_trade_pct"`
	StopLossPct        float64 `yaml:"stop_loss_pct"`
	TakeProfitPct      float64 `yaml:"take_profit_pct"`
	RiskOverrunFactor  float64 `yaml:"risk_overrun_factor"`

	MaxDurationMinutes int `yaml:"max_duration_minutes"`
	MaxOpenPositions   int `yaml:"max_open_positions"`

	LoopIntervalSeconds int `yaml:"loop_interval_seconds"`
	CandleLookback      int `yaml:"candle_lookback"`

	// Lot constraints for exchanges that do not publish filters.
	MinNotional float64 `yaml:"min_notional"`
	StepSize    float64 `yaml:"step_size"`

	TradeLog  string `yaml:"trade_log"`
	DBConnStr string `yaml:"db_conn_str"`
	DBMaxOpen int    `yaml:"db_max_open"`
	DBMaxIdle int    `yaml:"db_max_idle"`

	TelegramToken       string        `yaml:"telegram_token"`
	TelegramChatID      string        `yaml:"telegram_chat_id"`
	NotificationRetries int           `yaml:"notification_retries"`
	NotificationDelay   time.Duration `yaml:"notification_delay"`

	// Credentials come from the environment, never from the file.
	BinanceAPIKey    string `yaml:"-"`
	BinanceAPISecret string `yaml:"-"`
	WallexAPIKey     string `yaml:"-"`
}

// Default returns the strategy's standard configuration.
func Default() Config {
	return Config{
		Exchange:            "binance",
		Symbol:              "BTCUSDT",
		QuoteAsset:          "USDT",
		DryRun:              true,
		PaperBalance:        1000,
		Timeframes:          Timeframes{Fast: "5m", Slow: "15m"},
		EMAFast:             50,
		EMASlow:             200,
		RSIPeriod:           14,
		VolumeSMAPeriod:     20,
		MaxRiskPerTradePct:  0.01,
		StopLossPct:         0.006,
		TakeProfitPct:       0.012,
		RiskOverrunFactor:   2.0,
		MaxDurationMinutes:  45,
		MaxOpenPositions:    1,
		LoopIntervalSeconds: 5,
		CandleLookback:      400,
		TradeLog:            "trades.csv",
		DBMaxOpen:           10,
		DBMaxIdle:           5,
		NotificationRetries: 3,
		NotificationDelay:   5 * time.Second,
	}
}

// Load builds the configuration from flags, an optional YAML file, and
// credential environment variables.
func Load() (Config, error) {
	cfg := Default()

	configFile := flag.String("config", "", "Path to YAML config file")
	exchangeName := flag.String("exchange", cfg.Exchange, "Exchange: binance or wallex")
	symbol := flag.String("symbol", cfg.Symbol, "Trading symbol")
	dryRun := flag.Bool("dry-run", cfg.DryRun, "Simulate orders instead of executing them")
	fastTimeframe := flag.String("fast-timeframe", cfg.Timeframes.Fast, "Fast analysis timeframe")
	slowTimeframe := flag.String("slow-timeframe", cfg.Timeframes.Slow, "Slow analysis timeframe")
	maxRisk := flag.Float64("max-risk-pct", cfg.MaxRiskPerTradePct, "Max risk per trade as a fraction (0.01 for 1%)")
	stopLoss := flag.Float64("stop-loss-pct", cfg.StopLossPct, "Stop loss as a fraction (0.006 for 0.6%)")
	takeProfit := flag.Float64("take-profit-pct", cfg.TakeProfitPct, "Take profit as a fraction (0.012 for 1.2%)")
	maxDuration := flag.Int("max-duration-minutes", cfg.MaxDurationMinutes, "Maximum position duration in minutes")
	loopInterval := flag.Int("loop-interval", cfg.LoopIntervalSeconds, "Seconds between ticks")
	tradeLog := flag.String("trade-log", cfg.TradeLog, "Path of the CSV trade log")
	flag.Parse()

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return Config{}, fmt.Errorf("%w: reading config file: %v", ErrInvalidConfiguration, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parsing config file: %v", ErrInvalidConfiguration, err)
		}
	} else {
		cfg.Exchange = *exchangeName
		cfg.Symbol = *symbol
		cfg.DryRun = *dryRun
		cfg.Timeframes.Fast = *fastTimeframe
		cfg.Timeframes.Slow = *slowTimeframe
		cfg.MaxRiskPerTradePct = *maxRisk
		cfg.StopLossPct = *stopLoss
		cfg.TakeProfitPct = *takeProfit
		cfg.MaxDurationMinutes = *maxDuration
		cfg.LoopIntervalSeconds = *loopInterval
		cfg.TradeLog = *tradeLog
	}

	cfg.BinanceAPIKey = os.Getenv("BINANCE_API_KEY")
	cfg.BinanceAPISecret = os.Getenv("BINANCE_API_SECRET")
	cfg.WallexAPIKey = os.Getenv("WALLEX_API_KEY")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustLoad loads the configuration or exits.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	return cfg
}

// Validate rejects configurations that must not reach the trading loop.
func (c Config) Validate() error {
	switch c.Exchange {
	case "binance", "wallex":
	default:
		return fmt.Errorf("%w: unsupported exchange %q", ErrInvalidConfiguration, c.Exchange)
	}
	if c.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidConfiguration)
	}
	if !tfutils.IsValidTimeframe(c.Timeframes.Fast) {
		return fmt.Errorf("%w: unsupported fast timeframe %q", ErrInvalidConfiguration, c.Timeframes.Fast)
	}
	if !tfutils.IsValidTimeframe(c.Timeframes.Slow) {
		return fmt.Errorf("%w: unsupported slow timeframe %q", ErrInvalidConfiguration, c.Timeframes.Slow)
	}
	if c.EMAFast <= 0 || c.EMASlow <= 0 || c.RSIPeriod <= 0 || c.VolumeSMAPeriod <= 0 {
		return fmt.Errorf("%w: indicator periods must be positive", ErrInvalidConfiguration)
	}
	if c.EMAFast >= c.EMASlow {
		return fmt.Errorf("%w: ema_fast (%d) must be shorter than ema_slow (%d)", ErrInvalidConfiguration, c.EMAFast, c.EMASlow)
	}
	if c.MaxRiskPerTradePct <= 0 || c.MaxRiskPerTradePct >= 1 {
		return fmt.Errorf("%w: max_risk_per_trade_pct must be in (0, 1)", ErrInvalidConfiguration)
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 1 {
		return fmt.Errorf("%w: stop_loss_pct must be in (0, 1)", ErrInvalidConfiguration)
	}
	if c.TakeProfitPct <= 0 {
		return fmt.Errorf("%w: take_profit_pct must be positive", ErrInvalidConfiguration)
	}
	if c.RiskOverrunFactor < 1 {
		return fmt.Errorf("%w: risk_overrun_factor must be >= 1", ErrInvalidConfiguration)
	}
	if c.MaxDurationMinutes <= 0 {
		return fmt.Errorf("%w: max_duration_minutes must be positive", ErrInvalidConfiguration)
	}
	// One position at a time is an architectural invariant of this engine,
	// not a tunable.
	if c.MaxOpenPositions != 1 {
		return fmt.Errorf("%w: max_open_positions is fixed at 1, got %d", ErrInvalidConfiguration, c.MaxOpenPositions)
	}
	if c.LoopIntervalSeconds <= 0 {
		return fmt.Errorf("%w: loop_interval_seconds must be positive", ErrInvalidConfiguration)
	}
	if c.CandleLookback < c.EMASlow {
		return fmt.Errorf("%w: candle_lookback (%d) must cover the slow EMA period (%d)", ErrInvalidConfiguration, c.CandleLookback, c.EMASlow)
	}
	if !c.DryRun {
		switch c.Exchange {
		case "binance":
			if c.BinanceAPIKey == "" || c.BinanceAPISecret == "" {
				return fmt.Errorf("%w: live trading on binance requires BINANCE_API_KEY and BINANCE_API_SECRET", ErrInvalidConfiguration)
			}
		case "wallex":
			if c.WallexAPIKey == "" {
				return fmt.Errorf("%w: live trading on wallex requires WALLEX_API_KEY", ErrInvalidConfiguration)
			}
		}
	}
	return nil
}

// MaxDuration returns the position time limit as a duration.
func (c Config) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationMinutes) * time.Minute
}

// LoopInterval returns the sleep between ticks as a duration.
func (c Config) LoopInterval() time.Duration {
	return time.Duration(c.LoopIntervalSeconds) * time.Second
}
