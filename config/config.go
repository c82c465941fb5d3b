package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de polywatch.
type Config struct {
	Detection DetectionConfig `yaml:"detection"`
	Wash      WashConfig      `yaml:"wash"`
	Execution ExecutionConfig `yaml:"execution"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Slack     SlackConfig     `yaml:"slack"`
}

// DetectionConfig son los umbrales del scorer.
type DetectionConfig struct {
	FreshWalletDays            float64 `yaml:"fresh_wallet_days"`
	MinBetSize                 float64 `yaml:"min_bet_size"`
	LargeBetMultiplier         float64 `yaml:"large_bet_multiplier"`
	MinWalletConcentration     float64 `yaml:"min_wallet_concentration"`
	NicheMarketVolumeThreshold float64 `yaml:"niche_market_volume_threshold"`
	AlertThreshold             float64 `yaml:"alert_threshold"`
	RiskBoost                  string  `yaml:"risk_boost"` // baseline | wash | both
}

// WashConfig son los umbrales del clasificador de wash trading.
type WashConfig struct {
	MinPLVolumeRatio      float64 `yaml:"min_pl_volume_ratio"`
	MaxHoldingTimeSec     float64 `yaml:"max_holding_time_sec"`
	ExtremePriceThreshold float64 `yaml:"extreme_price_threshold"`
	WinRateSuspicious     float64 `yaml:"win_rate_suspicious"`
	EntropyLowLimit       float64 `yaml:"entropy_low_limit"`
	ConcentrationLimit    float64 `yaml:"concentration_limit"`
}

// ExecutionConfig son las fricciones del simulador de ejecución.
type ExecutionConfig struct {
	SlippageBps    float64 `yaml:"slippage_bps"`
	FeeBps         float64 `yaml:"fee_bps"`
	LatencySeconds float64 `yaml:"latency_seconds"`
}

// BacktestConfig controla el split y la simulación de drift.
type BacktestConfig struct {
	TrainRatio         float64 `yaml:"train_ratio"`
	EntryDriftMean     float64 `yaml:"entry_drift_mean"`
	EntryDriftStd      float64 `yaml:"entry_drift_std"`
	ExitDriftMean      float64 `yaml:"exit_drift_mean"`
	ExitDriftStd       float64 `yaml:"exit_drift_std"`
	ExitHorizonHours   float64 `yaml:"exit_horizon_hours"`
	ExitWindowHours    float64 `yaml:"exit_window_hours"` // ± alrededor del horizonte
	SlippageMultiplier float64 `yaml:"slippage_multiplier"`
	MinSamples         int     `yaml:"min_samples"`
	LookbackDays       int     `yaml:"lookback_days"`
	Seed               uint64  `yaml:"seed"` // 0 = semilla por tiempo
	Workers            int     `yaml:"workers"`
}

// StrategyConfig son los límites del copy-trading simulado.
type StrategyConfig struct {
	Enabled        bool    `yaml:"enabled"`
	MinScore       float64 `yaml:"min_score"`
	MinWinRate     float64 `yaml:"min_win_rate"`
	MaxConcurrent  int     `yaml:"max_concurrent"`
	MaxPositionUSD float64 `yaml:"max_position_usd"`
}

// ScannerConfig controla el loop de vigilancia.
type ScannerConfig struct {
	IntervalSeconds int     `yaml:"interval_seconds"`
	TagIDs          []int   `yaml:"tag_ids"`
	TradesPerMarket int     `yaml:"trades_per_market"`
	Workers         int     `yaml:"workers"`
	MinVolume       float64 `yaml:"min_market_volume"`
	MaxMarkets      int     `yaml:"max_markets"` // 0 = todos
}

// APIConfig contiene los base URLs de las APIs y el circuit breaker.
type APIConfig struct {
	CLOBBase              string `yaml:"clob_base"`
	GammaBase             string `yaml:"gamma_base"`
	DataBase              string `yaml:"data_base"`
	BreakerFailures       uint32 `yaml:"breaker_failures"`
	BreakerTimeoutSeconds int    `yaml:"breaker_timeout_seconds"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// MetricsConfig controla el endpoint de Prometheus.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// SlackConfig controla el webhook de alertas.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// ScanInterval devuelve el intervalo de escaneo como time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scanner.IntervalSeconds) * time.Second
}

// Latency devuelve la latencia simulada de ejecución.
func (c *Config) Latency() time.Duration {
	return time.Duration(c.Execution.LatencySeconds * float64(time.Second))
}

// ExitHorizon devuelve el horizonte de salida del backtest.
func (c *Config) ExitHorizon() time.Duration {
	return hours(c.Backtest.ExitHorizonHours)
}

// ExitWindow devuelve la media ventana del TWAP de salida.
func (c *Config) ExitWindow() time.Duration {
	return hours(c.Backtest.ExitWindowHours)
}

// Lookback devuelve cuánto historial de alertas lee el backtest.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Backtest.LookbackDays) * 24 * time.Hour
}

// BreakerTimeout devuelve cuánto permanece abierto el circuit breaker.
func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.API.BreakerTimeoutSeconds) * time.Second
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func (c *Config) validate() error {
	switch c.Detection.RiskBoost {
	case "baseline", "wash", "both":
	default:
		return fmt.Errorf("detection.risk_boost must be baseline|wash|both, got %q", c.Detection.RiskBoost)
	}
	if c.Backtest.TrainRatio <= 0 || c.Backtest.TrainRatio >= 1 {
		return fmt.Errorf("backtest.train_ratio must be in (0,1), got %v", c.Backtest.TrainRatio)
	}
	for name, v := range map[string]float64{
		"execution.slippage_bps":   c.Execution.SlippageBps,
		"execution.fee_bps":        c.Execution.FeeBps,
		"backtest.entry_drift_std": c.Backtest.EntryDriftStd,
		"backtest.exit_drift_std":  c.Backtest.ExitDriftStd,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0, got %v", name, v)
		}
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("POLYWATCH_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Slack.WebhookURL = v
	}
	envFloat("FRESH_WALLET_DAYS", &cfg.Detection.FreshWalletDays)
	envFloat("MIN_BET_SIZE", &cfg.Detection.MinBetSize)
	envFloat("SUSPICIOUS_SCORE_THRESHOLD", &cfg.Detection.AlertThreshold)
	envInt("POLL_INTERVAL", &cfg.Scanner.IntervalSeconds)
	envInt("CONCURRENT_BATCH_SIZE", &cfg.Scanner.Workers)
	envBool("SLACK_ENABLED", &cfg.Slack.Enabled)
	envBool("COPY_TRADING_ENABLED", &cfg.Strategy.Enabled)
}

func envFloat(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring invalid env override", "key", key, "value", v)
		return
	}
	*dst = f
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid env override", "key", key, "value", v)
		return
	}
	*dst = n
}

func envBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring invalid env override", "key", key, "value", v)
		return
	}
	*dst = b
}

// exitDriftFromEntry marca que exit_drift_std no vino ni en el YAML ni en el entorno.
const exitDriftFromEntry = -1

// defaults devuelve la configuración base. El YAML se decodifica encima, así que un
// 0 explícito (fee_bps: 0, entry_drift_std: 0) se respeta.
func defaults() Config {
	return Config{
		Detection: DetectionConfig{
			FreshWalletDays:            30,
			MinBetSize:                 1000,
			LargeBetMultiplier:         3,
			MinWalletConcentration:     0.6,
			NicheMarketVolumeThreshold: 50000,
			AlertThreshold:             7,
			RiskBoost:                  "baseline",
		},
		Wash: WashConfig{
			MinPLVolumeRatio:      0.005,
			MaxHoldingTimeSec:     300,
			ExtremePriceThreshold: 0.05,
			WinRateSuspicious:     0.90,
			EntropyLowLimit:       1.5,
			ConcentrationLimit:    0.85,
		},
		Execution: ExecutionConfig{
			SlippageBps: 20,
			FeeBps:      10,
		},
		Backtest: BacktestConfig{
			TrainRatio:         0.7,
			EntryDriftStd:      0.02,
			ExitDriftStd:       exitDriftFromEntry,
			ExitHorizonHours:   24,
			ExitWindowHours:    1,
			SlippageMultiplier: 1.002,
			MinSamples:         5,
			LookbackDays:       90,
		},
		Strategy: StrategyConfig{
			MinScore:       7,
			MinWinRate:     0.55,
			MaxConcurrent:  5,
			MaxPositionUSD: 500,
		},
		Scanner: ScannerConfig{
			IntervalSeconds: 60,
			TagIDs:          []int{2},
			TradesPerMarket: 100,
			Workers:         30,
		},
		API: APIConfig{
			CLOBBase:              "https://clob.polymarket.com",
			GammaBase:             "https://gamma-api.polymarket.com",
			DataBase:              "https://data-api.polymarket.com",
			BreakerFailures:       5,
			BreakerTimeoutSeconds: 30,
		},
		Storage: StorageConfig{DSN: "polywatch.db"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Addr: ":9108"},
	}
}

// setDefaults completa lo que queda vacío después del YAML y del entorno.
// Solo se corrigen valores donde 0 no tiene sentido (intervalos, workers, strings).
func setDefaults(cfg *Config) {
	def := defaults()

	b := &cfg.Backtest
	if b.ExitDriftStd == exitDriftFromEntry {
		b.ExitDriftStd = 2 * b.EntryDriftStd
	}
	if cfg.Execution.LatencySeconds < 0 {
		cfg.Execution.LatencySeconds = 0
	}

	sc := &cfg.Scanner
	setInt(&sc.IntervalSeconds, def.Scanner.IntervalSeconds)
	if len(sc.TagIDs) == 0 {
		sc.TagIDs = def.Scanner.TagIDs
	}
	setInt(&sc.TradesPerMarket, def.Scanner.TradesPerMarket)
	setInt(&sc.Workers, def.Scanner.Workers)

	if cfg.Detection.RiskBoost == "" {
		cfg.Detection.RiskBoost = def.Detection.RiskBoost
	}
	setString(&cfg.API.CLOBBase, def.API.CLOBBase)
	setString(&cfg.API.GammaBase, def.API.GammaBase)
	setString(&cfg.API.DataBase, def.API.DataBase)
	if cfg.API.BreakerFailures == 0 {
		cfg.API.BreakerFailures = def.API.BreakerFailures
	}
	setInt(&cfg.API.BreakerTimeoutSeconds, def.API.BreakerTimeoutSeconds)

	setString(&cfg.Storage.DSN, def.Storage.DSN)
	setString(&cfg.Log.Level, def.Log.Level)
	setString(&cfg.Log.Format, def.Log.Format)
	setString(&cfg.Metrics.Addr, def.Metrics.Addr)
}

func setInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}
