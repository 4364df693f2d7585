// Package config loads and validates the scanner's configuration.
// Config is loaded from a YAML file with sensible defaults, using viper to
// read the file and mapstructure tags to unmarshal it into nested structs.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// TokenRule controls whether an asset may appear mid-cycle (bridge) or only
// as a one-hop excursion from the anchor (terminal), plus its risk inputs.
type TokenRule struct {
	Enabled                bool    `mapstructure:"enabled"`
	AllowedAsBridge        bool    `mapstructure:"allowed_as_bridge"`
	AllowedAsTerminalAsset bool    `mapstructure:"allowed_as_terminal_asset"`
	VolatilityTier         int     `mapstructure:"volatility_tier"`
	ExtraEdgeRequired      float64 `mapstructure:"extra_edge_required"`
}

// GraphConfig tunes market-graph construction.
type GraphConfig struct {
	TakerFeeRate          float64            `mapstructure:"taker_fee_rate"`
	QuoteMinNotional      map[string]float64 `mapstructure:"quote_min_notional"`
	DefaultMinNotional    float64            `mapstructure:"default_min_notional"`
	MinNotionalMultiplier float64            `mapstructure:"min_notional_multiplier"`
	FirstLegMultiplier    float64            `mapstructure:"first_leg_multiplier"`
}

// PathsConfig bounds cycle enumeration.
type PathsConfig struct {
	MinLength                   int     `mapstructure:"min_length"`
	MaxLength                   int     `mapstructure:"max_length"`
	AllowRevisitNodes           bool    `mapstructure:"allow_revisit_nodes"`
	ExtraLegMinEdgeImprovement  float64 `mapstructure:"extra_leg_min_edge_improvement"`
}

// RiskModelConfig tunes the volatility and profitability discounts applied
// by the evaluator.
type RiskModelConfig struct {
	VolatilityWindowSeconds          int             `mapstructure:"volatility_window_seconds"`
	VolatilitySamplingIntervalSeconds float64        `mapstructure:"volatility_sampling_interval_seconds"`
	VolRiskMultiplier                float64         `mapstructure:"vol_risk_multiplier"`
	MinProfitMargin                  float64         `mapstructure:"min_profit_margin"`
	DefaultSigmaByTier                map[int]float64 `mapstructure:"default_sigma_by_tier"`
}

// ScannerConfig controls the outer scan loop.
type ScannerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Debug        bool          `mapstructure:"debug"`
}

// ExchangeConfig locates the ingestion endpoints for the illustrative
// REST/WebSocket adapters.
type ExchangeConfig struct {
	Name           string        `mapstructure:"name"`
	RESTBaseURL    string        `mapstructure:"rest_base_url"`
	WSURL          string        `mapstructure:"ws_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedQuotes  []string      `mapstructure:"allowed_quotes"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus HTTP exposition endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Config is the top-level configuration for the scanner process.
type Config struct {
	AnchorAsset string               `mapstructure:"anchor_asset"`
	Graph       GraphConfig          `mapstructure:"graph"`
	Paths       PathsConfig          `mapstructure:"paths"`
	RiskModel   RiskModelConfig      `mapstructure:"risk_model"`
	Tokens      map[string]TokenRule `mapstructure:"tokens"`
	Scanner     ScannerConfig        `mapstructure:"scanner"`
	Exchange    ExchangeConfig       `mapstructure:"exchange"`
	Logging     LoggingConfig        `mapstructure:"logging"`
	Metrics     MetricsConfig        `mapstructure:"metrics"`
}

// Default returns a Config with sensible defaults. Callers that load from a
// file still pass through these defaults for any key the file omits.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			TakerFeeRate: 0.0004,
			QuoteMinNotional: map[string]float64{
				"USD":  5.0,
				"USDT": 5.0,
				"USDC": 5.0,
				"BTC":  0.0002,
			},
			DefaultMinNotional:    1.0,
			MinNotionalMultiplier: 1.0,
			FirstLegMultiplier:    1.0,
		},
		Paths: PathsConfig{
			MinLength: 2,
			MaxLength: 4,
		},
		RiskModel: RiskModelConfig{
			VolatilityWindowSeconds:           60,
			VolatilitySamplingIntervalSeconds: 1,
			VolRiskMultiplier:                 0.5,
			MinProfitMargin:                   0.0,
			DefaultSigmaByTier: map[int]float64{
				0: 0.0003,
				1: 0.0005,
				2: 0.0015,
				3: 0.003,
				4: 0.005,
				5: 0.01,
			},
		},
		Scanner: ScannerConfig{
			PollInterval: 2 * time.Second,
		},
		Exchange: ExchangeConfig{
			RequestTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
		},
	}
}

// Load reads config from a YAML file, layering it on top of Default(), and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("anchor_asset", d.AnchorAsset)
	v.SetDefault("graph.taker_fee_rate", d.Graph.TakerFeeRate)
	v.SetDefault("graph.quote_min_notional", d.Graph.QuoteMinNotional)
	v.SetDefault("graph.default_min_notional", d.Graph.DefaultMinNotional)
	v.SetDefault("graph.min_notional_multiplier", d.Graph.MinNotionalMultiplier)
	v.SetDefault("graph.first_leg_multiplier", d.Graph.FirstLegMultiplier)
	v.SetDefault("paths.min_length", d.Paths.MinLength)
	v.SetDefault("paths.max_length", d.Paths.MaxLength)
	v.SetDefault("paths.allow_revisit_nodes", d.Paths.AllowRevisitNodes)
	v.SetDefault("paths.extra_leg_min_edge_improvement", d.Paths.ExtraLegMinEdgeImprovement)
	v.SetDefault("risk_model.volatility_window_seconds", d.RiskModel.VolatilityWindowSeconds)
	v.SetDefault("risk_model.volatility_sampling_interval_seconds", d.RiskModel.VolatilitySamplingIntervalSeconds)
	v.SetDefault("risk_model.vol_risk_multiplier", d.RiskModel.VolRiskMultiplier)
	v.SetDefault("risk_model.min_profit_margin", d.RiskModel.MinProfitMargin)
	v.SetDefault("risk_model.default_sigma_by_tier", d.RiskModel.DefaultSigmaByTier)
	v.SetDefault("scanner.poll_interval", d.Scanner.PollInterval)
	v.SetDefault("scanner.debug", d.Scanner.Debug)
	v.SetDefault("exchange.request_timeout", d.Exchange.RequestTimeout)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen_addr", d.Metrics.ListenAddr)
}

// Validate enforces the invariants the rest of the core relies on.
func (c *Config) Validate() error {
	if c.AnchorAsset == "" {
		return fmt.Errorf("anchor_asset is required")
	}
	if c.Graph.TakerFeeRate < 0 {
		return fmt.Errorf("graph.taker_fee_rate must be >= 0")
	}
	if c.Paths.MinLength < 1 {
		return fmt.Errorf("paths.min_length must be >= 1")
	}
	if c.Paths.MaxLength < c.Paths.MinLength {
		return fmt.Errorf("paths.max_length must be >= paths.min_length")
	}
	if c.RiskModel.VolatilityWindowSeconds <= 0 {
		return fmt.Errorf("risk_model.volatility_window_seconds must be > 0")
	}
	if c.RiskModel.VolatilitySamplingIntervalSeconds <= 0 {
		return fmt.Errorf("risk_model.volatility_sampling_interval_seconds must be > 0")
	}
	for asset, rule := range c.Tokens {
		if rule.Enabled && !rule.AllowedAsBridge && !rule.AllowedAsTerminalAsset && asset != c.AnchorAsset {
			return fmt.Errorf("token %s: enabled but neither allowed_as_bridge nor allowed_as_terminal_asset", asset)
		}
	}
	return nil
}

// QuoteMinNotional returns the configured minimum notional for quote, or the
// configured default if quote is unknown.
func (c *Config) QuoteMinNotional(quote string) float64 {
	if v, ok := c.Graph.QuoteMinNotional[quote]; ok {
		return v
	}
	return c.Graph.DefaultMinNotional
}

// SigmaForTier returns the tier default sigma, falling back to 0.005 if the
// tier is not configured.
func (c *Config) SigmaForTier(tier int) float64 {
	if v, ok := c.RiskModel.DefaultSigmaByTier[tier]; ok {
		return v
	}
	return 0.005
}
