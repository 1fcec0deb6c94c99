package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written in the
// human form accepted by time.ParseDuration ("1s", "500ms").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) D() time.Duration { return time.Duration(d) }

type Config struct {
	App        AppConfig        `yaml:"app"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Trading    TradingConfig    `yaml:"trading"`
	Retry      RetryConfig      `yaml:"retry"`
	Settlement SettlementConfig `yaml:"settlement"`
	Server     ServerConfig     `yaml:"server"`
	Chain      ChainConfig      `yaml:"chain"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ExchangeConfig struct {
	// API credentials are never read from the YAML file; they come from
	// BINANCE_API_KEY / BINANCE_SECRET_KEY only.
	APIKey    string `yaml:"-"`
	SecretKey string `yaml:"-"`

	RecvWindow        Duration `yaml:"recv_window"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
}

type TradingConfig struct {
	Pairs          []string `yaml:"pairs"`
	FeeRatePercent float64  `yaml:"fee_rate_percent"`
	MinOrderValue  float64  `yaml:"min_order_value"`
	DustThreshold  float64  `yaml:"dust_threshold"`
}

// FeeRate returns the configured fee as a decimal fraction (0.1% -> 0.001).
func (t TradingConfig) FeeRate() decimal.Decimal {
	return decimal.NewFromFloat(t.FeeRatePercent).Div(decimal.NewFromInt(100))
}

// MinNotional returns the configured minimum order value floor.
func (t TradingConfig) MinNotional() decimal.Decimal {
	return decimal.NewFromFloat(t.MinOrderValue)
}

// Dust returns the base balance floor below which sells are not attempted.
func (t TradingConfig) Dust() decimal.Decimal {
	return decimal.NewFromFloat(t.DustThreshold)
}

// PairAllowed reports whether the symbol is in the configured allowlist.
func (t TradingConfig) PairAllowed(symbol string) bool {
	for _, p := range t.Pairs {
		if strings.EqualFold(p, strings.TrimSpace(symbol)) {
			return true
		}
	}
	return false
}

type RetryConfig struct {
	OrderAttempts   int      `yaml:"order_attempts"`
	BalanceAttempts int      `yaml:"balance_attempts"`
	RulesAttempts   int      `yaml:"rules_attempts"`
	MarketAttempts  int      `yaml:"market_attempts"`
	Delay           Duration `yaml:"delay"`
}

type SettlementConfig struct {
	Tolerance    float64  `yaml:"tolerance"`
	SettleDelay  Duration `yaml:"settle_delay"`
	PollInterval Duration `yaml:"poll_interval"`
	RoundTimeout Duration `yaml:"round_timeout"`
	MaxRounds    int      `yaml:"max_rounds"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type ChainConfig struct {
	Enabled bool   `yaml:"enabled"`
	RPCURL  string `yaml:"rpc_url"`
	ChainID int64  `yaml:"chain_id"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// LoadConfig reads, defaults, env-overrides and validates the configuration.
// The returned config is immutable for the lifetime of the process.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{Name: "cryptotrader", Version: "0.1.0"},
		Exchange: ExchangeConfig{
			RecvWindow:        Duration(5 * time.Second),
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Trading: TradingConfig{
			Pairs:          []string{"BTCUSDT"},
			FeeRatePercent: 0.1,
			MinOrderValue:  5.0,
			DustThreshold:  1e-5,
		},
		Retry: RetryConfig{
			OrderAttempts:   3,
			BalanceAttempts: 3,
			RulesAttempts:   2,
			MarketAttempts:  2,
			Delay:           Duration(time.Second),
		},
		Settlement: SettlementConfig{
			Tolerance:    1e-8,
			SettleDelay:  Duration(5 * time.Second),
			PollInterval: Duration(time.Second),
			RoundTimeout: Duration(30 * time.Second),
			MaxRounds:    3,
		},
		Server: ServerConfig{Enabled: true, Address: ":8080"},
		Chain: ChainConfig{
			RPCURL:  "https://mainnet.base.org",
			ChainID: 8453,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Exchange.APIKey = strings.TrimSpace(os.Getenv("BINANCE_API_KEY"))
	cfg.Exchange.SecretKey = strings.TrimSpace(os.Getenv("BINANCE_SECRET_KEY"))

	if cfg.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			cfg.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			cfg.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			cfg.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			cfg.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if len(cfg.Trading.Pairs) == 0 {
		return fmt.Errorf("trading.pairs must list at least one symbol")
	}
	if cfg.Trading.FeeRatePercent < 0 {
		return fmt.Errorf("trading.fee_rate_percent must not be negative")
	}
	if cfg.Trading.MinOrderValue <= 0 {
		return fmt.Errorf("trading.min_order_value must be greater than 0")
	}
	if cfg.Retry.OrderAttempts <= 0 || cfg.Retry.BalanceAttempts <= 0 ||
		cfg.Retry.RulesAttempts <= 0 || cfg.Retry.MarketAttempts <= 0 {
		return fmt.Errorf("retry attempt counts must be greater than 0")
	}
	if cfg.Retry.Delay.D() <= 0 {
		return fmt.Errorf("retry.delay must be greater than 0")
	}
	if cfg.Settlement.Tolerance <= 0 {
		return fmt.Errorf("settlement.tolerance must be greater than 0")
	}
	if cfg.Settlement.MaxRounds <= 0 {
		return fmt.Errorf("settlement.max_rounds must be greater than 0")
	}
	if cfg.Settlement.PollInterval.D() <= 0 || cfg.Settlement.RoundTimeout.D() <= 0 {
		return fmt.Errorf("settlement intervals must be greater than 0")
	}
	if cfg.Exchange.RecvWindow.D() <= 0 {
		return fmt.Errorf("exchange.recv_window must be greater than 0")
	}
	if cfg.Exchange.RequestsPerSecond <= 0 {
		return fmt.Errorf("exchange.requests_per_second must be greater than 0")
	}
	if IsProductionLike(AppEnvironment()) {
		if cfg.Exchange.APIKey == "" || cfg.Exchange.SecretKey == "" {
			return fmt.Errorf("BINANCE_API_KEY and BINANCE_SECRET_KEY are required in %s", AppEnvironment())
		}
	}
	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
	}
	if cfg.Chain.Enabled && cfg.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required when the chain reader is enabled")
	}
	return nil
}
