// Package config loads the trading system configuration from YAML and the
// environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-algo/internal/broker"
	"github.com/rxtech-lab/argo-algo/internal/ledger"
	"github.com/rxtech-lab/argo-algo/internal/marketdata"
	"github.com/rxtech-lab/argo-algo/internal/pnl"
	"github.com/rxtech-lab/argo-algo/internal/strategy"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables overlaid on the file configuration.
const (
	EnvBrokerAPIKey    = "BROKER_API_KEY"
	EnvBrokerSecretKey = "BROKER_SECRET_KEY"
	EnvPolygonAPIKey   = "POLYGON_API_KEY"
	EnvLedgerDSN       = "LEDGER_DSN"
	EnvLogLevel        = "LOG_LEVEL"
)

// Config is the whole system configuration.
type Config struct {
	Broker       broker.Config      `yaml:"broker" json:"broker" jsonschema:"title=Broker,description=Broker used for orders and market data"`
	Ledger       LedgerConfig       `yaml:"ledger" json:"ledger" jsonschema:"title=Ledger,description=Trade ledger database"`
	Symbols      []string           `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols,description=Symbols subscribed by the data collector"`
	Intervals    IntervalConfig     `yaml:"intervals" json:"intervals" jsonschema:"title=Intervals,description=Worker cadences"`
	Risk         RiskConfig         `yaml:"risk" json:"risk" jsonschema:"title=Risk,description=Risk limits"`
	Trading      TradingConfig      `yaml:"trading" json:"trading" jsonschema:"title=Trading,description=Manual trade defaults and brokerage"`
	Strategies   StrategiesConfig   `yaml:"strategies" json:"strategies" jsonschema:"title=Strategies,description=Strategies to register"`
	History      HistoryConfig      `yaml:"history" json:"history" jsonschema:"title=History,description=Warm-up history provider"`
	FeatureStore FeatureStoreConfig `yaml:"feature_store" json:"feature_store" jsonschema:"title=Feature Store,description=CPR feature log"`
	Stats        StatsConfig        `yaml:"stats" json:"stats" jsonschema:"title=Stats,description=Session statistics report"`
	Log          LogConfig          `yaml:"log" json:"log" jsonschema:"title=Log"`
}

// LedgerConfig selects the ledger database.
type LedgerConfig struct {
	Driver ledger.Driver `yaml:"driver" json:"driver" jsonschema:"enum=duckdb,enum=sqlite" validate:"required,oneof=duckdb sqlite"`
	DSN    string        `yaml:"dsn" json:"dsn" jsonschema:"description=Database file path or :memory:"`
}

// IntervalConfig holds the worker cadences.
type IntervalConfig struct {
	Strategy       time.Duration `yaml:"strategy" json:"strategy" validate:"gt=0"`
	Executor       time.Duration `yaml:"executor" json:"executor" validate:"gt=0"`
	Monitor        time.Duration `yaml:"monitor" json:"monitor" validate:"gt=0"`
	Risk           time.Duration `yaml:"risk" json:"risk" validate:"gt=0"`
	CollectorRetry time.Duration `yaml:"collector_retry" json:"collector_retry" validate:"gt=0"`
	StopTimeout    time.Duration `yaml:"stop_timeout" json:"stop_timeout" validate:"gt=0"`
	// BarInterval is the warm-up resolution of raw-tick strategies.
	BarInterval   time.Duration `yaml:"bar_interval" json:"bar_interval" validate:"gt=0"`
	TickCacheSize int           `yaml:"tick_cache_size" json:"tick_cache_size" validate:"gt=0"`
	QueueCapacity int           `yaml:"queue_capacity" json:"queue_capacity" validate:"gt=0"`
}

// RiskConfig holds the risk limits.
type RiskConfig struct {
	MaxPositionSize float64 `yaml:"max_position_size" json:"max_position_size" validate:"gt=0"`
	MaxDailyLoss    float64 `yaml:"max_daily_loss" json:"max_daily_loss" validate:"gt=0"`
	MaxPositions    int     `yaml:"max_positions" json:"max_positions" validate:"gte=0"`
	MaxDailyTrades  int     `yaml:"max_daily_trades" json:"max_daily_trades" validate:"gte=0"`
	// Timezone decides where the trading day starts.
	Timezone string `yaml:"timezone" json:"timezone"`
}

// TradingConfig holds manual trade defaults and the commission model.
type TradingConfig struct {
	DefaultStopLossPct float64             `yaml:"default_stop_loss_pct" json:"default_stop_loss_pct" validate:"gte=0,lt=100"`
	DefaultTargetPct   float64             `yaml:"default_target_pct" json:"default_target_pct" validate:"gte=0"`
	Commission         pnl.CommissionModel `yaml:"commission" json:"commission" jsonschema:"enum=percentage,enum=per_share,enum=zero" validate:"oneof=percentage per_share zero"`
	BrokerageRate      float64             `yaml:"brokerage_rate" json:"brokerage_rate" validate:"gte=0,lt=1"`
	// Monitor quote fallback retries.
	QuoteRetries uint64 `yaml:"quote_retries" json:"quote_retries" validate:"gte=0"`
}

// StrategiesConfig lists the strategies to register. A nil entry is not registered.
type StrategiesConfig struct {
	MovingAverage *MovingAverageEntry `yaml:"moving_average,omitempty" json:"moving_average,omitempty"`
	RSI           *RSIEntry           `yaml:"rsi,omitempty" json:"rsi,omitempty"`
	Bollinger     *BollingerEntry     `yaml:"bollinger,omitempty" json:"bollinger,omitempty"`
	CPR           *CPREntry           `yaml:"cpr,omitempty" json:"cpr,omitempty"`
}

// MovingAverageEntry registers the moving average crossover strategy.
type MovingAverageEntry struct {
	Name                         string `yaml:"name" json:"name"`
	Disabled                     bool   `yaml:"disabled" json:"disabled"`
	strategy.MovingAverageConfig `yaml:",inline"`
}

// RSIEntry registers the RSI mean-reversion strategy.
type RSIEntry struct {
	Name               string `yaml:"name" json:"name"`
	Disabled           bool   `yaml:"disabled" json:"disabled"`
	strategy.RSIConfig `yaml:",inline"`
}

// BollingerEntry registers the Bollinger band strategy.
type BollingerEntry struct {
	Name                     string `yaml:"name" json:"name"`
	Disabled                 bool   `yaml:"disabled" json:"disabled"`
	strategy.BollingerConfig `yaml:",inline"`
}

// CPREntry registers the CPR breakout strategy.
type CPREntry struct {
	Name               string `yaml:"name" json:"name"`
	Disabled           bool   `yaml:"disabled" json:"disabled"`
	strategy.CPRConfig `yaml:",inline"`
}

// HistoryConfig selects the warm-up history provider.
type HistoryConfig struct {
	Provider marketdata.ProviderType `yaml:"provider" json:"provider" jsonschema:"enum=binance,enum=polygon" validate:"omitempty,oneof=binance polygon"`
	APIKey   string                  `yaml:"-" json:"-"`
	Lookback time.Duration           `yaml:"lookback" json:"lookback" validate:"gte=0"`
}

// FeatureStoreConfig locates the CPR feature log. An empty path disables it.
type FeatureStoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// StatsConfig locates the session statistics report. An empty path disables it.
type StatsConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the configuration used when a field is not set.
func Default() Config {
	return Config{
		Broker: broker.Config{
			Type:          broker.TypePaper,
			APIKey:        "",
			SecretKey:     "",
			BaseURL:       "",
			KlineInterval: "1m",
			TickInterval:  time.Second,
			Volatility:    0.001,
			Prices:        nil,
			Seed:          0,
		},
		Ledger: LedgerConfig{
			Driver: ledger.DriverDuckDB,
			DSN:    "algo_trade.duckdb",
		},
		Symbols: nil,
		Intervals: IntervalConfig{
			Strategy:       5 * time.Second,
			Executor:       time.Second,
			Monitor:        time.Second,
			Risk:           10 * time.Second,
			CollectorRetry: time.Second,
			StopTimeout:    5 * time.Second,
			BarInterval:    5 * time.Minute,
			TickCacheSize:  200,
			QueueCapacity:  1000,
		},
		Risk: RiskConfig{
			MaxPositionSize: 100000,
			MaxDailyLoss:    10000,
			MaxPositions:    10,
			MaxDailyTrades:  50,
			Timezone:        "UTC",
		},
		Trading: TradingConfig{
			DefaultStopLossPct: 2,
			DefaultTargetPct:   4,
			Commission:         pnl.CommissionPercentage,
			BrokerageRate:      pnl.DefaultBrokerageRate,
			QuoteRetries:       2,
		},
		Strategies: StrategiesConfig{
			MovingAverage: nil,
			RSI:           nil,
			Bollinger:     nil,
			CPR:           nil,
		},
		History: HistoryConfig{
			Provider: marketdata.ProviderBinance,
			APIKey:   "",
			Lookback: 3 * 24 * time.Hour,
		},
		FeatureStore: FeatureStoreConfig{Path: ""},
		Stats:        StatsConfig{Path: "stats.yaml"},
		Log:          LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, loads .env if present and overlays the
// secrets from the environment. An empty path yields the defaults.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config %s", path)
		}
	}

	_ = godotenv.Load()

	config.ApplyEnv()
	config.applyStrategyDefaults()

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// ApplyEnv overlays secrets and overrides from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvBrokerAPIKey); v != "" {
		c.Broker.APIKey = v
	}

	if v := os.Getenv(EnvBrokerSecretKey); v != "" {
		c.Broker.SecretKey = v
	}

	if v := os.Getenv(EnvPolygonAPIKey); v != "" {
		c.History.APIKey = v
	}

	if v := os.Getenv(EnvLedgerDSN); v != "" {
		c.Ledger.DSN = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

// applyStrategyDefaults names unnamed strategy entries after their kind.
func (c *Config) applyStrategyDefaults() {
	if e := c.Strategies.MovingAverage; e != nil && e.Name == "" {
		e.Name = "moving_average"
	}

	if e := c.Strategies.RSI; e != nil && e.Name == "" {
		e.Name = "rsi"
	}

	if e := c.Strategies.Bollinger; e != nil && e.Name == "" {
		e.Name = "bollinger"
	}

	if e := c.Strategies.CPR; e != nil && e.Name == "" {
		e.Name = "cpr"
	}
}

// Validate checks the struct tags and the cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if _, err := time.LoadLocation(c.Risk.Timezone); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid risk timezone %q", c.Risk.Timezone)
	}

	if c.Broker.Type != broker.TypePaper && (c.Broker.APIKey == "" || c.Broker.SecretKey == "") {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"broker %s requires %s and %s", c.Broker.Type, EnvBrokerAPIKey, EnvBrokerSecretKey)
	}

	return nil
}

// Location returns the time zone of the trading day.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Risk.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

// UnmarshalYAML starts from the strategy defaults so partial entries are valid.
func (e *MovingAverageEntry) UnmarshalYAML(node *yaml.Node) error {
	type plain MovingAverageEntry

	entry := plain{MovingAverageConfig: strategy.DefaultMovingAverageConfig()}
	if err := node.Decode(&entry); err != nil {
		return err
	}

	*e = MovingAverageEntry(entry)

	return nil
}

// UnmarshalYAML starts from the strategy defaults so partial entries are valid.
func (e *RSIEntry) UnmarshalYAML(node *yaml.Node) error {
	type plain RSIEntry

	entry := plain{RSIConfig: strategy.DefaultRSIConfig()}
	if err := node.Decode(&entry); err != nil {
		return err
	}

	*e = RSIEntry(entry)

	return nil
}

// UnmarshalYAML starts from the strategy defaults so partial entries are valid.
func (e *BollingerEntry) UnmarshalYAML(node *yaml.Node) error {
	type plain BollingerEntry

	entry := plain{BollingerConfig: strategy.DefaultBollingerConfig()}
	if err := node.Decode(&entry); err != nil {
		return err
	}

	*e = BollingerEntry(entry)

	return nil
}

// UnmarshalYAML starts from the strategy defaults so partial entries are valid.
func (e *CPREntry) UnmarshalYAML(node *yaml.Node) error {
	type plain CPREntry

	entry := plain{CPRConfig: strategy.DefaultCPRConfig()}
	if err := node.Decode(&entry); err != nil {
		return err
	}

	*e = CPREntry(entry)

	return nil
}
