package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-algo/internal/broker"
	"github.com/rxtech-lab/argo-algo/internal/ledger"
	"github.com/rxtech-lab/argo-algo/internal/strategy"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
	tempDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "config_test_*")
	suite.Require().NoError(err)
	suite.tempDir = tempDir

	for _, key := range []string{EnvBrokerAPIKey, EnvBrokerSecretKey, EnvPolygonAPIKey, EnvLedgerDSN, EnvLogLevel} {
		suite.T().Setenv(key, "")
	}
}

func (suite *ConfigTestSuite) TearDownTest() {
	os.RemoveAll(suite.tempDir)
}

func (suite *ConfigTestSuite) write(content string) string {
	path := filepath.Join(suite.tempDir, "config.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o600))

	return path
}

func (suite *ConfigTestSuite) TestDefaults() {
	config, err := Load("")
	suite.Require().NoError(err)

	suite.Equal(broker.TypePaper, config.Broker.Type)
	suite.Equal(ledger.DriverDuckDB, config.Ledger.Driver)
	suite.Equal(100000.0, config.Risk.MaxPositionSize)
	suite.Equal(10000.0, config.Risk.MaxDailyLoss)
	suite.Equal(10, config.Risk.MaxPositions)
	suite.Equal(50, config.Risk.MaxDailyTrades)
	suite.Equal(10*time.Second, config.Intervals.Risk)
	suite.Equal(5*time.Second, config.Intervals.Strategy)
	suite.Equal(time.Second, config.Intervals.Executor)
	suite.Equal(time.Second, config.Intervals.Monitor)
	suite.Equal(5*time.Second, config.Intervals.StopTimeout)
	suite.Equal(5*time.Minute, config.Intervals.BarInterval)
	suite.Equal(200, config.Intervals.TickCacheSize)
	suite.Equal(2.0, config.Trading.DefaultStopLossPct)
	suite.Equal(4.0, config.Trading.DefaultTargetPct)
	suite.Equal(0.0003, config.Trading.BrokerageRate)
	suite.Equal(uint64(2), config.Trading.QuoteRetries)
	suite.Nil(config.Strategies.CPR)
}

func (suite *ConfigTestSuite) TestLoadFileAndStrategyDefaults() {
	path := suite.write(`
broker:
  type: paper
  prices:
    BTCUSDT: 60000
ledger:
  driver: sqlite
  dsn: trades.db
symbols: [BTCUSDT, ETHUSDT]
intervals:
  strategy: 2s
  monitor: 500ms
risk:
  max_daily_loss: 2500
  timezone: Asia/Kolkata
strategies:
  moving_average:
    symbols: [BTCUSDT]
    short_period: 3
  cpr:
    name: nifty-cpr
    disabled: true
    atm_offset: 50
`)

	config, err := Load(path)
	suite.Require().NoError(err)

	suite.Equal(ledger.DriverSQLite, config.Ledger.Driver)
	suite.Equal("trades.db", config.Ledger.DSN)
	suite.Equal([]string{"BTCUSDT", "ETHUSDT"}, config.Symbols)
	suite.Equal(60000.0, config.Broker.Prices["BTCUSDT"])
	suite.Equal(2*time.Second, config.Intervals.Strategy)
	suite.Equal(500*time.Millisecond, config.Intervals.Monitor)
	suite.Equal(time.Second, config.Intervals.Executor)
	suite.Equal(2500.0, config.Risk.MaxDailyLoss)
	suite.Equal("Asia/Kolkata", config.Location().String())

	ma := config.Strategies.MovingAverage
	suite.Require().NotNil(ma)
	suite.Equal("moving_average", ma.Name)
	suite.Equal([]string{"BTCUSDT"}, ma.Symbols)
	suite.Equal(3, ma.ShortPeriod)
	suite.Equal(strategy.DefaultMovingAverageConfig().LongPeriod, ma.LongPeriod)

	cpr := config.Strategies.CPR
	suite.Require().NotNil(cpr)
	suite.Equal("nifty-cpr", cpr.Name)
	suite.True(cpr.Disabled)
	suite.Equal(50.0, cpr.ATMOffset)
	suite.Equal("NIFTY 50", cpr.Symbol)
	suite.Equal(5*time.Minute, cpr.BarInterval)

	suite.Nil(config.Strategies.RSI)
}

func (suite *ConfigTestSuite) TestEnvironmentOverlay() {
	suite.T().Setenv(EnvBrokerAPIKey, "key")
	suite.T().Setenv(EnvBrokerSecretKey, "secret")
	suite.T().Setenv(EnvLedgerDSN, ":memory:")
	suite.T().Setenv(EnvLogLevel, "DEBUG")
	suite.T().Setenv(EnvPolygonAPIKey, "poly")

	config, err := Load(suite.write("broker:\n  type: binance-testnet\n"))
	suite.Require().NoError(err)

	suite.Equal(broker.TypeBinanceTestnet, config.Broker.Type)
	suite.Equal("key", config.Broker.APIKey)
	suite.Equal("secret", config.Broker.SecretKey)
	suite.Equal(":memory:", config.Ledger.DSN)
	suite.Equal("debug", config.Log.Level)
	suite.Equal("poly", config.History.APIKey)
}

func (suite *ConfigTestSuite) TestValidation() {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown broker", "broker:\n  type: zerodha\n"},
		{"live broker without keys", "broker:\n  type: binance\n"},
		{"unknown driver", "ledger:\n  driver: postgres\n"},
		{"bad timezone", "risk:\n  timezone: Mars/Olympus\n"},
		{"bad periods", "strategies:\n  moving_average:\n    short_period: 30\n"},
		{"bad log level", "log:\n  level: loud\n"},
	}

	for _, tc := range cases {
		suite.Run(tc.name, func() {
			_, err := Load(suite.write(tc.content))
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration), "got %v", err)
		})
	}
}

func (suite *ConfigTestSuite) TestMissingFile() {
	_, err := Load(filepath.Join(suite.tempDir, "missing.yaml"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestSchema() {
	schema, err := SchemaJSON()
	suite.Require().NoError(err)

	var document struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	suite.Require().NoError(json.Unmarshal([]byte(schema), &document))

	for _, key := range []string{"broker", "ledger", "symbols", "intervals", "risk", "trading", "strategies", "history", "log"} {
		suite.Contains(document.Properties, key)
	}

	suite.NotContains(document.Properties, "base_url", "broker fields stay nested under broker")

	suite.Contains(schema, `"broker"`)
	suite.Contains(schema, `"max_daily_loss"`)
	suite.Contains(schema, `"moving_average"`)
	suite.Contains(schema, `"short_period"`)
	suite.Contains(schema, "binance-testnet")
	suite.NotContains(schema, "APIKey")
}
