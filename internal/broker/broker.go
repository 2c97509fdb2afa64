// Package broker defines the brokerage capability and its implementations:
// a simulated paper broker and a Binance spot broker.
package broker

import (
	"context"
	"iter"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
)

// Broker is the order, quote and market data capability the workers consume.
// Venue rejections are reported in results; transport failures are errors.
type Broker interface {
	// PlaceOrder submits an order. Re-submitting the same ClientOrderID returns the original order.
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error)
	// GetOrderStatus reports an order. Unknown ids report NOT_FOUND.
	GetOrderStatus(ctx context.Context, orderID string) (types.OrderStatusReport, error)
	// CancelOrder cancels a working order. Cancelling a terminal order returns Success=false.
	CancelOrder(ctx context.Context, orderID string) (types.CancelResult, error)
	// GetQuote returns the latest quote, or None when the venue has none.
	GetQuote(ctx context.Context, symbol string) (optional.Option[types.Quote], error)
	GetPositions(ctx context.Context) ([]types.Position, error)
	GetHoldings(ctx context.Context) (types.Holdings, error)
	// Stream yields ticks for symbols until ctx is done or the caller stops iterating.
	// A yielded error ends the stream.
	Stream(ctx context.Context, symbols []string) iter.Seq2[types.Tick, error]
}

// Type names a broker implementation.
type Type string

const (
	TypePaper          Type = "paper"
	TypeBinance        Type = "binance"
	TypeBinanceTestnet Type = "binance-testnet"
)

// AllTypes lists the brokers accepted in configuration.
var AllTypes = []any{TypePaper, TypeBinance, TypeBinanceTestnet}

// Config configures a broker.
type Config struct {
	Type          Type               `yaml:"type" json:"type" jsonschema:"enum=paper,enum=binance,enum=binance-testnet" validate:"required,oneof=paper binance binance-testnet"`
	APIKey        string             `yaml:"-" json:"-"`
	SecretKey     string             `yaml:"-" json:"-"`
	BaseURL       string             `yaml:"base_url" json:"base_url,omitempty"`
	KlineInterval string             `yaml:"kline_interval" json:"kline_interval,omitempty"`
	TickInterval  time.Duration      `yaml:"tick_interval" json:"tick_interval,omitempty"`
	Volatility    float64            `yaml:"volatility" json:"volatility,omitempty" validate:"gte=0,lt=1"`
	Prices        map[string]float64 `yaml:"prices" json:"prices,omitempty"`
	Seed          uint64             `yaml:"seed" json:"seed,omitempty"`
}

// New creates the configured broker.
func New(config Config, log *logger.Logger) (Broker, error) {
	switch config.Type {
	case TypePaper:
		return NewPaper(PaperConfig{
			Prices:       config.Prices,
			TickInterval: config.TickInterval,
			Volatility:   config.Volatility,
			Seed:         config.Seed,
		}, log), nil
	case TypeBinance, TypeBinanceTestnet:
		if config.APIKey == "" || config.SecretKey == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration, "binance broker requires BROKER_API_KEY and BROKER_SECRET_KEY")
		}

		return NewBinance(config, config.Type == TypeBinanceTestnet, log), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedBroker, "unsupported broker: %s", config.Type)
	}
}
