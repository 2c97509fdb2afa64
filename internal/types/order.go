package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
)

type Side string

type OrderType string

// OrderStatus is the single broker order status vocabulary used across brokers.
// Venues that report COMPLETE are normalised to FILLED.
type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	// OrderTypeStop is a stop-market order triggered at TriggerPrice.
	OrderTypeStop OrderType = "STOP"
)

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusNotFound  OrderStatus = "NOT_FOUND"
)

// Opposite returns the closing side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}

	return SideBuy
}

// Sign is +1 for BUY and -1 for SELL.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}

	return 1
}

// IsTerminal reports whether the broker will not change the order any more.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// OrderRequest is what the executor and monitor send to a Broker.
type OrderRequest struct {
	// ClientOrderID is the trade id; venues that support it dedupe re-placements.
	ClientOrderID string    `validate:"required"`
	Symbol        string    `validate:"required"`
	Side          Side      `validate:"required,oneof=BUY SELL"`
	Quantity      float64   `validate:"gt=0"`
	Price         float64   `validate:"gte=0"`
	TriggerPrice  float64   `validate:"gte=0"`
	OrderType     OrderType `validate:"required,oneof=MARKET LIMIT STOP"`
}

// Validate checks required fields and the price fields each order type needs.
func (r *OrderRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrderRequest, "invalid order request", err)
	}

	if r.OrderType == OrderTypeLimit && r.Price <= 0 {
		return errors.New(errors.ErrCodeInvalidOrderRequest, "limit order requires a price")
	}

	if r.OrderType == OrderTypeStop && r.TriggerPrice <= 0 {
		return errors.New(errors.ErrCodeInvalidOrderRequest, "stop order requires a trigger price")
	}

	return nil
}

// OrderResult is the broker answer to a placement. Success=false is a venue rejection;
// transport failures are returned as errors instead.
type OrderResult struct {
	Success     bool
	OrderID     string
	Status      OrderStatus
	FilledPrice optional.Option[float64]
	Error       string
}

// OrderStatusReport describes a broker order.
type OrderStatusReport struct {
	OrderID         string
	Status          OrderStatus
	FilledPrice     float64
	FilledQuantity  float64
	PendingQuantity float64
	OrderTimestamp  time.Time
}

// CancelResult is the broker answer to a cancellation. Cancelling a terminal order is
// Success=false, not an error.
type CancelResult struct {
	Success bool
	Status  OrderStatus
	Error   string
}

// Quote is a point-in-time price snapshot.
type Quote struct {
	Symbol    string
	LTP       float64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

// Position is a net broker position.
type Position struct {
	Symbol       string  `yaml:"symbol" json:"symbol"`
	Side         Side    `yaml:"side" json:"side"`
	Quantity     float64 `yaml:"quantity" json:"quantity"`
	AvgPrice     float64 `yaml:"avg_price" json:"avg_price"`
	CurrentPrice float64 `yaml:"current_price" json:"current_price"`
	PnL          float64 `yaml:"pnl" json:"pnl"`
}

// Holding is a settled holding.
type Holding struct {
	Symbol    string  `yaml:"symbol" json:"symbol"`
	Quantity  float64 `yaml:"quantity" json:"quantity"`
	AvgPrice  float64 `yaml:"avg_price" json:"avg_price"`
	LastPrice float64 `yaml:"last_price" json:"last_price"`
}

// Holdings wraps the holdings answer.
type Holdings struct {
	Success  bool
	Holdings []Holding
}
