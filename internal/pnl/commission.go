// Package pnl computes brokerage and realized profit and loss.
package pnl

import "github.com/shopspring/decimal"

// Commission prices the brokerage of one order leg.
type Commission interface {
	// Calculate returns the fee for trading quantity at price.
	Calculate(quantity, price float64) decimal.Decimal
}

// CommissionModel names a commission implementation.
type CommissionModel string

const (
	CommissionPercentage CommissionModel = "percentage"
	CommissionPerShare   CommissionModel = "per_share"
	CommissionZero       CommissionModel = "zero"
)

// AllCommissionModels lists the models accepted in configuration.
var AllCommissionModels = []any{
	CommissionPercentage,
	CommissionPerShare,
	CommissionZero,
}

// DefaultBrokerageRate is 0.03% of traded notional.
const DefaultBrokerageRate = 0.0003

// NewCommission returns the named model. rate applies to the percentage model.
func NewCommission(model CommissionModel, rate float64) Commission {
	switch model {
	case CommissionPercentage:
		return NewPercentageCommission(rate)
	case CommissionPerShare:
		return NewPerShareCommission()
	case CommissionZero:
		return NewZeroCommission()
	default:
		return NewPercentageCommission(DefaultBrokerageRate)
	}
}

// PercentageCommission charges a fraction of notional.
type PercentageCommission struct {
	rate decimal.Decimal
}

// NewPercentageCommission creates a percentage commission. A non-positive rate
// falls back to DefaultBrokerageRate.
func NewPercentageCommission(rate float64) *PercentageCommission {
	if rate <= 0 {
		rate = DefaultBrokerageRate
	}

	return &PercentageCommission{rate: decimal.NewFromFloat(rate)}
}

// Calculate returns |quantity × price| × rate.
func (c *PercentageCommission) Calculate(quantity, price float64) decimal.Decimal {
	return decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price)).Abs().Mul(c.rate)
}

// PerShareCommission charges 0.005 per unit with a minimum of 1 per order.
type PerShareCommission struct{}

// NewPerShareCommission creates a per-share commission.
func NewPerShareCommission() *PerShareCommission {
	return &PerShareCommission{}
}

// Calculate returns max(0.005 × |quantity|, 1).
func (c *PerShareCommission) Calculate(quantity, _ float64) decimal.Decimal {
	fee := decimal.NewFromFloat(quantity).Abs().Mul(decimal.RequireFromString("0.005"))
	if fee.LessThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}

	return fee
}

// ZeroCommission charges nothing.
type ZeroCommission struct{}

// NewZeroCommission creates a zero commission.
func NewZeroCommission() *ZeroCommission {
	return &ZeroCommission{}
}

// Calculate returns zero.
func (c *ZeroCommission) Calculate(_, _ float64) decimal.Decimal {
	return decimal.Zero
}
