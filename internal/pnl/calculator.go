package pnl

import (
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/shopspring/decimal"
)

// Calculator turns entry and exit fills into realized P&L.
type Calculator struct {
	commission Commission
}

// NewCalculator creates a calculator. A nil commission charges nothing.
func NewCalculator(commission Commission) *Calculator {
	if commission == nil {
		commission = NewZeroCommission()
	}

	return &Calculator{commission: commission}
}

// Gross returns (exit − entry) × quantity, negated for a short entry.
func Gross(side types.Side, entry, exit, quantity float64) decimal.Decimal {
	diff := decimal.NewFromFloat(exit).Sub(decimal.NewFromFloat(entry)).Mul(decimal.NewFromFloat(quantity))
	if side == types.SideSell {
		return diff.Neg()
	}

	return diff
}

// Realized returns gross P&L less brokerage on both legs, rounded to 2 places.
func (c *Calculator) Realized(side types.Side, entry, exit, quantity float64) float64 {
	fees := c.commission.Calculate(quantity, entry).Add(c.commission.Calculate(quantity, exit))

	return Gross(side, entry, exit, quantity).Sub(fees).Round(2).InexactFloat64()
}

// Fees returns the brokerage of a round trip.
func (c *Calculator) Fees(entry, exit, quantity float64) float64 {
	return c.commission.Calculate(quantity, entry).Add(c.commission.Calculate(quantity, exit)).Round(2).InexactFloat64()
}

// Notional returns the signed exposure of a trade: positive for long, negative for short.
func Notional(trade types.Trade) decimal.Decimal {
	n := decimal.NewFromFloat(trade.Quantity).Mul(decimal.NewFromFloat(trade.EntryPrice()))
	if trade.Side == types.SideSell {
		return n.Neg()
	}

	return n
}
