package pnl

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/stretchr/testify/suite"
)

type PnLTestSuite struct {
	suite.Suite
}

func TestPnLSuite(t *testing.T) {
	suite.Run(t, new(PnLTestSuite))
}

func (suite *PnLTestSuite) TestCommissionModels() {
	tests := []struct {
		name       string
		commission Commission
		quantity   float64
		price      float64
		expected   string
	}{
		{"percentage", NewCommission(CommissionPercentage, 0), 10, 1000, "3"},
		{"percentage custom rate", NewCommission(CommissionPercentage, 0.001), 10, 1000, "10"},
		{"per share minimum", NewCommission(CommissionPerShare, 0), 10, 1000, "1"},
		{"per share", NewCommission(CommissionPerShare, 0), 1000, 1, "5"},
		{"zero", NewCommission(CommissionZero, 0), 10, 1000, "0"},
		{"unknown falls back to percentage", NewCommission("other", 0), 10, 1000, "3"},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, tc.commission.Calculate(tc.quantity, tc.price).String())
		})
	}
}

func (suite *PnLTestSuite) TestRealizedIsSideAdjusted() {
	calc := NewCalculator(nil)

	suite.Equal(50.0, calc.Realized(types.SideBuy, 100, 105, 10))
	suite.Equal(-50.0, calc.Realized(types.SideSell, 100, 105, 10))
	suite.Equal(50.0, calc.Realized(types.SideSell, 105, 100, 10))
}

func (suite *PnLTestSuite) TestRealizedNetOfBrokerage() {
	calc := NewCalculator(NewPercentageCommission(DefaultBrokerageRate))

	// gross 50, fees (100+105)*10*0.0003 = 0.615
	suite.Equal(49.39, calc.Realized(types.SideBuy, 100, 105, 10))
	suite.Equal(0.62, calc.Fees(100, 105, 10))
}

func (suite *PnLTestSuite) TestNotional() {
	long := types.Trade{Side: types.SideBuy, Quantity: 10, Price: 100, FilledPrice: optional.Some(101.0)}
	short := types.Trade{Side: types.SideSell, Quantity: 5, Price: 200, FilledPrice: optional.None[float64]()}

	suite.Equal("1010", Notional(long).String())
	suite.Equal("-1000", Notional(short).String())
}
