package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/ledger"
	"github.com/rxtech-lab/argo-algo/internal/pnl"
	"github.com/rxtech-lab/argo-algo/internal/strategy"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type SettlerTestSuite struct {
	suite.Suite
	ledger   *ledger.Ledger
	registry *strategy.Registry
	settler  *Settler
	ctx      context.Context
	now      time.Time
}

func TestSettlerSuite(t *testing.T) {
	suite.Run(t, new(SettlerTestSuite))
}

func (suite *SettlerTestSuite) SetupTest() {
	l, err := ledger.Open(ledger.DriverSQLite, ledger.MemoryDSN, nil)
	suite.Require().NoError(err)
	suite.ledger = l

	suite.registry = strategy.NewRegistry()
	ma, err := strategy.NewMovingAverageCrossover("ma", strategy.DefaultMovingAverageConfig(), nil)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.registry.Register(ma))

	calc := pnl.NewCalculator(pnl.NewPercentageCommission(pnl.DefaultBrokerageRate))
	suite.settler = New(suite.ledger, suite.registry, calc, nil)
	suite.ctx = context.Background()
	suite.now = time.Date(2025, 8, 26, 4, 0, 0, 0, time.UTC)
}

func (suite *SettlerTestSuite) TearDownTest() {
	suite.Require().NoError(suite.ledger.Close())
}

func (suite *SettlerTestSuite) activeTrade(id string, withLevels bool) {
	trade := types.Trade{
		ID:              id,
		Symbol:          "TCS",
		Side:            types.SideBuy,
		Quantity:        10,
		Price:           100,
		FilledPrice:     optional.None[float64](),
		Strategy:        "ma",
		Status:          types.TradeStatusPending,
		Timestamp:       suite.now,
		FilledTimestamp: optional.None[time.Time](),
		StopLoss:        optional.None[float64](),
		Target:          optional.None[float64](),
		PnL:             optional.None[float64](),
		ExitPrice:       optional.None[float64](),
		ExitTimestamp:   optional.None[time.Time](),
	}

	if withLevels {
		trade.StopLoss = optional.Some(95.0)
	}

	suite.Require().NoError(suite.ledger.Create(suite.ctx, trade))
	suite.Require().NoError(suite.ledger.MarkFilled(suite.ctx, id, 100, suite.now))
	suite.Require().NoError(suite.ledger.Activate(suite.ctx, id, "", ""))
}

func (suite *SettlerTestSuite) TestClaimIsExclusive() {
	suite.activeTrade("t-1", true)

	trade, ok, err := suite.settler.Claim(suite.ctx, "t-1")
	suite.Require().NoError(err)
	suite.True(ok)
	suite.Equal(types.TradeStatusActive, trade.Status)

	_, ok, err = suite.settler.Claim(suite.ctx, "t-1")
	suite.Require().NoError(err)
	suite.False(ok)

	suite.settler.Release("t-1")
	suite.False(suite.settler.Claimed("t-1"))

	_, _, err = suite.settler.Claim(suite.ctx, "absent")
	suite.True(errors.HasCode(err, errors.ErrCodeDataNotFound))
	suite.False(suite.settler.Claimed("absent"))
}

func (suite *SettlerTestSuite) TestSettleCommitsAndNotifies() {
	suite.activeTrade("t-1", true)

	var exited []types.Trade

	suite.settler.OnExit(func(_ context.Context, trade types.Trade) {
		exited = append(exited, trade)
	})

	trade, ok, err := suite.settler.Claim(suite.ctx, "t-1")
	suite.Require().NoError(err)
	suite.Require().True(ok)

	settled, err := suite.settler.Settle(suite.ctx, trade, 110, suite.now.Add(time.Minute))
	suite.Require().NoError(err)

	// 100 gross less 0.03% brokerage on 1000 and 1100.
	suite.Equal(99.37, settled.PnL.Unwrap())
	suite.Equal(types.TradeStatusExited, settled.Status)
	suite.Require().Len(exited, 1)
	suite.Equal("t-1", exited[0].ID)
	suite.False(suite.settler.Claimed("t-1"))

	ma, err := suite.registry.Get("ma")
	suite.Require().NoError(err)
	suite.Equal(99.37, ma.PerformanceMetrics().TotalPnL)

	_, err = suite.settler.Settle(suite.ctx, trade, 110, suite.now)
	suite.True(errors.IsInvalidTransition(err))
	suite.Len(exited, 1)
}

func (suite *SettlerTestSuite) TestUnmanagedTradeIsNotCreditedTwice() {
	suite.activeTrade("t-1", false)

	trade, _, err := suite.settler.Claim(suite.ctx, "t-1")
	suite.Require().NoError(err)

	_, err = suite.settler.Settle(suite.ctx, trade, 90, suite.now)
	suite.Require().NoError(err)

	ma, err := suite.registry.Get("ma")
	suite.Require().NoError(err)
	suite.Equal(0, ma.PerformanceMetrics().TradesExecuted)
}

func (suite *SettlerTestSuite) TestRetryUnsettledWithNothingOutstanding() {
	suite.Equal(0, suite.settler.RetryUnsettled(suite.ctx))
}
