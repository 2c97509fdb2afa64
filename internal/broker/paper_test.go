package broker

import (
	"context"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/stretchr/testify/suite"
)

type PaperBrokerTestSuite struct {
	suite.Suite
	broker *Paper
	ctx    context.Context
}

func TestPaperBrokerSuite(t *testing.T) {
	suite.Run(t, new(PaperBrokerTestSuite))
}

func (suite *PaperBrokerTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.broker = NewPaper(PaperConfig{
		Prices:       map[string]float64{"TEST": 100},
		TickInterval: 5 * time.Millisecond,
		Volatility:   0.001,
		Seed:         7,
	}, nil)
}

func (suite *PaperBrokerTestSuite) order(id string, side types.Side, orderType types.OrderType, price, trigger float64) types.OrderRequest {
	return types.OrderRequest{
		ClientOrderID: id,
		Symbol:        "TEST",
		Side:          side,
		Quantity:      10,
		Price:         price,
		TriggerPrice:  trigger,
		OrderType:     orderType,
	}
}

func (suite *PaperBrokerTestSuite) TestMarketOrderFillsWithSlippage() {
	result, err := suite.broker.PlaceOrder(suite.ctx, suite.order("t-1", types.SideBuy, types.OrderTypeMarket, 0, 0))
	suite.Require().NoError(err)
	suite.True(result.Success)
	suite.Equal(types.OrderStatusFilled, result.Status)
	suite.Contains(result.OrderID, "SIM-")

	price := result.FilledPrice.Unwrap()
	suite.InDelta(100, price, 100*marketSlippage+0.01)

	report, err := suite.broker.GetOrderStatus(suite.ctx, result.OrderID)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusFilled, report.Status)
	suite.Equal(10.0, report.FilledQuantity)
	suite.Equal(0.0, report.PendingQuantity)
}

func (suite *PaperBrokerTestSuite) TestClientOrderIDDedupe() {
	first, err := suite.broker.PlaceOrder(suite.ctx, suite.order("t-1", types.SideBuy, types.OrderTypeMarket, 0, 0))
	suite.Require().NoError(err)

	second, err := suite.broker.PlaceOrder(suite.ctx, suite.order("t-1", types.SideBuy, types.OrderTypeMarket, 0, 0))
	suite.Require().NoError(err)
	suite.Equal(first.OrderID, second.OrderID)

	positions, err := suite.broker.GetPositions(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(positions, 1)
	suite.Equal(10.0, positions[0].Quantity)
}

func (suite *PaperBrokerTestSuite) TestLimitOrderRestsUntilCrossed() {
	result, err := suite.broker.PlaceOrder(suite.ctx, suite.order("t-1", types.SideBuy, types.OrderTypeLimit, 95, 0))
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusOpen, result.Status)
	suite.True(result.FilledPrice.IsNone())

	report, err := suite.broker.GetOrderStatus(suite.ctx, result.OrderID)
	suite.Require().NoError(err)
	suite.Equal(0.0, report.FilledQuantity)
	suite.Equal(10.0, report.PendingQuantity)

	suite.broker.SetPrice("TEST", 94.5)

	report, err = suite.broker.GetOrderStatus(suite.ctx, result.OrderID)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusFilled, report.Status)
	suite.Equal(95.0, report.FilledPrice)
}

func (suite *PaperBrokerTestSuite) TestMarketableLimitFillsImmediately() {
	result, err := suite.broker.PlaceOrder(suite.ctx, suite.order("t-1", types.SideSell, types.OrderTypeLimit, 99, 0))
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusFilled, result.Status)
	suite.Equal(99.0, result.FilledPrice.Unwrap())
}

func (suite *PaperBrokerTestSuite) TestStopOrderTriggers() {
	result, err := suite.broker.PlaceOrder(suite.ctx, suite.order("t-1-SL", types.SideSell, types.OrderTypeStop, 0, 90))
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusOpen, result.Status)

	suite.broker.SetPrice("TEST", 91)
	report, _ := suite.broker.GetOrderStatus(suite.ctx, result.OrderID)
	suite.Equal(types.OrderStatusOpen, report.Status)

	suite.broker.SetPrice("TEST", 89.5)
	report, _ = suite.broker.GetOrderStatus(suite.ctx, result.OrderID)
	suite.Equal(types.OrderStatusFilled, report.Status)
	suite.Equal(89.5, report.FilledPrice)
}

func (suite *PaperBrokerTestSuite) TestCancelTwice() {
	result, err := suite.broker.PlaceOrder(suite.ctx, suite.order("t-1", types.SideBuy, types.OrderTypeLimit, 50, 0))
	suite.Require().NoError(err)

	cancel, err := suite.broker.CancelOrder(suite.ctx, result.OrderID)
	suite.Require().NoError(err)
	suite.True(cancel.Success)
	suite.Equal(types.OrderStatusCancelled, cancel.Status)

	cancel, err = suite.broker.CancelOrder(suite.ctx, result.OrderID)
	suite.Require().NoError(err)
	suite.False(cancel.Success)

	// cancelled orders no longer fill
	suite.broker.SetPrice("TEST", 40)
	report, _ := suite.broker.GetOrderStatus(suite.ctx, result.OrderID)
	suite.Equal(types.OrderStatusCancelled, report.Status)
}

func (suite *PaperBrokerTestSuite) TestCancelFilledAndUnknown() {
	result, err := suite.broker.PlaceOrder(suite.ctx, suite.order("t-1", types.SideBuy, types.OrderTypeMarket, 0, 0))
	suite.Require().NoError(err)

	cancel, err := suite.broker.CancelOrder(suite.ctx, result.OrderID)
	suite.Require().NoError(err)
	suite.False(cancel.Success)
	suite.Equal(types.OrderStatusFilled, cancel.Status)

	cancel, err = suite.broker.CancelOrder(suite.ctx, "SIM-missing")
	suite.Require().NoError(err)
	suite.False(cancel.Success)
	suite.Equal(types.OrderStatusNotFound, cancel.Status)

	report, err := suite.broker.GetOrderStatus(suite.ctx, "SIM-missing")
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusNotFound, report.Status)
}

func (suite *PaperBrokerTestSuite) TestInvalidOrderRejected() {
	result, err := suite.broker.PlaceOrder(suite.ctx, suite.order("t-1", types.SideBuy, types.OrderTypeLimit, 0, 0))
	suite.Require().NoError(err)
	suite.False(result.Success)
	suite.Equal(types.OrderStatusRejected, result.Status)
}

func (suite *PaperBrokerTestSuite) TestPositionsAndHoldings() {
	suite.broker.SetPrice("TEST", 100)
	_, _ = suite.broker.PlaceOrder(suite.ctx, suite.order("a", types.SideBuy, types.OrderTypeLimit, 100, 0))
	suite.broker.SetPrice("TEST", 110)
	_, _ = suite.broker.PlaceOrder(suite.ctx, suite.order("b", types.SideBuy, types.OrderTypeLimit, 110, 0))

	positions, err := suite.broker.GetPositions(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(positions, 1)
	suite.Equal(20.0, positions[0].Quantity)
	suite.Equal(105.0, positions[0].AvgPrice)
	suite.Equal(100.0, positions[0].PnL)

	holdings, err := suite.broker.GetHoldings(suite.ctx)
	suite.Require().NoError(err)
	suite.True(holdings.Success)
	suite.Require().Len(holdings.Holdings, 1)
	suite.Equal("TEST", holdings.Holdings[0].Symbol)

	req := suite.order("c", types.SideSell, types.OrderTypeLimit, 110, 0)
	req.Quantity = 20
	_, _ = suite.broker.PlaceOrder(suite.ctx, req)

	holdings, _ = suite.broker.GetHoldings(suite.ctx)
	suite.Empty(holdings.Holdings)
}

func (suite *PaperBrokerTestSuite) TestQuote() {
	quote, err := suite.broker.GetQuote(suite.ctx, "UNKNOWN")
	suite.Require().NoError(err)
	suite.Require().True(quote.IsSome())

	q := quote.Unwrap()
	suite.InDelta(defaultPaperPrice, q.LTP, defaultPaperPrice*0.01)
	suite.Less(q.Bid, q.Ask)
	suite.Equal(defaultPaperPrice, q.Close)
}

func (suite *PaperBrokerTestSuite) TestStream() {
	ctx, cancel := context.WithTimeout(suite.ctx, time.Second)
	defer cancel()

	seen := map[string]int{}

	for tick, err := range suite.broker.Stream(ctx, []string{"TEST", "TCS"}) {
		suite.Require().NoError(err)
		seen[tick.Symbol]++

		if seen["TEST"] >= 3 && seen["TCS"] >= 3 {
			break
		}
	}

	suite.GreaterOrEqual(seen["TEST"], 3)
	suite.GreaterOrEqual(seen["TCS"], 3)
}

func (suite *PaperBrokerTestSuite) TestFactory() {
	b, err := New(Config{Type: TypePaper}, nil)
	suite.Require().NoError(err)
	suite.IsType(&Paper{}, b)

	_, err = New(Config{Type: TypeBinance}, nil)
	suite.Error(err)

	_, err = New(Config{Type: "zerodha"}, nil)
	suite.Error(err)
}
