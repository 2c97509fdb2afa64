package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/stretchr/testify/suite"
)

// mockBinanceClient implements BinanceClient for testing
type mockBinanceClient struct {
	createOrderService *mockCreateOrderService
	getOrderService    *mockGetOrderService
	cancelOrderService *mockCancelOrderService
	statsService       *mockPriceChangeStatsService
	accountService     *mockGetAccountService
}

func newMockBinanceClient() *mockBinanceClient {
	return &mockBinanceClient{
		createOrderService: &mockCreateOrderService{},
		getOrderService:    &mockGetOrderService{},
		cancelOrderService: &mockCancelOrderService{},
		statsService:       &mockPriceChangeStatsService{},
		accountService:     &mockGetAccountService{},
	}
}

func (m *mockBinanceClient) NewCreateOrderService() CreateOrderService { return m.createOrderService }

func (m *mockBinanceClient) NewGetOrderService() GetOrderService { return m.getOrderService }

func (m *mockBinanceClient) NewCancelOrderService() CancelOrderService { return m.cancelOrderService }

func (m *mockBinanceClient) NewPriceChangeStatsService() PriceChangeStatsService {
	return m.statsService
}

func (m *mockBinanceClient) NewGetAccountService() GetAccountService { return m.accountService }

type mockCreateOrderService struct {
	response      *binance.CreateOrderResponse
	err           error
	symbol        string
	side          binance.SideType
	orderType     binance.OrderType
	quantity      string
	price         string
	stopPrice     string
	tif           binance.TimeInForceType
	clientOrderID string
}

func (m *mockCreateOrderService) Symbol(symbol string) CreateOrderService {
	m.symbol = symbol
	return m
}

func (m *mockCreateOrderService) Side(side binance.SideType) CreateOrderService {
	m.side = side
	return m
}

func (m *mockCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	m.orderType = orderType
	return m
}

func (m *mockCreateOrderService) Quantity(quantity string) CreateOrderService {
	m.quantity = quantity
	return m
}

func (m *mockCreateOrderService) Price(price string) CreateOrderService {
	m.price = price
	return m
}

func (m *mockCreateOrderService) StopPrice(price string) CreateOrderService {
	m.stopPrice = price
	return m
}

func (m *mockCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	m.tif = tif
	return m
}

func (m *mockCreateOrderService) NewClientOrderID(id string) CreateOrderService {
	m.clientOrderID = id
	return m
}

func (m *mockCreateOrderService) Do(_ context.Context) (*binance.CreateOrderResponse, error) {
	return m.response, m.err
}

type mockGetOrderService struct {
	order   *binance.Order
	err     error
	symbol  string
	orderID int64
	calls   int
}

func (m *mockGetOrderService) Symbol(symbol string) GetOrderService {
	m.symbol = symbol
	return m
}

func (m *mockGetOrderService) OrderID(orderID int64) GetOrderService {
	m.orderID = orderID
	return m
}

func (m *mockGetOrderService) Do(_ context.Context) (*binance.Order, error) {
	m.calls++
	return m.order, m.err
}

type mockCancelOrderService struct {
	response *binance.CancelOrderResponse
	err      error
	calls    int
}

func (m *mockCancelOrderService) Symbol(_ string) CancelOrderService { return m }

func (m *mockCancelOrderService) OrderID(_ int64) CancelOrderService { return m }

func (m *mockCancelOrderService) Do(_ context.Context) (*binance.CancelOrderResponse, error) {
	m.calls++
	return m.response, m.err
}

type mockPriceChangeStatsService struct {
	stats []*binance.PriceChangeStats
	err   error
}

func (m *mockPriceChangeStatsService) Symbol(_ string) PriceChangeStatsService { return m }

func (m *mockPriceChangeStatsService) Do(_ context.Context) ([]*binance.PriceChangeStats, error) {
	return m.stats, m.err
}

type mockGetAccountService struct {
	account *binance.Account
	err     error
}

func (m *mockGetAccountService) Do(_ context.Context) (*binance.Account, error) {
	return m.account, m.err
}

type BinanceBrokerTestSuite struct {
	suite.Suite
	client *mockBinanceClient
	broker *Binance
	ctx    context.Context
}

func TestBinanceBrokerSuite(t *testing.T) {
	suite.Run(t, new(BinanceBrokerTestSuite))
}

func (suite *BinanceBrokerTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.client = newMockBinanceClient()
	suite.broker = newBinanceWithClient(suite.client, &mockBinanceWebSocketService{}, nil)
}

func (suite *BinanceBrokerTestSuite) TestPlaceMarketOrder() {
	suite.client.createOrderService.response = &binance.CreateOrderResponse{
		Symbol:                   "BTCUSDT",
		OrderID:                  42,
		Status:                   binance.OrderStatusTypeFilled,
		ExecutedQuantity:         "0.5",
		CummulativeQuoteQuantity: "21000",
	}

	result, err := suite.broker.PlaceOrder(suite.ctx, types.OrderRequest{
		ClientOrderID: "trade-1",
		Symbol:        "BTCUSDT",
		Side:          types.SideBuy,
		Quantity:      0.5,
		OrderType:     types.OrderTypeMarket,
	})
	suite.Require().NoError(err)
	suite.True(result.Success)
	suite.Equal("BTCUSDT:42", result.OrderID)
	suite.Equal(types.OrderStatusFilled, result.Status)
	suite.InDelta(42000.0, result.FilledPrice.Unwrap(), 1e-9)

	svc := suite.client.createOrderService
	suite.Equal("trade-1", svc.clientOrderID)
	suite.Equal(binance.OrderTypeMarket, svc.orderType)
	suite.Equal("0.50000000", svc.quantity)
}

func (suite *BinanceBrokerTestSuite) TestPlaceStopAndLimitOrders() {
	suite.client.createOrderService.response = &binance.CreateOrderResponse{Symbol: "BTCUSDT", OrderID: 1, Status: binance.OrderStatusTypeNew}

	result, err := suite.broker.PlaceOrder(suite.ctx, types.OrderRequest{
		ClientOrderID: "trade-1-SL", Symbol: "BTCUSDT", Side: types.SideSell, Quantity: 1,
		TriggerPrice: 39000, OrderType: types.OrderTypeStop,
	})
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusOpen, result.Status)
	suite.True(result.FilledPrice.IsNone())
	suite.Equal(binance.OrderTypeStopLoss, suite.client.createOrderService.orderType)
	suite.Equal("39000", suite.client.createOrderService.stopPrice)

	_, err = suite.broker.PlaceOrder(suite.ctx, types.OrderRequest{
		ClientOrderID: "trade-1-TP", Symbol: "BTCUSDT", Side: types.SideSell, Quantity: 1,
		Price: 45000.5, OrderType: types.OrderTypeLimit,
	})
	suite.Require().NoError(err)
	suite.Equal(binance.OrderTypeLimit, suite.client.createOrderService.orderType)
	suite.Equal("45000.5", suite.client.createOrderService.price)
	suite.Equal(binance.TimeInForceTypeGTC, suite.client.createOrderService.tif)
}

func (suite *BinanceBrokerTestSuite) TestPlaceOrderRejectedVsUnavailable() {
	suite.client.createOrderService.err = &common.APIError{Code: -2010, Message: "Account has insufficient balance"}

	req := types.OrderRequest{ClientOrderID: "t", Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 1, OrderType: types.OrderTypeMarket}

	result, err := suite.broker.PlaceOrder(suite.ctx, req)
	suite.Require().NoError(err)
	suite.False(result.Success)
	suite.Equal(types.OrderStatusRejected, result.Status)
	suite.Contains(result.Error, "insufficient balance")

	suite.client.createOrderService.err = errors.New("connection reset")

	_, err = suite.broker.PlaceOrder(suite.ctx, req)
	suite.Error(err)
}

func (suite *BinanceBrokerTestSuite) TestGetOrderStatus() {
	suite.client.getOrderService.order = &binance.Order{
		Symbol:                   "BTCUSDT",
		OrderID:                  7,
		Status:                   binance.OrderStatusTypePartiallyFilled,
		OrigQuantity:             "2",
		ExecutedQuantity:         "0.5",
		CummulativeQuoteQuantity: "20000",
		Time:                     1704067200000,
	}

	report, err := suite.broker.GetOrderStatus(suite.ctx, "BTCUSDT:7")
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusOpen, report.Status)
	suite.Equal(0.5, report.FilledQuantity)
	suite.Equal(1.5, report.PendingQuantity)
	suite.Equal(40000.0, report.FilledPrice)
	suite.Equal("BTCUSDT", suite.client.getOrderService.symbol)
	suite.Equal(int64(7), suite.client.getOrderService.orderID)

	report, err = suite.broker.GetOrderStatus(suite.ctx, "garbage")
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusNotFound, report.Status)

	suite.client.getOrderService.err = &common.APIError{Code: -2013, Message: "Order does not exist."}
	report, err = suite.broker.GetOrderStatus(suite.ctx, "BTCUSDT:8")
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusNotFound, report.Status)
}

func (suite *BinanceBrokerTestSuite) TestCancelFilledOrderIsNotCancelled() {
	suite.client.getOrderService.order = &binance.Order{Symbol: "BTCUSDT", OrderID: 7, Status: binance.OrderStatusTypeFilled}

	result, err := suite.broker.CancelOrder(suite.ctx, "BTCUSDT:7")
	suite.Require().NoError(err)
	suite.False(result.Success)
	suite.Equal(types.OrderStatusFilled, result.Status)
	suite.Equal(0, suite.client.cancelOrderService.calls)
}

func (suite *BinanceBrokerTestSuite) TestCancelOpenOrder() {
	suite.client.getOrderService.order = &binance.Order{Symbol: "BTCUSDT", OrderID: 7, Status: binance.OrderStatusTypeNew}
	suite.client.cancelOrderService.response = &binance.CancelOrderResponse{Status: binance.OrderStatusTypeCanceled}

	result, err := suite.broker.CancelOrder(suite.ctx, "BTCUSDT:7")
	suite.Require().NoError(err)
	suite.True(result.Success)
	suite.Equal(types.OrderStatusCancelled, result.Status)
	suite.Equal(1, suite.client.cancelOrderService.calls)
}

func (suite *BinanceBrokerTestSuite) TestGetQuote() {
	suite.client.statsService.stats = []*binance.PriceChangeStats{{
		Symbol:         "BTCUSDT",
		LastPrice:      "42000.5",
		OpenPrice:      "41000",
		HighPrice:      "42500",
		LowPrice:       "40800",
		PrevClosePrice: "41000",
		Volume:         "1234.5",
		BidPrice:       "42000",
		AskPrice:       "42001",
		CloseTime:      1704067200000,
	}}

	quote, err := suite.broker.GetQuote(suite.ctx, "BTCUSDT")
	suite.Require().NoError(err)
	suite.Require().True(quote.IsSome())
	suite.Equal(42000.5, quote.Unwrap().LTP)
	suite.Equal(42001.0, quote.Unwrap().Ask)

	suite.client.statsService.stats = nil
	quote, err = suite.broker.GetQuote(suite.ctx, "BTCUSDT")
	suite.Require().NoError(err)
	suite.True(quote.IsNone())
}

func (suite *BinanceBrokerTestSuite) TestPositionsFromBalances() {
	suite.client.accountService.account = &binance.Account{Balances: []binance.Balance{
		{Asset: "BTC", Free: "0.5", Locked: "0.25"},
		{Asset: "ETH", Free: "0", Locked: "0"},
	}}

	positions, err := suite.broker.GetPositions(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(positions, 1)
	suite.Equal("BTC", positions[0].Symbol)
	suite.Equal(0.75, positions[0].Quantity)

	holdings, err := suite.broker.GetHoldings(suite.ctx)
	suite.Require().NoError(err)
	suite.Len(holdings.Holdings, 1)
}

func (suite *BinanceBrokerTestSuite) TestMapBinanceOrderStatus() {
	tests := []struct {
		status   binance.OrderStatusType
		expected types.OrderStatus
	}{
		{binance.OrderStatusTypeNew, types.OrderStatusOpen},
		{binance.OrderStatusTypePartiallyFilled, types.OrderStatusOpen},
		{binance.OrderStatusTypeFilled, types.OrderStatusFilled},
		{binance.OrderStatusTypeCanceled, types.OrderStatusCancelled},
		{binance.OrderStatusTypeExpired, types.OrderStatusCancelled},
		{binance.OrderStatusTypeRejected, types.OrderStatusRejected},
	}

	for _, tc := range tests {
		suite.Run(string(tc.status), func() {
			suite.Equal(tc.expected, mapBinanceOrderStatus(tc.status))
		})
	}
}

// mockBinanceWebSocketService implements BinanceWebSocketService for testing.
type mockBinanceWebSocketService struct {
	events     []*BinanceWsKlineEvent
	errors     []error
	startError error
	eventDelay time.Duration
}

func (m *mockBinanceWebSocketService) WsKlineServe(
	symbol string,
	interval string,
	handler WsKlineHandler,
	errHandler WsErrorHandler,
) (doneC chan struct{}, stopC chan struct{}, err error) {
	if m.startError != nil {
		return nil, nil, m.startError
	}

	doneC = make(chan struct{})
	stopC = make(chan struct{})

	go func() {
		defer close(doneC)

		for _, event := range m.events {
			select {
			case <-stopC:
				return
			default:
				if m.eventDelay > 0 {
					time.Sleep(m.eventDelay)
				}
				handler(event)
			}
		}

		for _, err := range m.errors {
			errHandler(err)
		}

		select {
		case <-stopC:
		case <-time.After(5 * time.Second):
		}
	}()

	return doneC, stopC, nil
}

func (suite *BinanceBrokerTestSuite) streamBroker(ws *mockBinanceWebSocketService) *Binance {
	return newBinanceWithClient(newMockBinanceClient(), ws, nil)
}

func (suite *BinanceBrokerTestSuite) TestStreamKlines() {
	ws := &mockBinanceWebSocketService{events: []*BinanceWsKlineEvent{
		{Symbol: "BTCUSDT", Kline: BinanceWsKline{StartTime: 1704067200000, Open: "42000.50", High: "42500", Low: "41800", Close: "42300", Volume: "10", IsFinal: false}},
		{Symbol: "BTCUSDT", Kline: BinanceWsKline{StartTime: 1704067200000, Open: "42000.50", High: "42600", Low: "41800", Close: "42550", Volume: "12.5", IsFinal: true}},
	}}

	ctx, cancel := context.WithTimeout(suite.ctx, 200*time.Millisecond)
	defer cancel()

	var ticks []types.Tick

	for tick, err := range suite.streamBroker(ws).Stream(ctx, []string{"BTCUSDT"}) {
		if err != nil {
			break
		}

		ticks = append(ticks, tick)
	}

	suite.Require().Len(ticks, 2)
	suite.Equal(0.0, ticks[0].Volume)
	suite.Equal(12.5, ticks[1].Volume)
	suite.InDelta(42550.0, ticks[1].Close, 0.01)
	suite.Equal(time.UnixMilli(1704067200000).UTC(), ticks[1].Timestamp)
}

func (suite *BinanceBrokerTestSuite) TestStreamErrors() {
	tests := []struct {
		name     string
		ws       *mockBinanceWebSocketService
		symbols  []string
		interval string
		contains string
	}{
		{"invalid interval", &mockBinanceWebSocketService{}, []string{"BTCUSDT"}, "2m", "invalid interval"},
		{"no symbols", &mockBinanceWebSocketService{}, nil, "1m", "no symbols provided"},
		{"start failure", &mockBinanceWebSocketService{startError: errors.New("connection refused")}, []string{"BTCUSDT"}, "1m", "connection refused"},
		{"websocket failure", &mockBinanceWebSocketService{errors: []error{errors.New("websocket disconnected")}}, []string{"BTCUSDT"}, "1m", "websocket error"},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			ctx, cancel := context.WithTimeout(suite.ctx, 200*time.Millisecond)
			defer cancel()

			var got error

			for _, err := range suite.streamBroker(tc.ws).streamKlines(ctx, tc.symbols, tc.interval) {
				if err != nil {
					got = err
					break
				}
			}

			suite.Require().Error(got)
			suite.Contains(got.Error(), tc.contains)
		})
	}
}
