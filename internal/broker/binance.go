package broker

import (
	"context"
	stderrors "errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/cenkalti/backoff/v4"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"go.uber.org/zap"
)

const (
	// BinanceDecimalPrecision is the fallback quantity precision. Symbol-specific
	// LOT_SIZE filters are not consulted.
	BinanceDecimalPrecision = 8

	defaultKlineInterval = "1m"
	readRetries          = 3
)

// Service interfaces for mocking the Binance API

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	StopPrice(price string) CreateOrderService
	TimeInForce(tif binance.TimeInForceType) CreateOrderService
	NewClientOrderID(id string) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// GetOrderService interface for querying one order.
type GetOrderService interface {
	Symbol(symbol string) GetOrderService
	OrderID(orderID int64) GetOrderService
	Do(ctx context.Context) (*binance.Order, error)
}

// CancelOrderService interface for canceling orders.
type CancelOrderService interface {
	Symbol(symbol string) CancelOrderService
	OrderID(orderID int64) CancelOrderService
	Do(ctx context.Context) (*binance.CancelOrderResponse, error)
}

// PriceChangeStatsService interface for 24h ticker statistics.
type PriceChangeStatsService interface {
	Symbol(symbol string) PriceChangeStatsService
	Do(ctx context.Context) ([]*binance.PriceChangeStats, error)
}

// GetAccountService interface for getting account info.
type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

// BinanceClient interface abstracts the Binance client for testing.
type BinanceClient interface {
	NewCreateOrderService() CreateOrderService
	NewGetOrderService() GetOrderService
	NewCancelOrderService() CancelOrderService
	NewPriceChangeStatsService() PriceChangeStatsService
	NewGetAccountService() GetAccountService
}

// realBinanceClient wraps the actual binance.Client.
type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceClient) NewGetOrderService() GetOrderService {
	return &realGetOrderService{service: r.client.NewGetOrderService()}
}

func (r *realBinanceClient) NewCancelOrderService() CancelOrderService {
	return &realCancelOrderService{service: r.client.NewCancelOrderService()}
}

func (r *realBinanceClient) NewPriceChangeStatsService() PriceChangeStatsService {
	return &realPriceChangeStatsService{service: r.client.NewListPriceChangeStatsService()}
}

func (r *realBinanceClient) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

// Real service wrappers

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) StopPrice(price string) CreateOrderService {
	s.service = s.service.StopPrice(price)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) NewClientOrderID(id string) CreateOrderService {
	s.service = s.service.NewClientOrderID(id)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realGetOrderService struct {
	service *binance.GetOrderService
}

func (s *realGetOrderService) Symbol(symbol string) GetOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realGetOrderService) OrderID(orderID int64) GetOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realGetOrderService) Do(ctx context.Context) (*binance.Order, error) {
	return s.service.Do(ctx)
}

type realCancelOrderService struct {
	service *binance.CancelOrderService
}

func (s *realCancelOrderService) Symbol(symbol string) CancelOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCancelOrderService) OrderID(orderID int64) CancelOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realCancelOrderService) Do(ctx context.Context) (*binance.CancelOrderResponse, error) {
	return s.service.Do(ctx)
}

type realPriceChangeStatsService struct {
	service *binance.ListPriceChangeStatsService
}

func (s *realPriceChangeStatsService) Symbol(symbol string) PriceChangeStatsService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realPriceChangeStatsService) Do(ctx context.Context) ([]*binance.PriceChangeStats, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

// Binance implements Broker against the Binance spot API. Order ids are
// encoded as "SYMBOL:venueID" because the venue needs both to look an order up.
type Binance struct {
	client           BinanceClient
	ws               BinanceWebSocketService
	klineInterval    string
	decimalPrecision int
	logger           *logger.Logger
}

// NewBinance creates a Binance broker. BaseURL, when set, takes precedence over testnet.
func NewBinance(config Config, useTestnet bool, log *logger.Logger) *Binance {
	if useTestnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(config.APIKey, config.SecretKey)
	if config.BaseURL != "" {
		client.BaseURL = config.BaseURL
	}

	b := newBinanceWithClient(&realBinanceClient{client: client}, &realBinanceWebSocketService{}, log)
	if config.KlineInterval != "" {
		b.klineInterval = config.KlineInterval
	}

	return b
}

// newBinanceWithClient creates a Binance broker over custom services.
func newBinanceWithClient(client BinanceClient, ws BinanceWebSocketService, log *logger.Logger) *Binance {
	if log == nil {
		log = logger.NewNop()
	}

	return &Binance{
		client:           client,
		ws:               ws,
		klineInterval:    defaultKlineInterval,
		decimalPrecision: BinanceDecimalPrecision,
		logger:           log.Named("binance"),
	}
}

// PlaceOrder implements Broker. The client order id is forwarded so that the
// venue rejects a duplicate placement.
func (b *Binance) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderResult, error) {
	if err := req.Validate(); err != nil {
		return types.OrderResult{Success: false, Status: types.OrderStatusRejected, Error: err.Error()}, nil
	}

	side := binance.SideTypeBuy
	if req.Side == types.SideSell {
		side = binance.SideTypeSell
	}

	service := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Quantity(strconv.FormatFloat(req.Quantity, 'f', b.decimalPrecision, 64)).
		NewClientOrderID(req.ClientOrderID)

	switch req.OrderType {
	case types.OrderTypeMarket:
		service = service.Type(binance.OrderTypeMarket)
	case types.OrderTypeLimit:
		service = service.Type(binance.OrderTypeLimit).
			Price(strconv.FormatFloat(req.Price, 'f', -1, 64)).
			TimeInForce(binance.TimeInForceTypeGTC)
	case types.OrderTypeStop:
		service = service.Type(binance.OrderTypeStopLoss).
			StopPrice(strconv.FormatFloat(req.TriggerPrice, 'f', -1, 64))
	}

	response, err := service.Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if stderrors.As(err, &apiErr) {
			b.logger.Warn("Order rejected",
				zap.String("client_order_id", req.ClientOrderID),
				zap.Int64("code", apiErr.Code),
				zap.String("message", apiErr.Message),
			)

			return types.OrderResult{Success: false, Status: types.OrderStatusRejected, Error: apiErr.Message}, nil
		}

		return types.OrderResult{}, errors.Wrap(errors.ErrCodeBrokerUnavailable, "failed to place order on Binance", err)
	}

	result := types.OrderResult{
		Success:     true,
		OrderID:     encodeOrderID(response.Symbol, response.OrderID),
		Status:      mapBinanceOrderStatus(response.Status),
		FilledPrice: optional.None[float64](),
		Error:       "",
	}

	if price := averagePrice(response.CummulativeQuoteQuantity, response.ExecutedQuantity); price > 0 {
		result.FilledPrice = optional.Some(price)
	}

	return result, nil
}

// GetOrderStatus implements Broker.
func (b *Binance) GetOrderStatus(ctx context.Context, orderID string) (types.OrderStatusReport, error) {
	symbol, id, err := decodeOrderID(orderID)
	if err != nil {
		return types.OrderStatusReport{OrderID: orderID, Status: types.OrderStatusNotFound}, nil //nolint:nilerr // malformed ids are unknown orders
	}

	order, err := b.getOrder(ctx, symbol, id)
	if err != nil {
		var apiErr *common.APIError
		if stderrors.As(err, &apiErr) {
			return types.OrderStatusReport{OrderID: orderID, Status: types.OrderStatusNotFound}, nil
		}

		return types.OrderStatusReport{}, errors.Wrap(errors.ErrCodeBrokerUnavailable, "failed to get order from Binance", err)
	}

	executed := parseFloat(order.ExecutedQuantity)

	return types.OrderStatusReport{
		OrderID:         orderID,
		Status:          mapBinanceOrderStatus(order.Status),
		FilledPrice:     averagePrice(order.CummulativeQuoteQuantity, order.ExecutedQuantity),
		FilledQuantity:  executed,
		PendingQuantity: parseFloat(order.OrigQuantity) - executed,
		OrderTimestamp:  time.UnixMilli(order.Time).UTC(),
	}, nil
}

// CancelOrder implements Broker. Terminal orders are reported, not cancelled.
func (b *Binance) CancelOrder(ctx context.Context, orderID string) (types.CancelResult, error) {
	report, err := b.GetOrderStatus(ctx, orderID)
	if err != nil {
		return types.CancelResult{}, err
	}

	if report.Status == types.OrderStatusNotFound || report.Status.IsTerminal() {
		return types.CancelResult{Success: false, Status: report.Status, Error: "order is " + string(report.Status)}, nil
	}

	symbol, id, _ := decodeOrderID(orderID)

	response, err := b.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if stderrors.As(err, &apiErr) {
			return types.CancelResult{Success: false, Status: report.Status, Error: apiErr.Message}, nil
		}

		return types.CancelResult{}, errors.Wrap(errors.ErrCodeBrokerUnavailable, "failed to cancel order on Binance", err)
	}

	b.logger.Info("Order cancelled", zap.String("order_id", orderID))

	return types.CancelResult{Success: true, Status: mapBinanceOrderStatus(response.Status), Error: ""}, nil
}

// GetQuote implements Broker using 24h ticker statistics.
func (b *Binance) GetQuote(ctx context.Context, symbol string) (optional.Option[types.Quote], error) {
	stats, err := retryRead(ctx, func() ([]*binance.PriceChangeStats, error) {
		return b.client.NewPriceChangeStatsService().Symbol(symbol).Do(ctx)
	})
	if err != nil {
		var apiErr *common.APIError
		if stderrors.As(err, &apiErr) {
			return optional.None[types.Quote](), nil
		}

		return optional.None[types.Quote](), errors.Wrapf(errors.ErrCodeQuoteUnavailable, err, "quote for %s", symbol)
	}

	if len(stats) == 0 || stats[0] == nil {
		return optional.None[types.Quote](), nil
	}

	s := stats[0]

	return optional.Some(types.Quote{
		Symbol:    symbol,
		LTP:       parseFloat(s.LastPrice),
		Open:      parseFloat(s.OpenPrice),
		High:      parseFloat(s.HighPrice),
		Low:       parseFloat(s.LowPrice),
		Close:     parseFloat(s.PrevClosePrice),
		Volume:    parseFloat(s.Volume),
		Bid:       parseFloat(s.BidPrice),
		Ask:       parseFloat(s.AskPrice),
		Timestamp: time.UnixMilli(s.CloseTime).UTC(),
	}), nil
}

// GetPositions implements Broker. Spot balances are reported as long positions.
func (b *Binance) GetPositions(ctx context.Context) ([]types.Position, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBrokerUnavailable, "failed to get account info from Binance", err)
	}

	positions := make([]types.Position, 0)

	for _, balance := range account.Balances {
		total := parseFloat(balance.Free) + parseFloat(balance.Locked)
		if total <= 0 {
			continue
		}

		positions = append(positions, types.Position{
			Symbol:       balance.Asset,
			Side:         types.SideBuy,
			Quantity:     total,
			AvgPrice:     0,
			CurrentPrice: 0,
			PnL:          0,
		})
	}

	return positions, nil
}

// GetHoldings implements Broker.
func (b *Binance) GetHoldings(ctx context.Context) (types.Holdings, error) {
	positions, err := b.GetPositions(ctx)
	if err != nil {
		return types.Holdings{Success: false}, err
	}

	holdings := make([]types.Holding, 0, len(positions))
	for _, p := range positions {
		holdings = append(holdings, types.Holding{Symbol: p.Symbol, Quantity: p.Quantity, AvgPrice: 0, LastPrice: 0})
	}

	return types.Holdings{Success: true, Holdings: holdings}, nil
}

// Stream implements Broker over kline websockets.
func (b *Binance) Stream(ctx context.Context, symbols []string) iter.Seq2[types.Tick, error] {
	return b.streamKlines(ctx, symbols, b.klineInterval)
}

func (b *Binance) getOrder(ctx context.Context, symbol string, id int64) (*binance.Order, error) {
	return retryRead(ctx, func() (*binance.Order, error) {
		return b.client.NewGetOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	})
}

// retryRead retries idempotent reads on transport failures. API errors are permanent.
func retryRead[T any](ctx context.Context, read func() (T, error)) (T, error) {
	var result T

	operation := func() error {
		var err error

		result, err = read()
		if err == nil {
			return nil
		}

		var apiErr *common.APIError
		if stderrors.As(err, &apiErr) {
			return backoff.Permanent(err)
		}

		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), readRetries), ctx)
	err := backoff.Retry(operation, policy)

	return result, err
}

func mapBinanceOrderStatus(status binance.OrderStatusType) types.OrderStatus {
	switch status {
	case binance.OrderStatusTypeNew, binance.OrderStatusTypePartiallyFilled, binance.OrderStatusTypePendingCancel:
		return types.OrderStatusOpen
	case binance.OrderStatusTypeFilled:
		return types.OrderStatusFilled
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		return types.OrderStatusCancelled
	case binance.OrderStatusTypeRejected:
		return types.OrderStatusRejected
	default:
		return types.OrderStatusPending
	}
}

func encodeOrderID(symbol string, id int64) string {
	return fmt.Sprintf("%s:%d", symbol, id)
}

func decodeOrderID(orderID string) (string, int64, error) {
	symbol, raw, ok := strings.Cut(orderID, ":")
	if !ok || symbol == "" {
		return "", 0, errors.Newf(errors.ErrCodeInvalidParameter, "malformed order id: %s", orderID)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", 0, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "malformed order id: %s", orderID)
	}

	return symbol, id, nil
}

func averagePrice(quote, executed string) float64 {
	qty := parseFloat(executed)
	if qty <= 0 {
		return 0
	}

	return parseFloat(quote) / qty
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)

	return v
}
