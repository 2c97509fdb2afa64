package broker

import (
	"context"
	"iter"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPaperPrice   = 1000.0
	defaultTickInterval = time.Second
	defaultVolatility   = 0.002
	marketSlippage      = 0.002
)

// defaultPaperPrices seeds the simulated market.
var defaultPaperPrices = map[string]float64{
	"RELIANCE":   2450,
	"TCS":        3225,
	"INFY":       1450,
	"HDFCBANK":   1520,
	"ICICIBANK":  880,
	"SBIN":       570,
	"ITC":        420,
	"KOTAKBANK":  1750,
	"BAJFINANCE": 6800,
	"NIFTY 50":   24800,
}

// PaperConfig configures the simulated broker.
type PaperConfig struct {
	Prices       map[string]float64
	TickInterval time.Duration
	// Volatility is the largest fractional move of one random-walk step.
	Volatility float64
	Seed       uint64
}

type paperOrder struct {
	id        string
	request   types.OrderRequest
	status    types.OrderStatus
	filled    optional.Option[float64]
	placedAt  time.Time
	updatedAt time.Time
}

type paperPosition struct {
	quantity float64 // signed
	avgPrice float64
}

// Paper is an in-memory broker for paper trading. Market orders fill at once
// with slippage; limit and stop orders rest until the simulated price crosses.
type Paper struct {
	mu           sync.Mutex
	rng          *rand.Rand
	prices       map[string]float64
	orders       map[string]*paperOrder
	byClientID   map[string]string
	positions    map[string]*paperPosition
	tickInterval time.Duration
	volatility   float64
	now          func() time.Time
	logger       *logger.Logger
}

// NewPaper creates a paper broker.
func NewPaper(config PaperConfig, log *logger.Logger) *Paper {
	if log == nil {
		log = logger.NewNop()
	}

	prices := make(map[string]float64, len(defaultPaperPrices)+len(config.Prices))
	for s, p := range defaultPaperPrices {
		prices[s] = p
	}

	for s, p := range config.Prices {
		prices[s] = p
	}

	if config.TickInterval <= 0 {
		config.TickInterval = defaultTickInterval
	}

	if config.Volatility <= 0 {
		config.Volatility = defaultVolatility
	}

	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	log.Info("Paper broker initialized", zap.Int("symbols", len(prices)))

	return &Paper{
		mu:           sync.Mutex{},
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		prices:       prices,
		orders:       make(map[string]*paperOrder),
		byClientID:   make(map[string]string),
		positions:    make(map[string]*paperPosition),
		tickInterval: config.TickInterval,
		volatility:   config.Volatility,
		now:          time.Now,
		logger:       log.Named("paper"),
	}
}

// PlaceOrder implements Broker.
func (p *Paper) PlaceOrder(_ context.Context, req types.OrderRequest) (types.OrderResult, error) {
	if err := req.Validate(); err != nil {
		return types.OrderResult{Success: false, Status: types.OrderStatusRejected, Error: err.Error()}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byClientID[req.ClientOrderID]; ok {
		return p.resultOf(p.orders[id]), nil
	}

	now := p.now()
	order := &paperOrder{
		id:        "SIM-" + uuid.NewString(),
		request:   req,
		status:    types.OrderStatusOpen,
		filled:    optional.None[float64](),
		placedAt:  now,
		updatedAt: now,
	}
	p.orders[order.id] = order
	p.byClientID[req.ClientOrderID] = order.id

	market := p.priceOf(req.Symbol)

	switch req.OrderType {
	case types.OrderTypeMarket:
		p.fill(order, market*(1+p.uniform(marketSlippage)))
	default:
		p.trigger(order, market)
	}

	p.logger.Info("Order placed",
		zap.String("order_id", order.id),
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("type", string(req.OrderType)),
		zap.Float64("quantity", req.Quantity),
		zap.String("status", string(order.status)),
	)

	return p.resultOf(order), nil
}

// GetOrderStatus implements Broker.
func (p *Paper) GetOrderStatus(_ context.Context, orderID string) (types.OrderStatusReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return types.OrderStatusReport{OrderID: orderID, Status: types.OrderStatusNotFound}, nil
	}

	report := types.OrderStatusReport{
		OrderID:         order.id,
		Status:          order.status,
		FilledPrice:     order.filled.TakeOr(0),
		FilledQuantity:  0,
		PendingQuantity: order.request.Quantity,
		OrderTimestamp:  order.placedAt,
	}

	if order.status == types.OrderStatusFilled {
		report.FilledQuantity, report.PendingQuantity = order.request.Quantity, 0
	}

	return report, nil
}

// CancelOrder implements Broker.
func (p *Paper) CancelOrder(_ context.Context, orderID string) (types.CancelResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return types.CancelResult{Success: false, Status: types.OrderStatusNotFound, Error: "order not found"}, nil
	}

	if order.status.IsTerminal() {
		return types.CancelResult{Success: false, Status: order.status, Error: "order is " + string(order.status)}, nil
	}

	order.status = types.OrderStatusCancelled
	order.updatedAt = p.now()

	p.logger.Info("Order cancelled", zap.String("order_id", orderID))

	return types.CancelResult{Success: true, Status: types.OrderStatusCancelled}, nil
}

// GetQuote implements Broker. Each call advances the symbol's random walk.
func (p *Paper) GetQuote(_ context.Context, symbol string) (optional.Option[types.Quote], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	base := p.priceOf(symbol)
	ltp := p.step(symbol)

	return optional.Some(types.Quote{
		Symbol:    symbol,
		LTP:       round2(ltp),
		Open:      round2(base * 0.995),
		High:      round2(math.Max(base*1.025, ltp)),
		Low:       round2(math.Min(base*0.985, ltp)),
		Close:     round2(base),
		Volume:    float64(10000 + p.rng.IntN(490000)),
		Bid:       round2(ltp * 0.999),
		Ask:       round2(ltp * 1.001),
		Timestamp: p.now(),
	}), nil
}

// GetPositions implements Broker.
func (p *Paper) GetPositions(_ context.Context) ([]types.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	positions := make([]types.Position, 0, len(p.positions))

	for _, symbol := range p.positionSymbols() {
		pos := p.positions[symbol]
		side := types.SideBuy

		if pos.quantity < 0 {
			side = types.SideSell
		}

		current := p.priceOf(symbol)
		positions = append(positions, types.Position{
			Symbol:       symbol,
			Side:         side,
			Quantity:     math.Abs(pos.quantity),
			AvgPrice:     pos.avgPrice,
			CurrentPrice: current,
			PnL:          round2((current - pos.avgPrice) * pos.quantity),
		})
	}

	return positions, nil
}

// GetHoldings implements Broker. Only long positions are holdings.
func (p *Paper) GetHoldings(_ context.Context) (types.Holdings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	holdings := make([]types.Holding, 0)

	for _, symbol := range p.positionSymbols() {
		pos := p.positions[symbol]
		if pos.quantity <= 0 {
			continue
		}

		holdings = append(holdings, types.Holding{
			Symbol:    symbol,
			Quantity:  pos.quantity,
			AvgPrice:  pos.avgPrice,
			LastPrice: p.priceOf(symbol),
		})
	}

	return types.Holdings{Success: true, Holdings: holdings}, nil
}

// Stream implements Broker. Every tick interval each symbol takes one random-walk step.
func (p *Paper) Stream(ctx context.Context, symbols []string) iter.Seq2[types.Tick, error] {
	symbols = slices.Clone(symbols)

	return func(yield func(types.Tick, error) bool) {
		ticker := time.NewTicker(p.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			for _, symbol := range symbols {
				if !yield(p.nextTick(symbol), nil) {
					return
				}
			}
		}
	}
}

// SetPrice moves the simulated market and fills any crossed resting orders.
func (p *Paper) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.move(symbol, price)
}

func (p *Paper) nextTick(symbol string) types.Tick {
	p.mu.Lock()
	defer p.mu.Unlock()

	open := p.priceOf(symbol)
	last := p.step(symbol)

	return types.Tick{
		Symbol:    symbol,
		Timestamp: p.now(),
		Open:      open,
		High:      math.Max(open, last),
		Low:       math.Min(open, last),
		Close:     last,
		Volume:    float64(1 + p.rng.IntN(1000)),
	}
}

// step advances the random walk of symbol. Callers hold p.mu.
func (p *Paper) step(symbol string) float64 {
	next := round2(p.priceOf(symbol) * (1 + p.uniform(p.volatility)))
	p.move(symbol, next)

	return next
}

// move sets the price and works resting orders. Callers hold p.mu.
func (p *Paper) move(symbol string, price float64) {
	p.prices[symbol] = price

	for _, order := range p.orders {
		if order.status == types.OrderStatusOpen && order.request.Symbol == symbol {
			p.trigger(order, price)
		}
	}
}

// trigger fills a resting order when market has crossed its price. Callers hold p.mu.
func (p *Paper) trigger(order *paperOrder, market float64) {
	req := order.request

	switch req.OrderType {
	case types.OrderTypeLimit:
		if (req.Side == types.SideBuy && market <= req.Price) || (req.Side == types.SideSell && market >= req.Price) {
			p.fill(order, req.Price)
		}
	case types.OrderTypeStop:
		if (req.Side == types.SideSell && market <= req.TriggerPrice) || (req.Side == types.SideBuy && market >= req.TriggerPrice) {
			p.fill(order, market)
		}
	case types.OrderTypeMarket:
		p.fill(order, market)
	}
}

// fill marks the order filled and books the position. Callers hold p.mu.
func (p *Paper) fill(order *paperOrder, price float64) {
	price = round2(price)
	order.status = types.OrderStatusFilled
	order.filled = optional.Some(price)
	order.updatedAt = p.now()

	pos, ok := p.positions[order.request.Symbol]
	if !ok {
		pos = &paperPosition{quantity: 0, avgPrice: 0}
		p.positions[order.request.Symbol] = pos
	}

	delta := order.request.Quantity * order.request.Side.Sign()
	next := pos.quantity + delta

	switch {
	case next == 0:
		pos.avgPrice = 0
	case pos.quantity == 0 || math.Signbit(pos.quantity) != math.Signbit(next):
		pos.avgPrice = price
	case math.Signbit(pos.quantity) == math.Signbit(delta):
		total := decimal.NewFromFloat(pos.quantity).Mul(decimal.NewFromFloat(pos.avgPrice)).
			Add(decimal.NewFromFloat(delta).Mul(decimal.NewFromFloat(price)))
		pos.avgPrice = total.Div(decimal.NewFromFloat(next)).Round(4).InexactFloat64()
	}

	pos.quantity = next
}

func (p *Paper) resultOf(order *paperOrder) types.OrderResult {
	return types.OrderResult{
		Success:     true,
		OrderID:     order.id,
		Status:      order.status,
		FilledPrice: order.filled,
		Error:       "",
	}
}

func (p *Paper) priceOf(symbol string) float64 {
	if price, ok := p.prices[symbol]; ok {
		return price
	}

	return defaultPaperPrice
}

func (p *Paper) positionSymbols() []string {
	symbols := make([]string, 0, len(p.positions))
	for s := range p.positions {
		symbols = append(symbols, s)
	}

	slices.Sort(symbols)

	return symbols
}

// uniform returns a value in [-width, width).
func (p *Paper) uniform(width float64) float64 {
	return (p.rng.Float64()*2 - 1) * width
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
