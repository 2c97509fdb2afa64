// Package monitor watches ACTIVE trades whose exit levels are not held by
// broker-side orders and exits them at market when a level is crossed.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/broker"
	"github.com/rxtech-lab/argo-algo/internal/ledger"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/marketdata"
	"github.com/rxtech-lab/argo-algo/internal/settlement"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"go.uber.org/zap"
)

const Name = "monitor"

const exitSuffix = "-EXIT"

// Exit reasons.
const (
	ReasonStopLoss = "STOP_LOSS"
	ReasonTarget   = "TARGET"
)

// Config holds the monitor cadence.
type Config struct {
	Interval time.Duration
	// QuoteRetries is the number of extra quote attempts when the cache has no price.
	QuoteRetries uint64
	// QuoteBackoff is the fixed wait between quote attempts.
	QuoteBackoff time.Duration
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     time.Second,
		QuoteRetries: 2,
		QuoteBackoff: 200 * time.Millisecond,
	}
}

// Monitor is the SL/Target worker.
type Monitor struct {
	broker  broker.Broker
	ledger  *ledger.Ledger
	cache   *marketdata.TickCache
	settler *settlement.Settler
	config  Config

	mu        sync.Mutex
	monitored map[string]struct{}

	exits  atomic.Int64
	now    func() time.Time
	logger *logger.Logger
}

// New creates a monitor.
func New(
	b broker.Broker,
	l *ledger.Ledger,
	cache *marketdata.TickCache,
	settler *settlement.Settler,
	config Config,
	log *logger.Logger,
) *Monitor {
	if log == nil {
		log = logger.NewNop()
	}

	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}

	if config.QuoteBackoff <= 0 {
		config.QuoteBackoff = DefaultConfig().QuoteBackoff
	}

	return &Monitor{
		broker:    b,
		ledger:    l,
		cache:     cache,
		settler:   settler,
		config:    config,
		mu:        sync.Mutex{},
		monitored: make(map[string]struct{}),
		exits:     atomic.Int64{},
		now:       time.Now,
		logger:    log.Named(Name),
	}
}

// WithClock replaces the wall clock.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now

	return m
}

// Name implements the controller worker contract.
func (m *Monitor) Name() string {
	return Name
}

// Monitored returns the number of trades currently watched.
func (m *Monitor) Monitored() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.monitored)
}

// Exits returns the number of exits confirmed by this monitor.
func (m *Monitor) Exits() int64 {
	return m.exits.Load()
}

// Run checks every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.logger.Info("SL/Target monitor started", zap.Duration("interval", m.config.Interval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("SL/Target monitor stopped")

			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one monitoring cycle and returns the number of trades exited.
func (m *Monitor) Check(ctx context.Context) int {
	m.settler.RetryUnsettled(ctx)

	trades, err := m.ledger.Monitorable(ctx)
	if err != nil {
		m.logger.Error("Monitored trades unavailable", zap.Error(err))

		return 0
	}

	m.refresh(trades)

	exited := 0

	for _, trade := range trades {
		price := m.price(ctx, trade.WatchSymbol())
		if price.IsNone() {
			m.logger.Debug("No price for watched symbol",
				zap.String("trade_id", trade.ID),
				zap.String("symbol", trade.WatchSymbol()),
			)

			continue
		}

		reason, hit := Breached(trade, price.Unwrap())
		if !hit {
			continue
		}

		m.logger.Info("Exit level crossed",
			zap.String("trade_id", trade.ID),
			zap.String("symbol", trade.WatchSymbol()),
			zap.String("reason", reason),
			zap.Float64("price", price.Unwrap()),
		)

		if m.exit(ctx, trade) {
			exited++
		}
	}

	return exited
}

// Breached compares the watched price with the trade's exit levels. A level
// already covered by a resting broker leg is left to that leg.
func Breached(trade types.Trade, price float64) (string, bool) {
	below := trade.ExitsBelow()

	if trade.StopLoss.IsSome() && trade.StopOrderID == "" {
		stop := trade.StopLoss.Unwrap()
		if (below && price <= stop) || (!below && price >= stop) {
			return ReasonStopLoss, true
		}
	}

	if trade.Target.IsSome() && trade.TargetOrderID == "" {
		target := trade.Target.Unwrap()
		if (below && price >= target) || (!below && price <= target) {
			return ReasonTarget, true
		}
	}

	return "", false
}

// exit submits the market exit and settles the trade on broker confirmation.
func (m *Monitor) exit(ctx context.Context, trade types.Trade) bool {
	current, ok, err := m.settler.Claim(ctx, trade.ID)
	if err != nil || !ok {
		return false
	}

	if current.Status != types.TradeStatusActive {
		m.settler.Release(trade.ID)
		m.forget(trade.ID)

		return false
	}

	if !m.cancelLegs(ctx, current) {
		m.settler.Release(trade.ID)

		return false
	}

	result, err := m.broker.PlaceOrder(ctx, types.OrderRequest{
		ClientOrderID: current.ID + exitSuffix,
		Symbol:        current.Symbol,
		Side:          current.Side.Opposite(),
		Quantity:      current.Quantity,
		Price:         0,
		TriggerPrice:  0,
		OrderType:     types.OrderTypeMarket,
	})
	if err != nil || !result.Success {
		m.settler.Release(trade.ID)
		m.logger.Error("Exit order failed",
			zap.String("trade_id", trade.ID),
			zap.String("reason", result.Error),
			zap.Error(err),
		)

		return false
	}

	price := m.fillPrice(ctx, current, result)
	if price.IsNone() {
		m.settler.Release(trade.ID)
		m.logger.Error("Exit fill price unknown", zap.String("trade_id", trade.ID), zap.String("order_id", result.OrderID))

		return false
	}

	// The exit went through at the broker; a failed commit is retried by the settler.
	_, err = m.settler.Settle(ctx, current, price.Unwrap(), m.now())
	m.forget(trade.ID)

	if err != nil {
		return false
	}

	m.exits.Add(1)

	return true
}

// cancelLegs cancels the broker legs still resting for a half-bracketed trade.
// It reports false when a leg could not be cancelled or has already filled; the
// executor settles a filled leg.
func (m *Monitor) cancelLegs(ctx context.Context, trade types.Trade) bool {
	for _, id := range []string{trade.StopOrderID, trade.TargetOrderID} {
		if id == "" {
			continue
		}

		result, err := m.broker.CancelOrder(ctx, id)
		if err != nil {
			m.logger.Warn("Resting leg not cancelled, will retry",
				zap.String("trade_id", trade.ID),
				zap.String("order_id", id),
				zap.Error(err),
			)

			return false
		}

		if !result.Success && result.Status == types.OrderStatusFilled {
			m.logger.Info("Resting leg already filled",
				zap.String("trade_id", trade.ID),
				zap.String("order_id", id),
			)

			return false
		}
	}

	return true
}

// fillPrice prefers the broker fill, then the order status, then the traded
// symbol's latest price.
func (m *Monitor) fillPrice(ctx context.Context, trade types.Trade, result types.OrderResult) optional.Option[float64] {
	if result.FilledPrice.IsSome() {
		return result.FilledPrice
	}

	report, err := m.broker.GetOrderStatus(ctx, result.OrderID)
	if err == nil && report.Status == types.OrderStatusFilled && report.FilledPrice > 0 {
		return optional.Some(report.FilledPrice)
	}

	return m.price(ctx, trade.Symbol)
}

// price returns the cached price of symbol, falling back to a broker quote.
func (m *Monitor) price(ctx context.Context, symbol string) optional.Option[float64] {
	if cached := m.cache.LatestPrice(symbol); cached.IsSome() {
		return cached
	}

	var quote optional.Option[types.Quote]

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.config.QuoteBackoff), m.config.QuoteRetries),
		ctx,
	)

	err := backoff.Retry(func() error {
		q, err := m.broker.GetQuote(ctx, symbol)
		if err != nil {
			return err
		}

		if q.IsNone() {
			return backoff.Permanent(errors.Newf(errors.ErrCodeQuoteUnavailable, "no quote for %s", symbol))
		}

		quote = q

		return nil
	}, policy)
	if err != nil || quote.IsNone() {
		return optional.None[float64]()
	}

	return optional.Some(quote.Unwrap().LTP)
}

// refresh replaces the watched set with trades and logs the new entries.
func (m *Monitor) refresh(trades []types.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string]struct{}, len(trades))

	for _, trade := range trades {
		current[trade.ID] = struct{}{}

		if _, ok := m.monitored[trade.ID]; !ok {
			m.logger.Info("Monitoring trade",
				zap.String("trade_id", trade.ID),
				zap.String("watch_symbol", trade.WatchSymbol()),
			)
		}
	}

	m.monitored = current
}

// forget removes a trade from the watched set at confirmed exit.
func (m *Monitor) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.monitored, id)
}
