// Package settlement closes trades: it guards exits with per-trade claims,
// commits the EXITED transition with the realized P&L and notifies listeners.
package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/ledger"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/pnl"
	"github.com/rxtech-lab/argo-algo/internal/strategy"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"go.uber.org/zap"
)

// Handler is called once for every exited trade.
type Handler func(ctx context.Context, trade types.Trade)

type exitFill struct {
	trade types.Trade
	price float64
	at    time.Time
}

// Settler is shared by every worker that may exit a trade.
type Settler struct {
	ledger   *ledger.Ledger
	registry *strategy.Registry
	calc     *pnl.Calculator

	mu        sync.Mutex
	claims    map[string]struct{}
	unsettled map[string]exitFill
	handlers  []Handler
	logger    *logger.Logger
}

// New creates a settler.
func New(l *ledger.Ledger, registry *strategy.Registry, calc *pnl.Calculator, log *logger.Logger) *Settler {
	if log == nil {
		log = logger.NewNop()
	}

	if calc == nil {
		calc = pnl.NewCalculator(nil)
	}

	return &Settler{
		ledger:    l,
		registry:  registry,
		calc:      calc,
		mu:        sync.Mutex{},
		claims:    make(map[string]struct{}),
		unsettled: make(map[string]exitFill),
		handlers:  nil,
		logger:    log.Named("settlement"),
	}
}

// OnExit registers a handler for exited trades.
func (s *Settler) OnExit(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = append(s.handlers, h)
}

// Claim reserves trade id for an exit or cancellation and returns its current
// ledger state. ok is false when another worker holds the claim or the trade
// no longer holds a position.
func (s *Settler) Claim(ctx context.Context, id string) (trade types.Trade, ok bool, err error) {
	s.mu.Lock()
	if _, held := s.claims[id]; held {
		s.mu.Unlock()

		return types.Trade{}, false, nil
	}

	s.claims[id] = struct{}{}
	s.mu.Unlock()

	current, err := s.ledger.Get(ctx, id)
	if err != nil {
		s.Release(id)

		return types.Trade{}, false, err
	}

	if current.IsNone() {
		s.Release(id)

		return types.Trade{}, false, errors.Newf(errors.ErrCodeDataNotFound, "trade %s not found", id)
	}

	return current.Unwrap(), true, nil
}

// Release gives a claim back without settling.
func (s *Settler) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, pending := s.unsettled[id]; pending {
		return
	}

	delete(s.claims, id)
}

// Settle commits the exit of a claimed ACTIVE trade. When the ledger write
// fails the exit fill is kept, the claim stays held and RetryUnsettled
// commits it later; the broker exit is never resubmitted.
func (s *Settler) Settle(ctx context.Context, trade types.Trade, exitPrice float64, at time.Time) (types.Trade, error) {
	realized := s.calc.Realized(trade.Side, trade.EntryPrice(), exitPrice, trade.Quantity)

	if err := s.ledger.MarkExited(ctx, trade.ID, exitPrice, realized, at); err != nil {
		if errors.IsInvalidTransition(err) {
			s.forget(trade.ID)

			return trade, err
		}

		s.mu.Lock()
		s.unsettled[trade.ID] = exitFill{trade: trade, price: exitPrice, at: at}
		s.mu.Unlock()

		s.logger.Error("Exit fill not committed, will retry",
			zap.String("trade_id", trade.ID),
			zap.Float64("exit_price", exitPrice),
			zap.Error(err),
		)

		return trade, err
	}

	s.forget(trade.ID)

	trade.Status = types.TradeStatusExited
	trade.ExitPrice = optional.Some(exitPrice)
	trade.ExitTimestamp = optional.Some(at.UTC())
	trade.PnL = optional.Some(realized)

	s.logger.Info("Trade exited",
		zap.String("trade_id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.String("strategy", trade.Strategy),
		zap.Float64("entry_price", trade.EntryPrice()),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl", realized),
	)

	// Trades without exit levels were credited when they filled.
	if trade.HasExitLevels() {
		if err := s.registry.UpdatePerformance(trade.Strategy, realized); err != nil {
			s.logger.Debug("No strategy to credit", zap.String("strategy", trade.Strategy))
		}
	}

	s.registry.NotifyTradeComplete(ctx, trade)

	s.mu.Lock()
	handlers := append([]Handler(nil), s.handlers...)
	s.mu.Unlock()

	for _, h := range handlers {
		h(ctx, trade)
	}

	return trade, nil
}

// RetryUnsettled re-commits exits whose ledger write failed. It returns the
// number still outstanding.
func (s *Settler) RetryUnsettled(ctx context.Context) int {
	s.mu.Lock()
	fills := make([]exitFill, 0, len(s.unsettled))

	for _, f := range s.unsettled {
		fills = append(fills, f)
	}
	s.mu.Unlock()

	for _, f := range fills {
		_, _ = s.Settle(ctx, f.trade, f.price, f.at)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.unsettled)
}

// Claimed reports whether id is currently claimed.
func (s *Settler) Claimed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.claims[id]

	return ok
}

func (s *Settler) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.unsettled, id)
	delete(s.claims, id)
}
