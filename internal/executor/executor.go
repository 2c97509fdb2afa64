// Package executor turns signals into ledger trades and broker orders and
// drives every trade through its lifecycle until a terminal state.
package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/broker"
	"github.com/rxtech-lab/argo-algo/internal/ledger"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/queue"
	"github.com/rxtech-lab/argo-algo/internal/settlement"
	"github.com/rxtech-lab/argo-algo/internal/strategy"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const Name = "executor"

const (
	stopLegSuffix   = "-SL"
	targetLegSuffix = "-TP"
	exitSuffix      = "-EXIT"
)

// Config holds the executor cadence.
type Config struct {
	// Interval is the reconciliation cadence.
	Interval time.Duration
	// PollTimeout bounds a single wait on the signal queue.
	PollTimeout time.Duration
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Second,
		PollTimeout: 100 * time.Millisecond,
	}
}

// Gate decides whether a new entry may be opened.
type Gate interface {
	AllowEntry(ctx context.Context) (bool, string)
}

type bracket struct {
	stopID   string
	targetID string
}

// Executor consumes the signal queue. The pending map and the bracket map are
// the only in-memory state; the ledger is the source of truth and both maps
// are rebuilt from it by Recover.
type Executor struct {
	broker   broker.Broker
	ledger   *ledger.Ledger
	registry *strategy.Registry
	settler  *settlement.Settler
	signals  *queue.Queue[types.Signal]
	gate     Gate
	config   Config

	mu       sync.Mutex
	pending  map[string]string
	brackets map[string]bracket

	processed atomic.Int64
	now       func() time.Time
	logger    *logger.Logger
}

// New creates an executor.
func New(
	b broker.Broker,
	l *ledger.Ledger,
	registry *strategy.Registry,
	settler *settlement.Settler,
	signals *queue.Queue[types.Signal],
	config Config,
	log *logger.Logger,
) *Executor {
	if log == nil {
		log = logger.NewNop()
	}

	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}

	if config.PollTimeout <= 0 {
		config.PollTimeout = defaults.PollTimeout
	}

	return &Executor{
		broker:    b,
		ledger:    l,
		registry:  registry,
		settler:   settler,
		signals:   signals,
		gate:      nil,
		config:    config,
		mu:        sync.Mutex{},
		pending:   make(map[string]string),
		brackets:  make(map[string]bracket),
		processed: atomic.Int64{},
		now:       time.Now,
		logger:    log.Named(Name),
	}
}

// WithGate installs the entry gate consulted before every new trade.
func (e *Executor) WithGate(g Gate) *Executor {
	e.gate = g

	return e
}

// WithClock replaces the wall clock.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now

	return e
}

// Name implements the controller worker contract.
func (e *Executor) Name() string {
	return Name
}

// Processed returns the number of signals consumed.
func (e *Executor) Processed() int64 {
	return e.processed.Load()
}

// PendingOrders returns a copy of the broker order id to trade id map.
func (e *Executor) PendingOrders() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]string, len(e.pending))
	for k, v := range e.pending {
		out[k] = v
	}

	return out
}

// Run recovers state from the ledger, then consumes signals in FIFO order and
// reconciles open orders every interval until ctx is done.
func (e *Executor) Run(ctx context.Context) error {
	if err := e.Recover(ctx); err != nil {
		e.logger.Error("Recovery failed", zap.Error(err))
	}

	e.logger.Info("Trade executor started", zap.Duration("interval", e.config.Interval))

	last := e.now()

	for {
		if ctx.Err() != nil {
			e.logger.Info("Trade executor stopped")

			return nil
		}

		if signal, ok := e.signals.Next(ctx, e.config.PollTimeout); ok {
			e.processed.Add(1)

			if _, err := e.Process(ctx, signal); err != nil {
				e.logger.Warn("Signal not executed",
					zap.String("signal_id", signal.ID),
					zap.String("symbol", signal.Symbol),
					zap.Error(err),
				)
			}
		}

		if e.now().Sub(last) >= e.config.Interval {
			e.Reconcile(ctx)
			last = e.now()
		}
	}
}

// Process persists a PENDING trade for signal and places its entry order.
// The returned trade reflects the state after placement.
func (e *Executor) Process(ctx context.Context, signal types.Signal) (types.Trade, error) {
	if err := signal.Validate(); err != nil {
		return types.Trade{}, err
	}

	if e.gate != nil {
		if ok, reason := e.gate.AllowEntry(ctx); !ok {
			return types.Trade{}, errors.Newf(errors.ErrCodeRiskLimitExceeded, "entry refused: %s", reason)
		}
	}

	trade := types.Trade{
		ID:               uuid.New().String(),
		Symbol:           signal.Symbol,
		Side:             signal.Action,
		Quantity:         signal.Quantity,
		Price:            signal.Price,
		FilledPrice:      optional.None[float64](),
		Strategy:         signal.StrategyName,
		Status:           types.TradeStatusPending,
		Timestamp:        e.now().UTC(),
		FilledTimestamp:  optional.None[time.Time](),
		OrderID:          "",
		ErrorMessage:     "",
		StopLoss:         signal.Metadata.StopLoss,
		Target:           signal.Metadata.Target,
		UnderlyingSymbol: signal.Metadata.UnderlyingSymbol,
		PnL:              optional.None[float64](),
		ExitPrice:        optional.None[float64](),
		ExitTimestamp:    optional.None[time.Time](),
		StopOrderID:      "",
		TargetOrderID:    "",
	}

	if err := e.ledger.Create(ctx, trade); err != nil {
		return types.Trade{}, err
	}

	e.logger.Info("Trade created",
		zap.String("trade_id", trade.ID),
		zap.String("signal_id", signal.ID),
		zap.String("symbol", trade.Symbol),
		zap.String("side", string(trade.Side)),
		zap.Float64("quantity", trade.Quantity),
		zap.String("strategy", trade.Strategy),
	)

	return e.place(ctx, trade)
}

// place sends the entry order of a PENDING trade. A transport failure leaves
// the trade PENDING without an order id so Reconcile places it again.
func (e *Executor) place(ctx context.Context, trade types.Trade) (types.Trade, error) {
	request := types.OrderRequest{
		ClientOrderID: trade.ID,
		Symbol:        trade.Symbol,
		Side:          trade.Side,
		Quantity:      trade.Quantity,
		Price:         0,
		TriggerPrice:  0,
		OrderType:     types.OrderTypeMarket,
	}

	result, err := e.broker.PlaceOrder(ctx, request)
	if err != nil {
		e.logger.Warn("Entry order not placed, will retry",
			zap.String("trade_id", trade.ID),
			zap.Error(err),
		)

		return trade, err
	}

	if !result.Success {
		if err := e.ledger.MarkRejected(ctx, trade.ID, result.Error); err != nil {
			return trade, err
		}

		trade.Status = types.TradeStatusRejected
		trade.ErrorMessage = result.Error

		e.logger.Warn("Entry order rejected",
			zap.String("trade_id", trade.ID),
			zap.String("reason", result.Error),
		)

		return trade, errors.Newf(errors.ErrCodeOrderRejected, "order rejected: %s", result.Error)
	}

	// Tracked before the ledger write so a failed write still gets reconciled.
	e.track(result.OrderID, trade.ID)

	if err := e.ledger.SetOrderID(ctx, trade.ID, result.OrderID); err != nil {
		return trade, err
	}

	trade.OrderID = result.OrderID

	if result.Status == types.OrderStatusFilled {
		price := result.FilledPrice.TakeOr(trade.Price)

		return e.onEntryFilled(ctx, trade, result.OrderID, price, e.now()), nil
	}

	e.logger.Info("Entry order pending",
		zap.String("trade_id", trade.ID),
		zap.String("order_id", result.OrderID),
		zap.String("status", string(result.Status)),
	)

	return trade, nil
}

// onEntryFilled records the fill at most once and arms exit management.
func (e *Executor) onEntryFilled(ctx context.Context, trade types.Trade, orderID string, price float64, at time.Time) types.Trade {
	if err := e.ledger.MarkFilled(ctx, trade.ID, price, at); err != nil {
		if errors.IsInvalidTransition(err) {
			e.untrack(orderID)
		}

		e.logger.Error("Fill not recorded",
			zap.String("trade_id", trade.ID),
			zap.String("order_id", orderID),
			zap.Error(err),
		)

		return trade
	}

	e.untrack(orderID)

	trade.Status = types.TradeStatusFilled
	trade.FilledPrice = optional.Some(price)
	trade.FilledTimestamp = optional.Some(at.UTC())

	e.logger.Info("Entry filled",
		zap.String("trade_id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.Float64("filled_price", price),
	)

	if !trade.HasExitLevels() {
		// Unmanaged trades are credited with their fill; managed ones on exit.
		if err := e.registry.UpdatePerformance(trade.Strategy, 0); err != nil {
			e.logger.Debug("No strategy to credit", zap.String("strategy", trade.Strategy))
		}

		return trade
	}

	return e.arm(ctx, trade)
}

// arm moves a FILLED trade with exit levels to ACTIVE. Spot trades get a
// broker-side stop and target; derivative trades are left to the monitor.
func (e *Executor) arm(ctx context.Context, trade types.Trade) types.Trade {
	var legs bracket

	if trade.UnderlyingSymbol == "" {
		legs = e.placeBracket(ctx, trade)
	}

	if err := e.ledger.Activate(ctx, trade.ID, legs.stopID, legs.targetID); err != nil {
		e.logger.Error("Trade not activated",
			zap.String("trade_id", trade.ID),
			zap.Error(err),
		)

		if errors.IsInvalidTransition(err) {
			e.cancelLegs(ctx, legs)
		}

		return trade
	}

	trade.Status = types.TradeStatusActive
	trade.StopOrderID = legs.stopID
	trade.TargetOrderID = legs.targetID

	if legs.stopID != "" || legs.targetID != "" {
		e.mu.Lock()
		e.brackets[trade.ID] = legs
		e.mu.Unlock()
	}

	e.logger.Info("Trade active",
		zap.String("trade_id", trade.ID),
		zap.String("stop_order_id", legs.stopID),
		zap.String("target_order_id", legs.targetID),
	)

	return trade
}

// placeBracket places the stop and target legs concurrently. A leg that fails
// is left empty; the other leg is still placed.
func (e *Executor) placeBracket(ctx context.Context, trade types.Trade) bracket {
	var (
		legs bracket
		g    errgroup.Group
	)

	exitSide := trade.Side.Opposite()

	if trade.StopLoss.IsSome() {
		g.Go(func() error {
			id, err := e.placeLeg(ctx, types.OrderRequest{
				ClientOrderID: trade.ID + stopLegSuffix,
				Symbol:        trade.Symbol,
				Side:          exitSide,
				Quantity:      trade.Quantity,
				Price:         0,
				TriggerPrice:  trade.StopLoss.Unwrap(),
				OrderType:     types.OrderTypeStop,
			})
			legs.stopID = id

			return err
		})
	}

	if trade.Target.IsSome() {
		g.Go(func() error {
			id, err := e.placeLeg(ctx, types.OrderRequest{
				ClientOrderID: trade.ID + targetLegSuffix,
				Symbol:        trade.Symbol,
				Side:          exitSide,
				Quantity:      trade.Quantity,
				Price:         trade.Target.Unwrap(),
				TriggerPrice:  0,
				OrderType:     types.OrderTypeLimit,
			})
			legs.targetID = id

			return err
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Error("Bracket leg not placed",
			zap.String("trade_id", trade.ID),
			zap.Error(err),
		)
	}

	return legs
}

func (e *Executor) placeLeg(ctx context.Context, request types.OrderRequest) (string, error) {
	result, err := e.broker.PlaceOrder(ctx, request)
	if err != nil {
		return "", err
	}

	if !result.Success {
		return "", errors.Newf(errors.ErrCodeOrderRejected, "%s rejected: %s", request.ClientOrderID, result.Error)
	}

	return result.OrderID, nil
}

func (e *Executor) cancelLegs(ctx context.Context, legs bracket) {
	for _, id := range []string{legs.stopID, legs.targetID} {
		if id == "" {
			continue
		}

		if _, err := e.broker.CancelOrder(ctx, id); err != nil {
			e.logger.Warn("Bracket leg not cancelled", zap.String("order_id", id), zap.Error(err))
		}
	}
}

// Reconcile polls the broker for every tracked order and advances the ledger.
func (e *Executor) Reconcile(ctx context.Context) {
	if e.settler != nil {
		e.settler.RetryUnsettled(ctx)
	}

	e.reconcilePending(ctx)
	e.replaceUnplaced(ctx)
	e.rearmFilled(ctx)
	e.reconcileBrackets(ctx)
}

func (e *Executor) reconcilePending(ctx context.Context) {
	for orderID, tradeID := range e.PendingOrders() {
		report, err := e.broker.GetOrderStatus(ctx, orderID)
		if err != nil {
			e.logger.Warn("Order status unavailable",
				zap.String("order_id", orderID),
				zap.Error(err),
			)

			continue
		}

		switch report.Status {
		case types.OrderStatusFilled:
			trade, ok := e.load(ctx, tradeID)
			if !ok {
				continue
			}

			price := report.FilledPrice
			if price <= 0 {
				price = trade.Price
			}

			at := report.OrderTimestamp
			if at.IsZero() {
				at = e.now()
			}

			e.onEntryFilled(ctx, trade, orderID, price, at)
		case types.OrderStatusRejected, types.OrderStatusNotFound:
			e.finishPending(orderID, e.ledger.MarkRejected(ctx, tradeID, "order "+string(report.Status)))
		case types.OrderStatusCancelled:
			e.finishPending(orderID, e.ledger.Cancel(ctx, tradeID, "cancelled by broker"))
		case types.OrderStatusPending, types.OrderStatusOpen:
		}
	}
}

// finishPending stops tracking orderID unless the ledger write failed for a
// reason worth retrying.
func (e *Executor) finishPending(orderID string, err error) {
	if err != nil && !errors.IsInvalidTransition(err) {
		e.logger.Error("Order outcome not recorded", zap.String("order_id", orderID), zap.Error(err))

		return
	}

	e.untrack(orderID)
}

func (e *Executor) replaceUnplaced(ctx context.Context) {
	trades, err := e.ledger.Pending(ctx)
	if err != nil {
		e.logger.Error("Pending trades unavailable", zap.Error(err))

		return
	}

	for _, trade := range trades {
		if trade.OrderID != "" || e.isTracked(trade.ID) {
			continue
		}

		e.logger.Info("Placing entry order again", zap.String("trade_id", trade.ID))

		_, _ = e.place(ctx, trade)
	}
}

func (e *Executor) rearmFilled(ctx context.Context) {
	trades, err := e.ledger.List(ctx, types.TradeFilter{Statuses: []types.TradeStatus{types.TradeStatusFilled}})
	if err != nil {
		e.logger.Error("Filled trades unavailable", zap.Error(err))

		return
	}

	for _, trade := range trades {
		if trade.HasExitLevels() {
			e.arm(ctx, trade)
		}
	}
}

// reconcileBrackets settles trades whose stop or target leg has filled and
// cancels the sibling leg.
func (e *Executor) reconcileBrackets(ctx context.Context) {
	e.mu.Lock()
	snapshot := make(map[string]bracket, len(e.brackets))

	for id, legs := range e.brackets {
		snapshot[id] = legs
	}
	e.mu.Unlock()

	for tradeID, legs := range snapshot {
		stop, okStop := e.legStatus(ctx, legs.stopID)
		target, okTarget := e.legStatus(ctx, legs.targetID)

		if !okStop || !okTarget {
			continue
		}

		var (
			filled  types.OrderStatusReport
			sibling string
		)

		switch {
		case stop.Status == types.OrderStatusFilled:
			filled, sibling = stop, legs.targetID
		case target.Status == types.OrderStatusFilled:
			filled, sibling = target, legs.stopID
		default:
			if legDone(legs.stopID, stop) && legDone(legs.targetID, target) {
				e.logger.Warn("Bracket closed without a fill", zap.String("trade_id", tradeID))
				e.dropBracket(tradeID)
			}

			continue
		}

		e.settleBracket(ctx, tradeID, filled, sibling)
	}
}

func (e *Executor) settleBracket(ctx context.Context, tradeID string, filled types.OrderStatusReport, sibling string) {
	trade, ok, err := e.settler.Claim(ctx, tradeID)
	if err != nil || !ok {
		return
	}

	if trade.Status != types.TradeStatusActive {
		e.settler.Release(tradeID)
		e.dropBracket(tradeID)

		return
	}

	if sibling != "" {
		result, err := e.broker.CancelOrder(ctx, sibling)
		if err != nil {
			e.logger.Warn("Sibling leg not cancelled, will retry",
				zap.String("trade_id", tradeID),
				zap.String("order_id", sibling),
				zap.Error(err),
			)
			e.settler.Release(tradeID)

			return
		}

		if !result.Success && result.Status == types.OrderStatusFilled {
			e.logger.Error("Both bracket legs filled",
				zap.String("trade_id", tradeID),
				zap.String("order_id", sibling),
			)
		}
	}

	at := filled.OrderTimestamp
	if at.IsZero() {
		at = e.now()
	}

	// A failed commit is retried by the settler; the legs are done either way.
	_, _ = e.settler.Settle(ctx, trade, filled.FilledPrice, at)
	e.dropBracket(tradeID)
}

func (e *Executor) legStatus(ctx context.Context, orderID string) (types.OrderStatusReport, bool) {
	if orderID == "" {
		return types.OrderStatusReport{}, true
	}

	report, err := e.broker.GetOrderStatus(ctx, orderID)
	if err != nil {
		e.logger.Warn("Bracket leg status unavailable", zap.String("order_id", orderID), zap.Error(err))

		return report, false
	}

	return report, true
}

func legDone(orderID string, report types.OrderStatusReport) bool {
	return orderID == "" || report.Status.IsTerminal() || report.Status == types.OrderStatusNotFound
}

// Recover rebuilds the pending and bracket maps from the ledger and finishes
// placements interrupted by a restart.
func (e *Executor) Recover(ctx context.Context) error {
	pending, err := e.ledger.Pending(ctx)
	if err != nil {
		return err
	}

	for _, trade := range pending {
		if trade.OrderID != "" {
			e.track(trade.OrderID, trade.ID)

			continue
		}

		_, _ = e.place(ctx, trade)
	}

	open, err := e.ledger.Open(ctx)
	if err != nil {
		return err
	}

	for _, trade := range open {
		switch {
		case trade.Status == types.TradeStatusFilled && trade.HasExitLevels():
			e.arm(ctx, trade)
		case trade.Status == types.TradeStatusActive && (trade.StopOrderID != "" || trade.TargetOrderID != ""):
			e.mu.Lock()
			e.brackets[trade.ID] = bracket{stopID: trade.StopOrderID, targetID: trade.TargetOrderID}
			e.mu.Unlock()
		}
	}

	e.logger.Info("Executor state recovered",
		zap.Int("pending_orders", len(e.PendingOrders())),
		zap.Int("brackets", e.bracketCount()),
	)

	return nil
}

// CancelTrade cancels a trade that is not yet terminal, together with its
// broker order or bracket legs.
func (e *Executor) CancelTrade(ctx context.Context, id string) error {
	trade, ok, err := e.settler.Claim(ctx, id)
	if err != nil {
		return err
	}

	if !ok {
		return errors.Newf(errors.ErrCodeTradeNotCancellable, "trade %s is being exited", id)
	}

	defer e.settler.Release(id)

	switch trade.Status {
	case types.TradeStatusPending:
		if trade.OrderID != "" {
			result, err := e.broker.CancelOrder(ctx, trade.OrderID)
			if err != nil {
				return err
			}

			if !result.Success && result.Status == types.OrderStatusFilled {
				return errors.Newf(errors.ErrCodeTradeNotCancellable, "trade %s already filled", id)
			}

			e.untrack(trade.OrderID)
		}
	case types.TradeStatusFilled:
	case types.TradeStatusActive:
		e.cancelLegs(ctx, bracket{stopID: trade.StopOrderID, targetID: trade.TargetOrderID})
		e.dropBracket(id)
	case types.TradeStatusExited, types.TradeStatusRejected, types.TradeStatusCancelled:
		return errors.Newf(errors.ErrCodeTradeNotCancellable, "trade %s is %s", id, trade.Status)
	}

	if err := e.ledger.Cancel(ctx, id, "cancelled by operator"); err != nil {
		return err
	}

	e.logger.Info("Trade cancelled", zap.String("trade_id", id), zap.String("from", string(trade.Status)))

	return nil
}

// ExitTrade closes an open trade at market.
func (e *Executor) ExitTrade(ctx context.Context, id string) error {
	trade, ok, err := e.settler.Claim(ctx, id)
	if err != nil {
		return err
	}

	if !ok {
		return errors.Newf(errors.ErrCodeTradeNotCancellable, "trade %s is already being exited", id)
	}

	if !trade.Status.IsOpen() {
		e.settler.Release(id)

		return errors.Newf(errors.ErrCodeTradeNotCancellable, "trade %s is %s", id, trade.Status)
	}

	if trade.Status == types.TradeStatusFilled {
		if err := e.ledger.Activate(ctx, id, "", ""); err != nil {
			e.settler.Release(id)

			return err
		}

		trade.Status = types.TradeStatusActive
	}

	e.cancelLegs(ctx, bracket{stopID: trade.StopOrderID, targetID: trade.TargetOrderID})
	e.dropBracket(id)

	result, err := e.broker.PlaceOrder(ctx, types.OrderRequest{
		ClientOrderID: id + exitSuffix,
		Symbol:        trade.Symbol,
		Side:          trade.Side.Opposite(),
		Quantity:      trade.Quantity,
		Price:         0,
		TriggerPrice:  0,
		OrderType:     types.OrderTypeMarket,
	})
	if err != nil {
		e.settler.Release(id)

		return err
	}

	if !result.Success {
		e.settler.Release(id)

		return errors.Newf(errors.ErrCodeOrderRejected, "exit order rejected: %s", result.Error)
	}

	price, err := e.exitPrice(ctx, result)
	if err != nil {
		e.settler.Release(id)

		return err
	}

	_, err = e.settler.Settle(ctx, trade, price, e.now())

	return err
}

func (e *Executor) exitPrice(ctx context.Context, result types.OrderResult) (float64, error) {
	if result.FilledPrice.IsSome() {
		return result.FilledPrice.Unwrap(), nil
	}

	report, err := e.broker.GetOrderStatus(ctx, result.OrderID)
	if err != nil {
		return 0, err
	}

	if report.Status != types.OrderStatusFilled || report.FilledPrice <= 0 {
		return 0, errors.Newf(errors.ErrCodeOrderFailed, "exit order %s is %s", result.OrderID, report.Status)
	}

	return report.FilledPrice, nil
}

func (e *Executor) load(ctx context.Context, id string) (types.Trade, bool) {
	trade, err := e.ledger.Get(ctx, id)
	if err != nil {
		e.logger.Error("Trade unavailable", zap.String("trade_id", id), zap.Error(err))

		return types.Trade{}, false
	}

	if trade.IsNone() {
		e.logger.Warn("Tracked order has no trade", zap.String("trade_id", id))

		return types.Trade{}, false
	}

	return trade.Unwrap(), true
}

func (e *Executor) track(orderID, tradeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending[orderID] = tradeID
}

func (e *Executor) untrack(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.pending, orderID)
}

func (e *Executor) isTracked(tradeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range e.pending {
		if id == tradeID {
			return true
		}
	}

	return false
}

func (e *Executor) dropBracket(tradeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.brackets, tradeID)
}

func (e *Executor) bracketCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.brackets)
}
