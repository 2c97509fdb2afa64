package controller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/broker"
	"github.com/rxtech-lab/argo-algo/internal/collector"
	"github.com/rxtech-lab/argo-algo/internal/engine"
	"github.com/rxtech-lab/argo-algo/internal/executor"
	"github.com/rxtech-lab/argo-algo/internal/ledger"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/marketdata"
	"github.com/rxtech-lab/argo-algo/internal/monitor"
	"github.com/rxtech-lab/argo-algo/internal/queue"
	"github.com/rxtech-lab/argo-algo/internal/risk"
	"github.com/rxtech-lab/argo-algo/internal/settlement"
	"github.com/rxtech-lab/argo-algo/internal/stats"
	"github.com/rxtech-lab/argo-algo/internal/strategy"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// ManualStrategy is the strategy name recorded on operator trades.
	ManualStrategy = "manual"
	// ManualSignalType is the signal type of operator trades.
	ManualSignalType = "MANUAL"
)

// Config configures the supervised workers.
type Config struct {
	BrokerType string
	Symbols    []string
	// DefaultStopLossPct and DefaultTargetPct derive exit levels for priced
	// manual trades that carry none. Zero disables the default.
	DefaultStopLossPct float64
	DefaultTargetPct   float64
	RetryInterval      time.Duration
	StopTimeout        time.Duration
	Engine             engine.Config
	Executor           executor.Config
	Monitor            monitor.Config
	Risk               risk.Config
}

// Deps are the shared resources handed to every worker instance.
type Deps struct {
	Broker   broker.Broker
	Ledger   *ledger.Ledger
	Registry *strategy.Registry
	Settler  *settlement.Settler
	Stats    *stats.Tracker
	Cache    *marketdata.TickCache
	Ticks    *queue.Queue[types.Tick]
	Signals  *queue.Queue[types.Signal]
}

// Status is the aggregate status report.
type Status struct {
	Running          bool                       `yaml:"running" json:"running"`
	BrokerType       string                     `yaml:"broker_type" json:"broker_type"`
	Components       map[string]ComponentStatus `yaml:"components" json:"components"`
	ActiveStrategies int                        `yaml:"active_strategies" json:"active_strategies"`
	PendingSignals   int                        `yaml:"pending_signals" json:"pending_signals"`
	CachedSymbols    int                        `yaml:"cached_symbols" json:"cached_symbols"`
}

// ManualTrade is an operator request to open a trade.
type ManualTrade struct {
	Symbol           string
	Side             types.Side
	Quantity         float64
	Price            float64
	StopLoss         optional.Option[float64]
	Target           optional.Option[float64]
	UnderlyingSymbol string
}

// Controller owns the workers and is the control surface of a running system.
type Controller struct {
	deps        Deps
	config      Config
	supervisor  *Supervisor
	feed        *engine.Feed
	alerts      *risk.AlertLog
	risk        *risk.Manager
	engineSetup []func(*engine.Engine)
	now         func() time.Time
	logger      *logger.Logger
}

// New wires the workers. Nothing runs until Start.
func New(deps Deps, config Config, log *logger.Logger) (*Controller, error) {
	if log == nil {
		log = logger.NewNop()
	}

	if deps.Broker == nil || deps.Ledger == nil || deps.Registry == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "broker, ledger and registry are required")
	}

	if deps.Cache == nil {
		deps.Cache = marketdata.NewTickCache(marketdata.DefaultTickCacheSize)
	}

	if deps.Ticks == nil {
		deps.Ticks = queue.New[types.Tick](queue.DefaultCapacity)
	}

	if deps.Signals == nil {
		deps.Signals = queue.New[types.Signal](queue.DefaultCapacity)
	}

	if deps.Settler == nil {
		deps.Settler = settlement.New(deps.Ledger, deps.Registry, nil, log)
	}

	alerts := risk.NewAlertLog(risk.DefaultAlertCapacity)

	c := &Controller{
		deps:        deps,
		config:      config,
		supervisor:  NewSupervisor(config.StopTimeout, log),
		feed:        engine.NewFeed(),
		alerts:      alerts,
		risk:        risk.New(deps.Registry, deps.Ledger, alerts, config.Risk, log),
		engineSetup: nil,
		now:         time.Now,
		logger:      log.Named("controller"),
	}

	factories := []struct {
		name    string
		factory Factory
	}{
		{collector.Name, func() Worker {
			return collector.New(deps.Broker, deps.Cache, deps.Ticks, config.Symbols, config.RetryInterval, log)
		}},
		{engine.Name, func() Worker { return c.newEngine(log) }},
		{executor.Name, func() Worker { return c.newExecutor(log) }},
		{monitor.Name, func() Worker {
			return monitor.New(deps.Broker, deps.Ledger, deps.Cache, deps.Settler, config.Monitor, log)
		}},
		{risk.Name, func() Worker {
			return risk.New(deps.Registry, deps.Ledger, alerts, config.Risk, log)
		}},
	}

	for _, f := range factories {
		if err := c.supervisor.Register(f.name, f.factory); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Controller) newEngine(log *logger.Logger) *engine.Engine {
	e := engine.New(c.deps.Registry, c.deps.Ticks, c.deps.Signals, c.feed, c.config.Engine, log)
	for _, setup := range c.engineSetup {
		setup(e)
	}

	return e
}

func (c *Controller) newExecutor(log *logger.Logger) *executor.Executor {
	return executor.New(
		c.deps.Broker, c.deps.Ledger, c.deps.Registry, c.deps.Settler, c.deps.Signals, c.config.Executor, log,
	).WithGate(c.risk)
}

// OnEngineStart registers setup applied to every engine instance before it
// runs, such as seeding warm-up history.
func (c *Controller) OnEngineStart(setup func(*engine.Engine)) {
	c.engineSetup = append(c.engineSetup, setup)
}

// WithClock replaces the wall clock used for manual signals.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now

	return c
}

// Supervisor exposes per-component lifecycle control.
func (c *Controller) Supervisor() *Supervisor {
	return c.supervisor
}

// Start runs every worker.
func (c *Controller) Start(ctx context.Context) error {
	c.logger.Info("Starting trading system",
		zap.String("broker", c.config.BrokerType),
		zap.Strings("symbols", c.config.Symbols),
		zap.Int("active_strategies", c.deps.Registry.ActiveCount()),
	)

	return c.supervisor.StartAll(ctx)
}

// Stop stops every worker with a bounded wait each.
func (c *Controller) Stop() error {
	c.logger.Info("Stopping trading system")

	return c.supervisor.StopAll()
}

// StartComponent starts the named worker.
func (c *Controller) StartComponent(ctx context.Context, name string) error {
	return c.supervisor.Start(ctx, name)
}

// StopComponent stops the named worker.
func (c *Controller) StopComponent(name string) error {
	return c.supervisor.Stop(name)
}

// RestartComponent replaces the named worker with a fresh instance.
func (c *Controller) RestartComponent(ctx context.Context, name string) error {
	return c.supervisor.Restart(ctx, name)
}

// Status reports liveness of every worker.
func (c *Controller) Status() Status {
	components := c.supervisor.Status()

	running := false
	for _, s := range components {
		running = running || s.Running
	}

	return Status{
		Running:          running,
		BrokerType:       c.config.BrokerType,
		Components:       components,
		ActiveStrategies: c.deps.Registry.ActiveCount(),
		PendingSignals:   c.deps.Signals.Len(),
		CachedSymbols:    len(c.deps.Cache.Symbols()),
	}
}

// CreateTrade enqueues a manual signal for the executor and returns its id.
func (c *Controller) CreateTrade(request ManualTrade) (string, error) {
	request = c.withDefaultExits(request)

	signal := types.Signal{
		ID:           uuid.New().String(),
		Symbol:       request.Symbol,
		Action:       request.Side,
		Price:        request.Price,
		Quantity:     request.Quantity,
		SignalType:   ManualSignalType,
		Confidence:   1,
		StrategyName: ManualStrategy,
		Timestamp:    c.now().UTC(),
		Metadata: types.SignalMetadata{
			StopLoss:         request.StopLoss,
			Target:           request.Target,
			UnderlyingSymbol: request.UnderlyingSymbol,
			Values:           nil,
		},
	}

	if err := signal.Validate(); err != nil {
		return "", err
	}

	if err := c.deps.Signals.TryPublish(signal); err != nil {
		return "", errors.Wrap(errors.ErrCodeOrderFailed, "signal queue is full", err)
	}

	c.logger.Info("Manual trade queued",
		zap.String("signal_id", signal.ID),
		zap.String("symbol", signal.Symbol),
		zap.String("side", string(signal.Action)),
		zap.Float64("quantity", signal.Quantity),
	)

	return signal.ID, nil
}

func (c *Controller) withDefaultExits(request ManualTrade) ManualTrade {
	if request.Price <= 0 || request.StopLoss.IsSome() || request.Target.IsSome() || request.UnderlyingSymbol != "" {
		return request
	}

	price := decimal.NewFromFloat(request.Price)
	hundred := decimal.NewFromInt(100)
	sign := decimal.NewFromFloat(request.Side.Sign())

	if c.config.DefaultStopLossPct > 0 {
		move := price.Mul(decimal.NewFromFloat(c.config.DefaultStopLossPct)).Div(hundred)
		request.StopLoss = optional.Some(price.Sub(move.Mul(sign)).Round(2).InexactFloat64())
	}

	if c.config.DefaultTargetPct > 0 {
		move := price.Mul(decimal.NewFromFloat(c.config.DefaultTargetPct)).Div(hundred)
		request.Target = optional.Some(price.Add(move.Mul(sign)).Round(2).InexactFloat64())
	}

	return request
}

// ListTrades returns trades matching filter, newest first.
func (c *Controller) ListTrades(ctx context.Context, filter types.TradeFilter) ([]types.Trade, error) {
	return c.deps.Ledger.List(ctx, filter)
}

// GetTrade returns one trade.
func (c *Controller) GetTrade(ctx context.Context, id string) (types.Trade, error) {
	trade, err := c.deps.Ledger.Get(ctx, id)
	if err != nil {
		return types.Trade{}, err
	}

	if trade.IsNone() {
		return types.Trade{}, errors.Newf(errors.ErrCodeDataNotFound, "trade %s not found", id)
	}

	return trade.Unwrap(), nil
}

// CancelTrade cancels a trade that has not been exited.
func (c *Controller) CancelTrade(ctx context.Context, id string) error {
	return c.executor().CancelTrade(ctx, id)
}

// ExitTrade closes an open trade at market.
func (c *Controller) ExitTrade(ctx context.Context, id string) error {
	return c.executor().ExitTrade(ctx, id)
}

// executor returns the running executor, or a detached instance sharing the
// same broker, ledger and settler when the worker is stopped.
func (c *Controller) executor() *executor.Executor {
	if w, ok := c.supervisor.Worker(executor.Name); ok {
		if e, ok := w.(*executor.Executor); ok {
			return e
		}
	}

	return c.newExecutor(c.logger)
}

// EnableStrategy enables the named strategy.
func (c *Controller) EnableStrategy(name string) error {
	return c.deps.Registry.Enable(name)
}

// DisableStrategy disables the named strategy.
func (c *Controller) DisableStrategy(name string) error {
	return c.deps.Registry.Disable(name)
}

// StrategyMetrics returns the performance of every registered strategy.
func (c *Controller) StrategyMetrics() []types.PerformanceMetrics {
	return c.deps.Registry.Metrics()
}

// LatestTick returns the last tick the engine saw for symbol.
func (c *Controller) LatestTick(symbol string) optional.Option[types.Tick] {
	return c.feed.LatestTick(symbol)
}

// LatestSignal returns the most recent signal.
func (c *Controller) LatestSignal() optional.Option[types.Signal] {
	return c.feed.LatestSignal()
}

// RecentSignals returns up to limit recent signals, newest first.
func (c *Controller) RecentSignals(limit int) []types.Signal {
	return c.feed.RecentSignals(limit)
}

// Alerts returns up to limit of the newest risk alerts.
func (c *Controller) Alerts(limit int) []types.Alert {
	return c.alerts.Recent(limit)
}

// ClearAlerts empties the alert log.
func (c *Controller) ClearAlerts() {
	c.alerts.Clear()
	c.logger.Info("Alerts cleared")
}

// Exposure returns the current open-position exposure.
func (c *Controller) Exposure(ctx context.Context) (risk.Exposure, error) {
	return c.risk.Exposure(ctx)
}

// DailyPnL returns today's realized P&L.
func (c *Controller) DailyPnL(ctx context.Context) (float64, error) {
	return c.risk.DailyPnL(ctx)
}

// Positions returns the broker's net positions.
func (c *Controller) Positions(ctx context.Context) ([]types.Position, error) {
	return c.deps.Broker.GetPositions(ctx)
}

// Stats returns the cumulative session report. It is None when no tracker is wired.
func (c *Controller) Stats() optional.Option[stats.Report] {
	if c.deps.Stats == nil {
		return optional.None[stats.Report]()
	}

	return optional.Some(c.deps.Stats.Cumulative())
}
