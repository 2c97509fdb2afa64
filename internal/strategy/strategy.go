// Package strategy holds the trading strategies and the registry that owns them.
//
// A strategy maps a per-symbol bar history onto zero or more signals. Each
// strategy owns its enable flag, its last-signal memory and its performance
// state; nothing is shared between strategies.
package strategy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"go.uber.org/zap"
)

// Strategy is the capability set the engine, executor and risk manager use.
type Strategy interface {
	// Name returns the unique registry name.
	Name() string
	// Requirements describes the history the strategy needs.
	Requirements() Requirements
	// RequiredSymbols returns the symbols whose history must be supplied.
	RequiredSymbols() []string
	// GenerateSignals evaluates the history. It must not block.
	GenerateSignals(history map[string][]types.Bar) ([]types.Signal, error)
	IsEnabled() bool
	Enable()
	Disable()
	// UpdatePerformance records the realized P&L of a fill.
	UpdatePerformance(realizedPnL float64)
	PerformanceMetrics() types.PerformanceMetrics
}

// TradeObserver is implemented by strategies that learn from completed trades.
type TradeObserver interface {
	OnTradeComplete(ctx context.Context, trade types.Trade)
}

// Requirements describes the input a strategy needs from the engine.
type Requirements struct {
	// MinDataPoints is the number of bars every required symbol must have.
	MinDataPoints int
	// BarInterval is the resampling width. Zero means raw ticks, one bar per tick.
	BarInterval time.Duration
}

// Aligned reports whether the strategy reads resampled bars and therefore waits
// for bar boundaries.
func (r Requirements) Aligned() bool {
	return r.BarInterval > 0
}

// core is the bookkeeping every strategy owns: identity, enable flag,
// last signal direction per symbol and performance.
type core struct {
	name        string
	symbols     []string
	enabled     atomic.Bool
	performance *Performance
	lastSignals map[string]types.Side
	mu          sync.Mutex
	logger      *logger.Logger
}

func newCore(name string, symbols []string, log *logger.Logger) *core {
	if log == nil {
		log = logger.NewNop()
	}

	return &core{
		name:        name,
		symbols:     append([]string(nil), symbols...),
		enabled:     atomic.Bool{},
		performance: NewPerformance(),
		lastSignals: make(map[string]types.Side),
		mu:          sync.Mutex{},
		logger:      log.Named(name),
	}
}

// Name returns the strategy name.
func (c *core) Name() string {
	return c.name
}

// RequiredSymbols returns a copy of the configured symbols.
func (c *core) RequiredSymbols() []string {
	return append([]string(nil), c.symbols...)
}

// IsEnabled reports whether the engine should evaluate the strategy.
func (c *core) IsEnabled() bool {
	return c.enabled.Load()
}

// Enable turns the strategy on.
func (c *core) Enable() {
	if !c.enabled.Swap(true) {
		c.logger.Info("Strategy enabled")
	}
}

// Disable turns the strategy off. Disabling a disabled strategy is a no-op.
func (c *core) Disable() {
	if c.enabled.Swap(false) {
		c.logger.Info("Strategy disabled")
	}
}

// UpdatePerformance records a realized P&L.
func (c *core) UpdatePerformance(realizedPnL float64) {
	c.performance.Update(realizedPnL)
}

// PerformanceMetrics returns a snapshot of the performance state.
func (c *core) PerformanceMetrics() types.PerformanceMetrics {
	metrics := c.performance.Snapshot()
	metrics.Name = c.name
	metrics.Enabled = c.IsEnabled()

	return metrics
}

// claim records side as the last signal for symbol. It returns false when the
// previous signal for the symbol had the same direction.
func (c *core) claim(symbol string, side types.Side) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastSignals[symbol] == side {
		return false
	}

	c.lastSignals[symbol] = side

	return true
}

// signal builds a signal and counts it as generated.
func (c *core) signal(symbol string, action types.Side, bar types.Bar, quantity float64, signalType string, confidence float64) types.Signal {
	c.performance.RecordSignal()

	c.logger.Info("Signal generated",
		zap.String("symbol", symbol),
		zap.String("action", string(action)),
		zap.String("signal_type", signalType),
		zap.Float64("price", bar.Close),
		zap.Float64("confidence", confidence),
	)

	return types.Signal{
		ID:           "",
		Symbol:       symbol,
		Action:       action,
		Price:        bar.Close,
		Quantity:     quantity,
		SignalType:   signalType,
		Confidence:   confidence,
		StrategyName: c.name,
		Timestamp:    bar.Timestamp,
		Metadata: types.SignalMetadata{
			StopLoss:         optional.None[float64](),
			Target:           optional.None[float64](),
			UnderlyingSymbol: "",
			Values:           map[string]float64{},
		},
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
