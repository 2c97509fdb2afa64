package strategy

import (
	"context"
	"sync"

	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
)

// Registry owns the strategy set. It is built once at startup and handed to
// the workers that need it.
type Registry struct {
	strategies map[string]Strategy
	order      []string
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
		order:      make([]string, 0),
		mu:         sync.RWMutex{},
	}
}

// Register adds a strategy. Names must be unique.
func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[s.Name()]; exists {
		return errors.Newf(errors.ErrCodeStrategyConfigError, "strategy %s already registered", s.Name())
	}

	r.strategies[s.Name()] = s
	r.order = append(r.order, s.Name())

	return nil
}

// Get returns the named strategy.
func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %s not found", name)
	}

	return s, nil
}

// All returns every strategy in registration order.
func (r *Registry) All() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Strategy, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.strategies[name])
	}

	return out
}

// Enabled returns the enabled strategies in registration order.
func (r *Registry) Enabled() []Strategy {
	var out []Strategy

	for _, s := range r.All() {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}

	return out
}

// ActiveCount returns the number of enabled strategies.
func (r *Registry) ActiveCount() int {
	return len(r.Enabled())
}

// Enable turns on the named strategy.
func (r *Registry) Enable(name string) error {
	s, err := r.Get(name)
	if err != nil {
		return err
	}

	s.Enable()

	return nil
}

// Disable turns off the named strategy.
func (r *Registry) Disable(name string) error {
	s, err := r.Get(name)
	if err != nil {
		return err
	}

	s.Disable()

	return nil
}

// DisableAll turns off every strategy and returns how many were enabled.
func (r *Registry) DisableAll() int {
	disabled := 0

	for _, s := range r.All() {
		if s.IsEnabled() {
			s.Disable()
			disabled++
		}
	}

	return disabled
}

// UpdatePerformance routes a realized P&L to the named strategy.
func (r *Registry) UpdatePerformance(name string, realizedPnL float64) error {
	s, err := r.Get(name)
	if err != nil {
		return err
	}

	s.UpdatePerformance(realizedPnL)

	return nil
}

// Metrics returns a snapshot for every strategy.
func (r *Registry) Metrics() []types.PerformanceMetrics {
	all := r.All()
	out := make([]types.PerformanceMetrics, 0, len(all))

	for _, s := range all {
		out = append(out, s.PerformanceMetrics())
	}

	return out
}

// NotifyTradeComplete passes an exited trade to its strategy when the strategy observes trades.
func (r *Registry) NotifyTradeComplete(ctx context.Context, trade types.Trade) {
	s, err := r.Get(trade.Strategy)
	if err != nil {
		return
	}

	if observer, ok := s.(TradeObserver); ok {
		observer.OnTradeComplete(ctx, trade)
	}
}
