package engine

import (
	"sync"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/types"
)

const recentSignalCapacity = 50

// Feed holds the latest tick per symbol and the most recent signals for
// read-only consumers such as dashboards.
type Feed struct {
	mu      sync.RWMutex
	ticks   map[string]types.Tick
	signals []types.Signal
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		mu:      sync.RWMutex{},
		ticks:   make(map[string]types.Tick),
		signals: make([]types.Signal, 0, recentSignalCapacity),
	}
}

func (f *Feed) setTick(tick types.Tick) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prev, ok := f.ticks[tick.Symbol]; ok && prev.Timestamp.After(tick.Timestamp) {
		return
	}

	f.ticks[tick.Symbol] = tick
}

func (f *Feed) addSignal(signal types.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.signals) == recentSignalCapacity {
		copy(f.signals, f.signals[1:])
		f.signals = f.signals[:recentSignalCapacity-1]
	}

	f.signals = append(f.signals, signal)
}

// LatestTick returns the newest tick seen for symbol.
func (f *Feed) LatestTick(symbol string) optional.Option[types.Tick] {
	f.mu.RLock()
	defer f.mu.RUnlock()

	tick, ok := f.ticks[symbol]
	if !ok {
		return optional.None[types.Tick]()
	}

	return optional.Some(tick)
}

// LatestSignal returns the most recently emitted signal.
func (f *Feed) LatestSignal() optional.Option[types.Signal] {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.signals) == 0 {
		return optional.None[types.Signal]()
	}

	return optional.Some(f.signals[len(f.signals)-1])
}

// RecentSignals returns up to limit signals, newest first.
func (f *Feed) RecentSignals(limit int) []types.Signal {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 || limit > len(f.signals) {
		limit = len(f.signals)
	}

	out := make([]types.Signal, 0, limit)
	for i := len(f.signals) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.signals[i])
	}

	return out
}
