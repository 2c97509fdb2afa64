package marketdata

import (
	"sync"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/types"
)

// DefaultTickCacheSize is the per-symbol capacity used when none is configured.
const DefaultTickCacheSize = 200

// TickCache keeps a bounded per-symbol history of ticks in arrival order.
// When a symbol's history is full the oldest tick is evicted.
type TickCache struct {
	maxSize int
	data    map[string][]types.Tick
	mu      sync.RWMutex
}

// NewTickCache creates a cache holding at most maxSize ticks per symbol.
func NewTickCache(maxSize int) *TickCache {
	if maxSize <= 0 {
		maxSize = DefaultTickCacheSize
	}

	return &TickCache{
		maxSize: maxSize,
		data:    make(map[string][]types.Tick),
		mu:      sync.RWMutex{},
	}
}

// Add appends a tick, evicting the oldest entry for the symbol when over capacity.
func (c *TickCache) Add(tick types.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ticks := append(c.data[tick.Symbol], tick)
	if len(ticks) > c.maxSize {
		// copy down so the backing array does not grow without bound
		ticks = append(ticks[:0], ticks[len(ticks)-c.maxSize:]...)
	}

	c.data[tick.Symbol] = ticks
}

// Latest returns the most recent tick for symbol.
func (c *TickCache) Latest(symbol string) optional.Option[types.Tick] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ticks := c.data[symbol]
	if len(ticks) == 0 {
		return optional.None[types.Tick]()
	}

	return optional.Some(ticks[len(ticks)-1])
}

// LatestPrice returns the last close for symbol.
func (c *TickCache) LatestPrice(symbol string) optional.Option[float64] {
	tick := c.Latest(symbol)
	if tick.IsNone() {
		return optional.None[float64]()
	}

	return optional.Some(tick.Unwrap().Close)
}

// History returns a copy of the cached ticks for symbol, oldest first.
// limit <= 0 returns everything.
func (c *TickCache) History(symbol string, limit int) []types.Tick {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ticks := c.data[symbol]
	if limit > 0 && len(ticks) > limit {
		ticks = ticks[len(ticks)-limit:]
	}

	out := make([]types.Tick, len(ticks))
	copy(out, ticks)

	return out
}

// Len returns the number of cached ticks for symbol.
func (c *TickCache) Len(symbol string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data[symbol])
}

// Symbols returns every symbol with cached ticks.
func (c *TickCache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	symbols := make([]string, 0, len(c.data))
	for symbol := range c.data {
		symbols = append(symbols, symbol)
	}

	return symbols
}

// Remove drops the cached history of symbol.
func (c *TickCache) Remove(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, symbol)
}
