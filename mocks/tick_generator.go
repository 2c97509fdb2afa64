package mocks

import (
	"context"
	"iter"
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-algo/internal/types"
)

// TickGenerator generates synthetic ticks and bars for tests.
type TickGenerator struct {
	rng *rand.Rand
}

// NewTickGenerator creates a generator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewTickGenerator(seed int64) *TickGenerator {
	return &TickGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how ticks are generated.
type GeneratorConfig struct {
	Symbol       string
	StartTime    time.Time
	Interval     time.Duration
	Count        int
	InitialPrice float64
	// Volatility is the per-tick standard deviation of returns (0.002 = 0.2%).
	Volatility float64
	VolumeBase float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:       "TEST",
		StartTime:    time.Date(2025, 1, 6, 3, 45, 0, 0, time.UTC),
		Interval:     time.Minute,
		Count:        100,
		InitialPrice: 100.0,
		Volatility:   0.002,
		VolumeBase:   1000,
	}
}

// Ticks creates a geometric random walk of ticks.
func (g *TickGenerator) Ticks(config GeneratorConfig) []types.Tick {
	ticks := make([]types.Tick, config.Count)
	price := config.InitialPrice
	at := config.StartTime

	for i := range ticks {
		open := price

		// Box-Muller
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		closePrice := open * (1 + config.Volatility*z)
		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		ext := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		ticks[i] = types.Tick{
			Symbol:    config.Symbol,
			Timestamp: at,
			Open:      roundToDecimals(open, 4),
			High:      roundToDecimals(math.Max(open, closePrice)+ext, 4),
			Low:       roundToDecimals(math.Min(open, closePrice)-ext, 4),
			Close:     roundToDecimals(closePrice, 4),
			Volume:    roundToDecimals(config.VolumeBase*(0.5+g.rng.Float64()), 2),
		}

		price = closePrice
		at = at.Add(config.Interval)
	}

	return ticks
}

// Bars is Ticks converted to single-update bars.
func (g *TickGenerator) Bars(config GeneratorConfig) []types.Bar {
	ticks := g.Ticks(config)
	bars := make([]types.Bar, len(ticks))

	for i, t := range ticks {
		bars[i] = t.AsBar()
	}

	return bars
}

// StreamOf replays ticks as a broker stream, then blocks until ctx is done.
func StreamOf(ctx context.Context, ticks []types.Tick) iter.Seq2[types.Tick, error] {
	return func(yield func(types.Tick, error) bool) {
		for _, t := range ticks {
			if !yield(t, nil) {
				return
			}
		}

		<-ctx.Done()
	}
}

// FailingStream yields err once.
func FailingStream(err error) iter.Seq2[types.Tick, error] {
	return func(yield func(types.Tick, error) bool) {
		yield(types.Tick{}, err)
	}
}

func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
