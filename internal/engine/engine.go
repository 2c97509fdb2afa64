// Package engine runs the enabled strategies against buffered market data and
// forwards their signals to the executor.
package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/marketdata"
	"github.com/rxtech-lab/argo-algo/internal/queue"
	"github.com/rxtech-lab/argo-algo/internal/strategy"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"go.uber.org/zap"
)

const Name = "engine"

const (
	DefaultInterval    = 5 * time.Second
	DefaultBufferSize  = 5000
	DefaultPollTimeout = 100 * time.Millisecond
)

// Config configures the engine loop.
type Config struct {
	// Interval is the evaluation cadence.
	Interval time.Duration
	// BufferSize bounds the raw ticks kept per symbol.
	BufferSize int
	// PollTimeout bounds a single wait on the market-data queue.
	PollTimeout time.Duration
}

type seedKey struct {
	symbol   string
	interval time.Duration
}

// Engine is the strategy evaluation worker.
type Engine struct {
	registry *strategy.Registry
	in       *queue.Queue[types.Tick]
	out      *queue.Queue[types.Signal]
	feed     *Feed
	config   Config

	mu        sync.Mutex
	ticks     map[string][]types.Tick
	seeds     map[seedKey][]types.Bar
	evaluated map[string]time.Time

	cycles atomic.Int64
	now    func() time.Time
	logger *logger.Logger
}

// New creates an engine reading ticks from in and writing signals to out.
func New(
	registry *strategy.Registry,
	in *queue.Queue[types.Tick],
	out *queue.Queue[types.Signal],
	feed *Feed,
	config Config,
	log *logger.Logger,
) *Engine {
	if log == nil {
		log = logger.NewNop()
	}

	if feed == nil {
		feed = NewFeed()
	}

	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}

	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}

	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultPollTimeout
	}

	return &Engine{
		registry:  registry,
		in:        in,
		out:       out,
		feed:      feed,
		config:    config,
		mu:        sync.Mutex{},
		ticks:     make(map[string][]types.Tick),
		seeds:     make(map[seedKey][]types.Bar),
		evaluated: make(map[string]time.Time),
		now:       time.Now,
		logger:    log.Named(Name),
	}
}

// WithClock replaces the wall clock; used by tests and replays.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now

	return e
}

// Name implements controller.Worker.
func (e *Engine) Name() string {
	return Name
}

// Feed returns the latest tick/signal feed.
func (e *Engine) Feed() *Feed {
	return e.feed
}

// Cycles returns the number of completed evaluation cycles.
func (e *Engine) Cycles() int64 {
	return e.cycles.Load()
}

// Run buffers ticks continuously and evaluates strategies every interval
// until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Strategy engine started", zap.Duration("interval", e.config.Interval))

	last := time.Time{}

	for ctx.Err() == nil {
		if tick, ok := e.in.Next(ctx, e.config.PollTimeout); ok {
			e.buffer(tick)
		}

		if now := e.now(); now.Sub(last) >= e.config.Interval {
			e.RunCycle(ctx)
			last = now
		}
	}

	e.logger.Info("Strategy engine stopped", zap.Int64("cycles", e.cycles.Load()))

	return nil
}

// RunCycle drains queued ticks and evaluates every enabled strategy once.
// It returns the signals that were enqueued.
func (e *Engine) RunCycle(ctx context.Context) []types.Signal {
	for _, tick := range e.in.Drain(0) {
		e.buffer(tick)
	}

	now := e.now()

	var emitted []types.Signal

	for _, s := range e.registry.Enabled() {
		signals, err := e.evaluate(s, now)
		if err != nil {
			e.logger.Error("Strategy evaluation failed", zap.String("strategy", s.Name()), zap.Error(err))

			continue
		}

		for _, signal := range signals {
			signal.ID = uuid.NewString()
			signal.StrategyName = s.Name()
			signal.Timestamp = now

			if err := signal.Validate(); err != nil {
				e.logger.Warn("Dropping invalid signal", zap.String("strategy", s.Name()), zap.Error(err))

				continue
			}

			if err := e.out.Publish(ctx, signal); err != nil {
				e.logger.Warn("Signal not enqueued", zap.String("signal_id", signal.ID), zap.Error(err))

				continue
			}

			e.feed.addSignal(signal)
			emitted = append(emitted, signal)

			e.logger.Info("Signal enqueued",
				zap.String("signal_id", signal.ID),
				zap.String("strategy", signal.StrategyName),
				zap.String("symbol", signal.Symbol),
				zap.String("action", string(signal.Action)),
				zap.Float64("quantity", signal.Quantity),
			)
		}
	}

	e.cycles.Add(1)

	return emitted
}

// evaluate gathers the strategy's history and runs it. Bar-aligned strategies
// run once per bar boundary and only see closed bars.
func (e *Engine) evaluate(s strategy.Strategy, now time.Time) (signals []types.Signal, err error) {
	req := s.Requirements()

	if req.Aligned() {
		boundary := marketdata.BucketStart(now, req.BarInterval)

		e.mu.Lock()
		done := e.evaluated[s.Name()].Equal(boundary)
		e.evaluated[s.Name()] = boundary
		e.mu.Unlock()

		if done {
			return nil, nil
		}
	}

	history := make(map[string][]types.Bar, len(s.RequiredSymbols()))

	for _, symbol := range s.RequiredSymbols() {
		bars := e.History(symbol, req.BarInterval, now)
		if bars.IsNone() || len(bars.Unwrap()) < req.MinDataPoints {
			return nil, nil
		}

		history[symbol] = bars.Unwrap()
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeStrategyRuntimeError, "strategy %s panicked: %v", s.Name(), r)
		}
	}()

	signals, err = s.GenerateSignals(history)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStrategyRuntimeError, fmt.Sprintf("strategy %s", s.Name()), err)
	}

	return signals, nil
}

// History returns the bars of symbol at interval as of now: warm-up bars merged
// with resampled live ticks, closed bars only. A zero interval returns one bar
// per raw tick. None means there is no data at all.
func (e *Engine) History(symbol string, interval time.Duration, now time.Time) optional.Option[[]types.Bar] {
	e.mu.Lock()
	ticks := slices.Clone(e.ticks[symbol])
	seed := e.seeds[seedKey{symbol: symbol, interval: interval}]
	e.mu.Unlock()

	var bars []types.Bar

	if interval <= 0 {
		bars = make([]types.Bar, 0, len(ticks))
		for _, t := range ticks {
			bars = append(bars, t.AsBar())
		}
	} else {
		bars = marketdata.ClosedBars(marketdata.MergeBars(seed, marketdata.Resample(ticks, interval)), interval, now)
	}

	if len(bars) == 0 {
		return optional.None[[]types.Bar]()
	}

	return optional.Some(bars)
}

// Seed installs warm-up bars for symbol. With a zero interval the bars are
// prepended to the raw tick buffer.
func (e *Engine) Seed(symbol string, interval time.Duration, bars []types.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if interval > 0 {
		key := seedKey{symbol: symbol, interval: interval}
		e.seeds[key] = marketdata.MergeBars(e.seeds[key], bars)

		return
	}

	ticks := make([]types.Tick, 0, len(bars)+len(e.ticks[symbol]))
	for _, b := range bars {
		ticks = append(ticks, types.Tick(b))
	}

	e.ticks[symbol] = e.trim(append(ticks, e.ticks[symbol]...))
}

// Warmup seeds every registered strategy's symbols from provider. Raw-tick
// strategies are seeded with rawInterval bars. onSymbol is called after each download.
func (e *Engine) Warmup(
	ctx context.Context,
	provider marketdata.HistoryProvider,
	lookback time.Duration,
	rawInterval time.Duration,
	onSymbol func(symbol string, bars int),
) error {
	end := e.now()
	start := end.Add(-lookback)

	type job struct {
		symbol   string
		interval time.Duration
	}

	var jobs []job

	for _, s := range e.registry.All() {
		for _, symbol := range s.RequiredSymbols() {
			j := job{symbol: symbol, interval: s.Requirements().BarInterval}
			if !slices.Contains(jobs, j) {
				jobs = append(jobs, j)
			}
		}
	}

	for _, j := range jobs {
		fetch := j.interval
		if fetch <= 0 {
			fetch = rawInterval
		}

		bars, err := provider.Bars(ctx, j.symbol, start, end, fetch)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "warm-up for %s", j.symbol)
		}

		e.Seed(j.symbol, j.interval, bars)

		e.logger.Info("Warm-up loaded", zap.String("symbol", j.symbol), zap.Duration("interval", fetch), zap.Int("bars", len(bars)))

		if onSymbol != nil {
			onSymbol(j.symbol, len(bars))
		}
	}

	return nil
}

// Symbols returns the symbols with buffered ticks.
func (e *Engine) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbols := make([]string, 0, len(e.ticks))
	for s := range e.ticks {
		symbols = append(symbols, s)
	}

	slices.Sort(symbols)

	return symbols
}

func (e *Engine) buffer(tick types.Tick) {
	e.feed.setTick(tick)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ticks[tick.Symbol] = e.trim(append(e.ticks[tick.Symbol], tick))
}

func (e *Engine) trim(ticks []types.Tick) []types.Tick {
	if len(ticks) <= e.config.BufferSize {
		return ticks
	}

	return append(ticks[:0], ticks[len(ticks)-e.config.BufferSize:]...)
}
