// Package collector subscribes to the broker tick stream, buffers ticks in the
// tick cache and republishes them on the market-data queue.
package collector

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rxtech-lab/argo-algo/internal/broker"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/marketdata"
	"github.com/rxtech-lab/argo-algo/internal/queue"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"go.uber.org/zap"
)

const Name = "collector"

// DefaultRetryInterval is the fixed wait before resubscribing after a stream failure.
const DefaultRetryInterval = time.Second

// Collector is the data collection worker.
type Collector struct {
	broker        broker.Broker
	cache         *marketdata.TickCache
	out           *queue.Queue[types.Tick]
	retryInterval time.Duration

	mu           sync.Mutex
	symbols      []string
	cancelStream context.CancelFunc

	received atomic.Int64
	dropped  atomic.Int64
	logger   *logger.Logger
}

// New creates a collector. symbols is the initial subscription set.
func New(
	b broker.Broker,
	cache *marketdata.TickCache,
	out *queue.Queue[types.Tick],
	symbols []string,
	retryInterval time.Duration,
	log *logger.Logger,
) *Collector {
	if log == nil {
		log = logger.NewNop()
	}

	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}

	c := &Collector{
		broker:        b,
		cache:         cache,
		out:           out,
		retryInterval: retryInterval,
		mu:            sync.Mutex{},
		symbols:       nil,
		cancelStream:  nil,
		logger:        log.Named(Name),
	}
	c.AddSymbols(symbols...)

	return c
}

// Name implements controller.Worker.
func (c *Collector) Name() string {
	return Name
}

// AddSymbols extends the subscription set. A running stream is resubscribed.
func (c *Collector) AddSymbols(symbols ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false

	for _, s := range symbols {
		if s != "" && !slices.Contains(c.symbols, s) {
			c.symbols = append(c.symbols, s)
			changed = true
		}
	}

	if changed {
		c.resubscribeLocked()
	}
}

// RemoveSymbols shrinks the subscription set and forgets cached ticks for the removed symbols.
func (c *Collector) RemoveSymbols(symbols ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.symbols)
	c.symbols = slices.DeleteFunc(c.symbols, func(s string) bool {
		return slices.Contains(symbols, s)
	})

	for _, s := range symbols {
		c.cache.Remove(s)
	}

	if len(c.symbols) != before {
		c.resubscribeLocked()
	}
}

// Symbols returns the current subscription set.
func (c *Collector) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.symbols)
}

// Received returns how many ticks were accepted since start.
func (c *Collector) Received() int64 {
	return c.received.Load()
}

// Run consumes the broker stream until ctx is done. Stream failures are
// retried with a constant backoff and never end the loop.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Info("Collector started", zap.Strings("symbols", c.Symbols()))

	policy := backoff.WithContext(backoff.NewConstantBackOff(c.retryInterval), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Tick stream failed, resubscribing", zap.Error(err), zap.Duration("wait", wait))
	}

	for ctx.Err() == nil {
		_ = backoff.RetryNotify(func() error { return c.session(ctx) }, policy, notify)
		policy.Reset()
	}

	c.logger.Info("Collector stopped", zap.Int64("received", c.received.Load()), zap.Int64("dropped", c.dropped.Load()))

	return nil
}

// session runs one subscription. It returns nil when the subscription set
// changed or ctx is done, and an error when the stream failed.
func (c *Collector) session(ctx context.Context) error {
	c.mu.Lock()
	symbols := slices.Clone(c.symbols)
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancelStream = cancel
	c.mu.Unlock()

	defer cancel()

	if len(symbols) == 0 {
		<-streamCtx.Done()

		return nil
	}

	for tick, err := range c.broker.Stream(streamCtx, symbols) {
		if err != nil {
			if streamCtx.Err() != nil {
				return nil
			}

			return err
		}

		c.handle(streamCtx, tick)
	}

	if streamCtx.Err() != nil {
		return nil
	}

	return errors.New(errors.ErrCodeStreamFailed, "tick stream ended")
}

func (c *Collector) handle(ctx context.Context, tick types.Tick) {
	if tick.Symbol == "" || tick.Close <= 0 || tick.Timestamp.IsZero() {
		c.dropped.Add(1)
		c.logger.Debug("Dropping malformed tick", zap.String("symbol", tick.Symbol), zap.Float64("close", tick.Close))

		return
	}

	c.cache.Add(tick)
	c.received.Add(1)

	if err := c.out.Publish(ctx, tick); err != nil {
		c.dropped.Add(1)
	}
}

func (c *Collector) resubscribeLocked() {
	if c.cancelStream != nil {
		c.cancelStream()
	}
}
