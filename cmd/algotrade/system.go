package main

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-algo/internal/broker"
	"github.com/rxtech-lab/argo-algo/internal/config"
	"github.com/rxtech-lab/argo-algo/internal/controller"
	"github.com/rxtech-lab/argo-algo/internal/engine"
	"github.com/rxtech-lab/argo-algo/internal/executor"
	"github.com/rxtech-lab/argo-algo/internal/featurestore"
	"github.com/rxtech-lab/argo-algo/internal/ledger"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/marketdata"
	"github.com/rxtech-lab/argo-algo/internal/monitor"
	"github.com/rxtech-lab/argo-algo/internal/pnl"
	"github.com/rxtech-lab/argo-algo/internal/queue"
	"github.com/rxtech-lab/argo-algo/internal/risk"
	"github.com/rxtech-lab/argo-algo/internal/settlement"
	"github.com/rxtech-lab/argo-algo/internal/stats"
	"github.com/rxtech-lab/argo-algo/internal/strategy"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"go.uber.org/zap"
)

// system is everything a command needs, built from one configuration.
type system struct {
	config     config.Config
	ledger     *ledger.Ledger
	registry   *strategy.Registry
	features   *featurestore.Store
	stats      *stats.Tracker
	controller *controller.Controller
	logger     *logger.Logger
}

// buildSystem opens the ledger, registers the configured strategies and wires
// the controller. Nothing is started.
func buildSystem(cfg config.Config, log *logger.Logger) (*system, error) {
	l, err := ledger.Open(cfg.Ledger.Driver, cfg.Ledger.DSN, log)
	if err != nil {
		return nil, err
	}

	sys := &system{config: cfg, ledger: l, logger: log}

	var recorder strategy.FeatureRecorder

	if cfg.FeatureStore.Path != "" && cfg.Strategies.CPR != nil {
		sys.features = featurestore.NewStore(cfg.FeatureStore.Path, log)
		if err := sys.features.Initialize(); err != nil {
			sys.close()

			return nil, err
		}

		recorder = sys.features
	}

	sys.registry, err = buildRegistry(cfg.Strategies, recorder, log)
	if err != nil {
		sys.close()

		return nil, err
	}

	b, err := broker.New(cfg.Broker, log)
	if err != nil {
		sys.close()

		return nil, err
	}

	calc := pnl.NewCalculator(pnl.NewCommission(cfg.Trading.Commission, cfg.Trading.BrokerageRate))
	settler := settlement.New(l, sys.registry, calc, log)

	sys.stats = stats.NewTracker(calc, log)
	settler.OnExit(sys.stats.Record)

	sys.controller, err = controller.New(controller.Deps{
		Broker:   b,
		Ledger:   l,
		Registry: sys.registry,
		Settler:  settler,
		Stats:    sys.stats,
		Cache:    marketdata.NewTickCache(cfg.Intervals.TickCacheSize),
		Ticks:    queue.New[types.Tick](cfg.Intervals.QueueCapacity),
		Signals:  queue.New[types.Signal](cfg.Intervals.QueueCapacity),
	}, controllerConfig(cfg), log)
	if err != nil {
		sys.close()

		return nil, err
	}

	return sys, nil
}

func controllerConfig(cfg config.Config) controller.Config {
	return controller.Config{
		BrokerType:         string(cfg.Broker.Type),
		Symbols:            cfg.Symbols,
		DefaultStopLossPct: cfg.Trading.DefaultStopLossPct,
		DefaultTargetPct:   cfg.Trading.DefaultTargetPct,
		RetryInterval:      cfg.Intervals.CollectorRetry,
		StopTimeout:        cfg.Intervals.StopTimeout,
		Engine: engine.Config{
			Interval:    cfg.Intervals.Strategy,
			BufferSize:  engine.DefaultBufferSize,
			PollTimeout: engine.DefaultPollTimeout,
		},
		Executor: executor.Config{
			Interval:    cfg.Intervals.Executor,
			PollTimeout: executor.DefaultConfig().PollTimeout,
		},
		Monitor: monitor.Config{
			Interval:     cfg.Intervals.Monitor,
			QuoteRetries: cfg.Trading.QuoteRetries,
			QuoteBackoff: monitor.DefaultConfig().QuoteBackoff,
		},
		Risk: risk.Config{
			Interval:        cfg.Intervals.Risk,
			MaxPositionSize: cfg.Risk.MaxPositionSize,
			MaxDailyLoss:    cfg.Risk.MaxDailyLoss,
			MaxPositions:    cfg.Risk.MaxPositions,
			MaxDailyTrades:  cfg.Risk.MaxDailyTrades,
			Location:        cfg.Location(),
		},
	}
}

// buildRegistry registers every configured strategy. Disabled entries are
// registered but start disabled.
func buildRegistry(cfg config.StrategiesConfig, recorder strategy.FeatureRecorder, log *logger.Logger) (*strategy.Registry, error) {
	registry := strategy.NewRegistry()

	register := func(s strategy.Strategy, disabled bool) error {
		if err := registry.Register(s); err != nil {
			return err
		}

		if disabled {
			s.Disable()
		}

		return nil
	}

	if e := cfg.MovingAverage; e != nil {
		s, err := strategy.NewMovingAverageCrossover(e.Name, e.MovingAverageConfig, log)
		if err != nil {
			return nil, err
		}

		if err := register(s, e.Disabled); err != nil {
			return nil, err
		}
	}

	if e := cfg.RSI; e != nil {
		s, err := strategy.NewRSIMeanReversion(e.Name, e.RSIConfig, log)
		if err != nil {
			return nil, err
		}

		if err := register(s, e.Disabled); err != nil {
			return nil, err
		}
	}

	if e := cfg.Bollinger; e != nil {
		s, err := strategy.NewBollingerBandStrategy(e.Name, e.BollingerConfig, log)
		if err != nil {
			return nil, err
		}

		if err := register(s, e.Disabled); err != nil {
			return nil, err
		}
	}

	if e := cfg.CPR; e != nil {
		ensemble, err := strategy.LoadEnsemble(e.ModelPath, e.Threshold)
		if err != nil {
			return nil, err
		}

		s, err := strategy.NewCPRBreakout(e.Name, e.CPRConfig, ensemble, recorder, log)
		if err != nil {
			return nil, err
		}

		if err := register(s, e.Disabled); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// close releases the stores. It is safe on a partially built system.
func (s *system) close() {
	if s.features != nil {
		if err := s.features.Close(); err != nil {
			s.logger.Warn("Failed to close feature store", zap.Error(err))
		}
	}

	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			s.logger.Warn("Failed to close ledger", zap.Error(err))
		}
	}
}

// memoHistory downloads each symbol and interval once so restarted engines
// are seeded without another round trip.
type memoHistory struct {
	provider marketdata.HistoryProvider
	mu       sync.Mutex
	bars     map[string][]types.Bar
}

func newMemoHistory(provider marketdata.HistoryProvider) *memoHistory {
	return &memoHistory{provider: provider, mu: sync.Mutex{}, bars: make(map[string][]types.Bar)}
}

// Bars implements marketdata.HistoryProvider.
func (m *memoHistory) Bars(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]types.Bar, error) {
	key := symbol + "@" + interval.String()

	m.mu.Lock()
	cached, ok := m.bars[key]
	m.mu.Unlock()

	if ok {
		return cached, nil
	}

	bars, err := m.provider.Bars(ctx, symbol, start, end, interval)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.bars[key] = bars
	m.mu.Unlock()

	return bars, nil
}
