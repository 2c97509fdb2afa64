package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/queue"
	"github.com/rxtech-lab/argo-algo/internal/strategy"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/mocks"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type EngineTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	registry *strategy.Registry
	in       *queue.Queue[types.Tick]
	out      *queue.Queue[types.Signal]
	engine   *Engine
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

var base = time.Date(2025, 8, 26, 4, 0, 0, 0, time.UTC)

func (suite *EngineTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.registry = strategy.NewRegistry()
	suite.in = queue.New[types.Tick](1000)
	suite.out = queue.New[types.Signal](100)
	suite.clock = &fakeClock{now: base}
	suite.engine = New(suite.registry, suite.in, suite.out, nil, Config{Interval: time.Millisecond}, nil).
		WithClock(suite.clock.Now)
}

func (suite *EngineTestSuite) mockStrategy(name string, req strategy.Requirements, symbols ...string) *mocks.MockStrategy {
	s := mocks.NewMockStrategy(suite.ctrl)
	s.EXPECT().Name().Return(name).AnyTimes()
	s.EXPECT().IsEnabled().Return(true).AnyTimes()
	s.EXPECT().Requirements().Return(req).AnyTimes()
	s.EXPECT().RequiredSymbols().Return(symbols).AnyTimes()
	suite.Require().NoError(suite.registry.Register(s))

	return s
}

func (suite *EngineTestSuite) publish(symbol string, start time.Time, step time.Duration, closes ...float64) {
	for i, c := range closes {
		suite.Require().NoError(suite.in.TryPublish(types.Tick{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      c, High: c, Low: c, Close: c, Volume: 1,
		}))
	}
}

func buySignal(symbol string) types.Signal {
	return types.Signal{
		Symbol:     symbol,
		Action:     types.SideBuy,
		Price:      100,
		Quantity:   10,
		SignalType: "TEST",
		Confidence: 0.7,
		Metadata:   types.SignalMetadata{StopLoss: optional.None[float64](), Target: optional.None[float64]()},
	}
}

func (suite *EngineTestSuite) TestRawStrategyReceivesTicksAndSignalsAreStamped() {
	s := suite.mockStrategy("raw", strategy.Requirements{MinDataPoints: 3}, "TEST")
	s.EXPECT().GenerateSignals(gomock.Any()).DoAndReturn(func(history map[string][]types.Bar) ([]types.Signal, error) {
		suite.Len(history["TEST"], 3)
		suite.Equal(102.0, history["TEST"][2].Close)

		return []types.Signal{buySignal("TEST")}, nil
	})

	suite.publish("TEST", base.Add(-time.Minute), time.Second, 100, 101, 102)

	emitted := suite.engine.RunCycle(context.Background())
	suite.Require().Len(emitted, 1)

	signal, ok := suite.out.Next(context.Background(), time.Millisecond)
	suite.Require().True(ok)
	suite.NotEmpty(signal.ID)
	suite.Equal("raw", signal.StrategyName)
	suite.Equal(base, signal.Timestamp)

	suite.True(suite.engine.Feed().LatestSignal().IsSome())
	suite.Equal(102.0, suite.engine.Feed().LatestTick("TEST").Unwrap().Close)
}

func (suite *EngineTestSuite) TestInsufficientDataSkipsStrategy() {
	s := suite.mockStrategy("raw", strategy.Requirements{MinDataPoints: 10}, "TEST", "TCS")
	s.EXPECT().GenerateSignals(gomock.Any()).Times(0)

	suite.publish("TEST", base.Add(-time.Minute), time.Second, 100, 101, 102)

	suite.Empty(suite.engine.RunCycle(context.Background()))
	suite.Equal(int64(1), suite.engine.Cycles())
}

func (suite *EngineTestSuite) TestFailingStrategyDoesNotBlockOthers() {
	bad := suite.mockStrategy("bad", strategy.Requirements{MinDataPoints: 1}, "TEST")
	bad.EXPECT().GenerateSignals(gomock.Any()).DoAndReturn(func(map[string][]types.Bar) ([]types.Signal, error) {
		panic("index out of range")
	})

	good := suite.mockStrategy("good", strategy.Requirements{MinDataPoints: 1}, "TEST")
	good.EXPECT().GenerateSignals(gomock.Any()).Return([]types.Signal{buySignal("TEST")}, nil)

	suite.publish("TEST", base.Add(-time.Minute), time.Second, 100)

	emitted := suite.engine.RunCycle(context.Background())
	suite.Require().Len(emitted, 1)
	suite.Equal("good", emitted[0].StrategyName)
}

func (suite *EngineTestSuite) TestInvalidSignalsAreDropped() {
	s := suite.mockStrategy("raw", strategy.Requirements{MinDataPoints: 1}, "TEST")

	invalid := buySignal("TEST")
	invalid.Quantity = 0
	s.EXPECT().GenerateSignals(gomock.Any()).Return([]types.Signal{invalid}, nil)

	suite.publish("TEST", base.Add(-time.Minute), time.Second, 100)

	suite.Empty(suite.engine.RunCycle(context.Background()))
	suite.Equal(0, suite.out.Len())
}

func (suite *EngineTestSuite) TestAlignedStrategySeesOnlyClosedBarsOncePerBoundary() {
	interval := 5 * time.Minute
	s := suite.mockStrategy("bars", strategy.Requirements{MinDataPoints: 2, BarInterval: interval}, "TEST")

	// bars at 04:00, 04:05 and a partial one at 04:10
	start := base
	suite.publish("TEST", start, time.Minute, 100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111)

	var seen [][]types.Bar

	s.EXPECT().GenerateSignals(gomock.Any()).DoAndReturn(func(history map[string][]types.Bar) ([]types.Signal, error) {
		seen = append(seen, history["TEST"])

		return nil, nil
	}).Times(2)

	suite.clock.Set(base.Add(11*time.Minute + 30*time.Second))
	suite.engine.RunCycle(context.Background())

	// same boundary: no evaluation
	suite.clock.Set(base.Add(14 * time.Minute))
	suite.engine.RunCycle(context.Background())

	suite.clock.Set(base.Add(15*time.Minute + time.Second))
	suite.engine.RunCycle(context.Background())

	suite.Require().Len(seen, 2)
	suite.Require().Len(seen[0], 2)
	suite.Equal(start, seen[0][0].Timestamp)
	suite.Equal(104.0, seen[0][0].Close)
	suite.Equal(109.0, seen[0][1].Close)
	suite.Equal(5.0, seen[0][1].Volume)
	suite.Len(seen[1], 3)
}

func (suite *EngineTestSuite) TestHistoryIsNoneWithoutData() {
	suite.True(suite.engine.History("NONE", 0, base).IsNone())
	suite.True(suite.engine.History("NONE", time.Minute, base).IsNone())
}

func (suite *EngineTestSuite) TestWarmupSeedsBars() {
	interval := 5 * time.Minute
	suite.mockStrategy("bars", strategy.Requirements{MinDataPoints: 2, BarInterval: interval}, "TEST")
	suite.mockStrategy("raw", strategy.Requirements{MinDataPoints: 2}, "TCS")

	provider := mocks.NewMockHistoryProvider(suite.ctrl)
	provider.EXPECT().Bars(gomock.Any(), "TEST", base.Add(-time.Hour), base, interval).Return([]types.Bar{
		{Symbol: "TEST", Timestamp: base.Add(-10 * time.Minute), Open: 1, High: 1, Low: 1, Close: 1},
		{Symbol: "TEST", Timestamp: base.Add(-5 * time.Minute), Open: 2, High: 2, Low: 2, Close: 2},
	}, nil)
	provider.EXPECT().Bars(gomock.Any(), "TCS", base.Add(-time.Hour), base, time.Minute).Return([]types.Bar{
		{Symbol: "TCS", Timestamp: base.Add(-time.Minute), Open: 3, High: 3, Low: 3, Close: 3},
	}, nil)

	var loaded []string

	err := suite.engine.Warmup(context.Background(), provider, time.Hour, time.Minute, func(symbol string, _ int) {
		loaded = append(loaded, symbol)
	})
	suite.Require().NoError(err)
	suite.ElementsMatch([]string{"TEST", "TCS"}, loaded)

	bars := suite.engine.History("TEST", interval, base)
	suite.Require().True(bars.IsSome())
	suite.Len(bars.Unwrap(), 2)

	raw := suite.engine.History("TCS", 0, base)
	suite.Require().True(raw.IsSome())
	suite.Equal(3.0, raw.Unwrap()[0].Close)
}

func (suite *EngineTestSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- suite.engine.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(time.Second):
		suite.Fail("engine did not stop")
	}
}

func (suite *EngineTestSuite) TestFeedRecentSignals() {
	feed := NewFeed()
	for i := 0; i < recentSignalCapacity+5; i++ {
		s := buySignal("TEST")
		s.Price = float64(i)
		feed.addSignal(s)
	}

	recent := feed.RecentSignals(3)
	suite.Require().Len(recent, 3)
	suite.Equal(float64(recentSignalCapacity+4), recent[0].Price)
	suite.Len(feed.RecentSignals(0), recentSignalCapacity)
}
