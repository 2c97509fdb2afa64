package collector

import (
	"context"
	"iter"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-algo/internal/marketdata"
	"github.com/rxtech-lab/argo-algo/internal/queue"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/mocks"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type CollectorTestSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	broker *mocks.MockBroker
	cache  *marketdata.TickCache
	out    *queue.Queue[types.Tick]
}

func TestCollectorSuite(t *testing.T) {
	suite.Run(t, new(CollectorTestSuite))
}

func (suite *CollectorTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.broker = mocks.NewMockBroker(suite.ctrl)
	suite.cache = marketdata.NewTickCache(200)
	suite.out = queue.New[types.Tick](1000)
}

func (suite *CollectorTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *CollectorTestSuite) ticks(symbol string, n int) []types.Tick {
	config := mocks.DefaultConfig()
	config.Symbol = symbol
	config.Count = n

	return mocks.NewTickGenerator(3).Ticks(config)
}

func (suite *CollectorTestSuite) runFor(c *Collector, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(d + time.Second):
		suite.Fail("collector did not stop")
	}
}

func (suite *CollectorTestSuite) TestTicksReachCacheAndQueueInOrder() {
	ticks := suite.ticks("TEST", 250)

	suite.broker.EXPECT().Stream(gomock.Any(), []string{"TEST"}).DoAndReturn(
		func(ctx context.Context, _ []string) iter.Seq2[types.Tick, error] {
			return mocks.StreamOf(ctx, ticks)
		},
	)

	c := New(suite.broker, suite.cache, suite.out, []string{"TEST"}, 10*time.Millisecond, nil)
	suite.runFor(c, 100*time.Millisecond)

	suite.Equal(int64(250), c.Received())
	suite.Equal(200, suite.cache.Len("TEST"))

	history := suite.cache.History("TEST", 0)
	suite.Equal(ticks[50].Timestamp, history[0].Timestamp)
	suite.Equal(ticks[249].Timestamp, history[199].Timestamp)

	published := suite.out.Drain(0)
	suite.Require().Len(published, 250)

	for i := range published {
		suite.Equal(ticks[i].Timestamp, published[i].Timestamp)
	}
}

func (suite *CollectorTestSuite) TestMalformedTicksAreDropped() {
	good := suite.ticks("TEST", 2)
	bad := types.Tick{Symbol: "TEST", Timestamp: good[0].Timestamp, Close: 0}

	suite.broker.EXPECT().Stream(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ []string) iter.Seq2[types.Tick, error] {
			return mocks.StreamOf(ctx, []types.Tick{good[0], bad, good[1]})
		},
	)

	c := New(suite.broker, suite.cache, suite.out, []string{"TEST"}, 10*time.Millisecond, nil)
	suite.runFor(c, 50*time.Millisecond)

	suite.Equal(int64(2), c.Received())
	suite.Len(suite.out.Drain(0), 2)
}

func (suite *CollectorTestSuite) TestStreamFailureIsRetried() {
	var calls atomic.Int32

	suite.broker.EXPECT().Stream(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ []string) iter.Seq2[types.Tick, error] {
			if calls.Add(1) == 1 {
				return mocks.FailingStream(errors.New(errors.ErrCodeStreamFailed, "read timeout"))
			}

			return mocks.StreamOf(ctx, suite.ticks("TEST", 5))
		},
	).MinTimes(2)

	c := New(suite.broker, suite.cache, suite.out, []string{"TEST"}, 5*time.Millisecond, nil)
	suite.runFor(c, 100*time.Millisecond)

	suite.GreaterOrEqual(calls.Load(), int32(2))
	suite.Equal(int64(5), c.Received())
}

func (suite *CollectorTestSuite) TestAddSymbolsResubscribes() {
	subscribed := make(chan []string, 4)

	suite.broker.EXPECT().Stream(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, symbols []string) iter.Seq2[types.Tick, error] {
			subscribed <- symbols
			return mocks.StreamOf(ctx, nil)
		},
	).MinTimes(2)

	c := New(suite.broker, suite.cache, suite.out, []string{"TEST"}, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		_ = c.Run(ctx)
		close(done)
	}()

	suite.Equal([]string{"TEST"}, <-subscribed)

	c.AddSymbols("TCS", "TEST")
	suite.Equal([]string{"TEST", "TCS"}, <-subscribed)

	cancel()
	<-done
}

func (suite *CollectorTestSuite) TestRemoveSymbols() {
	suite.cache.Add(types.Tick{Symbol: "TCS", Timestamp: time.Now(), Close: 1})

	c := New(suite.broker, suite.cache, suite.out, []string{"TEST", "TCS"}, 0, nil)
	c.RemoveSymbols("TCS")

	suite.Equal([]string{"TEST"}, c.Symbols())
	suite.Equal(0, suite.cache.Len("TCS"))
}

func (suite *CollectorTestSuite) TestNoSymbolsWaitsWithoutSubscribing() {
	c := New(suite.broker, suite.cache, suite.out, nil, 0, nil)
	suite.runFor(c, 30*time.Millisecond)
	suite.Equal(int64(0), c.Received())
}
