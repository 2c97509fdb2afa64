package controller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type SupervisorTestSuite struct {
	suite.Suite
	ctx        context.Context
	supervisor *Supervisor
}

func TestSupervisorSuite(t *testing.T) {
	suite.Run(t, new(SupervisorTestSuite))
}

func (suite *SupervisorTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.supervisor = NewSupervisor(50*time.Millisecond, nil)
}

// loopWorker blocks until ctx is done.
type loopWorker struct {
	name     string
	instance int64
}

func (w *loopWorker) Name() string { return w.name }

func (w *loopWorker) Run(ctx context.Context) error {
	<-ctx.Done()

	return nil
}

// stubbornWorker ignores cancellation until released.
type stubbornWorker struct {
	release chan struct{}
}

func (w *stubbornWorker) Name() string { return "stubborn" }

func (w *stubbornWorker) Run(context.Context) error {
	<-w.release

	return nil
}

type panicWorker struct{}

func (panicWorker) Name() string { return "panicky" }

func (panicWorker) Run(context.Context) error {
	panic("boom")
}

func (suite *SupervisorTestSuite) counted(name string, built *atomic.Int64) Factory {
	return func() Worker {
		return &loopWorker{name: name, instance: built.Add(1)}
	}
}

func (suite *SupervisorTestSuite) TestStartStopStatus() {
	var built atomic.Int64

	suite.Require().NoError(suite.supervisor.Register("a", suite.counted("a", &built)))
	suite.Require().NoError(suite.supervisor.Register("b", suite.counted("b", &built)))
	suite.True(errors.HasCode(suite.supervisor.Register("a", suite.counted("a", &built)), errors.ErrCodeInvalidParameter))

	suite.Equal([]string{"a", "b"}, suite.supervisor.Names())

	status := suite.supervisor.Status()
	suite.False(status["a"].Running)
	suite.Equal("stopped", status["a"].Status)

	suite.Require().NoError(suite.supervisor.StartAll(suite.ctx))

	status = suite.supervisor.Status()
	suite.True(status["a"].Running)
	suite.Equal("active", status["b"].Status)

	err := suite.supervisor.Start(suite.ctx, "a")
	suite.True(errors.HasCode(err, errors.ErrCodeComponentRunning))

	suite.Require().NoError(suite.supervisor.StopAll())

	status = suite.supervisor.Status()
	suite.False(status["a"].Running)
	suite.False(status["b"].Running)
	suite.Equal(int64(2), built.Load())
}

func (suite *SupervisorTestSuite) TestUnknownComponent() {
	suite.True(errors.HasCode(suite.supervisor.Start(suite.ctx, "nope"), errors.ErrCodeComponentNotFound))
	suite.True(errors.HasCode(suite.supervisor.Stop("nope"), errors.ErrCodeComponentNotFound))
	suite.True(errors.HasCode(suite.supervisor.Restart(suite.ctx, "nope"), errors.ErrCodeComponentNotFound))
}

func (suite *SupervisorTestSuite) TestRestartReplacesOnlyTheNamedWorker() {
	var built atomic.Int64

	suite.Require().NoError(suite.supervisor.Register("a", suite.counted("a", &built)))
	suite.Require().NoError(suite.supervisor.Register("b", suite.counted("b", &built)))
	suite.Require().NoError(suite.supervisor.StartAll(suite.ctx))

	before, ok := suite.supervisor.Worker("b")
	suite.Require().True(ok)
	old, _ := suite.supervisor.Worker("a")

	suite.Require().NoError(suite.supervisor.Restart(suite.ctx, "a"))

	fresh, _ := suite.supervisor.Worker("a")
	suite.NotSame(old, fresh)
	suite.Equal(int64(3), fresh.(*loopWorker).instance)

	after, _ := suite.supervisor.Worker("b")
	suite.Same(before, after)

	status := suite.supervisor.Status()
	suite.True(status["a"].Running)
	suite.Equal(1, status["a"].Restarts)
	suite.True(status["b"].Running)
	suite.Equal(0, status["b"].Restarts)

	suite.Require().NoError(suite.supervisor.StopAll())
}

func (suite *SupervisorTestSuite) TestStopTimesOut() {
	release := make(chan struct{})
	defer close(release)

	suite.Require().NoError(suite.supervisor.Register("stubborn", func() Worker {
		return &stubbornWorker{release: release}
	}))
	suite.Require().NoError(suite.supervisor.Start(suite.ctx, "stubborn"))

	started := time.Now()
	err := suite.supervisor.Stop("stubborn")
	suite.True(errors.HasCode(err, errors.ErrCodeComponentStopTimeout))
	suite.Less(time.Since(started), time.Second)

	// The worker is reported alive while it drains.
	suite.True(suite.supervisor.Status()["stubborn"].Running)
}

func (suite *SupervisorTestSuite) TestRestartDoesNotWaitForever() {
	release := make(chan struct{})
	defer close(release)

	suite.Require().NoError(suite.supervisor.Register("stubborn", func() Worker {
		return &stubbornWorker{release: release}
	}))
	suite.Require().NoError(suite.supervisor.Start(suite.ctx, "stubborn"))
	suite.Require().NoError(suite.supervisor.Restart(suite.ctx, "stubborn"))

	suite.Equal(1, suite.supervisor.Status()["stubborn"].Restarts)
}

func (suite *SupervisorTestSuite) TestPanicIsRecovered() {
	suite.Require().NoError(suite.supervisor.Register("panicky", func() Worker { return panicWorker{} }))
	suite.Require().NoError(suite.supervisor.Start(suite.ctx, "panicky"))

	suite.Eventually(func() bool {
		return !suite.supervisor.Status()["panicky"].Running
	}, time.Second, 5*time.Millisecond)

	lastErr := suite.supervisor.Status()["panicky"].LastError
	suite.Contains(lastErr, "[903]")
	suite.Contains(lastErr, "component panicky panicked: boom")

	// A crashed worker can be started again.
	suite.Require().NoError(suite.supervisor.Start(suite.ctx, "panicky"))
}
