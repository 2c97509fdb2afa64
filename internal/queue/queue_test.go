package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type QueueTestSuite struct {
	suite.Suite
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueTestSuite))
}

func (suite *QueueTestSuite) TestFIFOOrder() {
	q := New[int](4)
	ctx := context.Background()

	for i := range 3 {
		suite.Require().NoError(q.Publish(ctx, i))
	}

	suite.Equal([]int{0, 1, 2}, q.Drain(0))
	suite.Equal(0, q.Len())
}

func (suite *QueueTestSuite) TestTryPublishFull() {
	q := New[string](1)
	suite.NoError(q.TryPublish("a"))
	suite.ErrorIs(q.TryPublish("b"), ErrQueueFull)
}

func (suite *QueueTestSuite) TestPublishBlocksUntilContextDone() {
	q := New[int](1)
	suite.Require().NoError(q.TryPublish(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	suite.ErrorIs(q.Publish(ctx, 2), context.DeadlineExceeded)
}

func (suite *QueueTestSuite) TestNextTimeout() {
	q := New[int](1)

	_, ok := q.Next(context.Background(), 10*time.Millisecond)
	suite.False(ok)

	suite.Require().NoError(q.TryPublish(7))
	v, ok := q.Next(context.Background(), time.Second)
	suite.True(ok)
	suite.Equal(7, v)
}

func (suite *QueueTestSuite) TestDrainLimit() {
	q := New[int](5)
	for i := range 5 {
		suite.Require().NoError(q.TryPublish(i))
	}

	suite.Equal([]int{0, 1}, q.Drain(2))
	suite.Equal(3, q.Len())
	suite.Equal(5, q.Cap())
}
