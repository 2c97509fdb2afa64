// Package queue provides the bounded FIFO channels workers talk through.
package queue

import (
	"context"
	"errors"
	"time"
)

var ErrQueueFull = errors.New("queue full")

// DefaultCapacity is the capacity of the market-data and signal queues.
const DefaultCapacity = 1000

// Queue is a bounded, thread-safe FIFO. It is never closed so producers and
// consumers can be restarted independently.
type Queue[T any] struct {
	ch chan T
}

// New allocates a queue with the given capacity.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}

	return &Queue[T]{ch: make(chan T, capacity)}
}

// Publish enqueues v, blocking while the queue is full until ctx is done.
func (q *Queue[T]) Publish(ctx context.Context, v T) error {
	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPublish enqueues v without blocking.
func (q *Queue[T]) TryPublish(v T) error {
	select {
	case q.ch <- v:
		return nil
	default:
		return ErrQueueFull
	}
}

// Next waits up to timeout for the next item. ok is false on timeout or when ctx is done.
func (q *Queue[T]) Next(ctx context.Context, timeout time.Duration) (v T, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v = <-q.ch:
		return v, true
	case <-timer.C:
		return v, false
	case <-ctx.Done():
		return v, false
	}
}

// Drain removes up to limit items that are immediately available. limit <= 0 means all.
func (q *Queue[T]) Drain(limit int) []T {
	var items []T

	for limit <= 0 || len(items) < limit {
		select {
		case v := <-q.ch:
			items = append(items, v)
		default:
			return items
		}
	}

	return items
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}
