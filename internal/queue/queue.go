// Package queue bounds the number of outstanding calls to the completion
// service.
//
// Tasks are dispatched in FIFO order among waiters; completion order is not
// guaranteed. Each dispatched task gets a context that is cancelled when its
// timeout fires. A task that ignores cancellation keeps its slot until it
// returns, even though its caller has already been given ErrTimeout.
package queue

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromatech/advisor/internal/utils"
)

const (
	DefaultMaxConcurrent = 5
	DefaultTimeout       = 30 * time.Second
)

var ErrTimeout = errors.New("queue task timed out")

// Status is a point-in-time view used for monitoring.
type Status struct {
	Running       int `json:"running"`
	Queued        int `json:"queued"`
	MaxConcurrent int `json:"max_concurrent"`
}

type waiter struct {
	ready      chan struct{}
	elem       *list.Element
	dispatched bool
}

type Queue struct {
	max     int
	timeout time.Duration

	mu      sync.Mutex
	running int
	pending *list.List // of *waiter
}

func New(maxConcurrent int, timeout time.Duration) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Queue{max: maxConcurrent, timeout: timeout, pending: list.New()}
}

// Do waits for a free slot, then runs task with a per-task timeout.
func (q *Queue) Do(ctx context.Context, task func(ctx context.Context) error) error {
	const op = "Queue.Do"

	enqueued := time.Now()
	if err := q.acquire(ctx); err != nil {
		return err
	}
	waitSeconds.Observe(time.Since(enqueued).Seconds())

	tctx, cancel := context.WithTimeout(ctx, q.timeout)
	done := make(chan error, 1)

	go func() {
		defer q.release()
		defer cancel()
		done <- safeRun(tctx, task)
	}()

	select {
	case err := <-done:
		return err
	case <-tctx.Done():
		// done is written before cancel runs, so a finished task is visible here.
		select {
		case err := <-done:
			return err
		default:
		}
		if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			timeoutsTotal.Inc()
			return utils.E(utils.CodeTimeout, op, "AI service is busy, try again", ErrTimeout)
		}
		return ctx.Err()
	}
}

// Submit runs task through q and returns its value.
func Submit[T any](ctx context.Context, q *Queue, task func(ctx context.Context) (T, error)) (T, error) {
	res := make(chan T, 1)
	err := q.Do(ctx, func(ctx context.Context) error {
		v, err := task(ctx)
		if err != nil {
			return err
		}
		res <- v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return <-res, nil
}

func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{Running: q.running, Queued: q.pending.Len(), MaxConcurrent: q.max}
}

func (q *Queue) acquire(ctx context.Context) error {
	q.mu.Lock()
	if q.running < q.max {
		q.running++
		q.observeLocked()
		q.mu.Unlock()
		return nil
	}
	w := &waiter{ready: make(chan struct{})}
	w.elem = q.pending.PushBack(w)
	q.observeLocked()
	q.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		if !w.dispatched {
			q.pending.Remove(w.elem)
			q.observeLocked()
			q.mu.Unlock()
			return ctx.Err()
		}
		q.mu.Unlock()
		// The slot was handed over concurrently; give it back.
		q.release()
		return ctx.Err()
	}
}

// release frees a slot or hands it straight to the oldest waiter.
func (q *Queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if front := q.pending.Front(); front != nil {
		w := q.pending.Remove(front).(*waiter)
		w.dispatched = true
		close(w.ready)
	} else {
		q.running--
	}
	q.observeLocked()
}

func (q *Queue) observeLocked() {
	runningGauge.Set(float64(q.running))
	queuedGauge.Set(float64(q.pending.Len()))
}

func safeRun(ctx context.Context, task func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue task panic: %v", r)
		}
	}()
	return task(ctx)
}
