// Package background runs best-effort side effects detached from the request
// that triggered them. Failures are logged, never returned.
package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 10 * time.Second

type Group struct {
	logger  *logrus.Logger
	timeout time.Duration
	wg      sync.WaitGroup

	mu      sync.RWMutex
	closing bool
}

func NewGroup(l *logrus.Logger, timeout time.Duration) *Group {
	if l == nil {
		l = logrus.New()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Group{logger: l, timeout: timeout}
}

// Go runs fn in its own goroutine with a context that keeps ctx's values but
// not its cancellation, bounded by the group timeout. Once Close has been
// called fn runs on the caller's goroutine instead.
func (g *Group) Go(ctx context.Context, op string, fn func(ctx context.Context) error) {
	g.mu.RLock()
	if g.closing {
		g.mu.RUnlock()
		g.exec(ctx, op, fn)
		return
	}
	g.wg.Add(1)
	g.mu.RUnlock()

	go func() {
		defer g.wg.Done()
		g.exec(ctx, op, fn)
	}()
}

// Wait blocks until every task started with Go has returned.
func (g *Group) Wait() { g.wg.Wait() }

// Close stops detaching new tasks and waits for the running ones.
func (g *Group) Close() {
	g.mu.Lock()
	g.closing = true
	g.mu.Unlock()
	g.wg.Wait()
}

func (g *Group) exec(ctx context.Context, op string, fn func(ctx context.Context) error) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	if err := g.run(tctx, fn); err != nil {
		g.logger.WithError(err).WithField("op", op).Warn("background task failed")
	}
}

func (g *Group) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
