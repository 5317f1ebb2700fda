// Package worker provides goroutine pool management.
//
// All concurrency in bulk dispatch goes through Pool with context
// propagation; naked goroutines are not used for member actions.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"nc-warden.io/warden/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission. One pool drives the
// member actions of a bulk operation with bounded concurrency.
type Pool struct {
	pool *ants.Pool
	name string
}

// New creates a pool with the given concurrency bound.
func New(name string, size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.String("pool", name),
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	antsPool, err := ants.NewPool(size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &Pool{pool: antsPool, name: name}, nil
}

// Submit submits a context-aware task. The task receives the caller's
// context and SHOULD check ctx.Done() at blocking points. If the context
// is already cancelled, returns ctx.Err() without submitting.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if p.pool.IsClosed() {
		return ErrPoolClosed
	}

	return p.pool.Submit(func() {
		// Context may have been cancelled while the task sat in the queue.
		select {
		case <-ctx.Done():
			logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
}

// Cap returns the concurrency bound.
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Shutdown releases the pool, waiting up to the timeout for running tasks.
func (p *Pool) Shutdown(timeout time.Duration) {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		logger.Warn("Pool shutdown timeout",
			zap.String("pool", p.name),
			zap.Error(err),
		)
	}
}
