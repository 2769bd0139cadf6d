package fleet

import (
	"context"
	"sync"
	"time"

	"github.com/drockwell/flotilla/internal/logger"
	"golang.org/x/sync/semaphore"
)

// WorkerPool bounds how many submitted functions run at once. The coordinator
// is agnostic to the primitive behind it; SemaphorePool is the default
// implementation.
type WorkerPool interface {
	// Submit schedules fn, blocking until a slot frees, the context is
	// cancelled, or the pool's submit wait bound expires. fn runs on its own
	// goroutine once admitted.
	Submit(ctx context.Context, fn func()) error

	// Wait blocks until every admitted function has returned.
	Wait()
}

// SemaphorePool implements WorkerPool on a weighted semaphore. The semaphore
// counter is the only process-wide shared state in parallel execution.
type SemaphorePool struct {
	sem        *semaphore.Weighted
	submitWait time.Duration
	log        logger.Logger
	wg         sync.WaitGroup
}

// NewSemaphorePool creates a pool admitting at most size functions at once.
// submitWait bounds how long Submit blocks for a slot; zero means block until
// one frees.
func NewSemaphorePool(size int, submitWait time.Duration, log logger.Logger) *SemaphorePool {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = logger.Noop()
	}
	return &SemaphorePool{
		sem:        semaphore.NewWeighted(int64(size)),
		submitWait: submitWait,
		log:        log,
	}
}

// Submit implements WorkerPool. Returns PoolExhaustedTimeout when the wait
// bound expires before a slot frees, or the context error on cancellation.
func (p *SemaphorePool) Submit(ctx context.Context, fn func()) error {
	acquireCtx := ctx
	if p.submitWait > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.submitWait)
		defer cancel()
	}

	if err := p.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.Warn("pool slot not freed within %s", p.submitWait)
		return &PoolExhaustedTimeout{Wait: p.submitWait}
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn()
	}()
	return nil
}

// Wait implements WorkerPool.
func (p *SemaphorePool) Wait() {
	p.wg.Wait()
}
