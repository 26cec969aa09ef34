// Package workerpool runs tasks on a fixed set of goroutines fed by a bounded
// queue. Submission never blocks: a full queue is reported to the caller.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"hazard-service/internal/common/logger"
	"hazard-service/internal/common/metrics"
)

var (
	ErrPoolSaturated = errors.New("worker pool saturated")
	ErrPoolClosed    = errors.New("worker pool closed")
	ErrAwaitTimeout  = errors.New("timed out awaiting task")
	ErrTaskPanic     = errors.New("task panicked")
)

// Task outcomes reported to PoolTasksCompleted.
const (
	resultSuccess   = "success"
	resultFailure   = "failure"
	resultPanic     = "panic"
	resultCancelled = "cancelled"
)

type Pool struct {
	name    string
	size    int
	tasks   chan func()
	log     logger.Logger
	workers sync.WaitGroup

	base      context.Context
	cancelAll context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// New starts size workers behind a queue of queueSize pending tasks.
// A size of zero or less uses one worker per CPU.
func New(name string, size, queueSize int, log logger.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if queueSize < 0 {
		queueSize = 0
	}

	base, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:      name,
		size:      size,
		tasks:     make(chan func(), queueSize),
		log:       log.With(map[string]interface{}{"pool": name}),
		base:      base,
		cancelAll: cancel,
	}

	p.workers.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}

	p.log.Info("worker pool started", map[string]interface{}{
		"size":       size,
		"queue_size": queueSize,
	})
	return p
}

func (p *Pool) worker() {
	defer p.workers.Done()
	for run := range p.tasks {
		metrics.PoolTasksQueued.WithLabelValues(p.name).Dec()
		run()
	}
}

func (p *Pool) Name() string { return p.name }

// Size is the number of workers.
func (p *Pool) Size() int { return p.size }

func (p *Pool) enqueue(run func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		metrics.PoolTasksRejected.WithLabelValues(p.name, "closed").Inc()
		return ErrPoolClosed
	}

	select {
	case p.tasks <- run:
		metrics.PoolTasksQueued.WithLabelValues(p.name).Inc()
		return nil
	default:
		metrics.PoolTasksRejected.WithLabelValues(p.name, "saturated").Inc()
		return ErrPoolSaturated
	}
}

// Future holds the eventual outcome of a submitted task.
type Future[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	val    T
	err    error
}

// Submit queues fn on p. The context passed to fn carries the values of ctx
// but is cancelled only by Await giving up or by a forced Shutdown.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (*Future[T], error) {
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(p.base, cancel)

	f := &Future[T]{done: make(chan struct{}), cancel: cancel}

	run := func() {
		defer close(f.done)
		defer stop()
		defer cancel()

		if err := taskCtx.Err(); err != nil {
			f.err = err
			metrics.PoolTasksCompleted.WithLabelValues(p.name, resultCancelled).Inc()
			return
		}

		active := metrics.PoolTasksActive.WithLabelValues(p.name)
		active.Inc()
		defer active.Dec()

		f.val, f.err = call(taskCtx, p, fn)
	}

	if err := p.enqueue(run); err != nil {
		stop()
		cancel()
		return nil, err
	}
	return f, nil
}

func call[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			val, err = zero, fmt.Errorf("%w: %v", ErrTaskPanic, r)
			metrics.PoolTasksCompleted.WithLabelValues(p.name, resultPanic).Inc()
			p.log.Error("task panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
		}
	}()

	val, err = fn(ctx)
	switch {
	case err == nil:
		metrics.PoolTasksCompleted.WithLabelValues(p.name, resultSuccess).Inc()
	case ctx.Err() != nil:
		metrics.PoolTasksCompleted.WithLabelValues(p.name, resultCancelled).Inc()
	default:
		metrics.PoolTasksCompleted.WithLabelValues(p.name, resultFailure).Inc()
	}
	return val, err
}

// Done is closed when the task has finished or was skipped.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the task finishes or ctx is done. When ctx ends first
// the task's context is cancelled and ErrAwaitTimeout is returned; the worker
// is released once the task observes the cancellation.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		f.cancel()
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrAwaitTimeout, ctx.Err())
	}
}

// Go runs fn without a result. Work that does not fit in the queue is dropped
// and reported through the return value.
func (p *Pool) Go(fn func(ctx context.Context)) bool {
	_, err := Submit(context.Background(), p, func(ctx context.Context) (struct{}, error) {
		fn(ctx)
		return struct{}{}, nil
	})
	if err != nil {
		p.log.Debug("dropping background task", map[string]interface{}{"error": err.Error()})
		return false
	}
	return true
}

// Shutdown stops accepting tasks and waits for queued and running ones. If ctx
// ends first, every outstanding task context is cancelled and ctx's error is
// returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		p.cancelAll()
		p.log.Info("worker pool stopped", nil)
		return nil
	case <-ctx.Done():
		p.cancelAll()
		p.log.Warn("worker pool shutdown timed out, cancelling tasks", map[string]interface{}{
			"error": ctx.Err().Error(),
		})
		return ctx.Err()
	}
}
