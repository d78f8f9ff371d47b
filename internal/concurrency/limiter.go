// Package concurrency implements the bounded-parallelism scheduler
// that an Upload Task uses to cap its simultaneous uploadChunk calls.
//
// No generic worker-pool library is warranted here: this is in-process
// concurrency control, a different concern from a cross-process broker
// like RabbitMQ. This package is one of the few places this tree reaches
// for stdlib sync/chan primitives instead of a third-party dependency.
package concurrency

import (
	"context"
	"sync"

	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
)

// Task is a unit of work submitted to a Limiter. It receives the context
// passed to Run and returns its own result or error.
type Task func(ctx context.Context) (any, error)

// Limiter bounds how many submitted Tasks run concurrently. Pending tasks
// are released in FIFO submission order; active tasks are never preempted.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	active  int
	pending []*pendingTask
}

type pendingTask struct {
	ctx    context.Context
	task   Task
	result chan taskResult
}

type taskResult struct {
	value any
	err   error
}

// New constructs a Limiter with the given initial concurrency limit. limit
// must be > 0.
func New(limit int) (*Limiter, error) {
	if limit <= 0 {
		return nil, xerr.NewCodeError(xerr.InvalidArgumentCode, xerr.ErrInvalidArgument)
	}
	return &Limiter{limit: limit}, nil
}

// Run submits fn for execution, blocking the calling goroutine until fn has
// actually run (not until it's merely scheduled) and returning its result.
// A failing fn does not cancel peers queued alongside it.
func (l *Limiter) Run(ctx context.Context, fn Task) (any, error) {
	pt := &pendingTask{ctx: ctx, task: fn, result: make(chan taskResult, 1)}

	l.mu.Lock()
	if l.active < l.limit {
		l.active++
		l.mu.Unlock()
		l.execute(pt)
	} else {
		l.pending = append(l.pending, pt)
		l.mu.Unlock()
	}

	select {
	case res := <-pt.result:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// execute runs pt's task on a new goroutine and returns immediately; when
// the task completes, that goroutine delivers its result and releases the
// next pending task (if any).
func (l *Limiter) execute(pt *pendingTask) {
	go func() {
		value, err := pt.task(pt.ctx)
		pt.result <- taskResult{value: value, err: err}
		l.release()
	}()
}

// release is called after one active task finishes; it pops the next FIFO
// pending task (if any) and starts it, preserving the active count.
func (l *Limiter) release() {
	l.mu.Lock()
	if len(l.pending) == 0 {
		l.active--
		l.mu.Unlock()
		return
	}
	next := l.pending[0]
	l.pending = l.pending[1:]
	l.mu.Unlock()
	l.execute(next)
}

// UpdateLimit changes the concurrency ceiling for subsequent acquisitions.
// Already-active tasks keep running under the old discipline. n must be > 0.
func (l *Limiter) UpdateLimit(n int) error {
	if n <= 0 {
		return xerr.NewCodeError(xerr.InvalidArgumentCode, xerr.ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = n

	// Newly freed headroom may let queued tasks start immediately.
	for l.active < l.limit && len(l.pending) > 0 {
		next := l.pending[0]
		l.pending = l.pending[1:]
		l.active++
		l.mu.Unlock()
		l.execute(next)
		l.mu.Lock()
	}
	return nil
}

// GetLimit returns the current concurrency ceiling.
func (l *Limiter) GetLimit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// ActiveCount returns the number of tasks currently running.
func (l *Limiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// PendingCount returns the number of tasks queued but not yet started.
func (l *Limiter) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// ClearQueue discards all pending-but-not-started tasks. Active tasks are
// not cancelled; their results are simply delivered to whichever caller is
// still waiting on them. Cleared tasks never run and their Run callers
// observe ctx cancellation or must be tracked by the caller separately —
// here callers are released with a cancellation-flavored error so Run does
// not block forever.
func (l *Limiter) ClearQueue() int {
	l.mu.Lock()
	cleared := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, pt := range cleared {
		pt.result <- taskResult{err: xerr.NewCodeError(xerr.InvalidTransitionCode, xerr.ErrInvalidTransition)}
	}
	return len(cleared)
}
