package scheduler

import (
	"context"
	"sync"
	"time"
)

// tracker counts submitted tasks that have not finished yet.
// A task submitted by a running task is added before its parent is done,
// so the count only reaches zero when the whole tree has finished.
type tracker struct {
	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

func newTracker() *tracker {
	idle := make(chan struct{})
	close(idle)
	return &tracker{idle: idle}
}

func (t *tracker) add() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == 0 {
		t.idle = make(chan struct{})
	}
	t.pending++
}

func (t *tracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending--
	if t.pending == 0 {
		close(t.idle)
	}
}

func (t *tracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// wait blocks until no task is pending or ctx is done.
func (t *tracker) wait(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitTimeout waits up to timeout; a non-positive timeout waits forever.
func (t *tracker) waitTimeout(timeout time.Duration) error {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return t.wait(ctx)
}

// runKey carries the context tasks of one submission tree are bound to.
type runKey struct{}

// bind derives a task context that is cancelled when the run context or
// stop is done. The run context is the one the first task was submitted
// with; tasks submitted by tasks inherit it, so a finished parent never
// cancels its children.
func bind(parent, stop context.Context) (context.Context, context.CancelFunc) {
	run, ok := parent.Value(runKey{}).(context.Context)
	if !ok {
		run = parent
	}
	ctx, cancel := context.WithCancelCause(context.WithValue(context.WithoutCancel(parent), runKey{}, run))
	stopRun := context.AfterFunc(run, func() {
		cancel(context.Cause(run))
	})
	stopClose := context.AfterFunc(stop, func() {
		cancel(ErrClosed)
	})
	return ctx, func() {
		stopRun()
		stopClose()
		cancel(nil)
	}
}
