package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Mode names accepted by NewStrategy.
const (
	ModeSync  = "sync"
	ModeSpawn = "spawn"
	ModePool  = "pool"
)

// Strategy runs submitted tasks.
type Strategy interface {
	// Submit runs task now or later. It never blocks waiting for capacity.
	Submit(ctx context.Context, task func(context.Context))

	// Wait blocks until every submitted task, including tasks submitted by
	// tasks, has finished.
	Wait(ctx context.Context) error

	// Close waits up to timeout for outstanding tasks, cancels the rest
	// and releases the workers.
	Close(timeout time.Duration) error

	// Name returns the mode name.
	Name() string
}

// NewStrategy creates the strategy named by mode. workers bounds the
// concurrency of spawn and pool; queueSize is the pool's queue length.
func NewStrategy(mode string, workers, queueSize int) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeSync:
		return NewSynchronous(), nil
	case ModeSpawn:
		return NewSpawn(workers), nil
	case ModePool:
		return NewPool(workers, queueSize), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Synchronous runs every task inline.
type Synchronous struct{}

// NewSynchronous creates a Synchronous strategy.
func NewSynchronous() *Synchronous { return &Synchronous{} }

// Submit runs task before returning.
func (*Synchronous) Submit(ctx context.Context, task func(context.Context)) { task(ctx) }

// Wait returns immediately; nothing is ever outstanding.
func (*Synchronous) Wait(context.Context) error { return nil }

// Close returns immediately.
func (*Synchronous) Close(time.Duration) error { return nil }

// Name returns "sync".
func (*Synchronous) Name() string { return ModeSync }

// Spawn starts one goroutine per task, at most limit at a time.
// Tasks beyond the limit run on the submitting goroutine.
type Spawn struct {
	group   errgroup.Group
	tracker *tracker
	stop    context.Context
	cancel  context.CancelFunc
}

// NewSpawn creates a Spawn strategy. A non-positive limit means no bound.
func NewSpawn(limit int) *Spawn {
	stop, cancel := context.WithCancel(context.Background())
	s := &Spawn{tracker: newTracker(), stop: stop, cancel: cancel}
	if limit > 0 {
		s.group.SetLimit(limit)
	}
	return s
}

// Submit starts task on a new goroutine when the limit allows.
func (s *Spawn) Submit(ctx context.Context, task func(context.Context)) {
	s.tracker.add()
	taskCtx, release := bind(ctx, s.stop)
	run := func() error {
		defer s.tracker.done()
		defer release()
		task(taskCtx)
		return nil
	}
	if !s.group.TryGo(run) {
		_ = run()
	}
}

// Wait blocks until all tasks have finished.
func (s *Spawn) Wait(ctx context.Context) error {
	return s.tracker.wait(ctx)
}

// Close joins outstanding goroutines, cancelling them after timeout.
func (s *Spawn) Close(timeout time.Duration) error {
	err := s.tracker.waitTimeout(timeout)
	pending := s.tracker.count()
	s.cancel()
	_ = s.group.Wait()
	if err != nil {
		return fmt.Errorf("%d tasks cancelled: %w", pending, err)
	}
	return nil
}

// Name returns "spawn".
func (*Spawn) Name() string { return ModeSpawn }

// Pool runs tasks on a fixed number of workers fed by a bounded queue.
// When the queue is full, the submitter runs the task itself.
type Pool struct {
	queue   chan job
	group   errgroup.Group
	tracker *tracker
	stop    context.Context
	cancel  context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx     context.Context
	task    func(context.Context)
	release context.CancelFunc
}

// NewPool starts workers goroutines reading from a queue of queueSize.
// Non-positive values select one worker and a queue of twice the workers.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 2 * workers
	}
	stop, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:   make(chan job, queueSize),
		tracker: newTracker(),
		stop:    stop,
		cancel:  cancel,
	}
	for range workers {
		p.group.Go(func() error {
			for j := range p.queue {
				p.run(j)
			}
			return nil
		})
	}
	return p
}

// Submit enqueues task, or runs it inline when the queue is full or the
// pool is closed.
func (p *Pool) Submit(ctx context.Context, task func(context.Context)) {
	p.tracker.add()
	taskCtx, release := bind(ctx, p.stop)
	j := job{ctx: taskCtx, task: task, release: release}

	p.mu.RLock()
	if !p.closed {
		select {
		case p.queue <- j:
			p.mu.RUnlock()
			return
		default:
		}
	}
	p.mu.RUnlock()
	p.run(j)
}

func (p *Pool) run(j job) {
	defer p.tracker.done()
	defer j.release()
	j.task(j.ctx)
}

// Wait blocks until the queue is drained and every task has finished.
func (p *Pool) Wait(ctx context.Context) error {
	return p.tracker.wait(ctx)
}

// Close drains the queue, cancelling whatever is left after timeout, and
// stops the workers. Close is idempotent.
func (p *Pool) Close(timeout time.Duration) error {
	err := p.tracker.waitTimeout(timeout)
	if err != nil {
		p.cancel()
	}

	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	_ = p.group.Wait()
	p.cancel()
	if err != nil {
		return fmt.Errorf("pending tasks cancelled: %w", err)
	}
	return nil
}

// Name returns "pool".
func (*Pool) Name() string { return ModePool }
