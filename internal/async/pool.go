package async

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

// Task is a unit of detached background work
type Task func(ctx context.Context)

// Pool runs detached tasks on a fixed number of workers.
// Submit never blocks: when the queue is full the task is dropped.
type Pool struct {
	tasks  chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *logger.Logger

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	dropped   atomic.Int64
	panicked  atomic.Int64
}

// PoolStats is a point-in-time snapshot of a Pool
type PoolStats struct {
	Submitted int64 `json:"submitted"`
	Dropped   int64 `json:"dropped"`
	Panicked  int64 `json:"panicked"`
	Queued    int   `json:"queued"`
}

// NewPool starts workers goroutines draining a queue of queueSize tasks
func NewPool(workers, queueSize int, log *logger.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: log.WithModule("async-pool"),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.logger.WithFields(map[string]interface{}{
				"worker": id,
				"panic":  fmt.Sprint(r),
			}).Error("background task panicked")
		}
	}()
	task(p.ctx)
}

// Submit enqueues task without blocking. Returns false when the pool is
// closed or its queue is full.
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		return false
	}

	select {
	case p.tasks <- task:
		p.submitted.Add(1)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("background queue full, task dropped")
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
// When ctx expires first the running tasks see their context cancelled.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("pool did not drain: %w", ctx.Err())
	}
}

// Stats returns the pool counters
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Submitted: p.submitted.Load(),
		Dropped:   p.dropped.Load(),
		Panicked:  p.panicked.Load(),
		Queued:    len(p.tasks),
	}
}
