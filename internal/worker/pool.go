package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

// Task is one unit of stage work. It receives the pool context.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed set of goroutines. Tasks still queued when the
// pool context ends are dropped and counted as skipped.
type Pool struct {
	size    int
	queue   chan Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	closing sync.Once

	done    atomic.Int64
	skipped atomic.Int64
}

// NewPool starts size workers bound to parent.
func NewPool(parent context.Context, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	p := &Pool{
		size:   size,
		queue:  make(chan Task, size),
		ctx:    ctx,
		cancel: cancel,
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.queue {
		if p.ctx.Err() != nil {
			p.skipped.Add(1)
			continue
		}
		task(p.ctx)
		p.done.Add(1)
	}
}

// Submit queues task, blocking while every worker is busy. It reports false
// once the pool context has ended.
func (p *Pool) Submit(task Task) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.queue <- task:
		return true
	}
}

// Wait closes the queue and blocks until every queued task ran or was skipped.
func (p *Pool) Wait() {
	p.closing.Do(func() { close(p.queue) })
	p.wg.Wait()
	p.cancel()
}

// Shutdown cancels the pool; queued tasks are skipped.
func (p *Pool) Shutdown() {
	p.cancel()
	p.Wait()
}

// Done is the number of tasks that ran to completion.
func (p *Pool) Done() int64 { return p.done.Load() }

// Skipped is the number of queued tasks dropped after cancellation.
func (p *Pool) Skipped() int64 { return p.skipped.Load() }
