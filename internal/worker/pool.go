// Package worker runs diagnosis jobs concurrently and rate limits calls to
// remote services.
package worker

import (
	"context"
	"sync"
)

// Job is a unit of work executed by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a job produces
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of goroutines. Results are collected as
// they arrive, so Submit never blocks on an unread result.
type Pool struct {
	workers  int
	jobQueue chan Job
	results  chan Result

	collected []Result
	collectWG sync.WaitGroup
	wg        sync.WaitGroup

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPool creates a pool bound to ctx. Cancelling ctx stops the workers.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:  workers,
		jobQueue: make(chan Job, workers*2),
		results:  make(chan Result, workers*2),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers and the result collector
func (p *Pool) Start() {
	p.collectWG.Add(1)
	go func() {
		defer p.collectWG.Done()
		for r := range p.results {
			p.collected = append(p.collected, r)
		}
	}()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.results <- job.Execute(p.ctx)
		}
	}
}

// Submit queues a job. It returns false when the pool has been stopped.
func (p *Pool) Submit(job Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Wait stops accepting jobs, waits for queued ones and returns all results
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	p.collectWG.Wait()
	p.cancel()
	return p.collected
}

// Shutdown stops the workers without draining the queue
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults()
	p.collectWG.Wait()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
