package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var ErrPoolClosed = errors.New("worker pool closed")

// WorkerPool runs long queries off the request path on a fixed number of slots.
type WorkerPool struct {
	size   int
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// Job is the handle of a function submitted to a WorkerPool.
type Job struct {
	done chan struct{}
	err  error
}

func (j *Job) finish(err error) {
	j.err = err
	close(j.done)
}

// Wait blocks until the job is done and returns its error.
func (j *Job) Wait() error {
	<-j.done
	return j.err
}

func (j *Job) Done() <-chan struct{} { return j.done }

func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{size: size, sem: semaphore.NewWeighted(int64(size))}
}

func (p *WorkerPool) Size() int { return p.size }

// Go runs fn on a free slot. It blocks while every slot is busy, until ctx is done.
func (p *WorkerPool) Go(ctx context.Context, fn func(ctx context.Context) error) *Job {
	job := &Job{done: make(chan struct{})}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		job.finish(ErrPoolClosed)
		return job
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		job.finish(errors.Wrap(err, "waiting for a worker"))
		return job
	}
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		job.finish(run(ctx, fn))
	}()
	return job
}

func run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Group runs all fns on the pool and returns the first error; the others see a cancelled ctx.
func (p *WorkerPool) Group(ctx context.Context, fns ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			return p.Go(gctx, fn).Wait()
		})
	}
	return g.Wait()
}

// Close refuses new jobs and waits for the running ones.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
