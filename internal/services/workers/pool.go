package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/vantage/internal/common"
)

// Job is a unit of work run by one named worker. The worker id stays with
// the goroutine for its whole life, so per-worker state keyed by it is only
// ever touched by that goroutine.
type Job func(ctx context.Context, workerID string) error

// Pool runs jobs on a fixed set of named workers
type Pool struct {
	jobs     chan Job
	size     int
	group    *errgroup.Group
	ctx      context.Context
	cancel   context.CancelFunc
	errors   []error
	errorsMu sync.Mutex
	logger   arbor.ILogger
	start    sync.Once
	stop     sync.Once
}

// WorkerID names the worker at index i
func WorkerID(i int) string {
	return fmt.Sprintf("worker-%d", i+1)
}

// NewPool creates a pool of size workers bound to ctx
func NewPool(ctx context.Context, size int, logger arbor.ILogger) *Pool {
	if size <= 0 {
		size = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		jobs:   make(chan Job, size*2),
		size:   size,
		group:  &errgroup.Group{},
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Size returns the number of workers
func (p *Pool) Size() int { return p.size }

// Start launches the workers. Calling it again has no effect.
func (p *Pool) Start() {
	p.start.Do(func() {
		p.logger.Debug().
			Int("workers", p.size).
			Msg("Starting worker pool")

		for i := 0; i < p.size; i++ {
			id := WorkerID(i)
			p.group.Go(func() error {
				p.worker(id)
				return nil
			})
		}
	})
}

// Submit queues a job, blocking while the queue is full
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
	}

	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Wait closes the queue and blocks until every queued job has run
func (p *Pool) Wait() []error {
	p.stop.Do(func() { close(p.jobs) })
	_ = p.group.Wait()
	p.cancel()
	return p.Errors()
}

// Shutdown cancels the pool context and waits for the workers to exit.
// Jobs still queued are dropped.
func (p *Pool) Shutdown() {
	p.cancel()
	p.Wait()
	p.logger.Debug().Msg("Worker pool shutdown complete")
}

// Errors returns all collected job errors
func (p *Pool) Errors() []error {
	p.errorsMu.Lock()
	defer p.errorsMu.Unlock()
	return append([]error(nil), p.errors...)
}

func (p *Pool) worker(id string) {
	logger := p.logger.WithCorrelationId(id)
	logger.Trace().Msg("Worker started")

	for {
		select {
		case <-p.ctx.Done():
			logger.Trace().Msg("Worker stopping - context cancelled")
			return
		case job, ok := <-p.jobs:
			if !ok {
				logger.Trace().Msg("Worker stopping - job queue closed")
				return
			}

			err := common.CallSafely(logger, id, func() error {
				return job(p.ctx, id)
			})
			if err != nil {
				p.errorsMu.Lock()
				p.errors = append(p.errors, err)
				p.errorsMu.Unlock()

				logger.Debug().Err(err).Msg("Job failed")
			}
		}
	}
}
