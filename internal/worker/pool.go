package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hookline/hookline/internal/store"
)

// Handler processes one claimed delivery.
type Handler interface {
	Handle(ctx context.Context, job store.ClaimedDelivery)
}

// Pool manages a fixed number of worker goroutines that process claimed
// deliveries.
type Pool struct {
	numWorkers int
	jobs       chan store.ClaimedDelivery
	done       chan struct{}
	handler    Handler
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(numWorkers int, handler Handler, logger *slog.Logger) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan store.ClaimedDelivery, numWorkers*2),
		done:       make(chan struct{}),
		handler:    handler,
		logger:     logger,
	}
}

// Start launches all worker goroutines. They read from the jobs channel
// until the pool is stopped or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit hands a job to the pool. Returns false once the pool is stopping;
// the caller must not retry. The jobs channel is never closed, so a Submit
// racing Stop blocks until a worker takes the job or shutdown wins, it never
// panics. A claim dropped here stays in "sending" and is rescued by the
// stale sweep.
func (p *Pool) Submit(job store.ClaimedDelivery) bool {
	select {
	case <-p.done:
		return false
	case p.jobs <- job:
		return true
	}
}

// Stop signals shutdown and waits for all workers to finish their current
// job. Jobs still buffered are abandoned to the stale sweep.
func (p *Pool) Stop() {
	close(p.done)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker is a single goroutine that processes jobs from the channel.
func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			p.handler.Handle(ctx, job)
		}
	}
}
