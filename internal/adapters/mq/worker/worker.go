// Package worker runs the delivery workers that move rating-change
// events from the queue to the broadcast hub.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/duelo/internal/adapters/mq/queue"
	"github.com/okian/duelo/pkg/logger"
	"github.com/okian/duelo/pkg/metrics"
)

// workerShutdownTimeout bounds how long Stop waits per worker.
const workerShutdownTimeout = 5 * time.Second

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Router fans a single event out to interested subscribers.
type Router interface {
	Route(ctx context.Context, e Event)
}

// Source defines how workers receive events.
type Source interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker drains events from a source and hands them to the router.
type Worker struct {
	source Source
	router Router
	name   string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewWorker creates a new delivery worker with configuration options.
func NewWorker(source Source, router Router, opts ...Option) *Worker {
	w := &Worker{
		source:   source,
		router:   router,
		name:     "delivery",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("delivery"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run starts the worker loop until ctx is canceled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.source.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			start := time.Now()
			w.router.Route(ctx, event)
			metrics.RecordDeliveryLatency(float64(time.Since(start).Milliseconds()))
		}
	}
}

// signalShutdown closes the shutdown channel exactly once.
func (w *Worker) signalShutdown() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.signalShutdown()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "delivery worker shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Pool manages a fixed set of delivery workers.
type Pool struct {
	workers []*Worker

	logger logger.Logger
}

// NewPool creates workerCount delivery workers over the same source.
func NewPool(workerCount int, source Source, router Router) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	p := &Pool{
		workers: make([]*Worker, workerCount),
		logger:  logger.Get().Named("delivery-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewWorker(source, router, WithName(fmt.Sprintf("delivery-%d", i)))
	}
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals all workers and waits briefly for each to finish.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.signalShutdown()
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}
