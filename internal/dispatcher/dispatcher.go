// Package dispatcher runs the pool of run workers that drain the submission
// queue in server mode.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
	"github.com/JakeFAU/sirup-adspend/internal/worker"
)

// lengther is implemented by queues that can report their backlog.
type lengther interface {
	Len() int
}

// Dispatcher owns the run workers and is the API's entry point for
// submitting runs.
type Dispatcher struct {
	queue   procurement.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher over queue. Every worker should consume the
// same queue.
func New(queue procurement.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{queue: queue, workers: workers}
}

// Run blocks until every worker has returned: on context cancellation, or
// once the queue is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Go(func() { w.Run(ctx) })
	}
	wg.Wait()
}

// Workers is the number of runs that can execute at once.
func (d *Dispatcher) Workers() int {
	return len(d.workers)
}

// Pending is the number of submitted runs no worker has picked up yet, or
// -1 when the queue cannot tell.
func (d *Dispatcher) Pending() int {
	if l, ok := d.queue.(lengther); ok {
		return l.Len()
	}
	return -1
}

// Submit hands a run to the workers. It blocks while the queue is full.
func (d *Dispatcher) Submit(ctx context.Context, item procurement.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("submit run %s: %w", item.RunID, err)
	}
	return nil
}
