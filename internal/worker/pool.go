// Package worker runs the periodic statistical jobs of the aggregation
// core (baseline refresh, pattern and cascade scans, throttle pruning)
// on a fixed-size pool. Jobs only read aggregated history or upsert
// their own keyed rows, so they are safe to run concurrently with
// ongoing ingestion.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Pool errors
var (
	ErrQueueFull    = errors.New("job queue is full")
	ErrTaskPanicked = errors.New("job panicked")
)

// Task is one periodic job.
type Task interface {
	Execute(ctx context.Context) error
	Name() string
}

// Report is the outcome of one job run, delivered on Reports.
type Report struct {
	Task    string
	Err     error
	Elapsed time.Duration
}

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Processed int64
	Active    int32
	Queued    int
}

// Pool runs submitted jobs on a fixed number of goroutines. Panics are
// contained per job, so one bad scan never takes a goroutine down.
type Pool struct {
	queue   chan Task
	reports chan Report
	size    int
	wg      sync.WaitGroup

	processed atomic.Int64
	active    atomic.Int32
}

// NewPool sizes the pool. A non-positive size runs a single goroutine.
func NewPool(size, queueDepth int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		queue:   make(chan Task, queueDepth),
		reports: make(chan Report, queueDepth),
		size:    size,
	}
}

// Start launches the pool goroutines.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Submit enqueues one job without blocking.
func (p *Pool) Submit(task Task) error {
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitBatch enqueues jobs in order, stopping at the first that does
// not fit.
func (p *Pool) SubmitBatch(tasks []Task) error {
	for _, task := range tasks {
		if err := p.Submit(task); err != nil {
			return err
		}
	}
	return nil
}

// Reports exposes per-job outcomes. The channel closes on Shutdown.
func (p *Pool) Reports() <-chan Report {
	return p.reports
}

// Shutdown stops intake, waits for in-flight jobs, and closes the
// report channel.
func (p *Pool) Shutdown() {
	close(p.queue)
	p.wg.Wait()
	close(p.reports)
}

// Snapshot returns the current activity counters.
func (p *Pool) Snapshot() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Active:    p.active.Load(),
		Queued:    len(p.queue),
	}
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()

	for task := range p.queue {
		if ctx.Err() != nil {
			return
		}
		p.reports <- p.execute(ctx, task)
	}
}

// execute runs one job with timing and panic containment.
func (p *Pool) execute(ctx context.Context, task Task) (report Report) {
	p.active.Add(1)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
		report.Task = task.Name()
		report.Elapsed = time.Since(start)
		p.active.Add(-1)
		p.processed.Add(1)
	}()

	report.Err = task.Execute(ctx)
	return report
}
