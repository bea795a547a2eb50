package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrz1836/go-faultline/internal/logging"
	"github.com/mrz1836/go-faultline/internal/metrics"
	"github.com/mrz1836/go-faultline/internal/worker"
)

// Runner schedules the periodic statistical jobs on a worker pool. The
// jobs only read aggregated history (plus their own keyed upserts), so
// running them alongside live ingestion is safe.
type Runner struct {
	pool     *worker.Pool
	tasks    []worker.Task
	interval time.Duration
	logger   *logrus.Entry
	poolUp   atomic.Bool
	ticking  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
}

// NewRunner creates a Runner that submits the given tasks every interval.
func NewRunner(tasks []worker.Task, interval time.Duration, logger *logrus.Logger) *Runner {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Runner{
		pool:     worker.NewPool(2, len(tasks)*4),
		tasks:    tasks,
		interval: interval,
		logger:   logger.WithField(logging.StandardFields.Component, "runner"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the pool, the result drain, and the scheduling loop.
// Subsequent calls are no-ops.
func (r *Runner) Start(ctx context.Context) {
	r.ensurePool(ctx)

	if !r.ticking.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				r.submitAll(ctx)
			}
		}
	}()
}

// RunOnce submits every task immediately, outside the ticker schedule.
func (r *Runner) RunOnce(ctx context.Context) {
	r.ensurePool(ctx)
	r.submitAll(ctx)
}

// Stop halts scheduling and shuts the pool down, waiting for in-flight
// tasks to finish. Safe to call whether or not Start ever ran.
func (r *Runner) Stop() {
	close(r.stop)
	if r.ticking.Load() {
		<-r.done
	}
	r.pool.Shutdown()
}

func (r *Runner) ensurePool(ctx context.Context) {
	if r.poolUp.CompareAndSwap(false, true) {
		r.pool.Start(ctx)
		go r.drainReports()
	}
}

func (r *Runner) submitAll(ctx context.Context) {
	timer := metrics.StartTimer(ctx, r.logger, "submit_periodic_tasks")
	defer timer.Stop()

	for _, task := range r.tasks {
		if err := r.pool.Submit(task); err != nil {
			r.logger.WithFields(logrus.Fields{
				"task":                       task.Name(),
				logging.StandardFields.Error: err.Error(),
			}).Warn("Failed to submit periodic task")
		}
	}
}

// drainReports logs job outcomes until the pool closes its channel.
func (r *Runner) drainReports() {
	for report := range r.pool.Reports() {
		entry := r.logger.WithFields(logrus.Fields{
			"task":                            report.Task,
			logging.StandardFields.DurationMs: report.Elapsed.Milliseconds(),
		})
		if report.Err != nil {
			entry.WithField(logging.StandardFields.Error, report.Err.Error()).
				Warn("Periodic task failed")
			continue
		}
		entry.Debug("Periodic task completed")
	}
}
