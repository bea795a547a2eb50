// Package ingest wires the capture path together: filter gate,
// aggregation engine, and the first-occurrence fan-out to priority
// scoring, notification throttling, and anomaly checking.
//
// The pipeline's Capture method is the boundary with the instrumented
// application: nothing that happens in here, including store failures and
// dispatcher failures, ever propagates back to the caller.
package ingest

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrz1836/go-faultline/internal/aggregate"
	"github.com/mrz1836/go-faultline/internal/baseline"
	"github.com/mrz1836/go-faultline/internal/db"
	"github.com/mrz1836/go-faultline/internal/filter"
	"github.com/mrz1836/go-faultline/internal/logging"
	"github.com/mrz1836/go-faultline/internal/signal"
	"github.com/mrz1836/go-faultline/internal/throttle"
)

// Dispatcher is the notification-dispatch collaborator. It owns
// channel-specific payload construction and delivery; its failures are
// logged here and never propagate into the core.
type Dispatcher interface {
	Dispatch(ctx context.Context, result *aggregate.Result, anomaly *baseline.AnomalyInfo) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, result *aggregate.Result, anomaly *baseline.AnomalyInfo) error

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, result *aggregate.Result, anomaly *baseline.AnomalyInfo) error {
	return f(ctx, result, anomaly)
}

// Pipeline composes the capture path for error signals.
type Pipeline struct {
	filter     *filter.Filter
	engine     *aggregate.Engine
	throttler  *throttle.Notifier
	detector   *baseline.Detector
	dispatcher Dispatcher
	repo       db.ErrorRepository
	logger     *logrus.Entry
}

// NewPipeline creates a Pipeline. The dispatcher may be nil, in which
// case notification decisions are still made (and throttle state still
// advances) but nothing is delivered.
func NewPipeline(f *filter.Filter, engine *aggregate.Engine, throttler *throttle.Notifier, detector *baseline.Detector, dispatcher Dispatcher, repo db.ErrorRepository, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		filter:     f,
		engine:     engine,
		throttler:  throttler,
		detector:   detector,
		dispatcher: dispatcher,
		repo:       repo,
		logger:     logger.WithField(logging.StandardFields.Component, "ingest"),
	}
}

// Capture ingests one error signal. It never returns an error and never
// panics outward: a failed capture means "error not recorded" and the
// instrumented application moves on.
func (p *Pipeline) Capture(ctx context.Context, sig *signal.ErrorSignal) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("panic", r).Error("Capture panicked, signal dropped")
		}
	}()

	if !p.filter.ShouldCapture(sig) {
		return
	}

	result, err := p.engine.Record(ctx, sig)
	if err != nil {
		// Already logged by the engine with full context.
		return
	}

	if result.FirstOccurrence() || result.JustReopened {
		p.fanOut(ctx, sig, result)
		return
	}

	// Recurring occurrences only escalate on milestone counts; anomaly
	// evaluation for ongoing records happens in the periodic jobs.
	if throttle.ThresholdReached(result.Record.OccurrenceCount) {
		p.notify(ctx, result, nil, true)
	}
}

// fanOut runs the independent first-occurrence checks: anomaly detection
// against today's count and the throttled notification decision.
func (p *Pipeline) fanOut(ctx context.Context, sig *signal.ErrorSignal, result *aggregate.Result) {
	var anomaly *baseline.AnomalyInfo
	if info := p.checkAnomaly(ctx, sig); info != nil && p.detector.ShouldAlert(*info) {
		anomaly = info
	}

	if p.throttler.ShouldNotify(result.Record.Fingerprint, result.Severity) {
		p.notify(ctx, result, anomaly, false)
	}
}

// checkAnomaly compares today's count for the signal's detection key
// against its baseline. Failures yield nil, never an aborted capture.
func (p *Pipeline) checkAnomaly(ctx context.Context, sig *signal.ErrorSignal) *baseline.AnomalyInfo {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	counts, err := p.repo.CountsByPeriod(ctx, sig.Type, sig.Platform, db.PeriodDaily, dayStart, now.Add(time.Second))
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			logging.StandardFields.ErrorType: sig.Type,
			logging.StandardFields.Error:     err.Error(),
		}).Warn("Failed to load today's count for anomaly check")
		return nil
	}

	var today int64
	for _, c := range counts {
		today += c.Count
	}

	info := p.detector.CheckAnomaly(ctx, sig.Type, sig.Platform, today)
	if info.Level == baseline.LevelNone {
		return nil
	}
	return &info
}

// notify invokes the dispatcher and advances throttle state. Milestone
// escalations bypass the cooldown but still record a notification so the
// cooldown restarts from the escalation.
func (p *Pipeline) notify(ctx context.Context, result *aggregate.Result, anomaly *baseline.AnomalyInfo, escalation bool) {
	if p.dispatcher != nil {
		if err := p.dispatcher.Dispatch(ctx, result, anomaly); err != nil {
			p.logger.WithFields(logrus.Fields{
				logging.StandardFields.Fingerprint: result.Record.Fingerprint,
				logging.StandardFields.Error:       err.Error(),
			}).Warn("Notification dispatch failed")
			return
		}
	}
	p.throttler.MarkNotified(result.Record.Fingerprint)

	p.logger.WithFields(logrus.Fields{
		logging.StandardFields.Fingerprint:     result.Record.Fingerprint,
		logging.StandardFields.OccurrenceCount: result.Record.OccurrenceCount,
		logging.StandardFields.JustReopened:    result.JustReopened,
		"escalation":                           escalation,
	}).Debug("Notification dispatched")
}
