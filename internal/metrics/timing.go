// Package metrics provides performance monitoring and timing utilities.
//
// This package implements operation timing with support for context
// metadata and automatic performance warnings. It is designed to provide
// visibility into operation durations across the aggregation core,
// particularly for the periodic statistical jobs (baseline refresh,
// pattern scans) that touch large time ranges.
//
// Usage examples:
//
//	// Basic operation timing
//	timer := metrics.StartTimer(ctx, logger, "baseline_refresh")
//	defer timer.Stop()
//
//	// Timer with additional context
//	timer := metrics.StartTimer(ctx, logger, "cascade_scan").
//	  AddField("error_type", "Net::ReadTimeout")
//	defer timer.Stop()
package metrics

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrz1836/go-faultline/internal/logging"
)

// SlowOperationThreshold is the duration above which an operation is
// logged at warning level instead of debug.
const SlowOperationThreshold = 30 * time.Second

// Timer tracks the duration of an operation with support for additional metadata.
type Timer struct {
	start     time.Time
	operation string
	logger    *logrus.Entry
	fields    logrus.Fields
	ctx       context.Context //nolint:containedctx // Context needed for cancellation checks during timer lifecycle
}

// StartTimer creates a new timer for an operation.
//
// The timer begins tracking duration immediately and integrates with the
// structured logging system; metadata can be attached through AddField.
func StartTimer(ctx context.Context, logger *logrus.Entry, operation string) *Timer {
	return &Timer{
		start:     time.Now(),
		operation: operation,
		logger:    logger.WithField(logging.StandardFields.Operation, operation),
		fields:    make(logrus.Fields),
		ctx:       ctx,
	}
}

// AddField adds a field to be logged when the timer stops.
// Method chaining is supported for multiple field assignments.
func (t *Timer) AddField(key string, value interface{}) *Timer {
	t.fields[key] = value
	return t
}

// Stop stops the timer and logs the duration.
//
// Operations exceeding SlowOperationThreshold are logged at warning level;
// normal operations log at debug level. All entries include duration_ms
// and a human-readable duration.
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)

	t.fields[logging.StandardFields.DurationMs] = duration.Milliseconds()
	t.fields["duration_human"] = duration.String()

	if duration > SlowOperationThreshold {
		t.logger.WithFields(t.fields).Warn("Operation took longer than expected")
	} else {
		t.logger.WithFields(t.fields).Debug("Operation completed")
	}

	return duration
}

// StopWithError stops the timer and logs the duration with error context.
// Failed operations log at error level, successful ones at debug.
func (t *Timer) StopWithError(err error) time.Duration {
	duration := time.Since(t.start)

	t.fields[logging.StandardFields.DurationMs] = duration.Milliseconds()
	t.fields["duration_human"] = duration.String()

	if err != nil {
		t.fields[logging.StandardFields.Error] = err.Error()
		t.fields[logging.StandardFields.Status] = "failed"
		t.logger.WithFields(t.fields).Error("Operation failed")
	} else {
		t.fields[logging.StandardFields.Status] = "completed"
		if duration > SlowOperationThreshold {
			t.logger.WithFields(t.fields).Warn("Operation completed but took longer than expected")
		} else {
			t.logger.WithFields(t.fields).Debug("Operation completed successfully")
		}
	}

	return duration
}

// CheckCancellation reports whether the operation context has been canceled.
// Long-running statistical jobs call this between batches.
func (t *Timer) CheckCancellation() bool {
	select {
	case <-t.ctx.Done():
		return true
	default:
		return false
	}
}
