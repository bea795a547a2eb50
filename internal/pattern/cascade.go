package pattern

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrz1836/go-faultline/internal/db"
	"github.com/mrz1836/go-faultline/internal/errors"
	"github.com/mrz1836/go-faultline/internal/logging"
)

// DefaultCascadeDelay is the widest parent->child delay still treated as
// a causal follow.
const DefaultCascadeDelay = 5 * time.Minute

// Tracker maintains directed cascade edges between error types.
type Tracker struct {
	errors   db.ErrorRepository
	cascades db.CascadeRepository
	maxDelay time.Duration
	logger   *logrus.Entry
}

// NewTracker creates a cascade Tracker. A non-positive maxDelay uses
// DefaultCascadeDelay.
func NewTracker(errRepo db.ErrorRepository, cascadeRepo db.CascadeRepository, maxDelay time.Duration, logger *logrus.Logger) *Tracker {
	if maxDelay <= 0 {
		maxDelay = DefaultCascadeDelay
	}
	return &Tracker{
		errors:   errRepo,
		cascades: cascadeRepo,
		maxDelay: maxDelay,
		logger:   logger.WithField(logging.StandardFields.Component, "cascade"),
	}
}

// RecordCascade upserts one parent->child detection with the observed
// delay. The edge's running average delay and probability (frequency over
// the parent's total occurrence count; unset when the parent has no
// recorded occurrences) are updated by the repository.
func (t *Tracker) RecordCascade(ctx context.Context, parentType, childType string, delay time.Duration, detectedAt time.Time) (*db.CascadePattern, error) {
	parentTotal, err := t.errors.TotalOccurrences(ctx, parentType)
	if err != nil {
		return nil, errors.WrapWithContext(err, "count parent occurrences")
	}

	edge, err := t.cascades.Upsert(ctx, parentType, childType, delay.Seconds(), parentTotal, detectedAt)
	if err != nil {
		return nil, errors.WrapWithContext(err, "upsert cascade edge")
	}

	fields := logrus.Fields{
		logging.StandardFields.ParentType: parentType,
		logging.StandardFields.ChildType:  childType,
		"frequency":                       edge.Frequency,
		"avg_delay_seconds":               edge.AvgDelaySeconds,
	}
	if edge.CascadeProbability != nil {
		fields[logging.StandardFields.CascadeProb] = *edge.CascadeProbability
	}
	t.logger.WithFields(fields).Debug("Recorded cascade detection")

	return edge, nil
}

// Scan walks occurrences within [from, to) in time order and records a
// cascade detection for each occurrence pair where a different error type
// first follows a parent occurrence within the delay window. One parent
// occurrence contributes at most one detection per child type, so a noisy
// child does not inflate frequency from a single trigger.
func (t *Tracker) Scan(ctx context.Context, from, to time.Time) (int, error) {
	occurrences, err := t.errors.RecentOccurrences(ctx, from, to)
	if err != nil {
		return 0, errors.WrapWithContext(err, "load occurrences for cascade scan")
	}

	detections := 0
	for i, parent := range occurrences {
		seenChildren := make(map[string]struct{})
		for j := i + 1; j < len(occurrences); j++ {
			child := occurrences[j]
			delay := child.OccurredAt.Sub(parent.OccurredAt)
			if delay > t.maxDelay {
				break
			}
			if child.ErrorType == parent.ErrorType {
				continue
			}
			if _, dup := seenChildren[child.ErrorType]; dup {
				continue
			}
			seenChildren[child.ErrorType] = struct{}{}

			if _, recErr := t.RecordCascade(ctx, parent.ErrorType, child.ErrorType, delay, child.OccurredAt); recErr != nil {
				// One bad edge never aborts the scan.
				t.logger.WithFields(logrus.Fields{
					logging.StandardFields.ParentType: parent.ErrorType,
					logging.StandardFields.ChildType:  child.ErrorType,
					logging.StandardFields.Error:      recErr.Error(),
				}).Warn("Failed to record cascade detection")
				continue
			}
			detections++
		}
	}
	return detections, nil
}
