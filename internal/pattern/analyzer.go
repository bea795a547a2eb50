package pattern

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrz1836/go-faultline/internal/db"
	"github.com/mrz1836/go-faultline/internal/errors"
	"github.com/mrz1836/go-faultline/internal/logging"
)

// Report bundles the temporal detections for one (error_type, platform)
// key over a scan window.
type Report struct {
	ErrorType  string
	Platform   string
	From       time.Time
	To         time.Time
	SampleSize int

	Cyclical CyclicalPattern
	Bursts   []Burst
}

// Analyzer runs the cyclical and burst detectors over stored occurrence
// history.
type Analyzer struct {
	errors db.ErrorRepository
	logger *logrus.Entry
}

// NewAnalyzer creates an Analyzer backed by the occurrence store.
func NewAnalyzer(errRepo db.ErrorRepository, logger *logrus.Logger) *Analyzer {
	return &Analyzer{
		errors: errRepo,
		logger: logger.WithField(logging.StandardFields.Component, "pattern"),
	}
}

// Analyze loads the occurrence timestamps for one detection key within
// [from, to) and runs both detectors over them.
func (a *Analyzer) Analyze(ctx context.Context, errorType, platform string, from, to time.Time) (*Report, error) {
	times, err := a.errors.OccurrenceTimes(ctx, errorType, platform, from, to)
	if err != nil {
		return nil, errors.WrapWithContext(err, "load occurrence times")
	}

	report := &Report{
		ErrorType:  errorType,
		Platform:   platform,
		From:       from,
		To:         to,
		SampleSize: len(times),
		Cyclical:   DetectCyclical(times),
		Bursts:     DetectBursts(times),
	}
	a.logReport(report)
	return report, nil
}

// ScanAll analyzes every detection key seen within [from, to). A failed
// key is logged and skipped, never aborting the scan.
func (a *Analyzer) ScanAll(ctx context.Context, from, to time.Time) ([]*Report, error) {
	keys, err := a.errors.DistinctTypePlatforms(ctx, from, to)
	if err != nil {
		return nil, errors.WrapWithContext(err, "list detection keys")
	}

	reports := make([]*Report, 0, len(keys))
	for _, key := range keys {
		report, analyzeErr := a.Analyze(ctx, key.ErrorType, key.Platform, from, to)
		if analyzeErr != nil {
			a.logger.WithFields(logrus.Fields{
				logging.StandardFields.ErrorType: key.ErrorType,
				logging.StandardFields.Platform:  key.Platform,
				logging.StandardFields.Error:     analyzeErr.Error(),
			}).Warn("Failed to analyze detection key")
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (a *Analyzer) logReport(r *Report) {
	entry := a.logger.WithFields(logrus.Fields{
		logging.StandardFields.ErrorType:   r.ErrorType,
		logging.StandardFields.Platform:    r.Platform,
		logging.StandardFields.PatternKind: string(r.Cyclical.Kind),
		logging.StandardFields.BurstCount:  len(r.Bursts),
		"sample_size":                      r.SampleSize,
	})
	if (r.Cyclical.Kind != KindNone && r.Cyclical.Kind != KindUniform) || len(r.Bursts) > 0 {
		entry.Info("Detected temporal pattern")
		return
	}
	entry.Debug("No temporal pattern detected")
}
