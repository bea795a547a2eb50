package ingest

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/go-faultline/internal/baseline"
	"github.com/mrz1836/go-faultline/internal/db"
	"github.com/mrz1836/go-faultline/internal/errors"
	"github.com/mrz1836/go-faultline/internal/pattern"
	"github.com/mrz1836/go-faultline/internal/throttle"
)

// baselineRefreshConcurrency bounds parallel per-key refreshes so a large
// key space does not monopolize the store connection.
const baselineRefreshConcurrency = 4

// BaselineRefreshTask recomputes baselines for every (error_type,
// platform) key seen within the lookback, across all period types.
type BaselineRefreshTask struct {
	Detector *baseline.Detector
	Repo     db.ErrorRepository
	Lookback time.Duration
}

// Name implements worker.Task.
func (t *BaselineRefreshTask) Name() string { return "baseline_refresh" }

// Execute implements worker.Task.
func (t *BaselineRefreshTask) Execute(ctx context.Context) error {
	now := time.Now().UTC()
	keys, err := t.Repo.DistinctTypePlatforms(ctx, now.Add(-t.Lookback), now)
	if err != nil {
		return errors.WrapWithContext(err, "list detection keys")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(baselineRefreshConcurrency)
	for _, key := range keys {
		for _, periodType := range []string{db.PeriodHourly, db.PeriodDaily, db.PeriodWeekly} {
			key, periodType := key, periodType
			g.Go(func() error {
				_, refreshErr := t.Detector.Refresh(gctx, key.ErrorType, key.Platform, periodType)
				return refreshErr
			})
		}
	}
	return g.Wait()
}

// PatternScanTask runs the cyclical and burst detectors over every
// (error_type, platform) key seen within the scan window.
type PatternScanTask struct {
	Analyzer *pattern.Analyzer
	Window   time.Duration
}

// Name implements worker.Task.
func (t *PatternScanTask) Name() string { return "pattern_scan" }

// Execute implements worker.Task.
func (t *PatternScanTask) Execute(ctx context.Context) error {
	now := time.Now().UTC()
	_, err := t.Analyzer.ScanAll(ctx, now.Add(-t.Window), now)
	return err
}

// CascadeScanTask walks recent occurrences and upserts cascade edges.
type CascadeScanTask struct {
	Tracker *pattern.Tracker
	Window  time.Duration
}

// Name implements worker.Task.
func (t *CascadeScanTask) Name() string { return "cascade_scan" }

// Execute implements worker.Task.
func (t *CascadeScanTask) Execute(ctx context.Context) error {
	now := time.Now().UTC()
	_, err := t.Tracker.Scan(ctx, now.Add(-t.Window), now)
	return err
}

// ThrottlePruneTask bounds throttle-state memory over process lifetime.
type ThrottlePruneTask struct {
	Notifier *throttle.Notifier
	MaxAge   time.Duration
}

// Name implements worker.Task.
func (t *ThrottlePruneTask) Name() string { return "throttle_prune" }

// Execute implements worker.Task.
func (t *ThrottlePruneTask) Execute(_ context.Context) error {
	t.Notifier.Prune(t.MaxAge)
	return nil
}
