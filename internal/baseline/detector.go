// Package baseline maintains rolling statistical baselines of error
// counts and classifies deviations from them.
//
// Baselines are recomputed periodically from historical period counts and
// upserted per (error_type, platform, period_type) key; anomaly checks
// compare a current count against the stored daily statistics. The
// detector never divides by zero: degenerate statistics (empty sample,
// zero mean or variance) yield a neutral "no signal" classification.
package baseline

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrz1836/go-faultline/internal/db"
	"github.com/mrz1836/go-faultline/internal/errors"
	"github.com/mrz1836/go-faultline/internal/logging"
)

// Level classifies the magnitude of an anomaly.
type Level string

// Anomaly levels on the multiplier-of-average spike scale.
const (
	LevelNone     Level = "none" // no signal: degenerate baseline or no deviation data
	LevelNormal   Level = "normal"
	LevelElevated Level = "elevated"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// AnomalyInfo describes one anomaly check outcome.
type AnomalyInfo struct {
	ErrorType      string
	Platform       string
	Level          Level
	Multiplier     float64 // current count as a multiple of the baseline mean
	StdDevDistance float64 // distance from the mean in standard deviations
	CurrentCount   int64
	BaselineMean   float64
}

// Config holds detector settings.
type Config struct {
	// Lookback bounds how much history feeds each baseline refresh
	// (default 30 days).
	Lookback time.Duration

	// AlertLevels is the allow-list of levels that may trigger
	// downstream alerting (default: high, critical).
	AlertLevels []Level

	// AlertCooldown is the per-(error_type, platform) interval between
	// anomaly alerts, independent of the notification throttler's
	// per-fingerprint cooldown (default 1h).
	AlertCooldown time.Duration
}

// DefaultConfig returns detector defaults.
func DefaultConfig() Config {
	return Config{
		Lookback:      30 * 24 * time.Hour,
		AlertLevels:   []Level{LevelHigh, LevelCritical},
		AlertCooldown: time.Hour,
	}
}

// Detector computes baselines and classifies anomalies.
type Detector struct {
	errors    db.ErrorRepository
	baselines db.BaselineRepository
	config    Config
	logger    *logrus.Entry

	mu          sync.Mutex
	lastAlerted map[string]time.Time
	now         func() time.Time
}

// NewDetector creates a Detector.
func NewDetector(errRepo db.ErrorRepository, baseRepo db.BaselineRepository, cfg Config, logger *logrus.Logger) *Detector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 30 * 24 * time.Hour
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = time.Hour
	}
	if len(cfg.AlertLevels) == 0 {
		cfg.AlertLevels = []Level{LevelHigh, LevelCritical}
	}
	return &Detector{
		errors:      errRepo,
		baselines:   baseRepo,
		config:      cfg,
		logger:      logger.WithField(logging.StandardFields.Component, "baseline"),
		lastAlerted: make(map[string]time.Time),
		now:         time.Now,
	}
}

// WithNowFunc replaces the clock, for tests.
func (d *Detector) WithNowFunc(now func() time.Time) *Detector {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
	return d
}

// Refresh recomputes and upserts the baseline for one detection key and
// period type from historical grouped counts.
func (d *Detector) Refresh(ctx context.Context, errorType, platform, periodType string) (*db.Baseline, error) {
	to := d.now().UTC()
	from := to.Add(-d.config.Lookback)

	counts, err := d.errors.CountsByPeriod(ctx, errorType, platform, periodType, from, to)
	if err != nil {
		return nil, errors.WrapWithContext(err, "load period counts")
	}

	stats := Compute(counts)
	b := &db.Baseline{
		ErrorType:    errorType,
		Platform:     platform,
		PeriodType:   periodType,
		PeriodStart:  from,
		PeriodEnd:    to,
		Count:        stats.Total,
		Mean:         stats.Mean,
		StdDev:       stats.StdDev,
		Percentile95: stats.P95,
		Percentile99: stats.P99,
		SampleSize:   stats.SampleSize,
	}
	if err := d.baselines.Upsert(ctx, b); err != nil {
		return nil, errors.WrapWithContext(err, "upsert baseline")
	}

	d.logger.WithFields(logrus.Fields{
		logging.StandardFields.ErrorType:  errorType,
		logging.StandardFields.Platform:   platform,
		logging.StandardFields.PeriodType: periodType,
		"mean":                            stats.Mean,
		"sample_size":                     stats.SampleSize,
	}).Debug("Refreshed baseline")

	return b, nil
}

// CheckAnomaly compares today's count for a detection key against its
// daily baseline. A missing or degenerate baseline yields LevelNone.
func (d *Detector) CheckAnomaly(ctx context.Context, errorType, platform string, todayCount int64) AnomalyInfo {
	info := AnomalyInfo{
		ErrorType:    errorType,
		Platform:     platform,
		Level:        LevelNone,
		CurrentCount: todayCount,
	}

	b, err := d.baselines.Get(ctx, errorType, platform, db.PeriodDaily)
	if err != nil {
		// No baseline yet: no signal, never an error on the check path.
		return info
	}
	info.BaselineMean = b.Mean

	if b.SampleSize == 0 || b.Mean <= 0 {
		return info
	}

	info.Multiplier = float64(todayCount) / b.Mean
	if b.StdDev > 0 {
		info.StdDevDistance = (float64(todayCount) - b.Mean) / b.StdDev
	}
	info.Level = ClassifyMultiplier(info.Multiplier)
	return info
}

// ClassifyMultiplier maps a multiplier-of-average onto the spike scale.
func ClassifyMultiplier(multiplier float64) Level {
	switch {
	case multiplier >= 10:
		return LevelCritical
	case multiplier >= 5:
		return LevelHigh
	case multiplier >= 2:
		return LevelElevated
	default:
		return LevelNormal
	}
}

// ShouldAlert reports whether an anomaly may trigger downstream alerting:
// its level must be in the configured allow-list and the (error_type,
// platform) key must be outside its alert cooldown. A true result records
// the alert time.
func (d *Detector) ShouldAlert(info AnomalyInfo) bool {
	if !d.levelAllowed(info.Level) {
		return false
	}

	key := info.ErrorType + "\x00" + info.Platform

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, seen := d.lastAlerted[key]; seen && now.Sub(last) < d.config.AlertCooldown {
		return false
	}
	d.lastAlerted[key] = now
	return true
}

func (d *Detector) levelAllowed(level Level) bool {
	for _, allowed := range d.config.AlertLevels {
		if level == allowed {
			return true
		}
	}
	return false
}

// Stats is a computed statistical summary of period counts.
type Stats struct {
	Total      int64
	Mean       float64
	StdDev     float64
	P95        float64
	P99        float64
	SampleSize int
}

// Compute derives summary statistics from grouped period counts. An empty
// input yields the zero Stats rather than an error.
func Compute(counts []db.PeriodCount) Stats {
	if len(counts) == 0 {
		return Stats{}
	}

	values := make([]float64, 0, len(counts))
	var total int64
	for _, c := range counts {
		values = append(values, float64(c.Count))
		total += c.Count
	}

	mean := float64(total) / float64(len(values))

	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	sort.Float64s(values)

	return Stats{
		Total:      total,
		Mean:       mean,
		StdDev:     math.Sqrt(variance),
		P95:        percentile(values, 0.95),
		P99:        percentile(values, 0.99),
		SampleSize: len(values),
	}
}

// percentile uses the nearest-rank method over sorted values.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(q * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
