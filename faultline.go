// Package faultline is the public surface of the error aggregation core.
//
// It wires configuration into the capture pipeline (filter, fingerprint,
// aggregation engine, throttled notification fan-out) and the periodic
// statistical jobs (baseline refresh, pattern scan, cascade scan,
// throttle prune), all backed by a SQLite store. The surrounding system supplies signals to
// Capture and a Dispatcher for outbound notifications; nothing in this
// core performs network I/O itself.
package faultline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrz1836/go-faultline/internal/aggregate"
	"github.com/mrz1836/go-faultline/internal/baseline"
	"github.com/mrz1836/go-faultline/internal/config"
	"github.com/mrz1836/go-faultline/internal/db"
	"github.com/mrz1836/go-faultline/internal/errors"
	"github.com/mrz1836/go-faultline/internal/filter"
	"github.com/mrz1836/go-faultline/internal/fingerprint"
	"github.com/mrz1836/go-faultline/internal/ingest"
	"github.com/mrz1836/go-faultline/internal/logging"
	"github.com/mrz1836/go-faultline/internal/pattern"
	"github.com/mrz1836/go-faultline/internal/severity"
	"github.com/mrz1836/go-faultline/internal/signal"
	"github.com/mrz1836/go-faultline/internal/throttle"
	"github.com/mrz1836/go-faultline/internal/worker"
)

// Re-exported contract types, so consumers never import internal paths.
type (
	// Signal is one captured error occurrence.
	Signal = signal.ErrorSignal

	// Config is the root YAML configuration.
	Config = config.Config

	// Result is the outcome of aggregating one signal.
	Result = aggregate.Result

	// AnomalyInfo describes an anomaly check outcome.
	AnomalyInfo = baseline.AnomalyInfo

	// Dispatcher is the notification-dispatch collaborator contract.
	Dispatcher = ingest.Dispatcher

	// DispatcherFunc adapts a function to the Dispatcher interface.
	DispatcherFunc = ingest.DispatcherFunc

	// KeyFunc optionally overrides fingerprint key derivation.
	KeyFunc = fingerprint.KeyFunc

	// AggregatedError is the durable record tracking one fingerprint.
	AggregatedError = db.AggregatedError

	// PatternReport bundles the cyclical and burst detections for one
	// error type and platform over a scan window.
	PatternReport = pattern.Report

	// CyclicalPattern describes the temporal rhythm of occurrences.
	CyclicalPattern = pattern.CyclicalPattern

	// Burst is a tight temporal cluster of occurrences.
	Burst = pattern.Burst
)

// LoadConfig reads, defaults, and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the production default configuration.
func DefaultConfig() *Config {
	return config.Default()
}

// Option configures a Client.
type Option func(*options)

type options struct {
	logger     *logrus.Logger
	dispatcher Dispatcher
	keyFunc    KeyFunc
}

// WithLogger supplies the logger; defaults to a logger configured from
// the config's log settings.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDispatcher supplies the notification-dispatch collaborator.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithFingerprintKeyFunc installs a custom fingerprint key derivation.
func WithFingerprintKeyFunc(fn KeyFunc) Option {
	return func(o *options) { o.keyFunc = fn }
}

// Client owns the capture pipeline, the periodic runner, and the store.
type Client struct {
	database  db.Database
	repo      db.ErrorRepository
	pipeline  *ingest.Pipeline
	runner    *ingest.Runner
	analyzer  *pattern.Analyzer
	throttler *throttle.Notifier
	logger    *logrus.Logger
}

// New constructs a Client from configuration. Close must be called to
// stop the periodic jobs and release the store.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logrus.New()
		if err := logging.ConfigureLogger(logger, &logging.LogConfig{
			LogLevel:  cfg.Log.Level,
			LogFormat: cfg.Log.Format,
		}); err != nil {
			return nil, err
		}
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = db.DefaultPath()
	}
	database, err := db.Open(db.OpenOptions{Path: dbPath, AutoMigrate: true})
	if err != nil {
		return nil, errors.WrapWithContext(err, "open database")
	}

	errRepo := db.NewErrorRepository(database.DB())
	baseRepo := db.NewBaselineRepository(database.DB())
	cascadeRepo := db.NewCascadeRepository(database.DB())

	classifier := severity.NewClassifier(severityOverrides(cfg))

	var fpOpts []fingerprint.Option
	if o.keyFunc != nil {
		fpOpts = append(fpOpts, fingerprint.WithKeyFunc(o.keyFunc))
	}
	fp := fingerprint.New(logger, fpOpts...)

	gate := filter.New(filter.Config{
		IgnoreTypes:  cfg.Filter.IgnoreTypes,
		SamplingRate: cfg.Filter.SamplingRate,
	}, classifier, logger)

	engine := aggregate.NewEngine(errRepo, fp, classifier, aggregate.Config{
		ActiveWindow: cfg.Aggregation.ActiveWindow.Std(),
	}, logger)

	throttler := throttle.NewNotifier(throttle.Config{
		Cooldown:               cfg.Throttle.Cooldown.Std(),
		MinSeverity:            severity.Level(cfg.Throttle.MinSeverity),
		NotificationsPerSecond: cfg.Throttle.NotificationsPerSecond,
		BurstSize:              cfg.Throttle.BurstSize,
	}, logger)

	detector := baseline.NewDetector(errRepo, baseRepo, baseline.Config{
		Lookback:      cfg.Anomaly.Lookback.Std(),
		AlertLevels:   anomalyLevels(cfg),
		AlertCooldown: cfg.Anomaly.AlertCooldown.Std(),
	}, logger)

	tracker := pattern.NewTracker(errRepo, cascadeRepo, cfg.Pattern.CascadeMaxDelay.Std(), logger)
	analyzer := pattern.NewAnalyzer(errRepo, logger)

	pipeline := ingest.NewPipeline(gate, engine, throttler, detector, o.dispatcher, errRepo, logger)

	runner := ingest.NewRunner([]worker.Task{
		&ingest.BaselineRefreshTask{Detector: detector, Repo: errRepo, Lookback: cfg.Anomaly.Lookback.Std()},
		&ingest.PatternScanTask{Analyzer: analyzer, Window: cfg.Pattern.ScanWindow.Std()},
		&ingest.CascadeScanTask{Tracker: tracker, Window: cfg.Pattern.ScanWindow.Std()},
		&ingest.ThrottlePruneTask{Notifier: throttler, MaxAge: cfg.Throttle.PruneMaxAge.Std()},
	}, cfg.Pattern.ScanInterval.Std(), logger)

	return &Client{
		database:  database,
		repo:      errRepo,
		pipeline:  pipeline,
		runner:    runner,
		analyzer:  analyzer,
		throttler: throttler,
		logger:    logger,
	}, nil
}

// Capture ingests one error signal. It never returns an error: a failed
// capture means "error not recorded" and the caller moves on.
func (c *Client) Capture(ctx context.Context, sig *Signal) {
	c.pipeline.Capture(ctx, sig)
}

// StartPeriodicJobs launches the baseline refresh, pattern scan, cascade
// scan, and throttle prune schedule. Safe to run concurrently with
// Capture.
func (c *Client) StartPeriodicJobs(ctx context.Context) {
	c.runner.Start(ctx)
}

// RunPeriodicJobsOnce submits every periodic job immediately.
func (c *Client) RunPeriodicJobsOnce(ctx context.Context) {
	c.runner.RunOnce(ctx)
}

// ListErrors returns a tenant's aggregated errors, most recent first.
// A limit of zero returns all records.
func (c *Client) ListErrors(ctx context.Context, tenantID string, limit int) ([]*AggregatedError, error) {
	return c.repo.ListByTenant(ctx, tenantID, limit)
}

// GetError loads one aggregated error by id.
func (c *Client) GetError(ctx context.Context, id uint) (*AggregatedError, error) {
	return c.repo.GetByID(ctx, id)
}

// ErrorPatterns runs the cyclical and burst detectors over the stored
// occurrence history of one error type and platform, looking back window
// from now.
func (c *Client) ErrorPatterns(ctx context.Context, errorType, platform string, window time.Duration) (*PatternReport, error) {
	now := time.Now().UTC()
	return c.analyzer.Analyze(ctx, errorType, platform, now.Add(-window), now)
}

// ResetThrottle clears all per-fingerprint notification state.
func (c *Client) ResetThrottle() {
	c.throttler.Clear()
}

// Close stops the periodic jobs and closes the store.
func (c *Client) Close() error {
	c.runner.Stop()
	return c.database.Close()
}

func severityOverrides(cfg *Config) map[string]severity.Level {
	if len(cfg.Severity.Overrides) == 0 {
		return nil
	}
	overrides := make(map[string]severity.Level, len(cfg.Severity.Overrides))
	for errType, level := range cfg.Severity.Overrides {
		overrides[errType] = severity.Level(level)
	}
	return overrides
}

func anomalyLevels(cfg *Config) []baseline.Level {
	levels := make([]baseline.Level, 0, len(cfg.Anomaly.AlertLevels))
	for _, l := range cfg.Anomaly.AlertLevels {
		levels = append(levels, baseline.Level(l))
	}
	return levels
}
