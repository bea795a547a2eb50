// Package config defines the YAML configuration surface for the
// aggregation core and its parsing, defaulting, and validation.
package config

// Config is the root configuration for the aggregation core.
type Config struct {
	Version     int               `yaml:"version"`
	Log         LogSettings       `yaml:"log"`
	Database    DatabaseSettings  `yaml:"database"`
	Filter      FilterSettings    `yaml:"filter"`
	Severity    SeveritySettings  `yaml:"severity"`
	Aggregation AggregateSettings `yaml:"aggregation"`
	Throttle    ThrottleSettings  `yaml:"throttle"`
	Anomaly     AnomalySettings   `yaml:"anomaly"`
	Pattern     PatternSettings   `yaml:"pattern"`
}

// LogSettings configures structured logging output.
type LogSettings struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DatabaseSettings configures the backing store.
type DatabaseSettings struct {
	Path string `yaml:"path"` // sqlite file path, :memory: for in-memory
}

// FilterSettings configures the pre-aggregation gate.
type FilterSettings struct {
	// IgnoreTypes drops signals whose type matches an entry exactly or
	// by wildcard pattern (path.Match syntax).
	IgnoreTypes []string `yaml:"ignore_types"`

	// SamplingRate keeps this fraction of non-critical signals; 1.0 (or
	// 0, meaning unset) disables sampling. Critical errors always pass.
	SamplingRate float64 `yaml:"sampling_rate"`
}

// SeveritySettings configures severity classification overrides.
type SeveritySettings struct {
	// Overrides maps exact error type names to severity levels
	// (critical, high, medium, low), consulted before the built-ins.
	Overrides map[string]string `yaml:"overrides"`
}

// AggregateSettings configures the aggregation engine.
type AggregateSettings struct {
	// ActiveWindow is how far back an unresolved record still counts as
	// the active match for its fingerprint.
	ActiveWindow Duration `yaml:"active_window"`
}

// ThrottleSettings configures the notification throttler.
type ThrottleSettings struct {
	Cooldown               Duration `yaml:"cooldown"`
	MinSeverity            string   `yaml:"min_severity"`
	NotificationsPerSecond float64  `yaml:"notifications_per_second"`
	BurstSize              int      `yaml:"burst_size"`
	PruneMaxAge            Duration `yaml:"prune_max_age"`
}

// AnomalySettings configures baseline maintenance and anomaly alerting.
type AnomalySettings struct {
	Lookback      Duration `yaml:"lookback"`
	AlertLevels   []string `yaml:"alert_levels"` // subset of elevated, high, critical
	AlertCooldown Duration `yaml:"alert_cooldown"`
}

// PatternSettings configures the periodic pattern and cascade scans.
type PatternSettings struct {
	CascadeMaxDelay Duration `yaml:"cascade_max_delay"`
	ScanInterval    Duration `yaml:"scan_interval"`
	ScanWindow      Duration `yaml:"scan_window"`
}
