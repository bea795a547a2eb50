package config

import "time"

// Supported configuration version.
const SupportedVersion = 1

// Default returns a Config populated with production defaults.
func Default() *Config {
	return &Config{
		Version: SupportedVersion,
		Log: LogSettings{
			Level:  "info",
			Format: "text",
		},
		Filter: FilterSettings{
			SamplingRate: 1.0,
		},
		Aggregation: AggregateSettings{
			ActiveWindow: Duration(24 * time.Hour),
		},
		Throttle: ThrottleSettings{
			Cooldown:    Duration(30 * time.Minute),
			MinSeverity: "low",
			BurstSize:   5,
			PruneMaxAge: Duration(7 * 24 * time.Hour),
		},
		Anomaly: AnomalySettings{
			Lookback:      Duration(30 * 24 * time.Hour),
			AlertLevels:   []string{"high", "critical"},
			AlertCooldown: Duration(time.Hour),
		},
		Pattern: PatternSettings{
			CascadeMaxDelay: Duration(5 * time.Minute),
			ScanInterval:    Duration(10 * time.Minute),
			ScanWindow:      Duration(time.Hour),
		},
	}
}

// applyDefaults fills zero-valued fields with production defaults after
// parsing, so partial config files stay valid.
func applyDefaults(c *Config) {
	d := Default()

	if c.Version == 0 {
		c.Version = d.Version
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Filter.SamplingRate == 0 {
		c.Filter.SamplingRate = d.Filter.SamplingRate
	}
	if c.Aggregation.ActiveWindow == 0 {
		c.Aggregation.ActiveWindow = d.Aggregation.ActiveWindow
	}
	if c.Throttle.Cooldown == 0 {
		c.Throttle.Cooldown = d.Throttle.Cooldown
	}
	if c.Throttle.MinSeverity == "" {
		c.Throttle.MinSeverity = d.Throttle.MinSeverity
	}
	if c.Throttle.BurstSize == 0 {
		c.Throttle.BurstSize = d.Throttle.BurstSize
	}
	if c.Throttle.PruneMaxAge == 0 {
		c.Throttle.PruneMaxAge = d.Throttle.PruneMaxAge
	}
	if c.Anomaly.Lookback == 0 {
		c.Anomaly.Lookback = d.Anomaly.Lookback
	}
	if len(c.Anomaly.AlertLevels) == 0 {
		c.Anomaly.AlertLevels = d.Anomaly.AlertLevels
	}
	if c.Anomaly.AlertCooldown == 0 {
		c.Anomaly.AlertCooldown = d.Anomaly.AlertCooldown
	}
	if c.Pattern.CascadeMaxDelay == 0 {
		c.Pattern.CascadeMaxDelay = d.Pattern.CascadeMaxDelay
	}
	if c.Pattern.ScanInterval == 0 {
		c.Pattern.ScanInterval = d.Pattern.ScanInterval
	}
	if c.Pattern.ScanWindow == 0 {
		c.Pattern.ScanWindow = d.Pattern.ScanWindow
	}
}
