package config

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedVersion indicates the configuration version is not supported
	ErrUnsupportedVersion = errors.New("unsupported config version")
	// ErrInvalidSamplingRate indicates the sampling rate is outside (0, 1]
	ErrInvalidSamplingRate = errors.New("sampling_rate must be within (0, 1]")
	// ErrInvalidSeverity indicates a severity name is not critical/high/medium/low
	ErrInvalidSeverity = errors.New("invalid severity level")
	// ErrInvalidAnomalyLevel indicates an alert level is not elevated/high/critical
	ErrInvalidAnomalyLevel = errors.New("invalid anomaly alert level")
	// ErrNegativeDuration indicates a duration setting is negative
	ErrNegativeDuration = errors.New("duration must not be negative")
)

//nolint:gochecknoglobals // fixed vocabulary tables
var (
	validSeverities = map[string]struct{}{
		"critical": {}, "high": {}, "medium": {}, "low": {},
	}
	validAnomalyLevels = map[string]struct{}{
		"elevated": {}, "high": {}, "critical": {},
	}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Version != SupportedVersion {
		return fmt.Errorf("%w: %d (supported: %d)", ErrUnsupportedVersion, c.Version, SupportedVersion)
	}

	if c.Filter.SamplingRate <= 0 || c.Filter.SamplingRate > 1.0 {
		return fmt.Errorf("%w: %v", ErrInvalidSamplingRate, c.Filter.SamplingRate)
	}

	for errType, level := range c.Severity.Overrides {
		if _, ok := validSeverities[level]; !ok {
			return fmt.Errorf("%w: %q for type %q", ErrInvalidSeverity, level, errType)
		}
	}

	if _, ok := validSeverities[c.Throttle.MinSeverity]; !ok {
		return fmt.Errorf("%w: throttle min_severity %q", ErrInvalidSeverity, c.Throttle.MinSeverity)
	}

	for _, level := range c.Anomaly.AlertLevels {
		if _, ok := validAnomalyLevels[level]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidAnomalyLevel, level)
		}
	}

	for name, d := range map[string]int64{
		"aggregation.active_window": int64(c.Aggregation.ActiveWindow),
		"throttle.cooldown":         int64(c.Throttle.Cooldown),
		"throttle.prune_max_age":    int64(c.Throttle.PruneMaxAge),
		"anomaly.lookback":          int64(c.Anomaly.Lookback),
		"anomaly.alert_cooldown":    int64(c.Anomaly.AlertCooldown),
		"pattern.cascade_max_delay": int64(c.Pattern.CascadeMaxDelay),
		"pattern.scan_interval":     int64(c.Pattern.ScanInterval),
		"pattern.scan_window":       int64(c.Pattern.ScanWindow),
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s", ErrNegativeDuration, name)
		}
	}

	return nil
}
