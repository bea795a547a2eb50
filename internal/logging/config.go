// Package logging provides logging configuration types and utilities.
//
// This package defines the logging configuration structures used throughout
// the aggregation core to enable component-specific debug logging and
// structured output control. It avoids import cycles by being a leaf
// dependency.
package logging

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogConfig holds all logging configuration.
//
// This configuration is passed via dependency injection throughout the
// application to avoid global state and enable better testing isolation.
type LogConfig struct {
	LogLevel      string
	Verbose       int // -v, -vv, -vvv support
	Debug         DebugFlags
	LogFormat     string // "text" or "json"
	CorrelationID string // Unique ID for request correlation
	JSONOutput    bool   // Enable JSON structured output
}

// DebugFlags contains component-specific debug flags for targeted troubleshooting.
//
// Each flag enables detailed logging for a specific component:
// - Aggregate: create/increment/reopen decisions and lock retries
// - Fingerprint: message normalization and key derivation
// - Throttle: cooldown decisions and prune activity
// - Detect: baseline refresh, anomaly checks, pattern scans
type DebugFlags struct {
	Aggregate   bool
	Fingerprint bool
	Throttle    bool
	Detect      bool
}

// GenerateCorrelationID creates a unique correlation ID for request tracing.
//
// Returns a 16-byte hex-encoded string that can be used to correlate
// log entries across different components for the same operation.
func GenerateCorrelationID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple timestamp-based ID if crypto/rand fails
		return "fallback-id"
	}
	return hex.EncodeToString(bytes)
}

// WithCorrelationID creates a new LogConfig with the specified correlation ID.
func (lc *LogConfig) WithCorrelationID(correlationID string) *LogConfig {
	if lc == nil {
		return &LogConfig{CorrelationID: correlationID}
	}

	newConfig := *lc
	newConfig.CorrelationID = correlationID
	return &newConfig
}

// ConfigureLogger configures a logrus.Logger instance based on LogConfig settings.
//
// This function sets up the appropriate formatter (JSON or text) and log
// level based on the provided LogConfig. Verbose flags override an explicit
// log level.
func ConfigureLogger(logger *logrus.Logger, config *LogConfig) error {
	if config == nil {
		return nil
	}

	var level logrus.Level
	var err error

	if config.Verbose > 0 {
		switch config.Verbose {
		case 1:
			level = logrus.DebugLevel
		default: // 2 or higher
			level = logrus.TraceLevel
		}
	} else if config.LogLevel != "" {
		level, err = logrus.ParseLevel(config.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", config.LogLevel, err)
		}
	} else {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)

	if config.JSONOutput || config.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return nil
}
