// Package errors defines common error types and utilities used throughout the application
package errors

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Signal errors
	ErrInvalidSignal    = errors.New("invalid error signal")
	ErrMissingType      = errors.New("signal type is required")
	ErrMissingMessage   = errors.New("signal message is required")
	ErrSignalFiltered   = errors.New("signal dropped by filter")
	ErrEmptyFingerprint = errors.New("fingerprint is empty")

	// Aggregation errors
	ErrAggregationFailed = errors.New("aggregation failed")
	ErrRecordNotFound    = errors.New("aggregated record not found")

	// Detection errors
	ErrNoBaseline      = errors.New("no baseline available")
	ErrEmptyTimeSeries = errors.New("time series is empty")

	// Config errors
	ErrInvalidConfig = errors.New("invalid configuration")

	// Test errors (only used in tests)
	ErrTest = errors.New("test error")
)

// Error utility functions for standardized error creation and context wrapping

// WrapWithContext wraps an error with operation context using consistent formatting.
// This replaces manual fmt.Errorf("failed to %s: %w", operation, err) patterns.
func WrapWithContext(err error, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// InvalidFieldError creates a standardized invalid field error.
func InvalidFieldError(field, value string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, value)
}

// ValidationError creates a standardized validation error with item context.
func ValidationError(item, reason string) error {
	return fmt.Errorf("%w for %s: %s", ErrInvalidConfig, item, reason)
}
