// Package signal defines the ErrorSignal input contract consumed by the
// aggregation core. Signals are ephemeral: produced once by a capture
// layer, validated, fingerprinted, and folded into aggregated records.
package signal

import (
	"fmt"
	"time"

	"github.com/mrz1836/go-faultline/internal/errors"
)

// ErrorSignal is a single captured error occurrence.
//
// Non-native error sources (log scrapers, frontend reporters) are expressed
// through the same struct with the optional fields left empty, rather than
// through a wrapper mimicking a native error type.
type ErrorSignal struct {
	Type        string    // Error type name (required)
	Message     string    // Error message (required)
	StackFrames []string  // Raw stack frames, most recent call first
	Controller  string    // Optional controller context
	Action      string    // Optional action context
	TenantID    string    // Optional tenant/application identifier
	Platform    string    // Optional platform tag (web, worker, mobile...)
	OccurredAt  time.Time // Occurrence timestamp; zero means "now"

	// Optional request/user metadata, denormalized onto the aggregated
	// record on each increment.
	UserID     string
	RequestURL string
	UserAgent  string
	IP         string
}

// Validate rejects malformed signals before fingerprinting.
// Missing type or message is not retryable; callers log and drop.
func (s *ErrorSignal) Validate() error {
	if s == nil {
		return errors.ErrInvalidSignal
	}
	if s.Type == "" {
		return fmt.Errorf("%w: %w", errors.ErrInvalidSignal, errors.ErrMissingType)
	}
	if s.Message == "" {
		return fmt.Errorf("%w: %w", errors.ErrInvalidSignal, errors.ErrMissingMessage)
	}
	return nil
}

// Time returns the occurrence timestamp, defaulting to now for signals
// whose capture layer did not stamp one.
func (s *ErrorSignal) Time() time.Time {
	if s.OccurredAt.IsZero() {
		return time.Now().UTC()
	}
	return s.OccurredAt
}
