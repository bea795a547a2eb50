package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Sentinel errors following internal/errors/errors.go conventions
var (
	// ErrEmptyPath is returned when database path is empty
	ErrEmptyPath = errors.New("database path is required")

	// ErrRecordNotFound is returned when a requested record does not exist
	ErrRecordNotFound = errors.New("record not found")

	// ErrUniqueViolation is returned when an insert collides with an
	// existing (tenant_id, fingerprint) or other unique key
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrInvalidType is returned when scanning a value of incorrect type
	ErrInvalidType = errors.New("invalid type")

	// ErrMissingFingerprint is returned when creating an aggregated error without a fingerprint
	ErrMissingFingerprint = errors.New("fingerprint is required")

	// ErrMissingErrorType is returned when creating a record without an error type
	ErrMissingErrorType = errors.New("error_type is required")

	// ErrInvalidPeriodType is returned when a baseline period type is not hourly, daily, or weekly
	ErrInvalidPeriodType = errors.New("invalid period type")

	// ErrMissingCascadeEndpoint is returned when upserting a cascade edge without both endpoints
	ErrMissingCascadeEndpoint = errors.New("cascade parent and child types are required")
)

// IsUniqueViolation reports whether err represents a unique-constraint
// failure. Checks the translated gorm sentinel first, then the raw sqlite
// message for drivers that predate TranslateError.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrUniqueViolation) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
