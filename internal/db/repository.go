package db

import (
	"context"
	"time"
)

// PeriodCount is one grouped time bucket of occurrence counts.
type PeriodCount struct {
	Period string `json:"period"` // bucket label, e.g. "2026-08-29 14" for hourly
	Count  int64  `json:"count"`
}

// TypePlatform identifies one (error_type, platform) detection key.
type TypePlatform struct {
	ErrorType string `json:"error_type"`
	Platform  string `json:"platform"`
}

// ErrorRepository manages AggregatedError and ErrorOccurrence rows.
//
// The find/create/update primitives are intended to run inside
// Transaction, which provides the row-level serialization the aggregation
// engine's read-decide-write sequence requires.
type ErrorRepository interface {
	// Transaction runs fn against a transaction-scoped repository.
	// Returning an error rolls the transaction back.
	Transaction(ctx context.Context, fn func(ErrorRepository) error) error

	// FindActiveMatch returns the unresolved record for (tenant,
	// fingerprint) whose last activity falls within window, preferring
	// the most recent last_seen_at when several match.
	FindActiveMatch(ctx context.Context, tenantID, fingerprint string, window time.Duration) (*AggregatedError, error)

	// FindTerminalMatch returns the terminal-state (resolved/wont_fix)
	// record for (tenant, fingerprint) regardless of age.
	FindTerminalMatch(ctx context.Context, tenantID, fingerprint string) (*AggregatedError, error)

	// FindAnyMatch returns the most recently seen record for (tenant,
	// fingerprint) in any state. Used on the create-race retry path.
	FindAnyMatch(ctx context.Context, tenantID, fingerprint string) (*AggregatedError, error)

	// Create inserts a new record; a (tenant_id, fingerprint) collision
	// satisfies IsUniqueViolation.
	Create(ctx context.Context, record *AggregatedError) error

	Update(ctx context.Context, record *AggregatedError) error
	GetByID(ctx context.Context, id uint) (*AggregatedError, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]*AggregatedError, error)

	// TotalOccurrences sums occurrence_count across all records of an
	// error type (all tenants). Feeds cascade probability.
	TotalOccurrences(ctx context.Context, errorType string) (int64, error)

	// RecordOccurrence appends one accepted signal to the time series.
	RecordOccurrence(ctx context.Context, occ *ErrorOccurrence) error

	// OccurrenceTimes returns occurrence timestamps for a detection key
	// within [from, to), ascending.
	OccurrenceTimes(ctx context.Context, errorType, platform string, from, to time.Time) ([]time.Time, error)

	// CountsByPeriod returns grouped occurrence counts for a detection
	// key bucketed by the given period type within [from, to).
	CountsByPeriod(ctx context.Context, errorType, platform, periodType string, from, to time.Time) ([]PeriodCount, error)

	// DistinctTypePlatforms lists the (error_type, platform) keys that
	// have occurrences within [from, to). Drives the periodic jobs.
	DistinctTypePlatforms(ctx context.Context, from, to time.Time) ([]TypePlatform, error)

	// RecentOccurrences returns occurrences within [from, to) ascending
	// by occurred_at, for the cascade scan.
	RecentOccurrences(ctx context.Context, from, to time.Time) ([]ErrorOccurrence, error)
}

// BaselineRepository manages Baseline rows with create-or-update-in-place
// discipline per (error_type, platform, period_type).
type BaselineRepository interface {
	Upsert(ctx context.Context, baseline *Baseline) error
	Get(ctx context.Context, errorType, platform, periodType string) (*Baseline, error)
}

// CascadeRepository manages CascadePattern edges.
type CascadeRepository interface {
	// Upsert records one parent->child detection with the observed delay,
	// applying the incremental running-mean update and recomputing the
	// probability from parentTotal (left unset when parentTotal is zero).
	Upsert(ctx context.Context, parentType, childType string, delaySeconds float64, parentTotal int64, detectedAt time.Time) (*CascadePattern, error)

	Get(ctx context.Context, parentType, childType string) (*CascadePattern, error)
	ListByParent(ctx context.Context, parentType string) ([]*CascadePattern, error)
}
