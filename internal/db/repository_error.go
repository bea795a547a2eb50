package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type errorRepository struct {
	db *gorm.DB
}

// NewErrorRepository creates a new ErrorRepository
func NewErrorRepository(db *gorm.DB) ErrorRepository {
	return &errorRepository{db: db}
}

func (r *errorRepository) Transaction(ctx context.Context, fn func(ErrorRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&errorRepository{db: tx})
	})
}

func (r *errorRepository) FindActiveMatch(ctx context.Context, tenantID, fingerprint string, window time.Duration) (*AggregatedError, error) {
	var record AggregatedError
	cutoff := time.Now().UTC().Add(-window)
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND fingerprint = ? AND resolved = ? AND last_seen_at >= ?",
			tenantID, fingerprint, false, cutoff).
		Order("last_seen_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: active match tenant=%s fingerprint=%s", ErrRecordNotFound, tenantID, fingerprint)
		}
		return nil, err
	}
	return &record, nil
}

func (r *errorRepository) FindTerminalMatch(ctx context.Context, tenantID, fingerprint string) (*AggregatedError, error) {
	var record AggregatedError
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND fingerprint = ? AND status IN ?", tenantID, fingerprint, TerminalStatuses).
		Order("last_seen_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: terminal match tenant=%s fingerprint=%s", ErrRecordNotFound, tenantID, fingerprint)
		}
		return nil, err
	}
	return &record, nil
}

func (r *errorRepository) FindAnyMatch(ctx context.Context, tenantID, fingerprint string) (*AggregatedError, error) {
	var record AggregatedError
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND fingerprint = ?", tenantID, fingerprint).
		Order("last_seen_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tenant=%s fingerprint=%s", ErrRecordNotFound, tenantID, fingerprint)
		}
		return nil, err
	}
	return &record, nil
}

func (r *errorRepository) Create(ctx context.Context, record *AggregatedError) error {
	if record.Fingerprint == "" {
		return ErrMissingFingerprint
	}
	if record.ErrorType == "" {
		return ErrMissingErrorType
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: tenant=%s fingerprint=%s", ErrUniqueViolation, record.TenantID, record.Fingerprint)
		}
		return err
	}
	return nil
}

func (r *errorRepository) Update(ctx context.Context, record *AggregatedError) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *errorRepository) GetByID(ctx context.Context, id uint) (*AggregatedError, error) {
	var record AggregatedError
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: aggregated error id=%d", ErrRecordNotFound, id)
		}
		return nil, err
	}
	return &record, nil
}

func (r *errorRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*AggregatedError, error) {
	var records []*AggregatedError
	q := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("last_seen_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *errorRepository) TotalOccurrences(ctx context.Context, errorType string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&AggregatedError{}).
		Where("error_type = ?", errorType).
		Select("COALESCE(SUM(occurrence_count), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *errorRepository) RecordOccurrence(ctx context.Context, occ *ErrorOccurrence) error {
	if occ.ErrorType == "" {
		return ErrMissingErrorType
	}
	if occ.OccurredAt.IsZero() {
		occ.OccurredAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(occ).Error
}

func (r *errorRepository) OccurrenceTimes(ctx context.Context, errorType, platform string, from, to time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.scopeTypePlatform(ctx, errorType, platform).
		Where("occurred_at >= ? AND occurred_at < ?", from, to).
		Order("occurred_at ASC").
		Pluck("occurred_at", &times).Error
	if err != nil {
		return nil, err
	}
	return times, nil
}

// periodFormats maps period types to sqlite strftime bucket formats.
//
//nolint:gochecknoglobals // fixed format table
var periodFormats = map[string]string{
	PeriodHourly: "%Y-%m-%d %H",
	PeriodDaily:  "%Y-%m-%d",
	PeriodWeekly: "%Y-%W",
}

func (r *errorRepository) CountsByPeriod(ctx context.Context, errorType, platform, periodType string, from, to time.Time) ([]PeriodCount, error) {
	format, ok := periodFormats[periodType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriodType, periodType)
	}

	var counts []PeriodCount
	err := r.scopeTypePlatform(ctx, errorType, platform).
		Where("occurred_at >= ? AND occurred_at < ?", from, to).
		Select("strftime(?, occurred_at) AS period, COUNT(*) AS count", format).
		Group("period").
		Order("period ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *errorRepository) DistinctTypePlatforms(ctx context.Context, from, to time.Time) ([]TypePlatform, error) {
	var keys []TypePlatform
	err := r.db.WithContext(ctx).
		Model(&ErrorOccurrence{}).
		Where("occurred_at >= ? AND occurred_at < ?", from, to).
		Distinct("error_type", "platform").
		Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *errorRepository) RecentOccurrences(ctx context.Context, from, to time.Time) ([]ErrorOccurrence, error) {
	var occs []ErrorOccurrence
	err := r.db.WithContext(ctx).
		Where("occurred_at >= ? AND occurred_at < ?", from, to).
		Order("occurred_at ASC").
		Find(&occs).Error
	if err != nil {
		return nil, err
	}
	return occs, nil
}

// scopeTypePlatform builds the occurrence query for a detection key. An
// empty platform matches rows with empty platform only, keeping keys
// disjoint.
func (r *errorRepository) scopeTypePlatform(ctx context.Context, errorType, platform string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&ErrorOccurrence{}).
		Where("error_type = ? AND platform = ?", errorType, platform)
}
