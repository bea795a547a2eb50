package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type baselineRepository struct {
	db *gorm.DB
}

// NewBaselineRepository creates a new BaselineRepository
func NewBaselineRepository(db *gorm.DB) BaselineRepository {
	return &baselineRepository{db: db}
}

// Upsert creates the baseline row for its (error_type, platform,
// period_type) key, or recomputes the existing row in place. Only the
// latest computed window is retained per key.
func (r *baselineRepository) Upsert(ctx context.Context, baseline *Baseline) error {
	if baseline.ErrorType == "" {
		return ErrMissingErrorType
	}
	if _, ok := periodFormats[baseline.PeriodType]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPeriodType, baseline.PeriodType)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Baseline
		err := tx.
			Where("error_type = ? AND platform = ? AND period_type = ?",
				baseline.ErrorType, baseline.Platform, baseline.PeriodType).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			createErr := tx.Create(baseline).Error
			if createErr == nil {
				return nil
			}
			if !IsUniqueViolation(createErr) {
				return createErr
			}
			// Lost a create race on idx_baseline_key; recompute the
			// winner's row in place instead.
			if readErr := tx.
				Where("error_type = ? AND platform = ? AND period_type = ?",
					baseline.ErrorType, baseline.Platform, baseline.PeriodType).
				First(&existing).Error; readErr != nil {
				return readErr
			}
		} else if err != nil {
			return err
		}

		existing.PeriodStart = baseline.PeriodStart
		existing.PeriodEnd = baseline.PeriodEnd
		existing.Count = baseline.Count
		existing.Mean = baseline.Mean
		existing.StdDev = baseline.StdDev
		existing.Percentile95 = baseline.Percentile95
		existing.Percentile99 = baseline.Percentile99
		existing.SampleSize = baseline.SampleSize
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		*baseline = existing
		return nil
	})
}

func (r *baselineRepository) Get(ctx context.Context, errorType, platform, periodType string) (*Baseline, error) {
	var baseline Baseline
	err := r.db.WithContext(ctx).
		Where("error_type = ? AND platform = ? AND period_type = ?", errorType, platform, periodType).
		First(&baseline).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: baseline %s/%s/%s", ErrRecordNotFound, errorType, platform, periodType)
		}
		return nil, err
	}
	return &baseline, nil
}
