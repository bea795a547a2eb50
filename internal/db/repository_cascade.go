package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type cascadeRepository struct {
	db *gorm.DB
}

// NewCascadeRepository creates a new CascadeRepository
func NewCascadeRepository(db *gorm.DB) CascadeRepository {
	return &cascadeRepository{db: db}
}

// Upsert records one parent->child detection. First detection creates the
// edge with frequency=1 and the observed delay; subsequent detections
// increment frequency and fold the delay into the running mean:
//
//	new_avg = (old_avg*(freq-1) + new_delay) / freq
//
// CascadeProbability is recomputed from parentTotal, and left unset when
// the parent has no recorded occurrences.
func (r *cascadeRepository) Upsert(ctx context.Context, parentType, childType string, delaySeconds float64, parentTotal int64, detectedAt time.Time) (*CascadePattern, error) {
	if parentType == "" || childType == "" {
		return nil, ErrMissingCascadeEndpoint
	}
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}

	var result *CascadePattern
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var edge CascadePattern
		err := tx.
			Where("parent_type = ? AND child_type = ?", parentType, childType).
			First(&edge).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			edge = CascadePattern{
				ParentType:      parentType,
				ChildType:       childType,
				Frequency:       1,
				AvgDelaySeconds: delaySeconds,
				LastDetectedAt:  detectedAt,
			}
			applyProbability(&edge, parentTotal)
			createErr := tx.Create(&edge).Error
			if createErr == nil {
				result = &edge
				return nil
			}
			if !IsUniqueViolation(createErr) {
				return createErr
			}
			// Lost a create race on idx_cascade_pair; fold this
			// detection into the winner's row instead.
			if readErr := tx.
				Where("parent_type = ? AND child_type = ?", parentType, childType).
				First(&edge).Error; readErr != nil {
				return readErr
			}
		} else if err != nil {
			return err
		}

		edge.Frequency++
		freq := float64(edge.Frequency)
		edge.AvgDelaySeconds = (edge.AvgDelaySeconds*(freq-1) + delaySeconds) / freq
		edge.LastDetectedAt = detectedAt
		applyProbability(&edge, parentTotal)
		if saveErr := tx.Save(&edge).Error; saveErr != nil {
			return saveErr
		}
		result = &edge
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func applyProbability(edge *CascadePattern, parentTotal int64) {
	if parentTotal <= 0 {
		return
	}
	prob := float64(edge.Frequency) / float64(parentTotal)
	edge.CascadeProbability = &prob
}

func (r *cascadeRepository) Get(ctx context.Context, parentType, childType string) (*CascadePattern, error) {
	var edge CascadePattern
	err := r.db.WithContext(ctx).
		Where("parent_type = ? AND child_type = ?", parentType, childType).
		First(&edge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cascade %s->%s", ErrRecordNotFound, parentType, childType)
		}
		return nil, err
	}
	return &edge, nil
}

func (r *cascadeRepository) ListByParent(ctx context.Context, parentType string) ([]*CascadePattern, error) {
	var edges []*CascadePattern
	err := r.db.WithContext(ctx).
		Where("parent_type = ?", parentType).
		Order("frequency DESC").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}
