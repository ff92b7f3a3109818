package repo

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"soil-monitor/internal/domain"
)

type AnomalyRepo struct{ db *gorm.DB }

func NewAnomalyRepo(db *gorm.DB) *AnomalyRepo { return &AnomalyRepo{db: db} }

func (r *AnomalyRepo) InsertAnomaly(ctx context.Context, a *domain.AnomalyRecord) error {
	if !domain.IsParameter(a.Parameter) {
		return fmt.Errorf("%w: unknown parameter %q", domain.ErrValidation, a.Parameter)
	}
	if strings.TrimSpace(a.Condition) == "" || strings.TrimSpace(a.Action) == "" {
		return fmt.Errorf("%w: condition and action are required", domain.ErrValidation)
	}
	if err := exists(ctx, r.db, &domain.Reading{}, a.ReadingID); err != nil {
		return fmt.Errorf("anomaly reading: %w", err)
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AnomalyRepo) ListAnomaliesByReading(ctx context.Context, readingID uint) ([]domain.AnomalyRecord, error) {
	out := []domain.AnomalyRecord{}
	if err := r.db.WithContext(ctx).
		Where("solo_id = ?", readingID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
