package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"soil-monitor/internal/domain"
)

type ReadingRepo struct{ db *gorm.DB }

func NewReadingRepo(db *gorm.DB) *ReadingRepo { return &ReadingRepo{db: db} }

// InsertReading 校验测量值并确认所属用户存在后写入一行
func (r *ReadingRepo) InsertReading(ctx context.Context, rd *domain.Reading) error {
	if err := rd.Measurements.Validate(); err != nil {
		return err
	}
	if err := exists(ctx, r.db, &domain.User{}, rd.UserID); err != nil {
		return fmt.Errorf("reading owner: %w", err)
	}
	return r.db.WithContext(ctx).Create(rd).Error
}

func (r *ReadingRepo) ListReadingsByUser(ctx context.Context, userID uint) ([]domain.Reading, error) {
	out := []domain.Reading{}
	if err := r.db.WithContext(ctx).
		Where("usuario_id = ?", userID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ReadingRepo) FindReadingByID(ctx context.Context, id uint) (*domain.Reading, error) {
	var rd domain.Reading
	err := r.db.WithContext(ctx).First(&rd, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: reading %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rd, nil
}
