package domain

import (
	"context"
	"time"
)

// AnomalyRecord is the optional audit row for one out-of-range parameter.
type AnomalyRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ReadingID uint      `gorm:"column:solo_id;index;not null" json:"readingId"`
	Parameter string    `gorm:"column:parametro;size:32;not null" json:"parameter"`
	Condition string    `gorm:"column:condicao;size:255;not null" json:"condition"`
	Action    string    `gorm:"column:acao;size:255;not null" json:"action"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (AnomalyRecord) TableName() string { return "condicoes_anormais" }

type AnomalyRepository interface {
	InsertAnomaly(ctx context.Context, a *AnomalyRecord) error
	ListAnomaliesByReading(ctx context.Context, readingID uint) ([]AnomalyRecord, error)
}

// IsParameter reports whether key is one of the seven measurement keys.
func IsParameter(key string) bool {
	for _, p := range Parameters {
		if p == key {
			return true
		}
	}
	return false
}
