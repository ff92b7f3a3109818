package domain

import (
	"context"
	"fmt"
	"math"
	"time"
)

// 七个固定参数键（与原有数据表列名一致）
const (
	ParamPH          = "ph"
	ParamUmidade     = "umidade"
	ParamTemperatura = "temperatura"
	ParamNitrogenio  = "nitrogenio"
	ParamFosforo     = "fosforo"
	ParamPotassio    = "potassio"
	ParamMicrobioma  = "microbioma"
)

// Parameters lists the measurement keys in evaluation order.
var Parameters = []string{
	ParamPH, ParamUmidade, ParamTemperatura, ParamNitrogenio,
	ParamFosforo, ParamPotassio, ParamMicrobioma,
}

type Measurements struct {
	PH          float64 `gorm:"column:ph;not null" json:"ph"`
	Umidade     float64 `gorm:"column:umidade;not null" json:"umidade"`
	Temperatura float64 `gorm:"column:temperatura;not null" json:"temperatura"`
	Nitrogenio  float64 `gorm:"column:nitrogenio;not null" json:"nitrogenio"`
	Fosforo     float64 `gorm:"column:fosforo;not null" json:"fosforo"`
	Potassio    float64 `gorm:"column:potassio;not null" json:"potassio"`
	Microbioma  float64 `gorm:"column:microbioma;not null" json:"microbioma"`
}

// Value returns the measurement stored under key.
func (m Measurements) Value(key string) (float64, bool) {
	switch key {
	case ParamPH:
		return m.PH, true
	case ParamUmidade:
		return m.Umidade, true
	case ParamTemperatura:
		return m.Temperatura, true
	case ParamNitrogenio:
		return m.Nitrogenio, true
	case ParamFosforo:
		return m.Fosforo, true
	case ParamPotassio:
		return m.Potassio, true
	case ParamMicrobioma:
		return m.Microbioma, true
	}
	return 0, false
}

func (m Measurements) Validate() error {
	for _, k := range Parameters {
		v, _ := m.Value(k)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a finite number", ErrValidation, k)
		}
	}
	return nil
}

type Reading struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	UserID       uint         `gorm:"column:usuario_id;index;not null" json:"userId"`
	Measurements Measurements `gorm:"embedded" json:"measurements"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"createdAt"`
}

func (Reading) TableName() string { return "solo" }

type ReadingRepository interface {
	InsertReading(ctx context.Context, r *Reading) error
	ListReadingsByUser(ctx context.Context, userID uint) ([]Reading, error)
	FindReadingByID(ctx context.Context, id uint) (*Reading, error)
}
