package soil

import (
	"context"
	"fmt"

	"soil-monitor/internal/domain"
	"soil-monitor/internal/threshold"
)

type Service struct {
	readings  domain.ReadingRepository
	anomalies domain.AnomalyRepository
}

func NewService(readings domain.ReadingRepository, anomalies domain.AnomalyRepository) *Service {
	return &Service{readings: readings, anomalies: anomalies}
}

// Submit 写入一条读数，返回读数 ID
func (s *Service) Submit(ctx context.Context, userID uint, m domain.Measurements) (uint, error) {
	rd := &domain.Reading{UserID: userID, Measurements: m}
	if err := s.readings.InsertReading(ctx, rd); err != nil {
		return 0, err
	}
	readingsSubmitted.Inc()
	return rd.ID, nil
}

// Anomalies 逐条评估用户的全部读数，只返回存在异常的报告
func (s *Service) Anomalies(ctx context.Context, userID uint) ([]threshold.Report, error) {
	rds, err := s.readings.ListReadingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	reports := threshold.EvaluateAll(rds)
	observe(reports)
	return reports, nil
}

// RecordAnomaly is the audit passthrough: one row per call, no evaluation.
func (s *Service) RecordAnomaly(ctx context.Context, rec domain.AnomalyRecord) (uint, error) {
	if err := s.anomalies.InsertAnomaly(ctx, &rec); err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// Audit 把引擎输出写入审计表，返回写入行数
func (s *Service) Audit(ctx context.Context, userID uint) (int, error) {
	reports, err := s.Anomalies(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rep := range reports {
		for _, d := range rep.Deviations {
			if _, err := s.RecordAnomaly(ctx, domain.AnomalyRecord{
				ReadingID: rep.ReadingID,
				Parameter: d.Parameter,
				Condition: d.Description,
				Action:    d.Treatment,
			}); err != nil {
				return n, fmt.Errorf("audit reading %d: %w", rep.ReadingID, err)
			}
			n++
		}
	}
	return n, nil
}

func (s *Service) AuditTrail(ctx context.Context, readingID uint) ([]domain.AnomalyRecord, error) {
	return s.anomalies.ListAnomaliesByReading(ctx, readingID)
}

// Owner returns the user that submitted a reading.
func (s *Service) Owner(ctx context.Context, readingID uint) (uint, error) {
	rd, err := s.readings.FindReadingByID(ctx, readingID)
	if err != nil {
		return 0, err
	}
	return rd.UserID, nil
}
