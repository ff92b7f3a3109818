// Package threshold classifies soil readings against the fixed ideal ranges.
package threshold

import (
	"fmt"
	"math"
	"strconv"

	"soil-monitor/internal/domain"
)

type Direction string

const (
	DirectionNone Direction = ""
	DirectionLow  Direction = "low"
	DirectionHigh Direction = "high"
)

type Deviation struct {
	Parameter   string    `json:"parameter"`
	Direction   Direction `json:"direction"`
	Value       float64   `json:"value"`
	Low         float64   `json:"low"`
	High        float64   `json:"high"`
	Description string    `json:"description"`
	Treatment   string    `json:"treatment"`
}

// Report 是单条读数的评估结果；Deviations 为空表示全部在范围内
type Report struct {
	ReadingID  uint              `json:"readingId"`
	Deviations []Deviation       `json:"-"`
	Conditions map[string]string `json:"conditions"`
	Treatments map[string]string `json:"treatments"`
}

func (r Report) Empty() bool { return len(r.Deviations) == 0 }

// Evaluate runs all seven parameters of a reading through the range table.
func Evaluate(rd domain.Reading) Report {
	rep := Report{
		ReadingID:  rd.ID,
		Conditions: map[string]string{},
		Treatments: map[string]string{},
	}
	for _, rg := range table {
		v, _ := rd.Measurements.Value(rg.Parameter)
		dir := rg.Classify(v)
		if dir == DirectionNone {
			continue
		}
		d := Deviation{
			Parameter:   rg.Parameter,
			Direction:   dir,
			Value:       v,
			Low:         rg.Low,
			High:        rg.High,
			Description: Describe(dir, v),
			Treatment:   rg.action(dir),
		}
		rep.Deviations = append(rep.Deviations, d)
		rep.Conditions[d.Parameter] = d.Description
		rep.Treatments[d.Parameter] = d.Treatment
	}
	return rep
}

// EvaluateAll keeps only readings with at least one deviation, in input order.
func EvaluateAll(rds []domain.Reading) []Report {
	out := make([]Report, 0, len(rds))
	for _, rd := range rds {
		if rep := Evaluate(rd); !rep.Empty() {
			out = append(out, rep)
		}
	}
	return out
}

// Describe renders the human-readable deviation text, e.g. "Baixo (5.0). Ação: aumentar.".
func Describe(dir Direction, v float64) string {
	switch dir {
	case DirectionLow:
		return fmt.Sprintf("Baixo (%s). Ação: aumentar.", formatValue(v))
	case DirectionHigh:
		return fmt.Sprintf("Alto (%s). Ação: reduzir.", formatValue(v))
	}
	return ""
}

// 整数值也保留一位小数：5 -> "5.0"；
// |v| 不在 [1e-4, 1e16) 时改用指数形式：1e20 -> "1e+20"，5e-05 -> "5e-05"
func formatValue(v float64) string {
	if a := math.Abs(v); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
