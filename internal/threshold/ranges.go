package threshold

import "soil-monitor/internal/domain"

// Range is the inclusive ideal interval for one parameter.
type Range struct {
	Parameter  string  `json:"parameter"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	LowAction  string  `json:"lowAction"`
	HighAction string  `json:"highAction"`
}

// 低/高两个方向目前共用同一条处理建议（沿用原有数据表）
var table = []Range{
	same(domain.ParamPH, 6.0, 7.5, "Adicionar calcário para aumentar o pH."),
	same(domain.ParamUmidade, 25, 40, "Irrigar a área para aumentar a umidade."),
	same(domain.ParamTemperatura, 15, 30, "Usar mulching para controlar a temperatura."),
	same(domain.ParamNitrogenio, 20, 50, "Adicionar adubo nitrogenado."),
	same(domain.ParamFosforo, 10, 30, "Adicionar fertilizantes fosfatados."),
	same(domain.ParamPotassio, 15, 40, "Adicionar fertilizantes ricos em potássio."),
	same(domain.ParamMicrobioma, 4.5, 6.0, "Incorporar matéria orgânica ao solo."),
}

func same(param string, low, high float64, action string) Range {
	return Range{Parameter: param, Low: low, High: high, LowAction: action, HighAction: action}
}

// Ranges returns a copy of the fixed range table in evaluation order.
func Ranges() []Range {
	out := make([]Range, len(table))
	copy(out, table)
	return out
}

// Lookup returns the range for a parameter key.
func Lookup(param string) (Range, bool) {
	for _, r := range table {
		if r.Parameter == param {
			return r, true
		}
	}
	return Range{}, false
}

// Classify compares v against the inclusive [Low, High] interval.
func (r Range) Classify(v float64) Direction {
	switch {
	case v < r.Low:
		return DirectionLow
	case v > r.High:
		return DirectionHigh
	default:
		return DirectionNone
	}
}

func (r Range) action(d Direction) string {
	if d == DirectionHigh {
		return r.HighAction
	}
	return r.LowAction
}
