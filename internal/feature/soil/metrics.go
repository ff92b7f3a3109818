package soil

import (
	"github.com/prometheus/client_golang/prometheus"

	"soil-monitor/internal/threshold"
)

var (
	readingsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soil_readings_submitted_total",
		Help: "Soil readings stored",
	})
	anomaliesDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "soil_anomalies_detected_total", Help: "Out-of-range parameters reported"},
		[]string{"parameter", "direction"},
	)
)

func init() { prometheus.MustRegister(readingsSubmitted, anomaliesDetected) }

func observe(reports []threshold.Report) {
	for _, rep := range reports {
		for _, d := range rep.Deviations {
			anomaliesDetected.WithLabelValues(d.Parameter, string(d.Direction)).Inc()
		}
	}
}
