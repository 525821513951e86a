package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TelemetryMetrics contains Prometheus metrics for the telemetry consumer.
type TelemetryMetrics struct {
	MessagesTotal      *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ActiveConsumers    prometheus.Gauge
}

// NewTelemetryMetrics creates telemetry consumer metrics and registers them with reg.
func NewTelemetryMetrics(reg prometheus.Registerer, namespace string) *TelemetryMetrics {
	m := &TelemetryMetrics{
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "telemetry",
				Name:      "messages_total",
				Help:      "Telemetry messages handled by kind and outcome",
			},
			[]string{"kind", "status"}, // status: applied, malformed, unknown, invalid, failed
		),
		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "telemetry",
				Name:      "processing_duration_seconds",
				Help:      "Time spent applying a telemetry message",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		ActiveConsumers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "telemetry",
				Name:      "active_consumers",
				Help:      "Number of running telemetry consumers",
			},
		),
	}

	reg.MustRegister(
		m.MessagesTotal,
		m.ProcessingDuration,
		m.ActiveConsumers,
	)

	return m
}
