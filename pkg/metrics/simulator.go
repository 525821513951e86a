package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the telemetry simulator.
type SimulatorMetrics struct {
	MessagesPublished *prometheus.CounterVec
	PublishFailures   *prometheus.CounterVec
	TickDuration      prometheus.Histogram
	TargetsPerTick    *prometheus.GaugeVec
}

// NewSimulatorMetrics creates simulator metrics and registers them with reg.
func NewSimulatorMetrics(reg prometheus.Registerer, namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "messages_published_total",
				Help:      "Synthetic telemetry messages published",
			},
			[]string{"kind"},
		),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "publish_failures_total",
				Help:      "Synthetic telemetry messages that could not be published",
			},
			[]string{"kind", "reason"},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "tick_duration_seconds",
				Help:      "Duration of one simulation round",
				Buckets:   prometheus.DefBuckets,
			},
		),
		TargetsPerTick: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "targets",
				Help:      "Devices and shipments simulated in the last round",
			},
			[]string{"entity"},
		),
	}

	reg.MustRegister(
		m.MessagesPublished,
		m.PublishFailures,
		m.TickDuration,
		m.TargetsPerTick,
	)

	return m
}
