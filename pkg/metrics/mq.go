package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const mqSubsystem = "mq"

// MQMetrics tracks the broker connection and the telemetry queue traffic of a
// pkg/mq client. The simulator and the telemetry service each own one.
type MQMetrics struct {
	// Published counts messages confirmed by the broker.
	Published *prometheus.CounterVec

	// PublishErrors counts failed publish attempts by reason:
	// not_connected, publish_error, nack, max_retries_exceeded, context_canceled.
	PublishErrors *prometheus.CounterVec

	// ConfirmLatency observes the time from the first publish attempt to the
	// broker confirmation, retries included.
	ConfirmLatency *prometheus.HistogramVec

	// Dials counts connection attempts by result (connected, failed).
	Dials *prometheus.CounterVec

	// Connected is 1 while a channel is open.
	Connected prometheus.Gauge

	// Subscriptions counts consumers registered on a queue.
	Subscriptions *prometheus.CounterVec
}

// NewMQMetrics creates MQ client metrics and registers them with reg.
func NewMQMetrics(reg prometheus.Registerer, namespace string) *MQMetrics {
	m := &MQMetrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: mqSubsystem,
			Name:      "published_total",
			Help:      "Telemetry messages confirmed by the broker",
		}, []string{"queue"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: mqSubsystem,
			Name:      "publish_errors_total",
			Help:      "Failed publish attempts by reason",
		}, []string{"queue", "reason"}),
		ConfirmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: mqSubsystem,
			Name:      "confirm_latency_seconds",
			Help:      "Time until the broker confirmed a message, retries included",
			// 1ms .. ~16s
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"queue"}),
		Dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: mqSubsystem,
			Name:      "dials_total",
			Help:      "Broker connection attempts by result",
		}, []string{"result"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: mqSubsystem,
			Name:      "connected",
			Help:      "1 while a broker channel is open, 0 otherwise",
		}),
		Subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: mqSubsystem,
			Name:      "subscriptions_total",
			Help:      "Consumers registered on a queue",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		m.Published,
		m.PublishErrors,
		m.ConfirmLatency,
		m.Dials,
		m.Connected,
		m.Subscriptions,
	)

	return m
}
