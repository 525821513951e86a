package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebMetrics contains Prometheus metrics for the web service.
type WebMetrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPResponseSize     *prometheus.HistogramVec
	TemplateRenderTime   *prometheus.HistogramVec
	TemplateRenderErrors *prometheus.CounterVec
	AuthAttempts         *prometheus.CounterVec
	SampleDataSeeded     *prometheus.CounterVec
}

// NewWebMetrics creates web service metrics and registers them with reg.
func NewWebMetrics(reg prometheus.Registerer, namespace string) *WebMetrics {
	m := &WebMetrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6), // 100B to 10MB
			},
			[]string{"route"},
		),
		TemplateRenderTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "render_duration_seconds",
				Help:      "Duration of page rendering",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"template"},
		),
		TemplateRenderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "render_errors_total",
				Help:      "Total number of page rendering errors",
			},
			[]string{"template"},
		),
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "attempts_total",
				Help:      "Login and registration attempts by outcome",
			},
			[]string{"action", "result"}, // action: login, register
		),
		SampleDataSeeded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "seed",
				Name:      "rows_created_total",
				Help:      "Sample rows created by the sample data initializer",
			},
			[]string{"entity"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.HTTPResponseSize,
		m.TemplateRenderTime,
		m.TemplateRenderErrors,
		m.AuthAttempts,
		m.SampleDataSeeded,
	)

	return m
}
