package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"procodus.dev/scmxpert/pkg/metrics"
)

var _ = Describe("Metrics", func() {
	var reg *prometheus.Registry

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
	})

	It("should register every service's collectors side by side", func() {
		Expect(func() {
			metrics.NewWebMetrics(reg, metrics.Namespace)
			metrics.NewTelemetryMetrics(reg, metrics.Namespace)
			metrics.NewSimulatorMetrics(reg, metrics.Namespace)
			metrics.NewMQMetrics(reg, metrics.Namespace)
		}).NotTo(Panic())
	})

	It("should panic on duplicate registration", func() {
		metrics.NewWebMetrics(reg, metrics.Namespace)
		Expect(func() { metrics.NewWebMetrics(reg, metrics.Namespace) }).To(Panic())
	})

	It("should count labelled events", func() {
		m := metrics.NewTelemetryMetrics(reg, metrics.Namespace)
		m.MessagesTotal.WithLabelValues("device_reading", "applied").Inc()
		m.MessagesTotal.WithLabelValues("device_reading", "applied").Inc()

		families, err := reg.Gather()
		Expect(err).NotTo(HaveOccurred())
		var total float64
		for _, f := range families {
			if f.GetName() == "scmxpert_telemetry_messages_total" {
				total = f.GetMetric()[0].GetCounter().GetValue()
			}
		}
		Expect(total).To(Equal(2.0))
	})

	It("should expose registered metrics over HTTP", func() {
		m := metrics.NewWebMetrics(reg, metrics.Namespace)
		m.AuthAttempts.WithLabelValues("login", "success").Inc()

		rec := httptest.NewRecorder()
		metrics.HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		body, err := io.ReadAll(rec.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`scmxpert_auth_attempts_total{action="login",result="success"} 1`))
	})

	It("should include runtime collectors in the global registry", func() {
		families, err := metrics.Registry.Gather()
		Expect(err).NotTo(HaveOccurred())
		names := make([]string, 0, len(families))
		for _, f := range families {
			names = append(names, f.GetName())
		}
		Expect(names).To(ContainElement("go_goroutines"))
	})
})
