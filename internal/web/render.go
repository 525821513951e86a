package web

import (
	"bytes"
	"context"
	"net/http"

	"github.com/a-h/templ"
	"github.com/prometheus/client_golang/prometheus"

	"procodus.dev/scmxpert/pkg/logger"
	"procodus.dev/scmxpert/pkg/metrics"
)

// render lays out body under name, buffering the output so that a failed
// render still yields a clean 500.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, p page, body templ.Component) {
	if session := sessionFrom(r.Context()); session != nil {
		p.Username = session.Username
		p.Theme = session.Theme
	}
	p.Flashes = append(h.takeFlashes(w, r), p.Flashes...)

	var buf bytes.Buffer
	//nolint:contextcheck // Context is passed to Templ's Render method
	err := trackTemplateRender(r.Context(), h.metrics, name, func(ctx context.Context) error {
		return layout(p, body).Render(ctx, &buf)
	})
	if err != nil {
		h.serverError(w, r, "failed to render "+name, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logger.FromContext(r.Context(), h.logger).Error("failed to write page", "template", name, "error", err)
	}
}

// trackTemplateRender wraps template rendering with metrics tracking.
func trackTemplateRender(ctx context.Context, m *metrics.WebMetrics, templateName string, renderFunc func(context.Context) error) error {
	if m == nil {
		return renderFunc(ctx)
	}

	timer := prometheus.NewTimer(m.TemplateRenderTime.WithLabelValues(templateName))
	defer timer.ObserveDuration()

	if err := renderFunc(ctx); err != nil {
		m.TemplateRenderErrors.WithLabelValues(templateName).Inc()
		return err
	}

	return nil
}
