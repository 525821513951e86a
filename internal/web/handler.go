// Package web serves the SCMXpert dashboard: account pages, shipment and
// device views, and the small JSON API used by the pages.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"procodus.dev/scmxpert/internal/auth"
	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/internal/tracking"
	"procodus.dev/scmxpert/pkg/generator"
	"procodus.dev/scmxpert/pkg/logger"
	"procodus.dev/scmxpert/pkg/metrics"
)

// analyticsHistoryLimit is the number of daily rollups shown on the analytics page.
const analyticsHistoryLimit = 30

// HandlerConfig holds the dependencies of the HTTP handler.
type HandlerConfig struct {
	Logger   *slog.Logger
	Store    *store.Store
	Sessions *auth.SessionCodec

	// Metrics is optional.
	Metrics *metrics.WebMetrics

	// Gatherer backs /metrics and defaults to the global registry.
	Gatherer prometheus.Gatherer

	// Generator defaults to a randomly seeded one.
	Generator *generator.Generator

	BcryptCost int

	// LoginRateLimit caps login attempts per client IP per minute. Zero disables it.
	LoginRateLimit int

	CookieSecure bool
}

// Handler routes and serves every HTTP endpoint of the web service.
type Handler struct {
	logger       *slog.Logger
	auth         *auth.Service
	tracking     *tracking.Service
	sessions     *auth.SessionCodec
	metrics      *metrics.WebMetrics
	router       chi.Router
	gatherer     prometheus.Gatherer
	loginLimit   int
	cookieSecure bool
}

// NewHandler creates the handler and builds its routes.
func NewHandler(cfg *HandlerConfig) (*Handler, error) {
	if cfg == nil {
		return nil, errors.New("handler config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.Sessions == nil {
		return nil, errors.New("session codec cannot be nil")
	}

	if cfg.LoginRateLimit < 0 {
		return nil, errors.New("login rate limit cannot be negative")
	}

	authSvc, err := auth.NewService(&auth.ServiceConfig{
		Logger:     cfg.Logger,
		Store:      cfg.Store,
		BcryptCost: cfg.BcryptCost,
	})
	if err != nil {
		return nil, err
	}

	trackingSvc, err := tracking.NewService(&tracking.Config{
		Logger:    cfg.Logger,
		Store:     cfg.Store,
		Generator: cfg.Generator,
	})
	if err != nil {
		return nil, err
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = metrics.Registry
	}

	h := &Handler{
		logger:       cfg.Logger,
		auth:         authSvc,
		tracking:     trackingSvc,
		sessions:     cfg.Sessions,
		metrics:      cfg.Metrics,
		gatherer:     gatherer,
		loginLimit:   cfg.LoginRateLimit,
		cookieSecure: cfg.CookieSecure,
	}
	h.router = h.routes()

	return h, nil
}

// ServeHTTP dispatches the request to its route.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(h.recoverer)
	r.Use(h.instrument)

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(h.loadSession)

		r.Get("/", h.handleIndex)
		r.Get("/login", h.handleLoginForm)
		r.With(h.loginRateLimit()).Post("/login", h.handleLogin)
		r.Get("/register", h.handleRegisterForm)
		r.Post("/register", h.handleRegister)
		r.Get("/logout", h.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(requirePage)

			r.Get("/dashboard", h.handleDashboard)
			r.Get("/tracking", h.handleTracking)
			r.Get("/analytics", h.handleAnalytics)
			r.Get("/iot", h.handleIoT)
			r.Get("/init_sample_data", h.handleInitSampleData)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireAPI)

			r.Post("/toggle_theme", h.handleToggleTheme)
			r.Get("/api/shipment_status/{tracking_number}", h.handleShipmentStatus)
		})
	})

	return r
}

func (h *Handler) loginRateLimit() func(http.Handler) http.Handler {
	if h.loginLimit == 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.LimitByIP(h.loginLimit, time.Minute)
}

// instrument records request count, latency, size and in-flight requests by
// route pattern.
func (h *Handler) instrument(next http.Handler) http.Handler {
	if h.metrics == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.metrics.HTTPRequestsInFlight.Inc()
		defer h.metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		h.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		h.metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		h.metrics.HTTPResponseSize.WithLabelValues(route).Observe(float64(ww.BytesWritten()))
	})
}

// requestLogger puts a logger tagged with the request id into the context.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := h.logger.With("request_id", chimiddleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(logger.IntoContext(r.Context(), log)))
	})
}

// recoverer turns a panic into a logged 500.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.FromContext(r.Context(), h.logger).Error("panic serving request",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

// serverError logs an unexpected failure and answers with a generic 500.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger.FromContext(r.Context(), h.logger).Error(msg,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
	)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
