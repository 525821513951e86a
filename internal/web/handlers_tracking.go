package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/pkg/logger"
)

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := sessionFrom(ctx).UserID

	stats, err := h.tracking.DashboardStats(ctx, userID)
	if err != nil {
		h.serverError(w, r, "failed to load dashboard stats", err)
		return
	}

	shipments, err := h.tracking.RecentShipments(ctx, userID)
	if err != nil {
		h.serverError(w, r, "failed to load recent shipments", err)
		return
	}

	devices, err := h.tracking.Devices(ctx, userID)
	if err != nil {
		h.serverError(w, r, "failed to load devices", err)
		return
	}

	h.render(w, r, http.StatusOK, "dashboard", page{Title: "Dashboard"}, dashboardView(stats, shipments, devices))
}

func (h *Handler) handleTracking(w http.ResponseWriter, r *http.Request) {
	shipments, err := h.tracking.AllShipments(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		h.serverError(w, r, "failed to load shipments", err)
		return
	}

	h.render(w, r, http.StatusOK, "tracking", page{Title: "Tracking"}, trackingView(shipments))
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := sessionFrom(ctx).UserID

	summary, err := h.tracking.ComputeAnalytics(ctx, userID)
	if err != nil {
		h.serverError(w, r, "failed to compute analytics", err)
		return
	}

	history, err := h.tracking.AnalyticsHistory(ctx, userID, analyticsHistoryLimit)
	if err != nil {
		h.serverError(w, r, "failed to load analytics history", err)
		return
	}

	h.render(w, r, http.StatusOK, "analytics", page{Title: "Analytics"}, analyticsView(summary, history))
}

func (h *Handler) handleIoT(w http.ResponseWriter, r *http.Request) {
	devices, err := h.tracking.Devices(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		h.serverError(w, r, "failed to load devices", err)
		return
	}

	h.render(w, r, http.StatusOK, "iot", page{Title: "IoT Devices"}, iotView(devices))
}

// handleInitSampleData seeds an empty account and returns to the dashboard.
func (h *Handler) handleInitSampleData(w http.ResponseWriter, r *http.Request) {
	userID := sessionFrom(r.Context()).UserID

	result, err := h.tracking.SeedSampleData(r.Context(), userID)
	if err != nil {
		h.serverError(w, r, "failed to seed sample data", err)
		return
	}

	if h.metrics != nil {
		h.metrics.SampleDataSeeded.WithLabelValues("shipment").Add(float64(result.ShipmentsCreated))
		h.metrics.SampleDataSeeded.WithLabelValues("device").Add(float64(result.DevicesCreated))
	}

	logger.FromContext(r.Context(), h.logger).Info("sample data initialized",
		"user_id", userID,
		"shipments_created", result.ShipmentsCreated,
		"devices_created", result.DevicesCreated,
	)
	h.addFlash(w, r, flashSuccess, "Sample data initialized!")
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

type themeResponse struct {
	Theme string `json:"theme"`
}

// handleToggleTheme flips the stored theme and re-issues the session cookie
// with the new value.
func (h *Handler) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	session := *sessionFrom(r.Context())

	theme, err := h.tracking.ToggleTheme(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusUnauthorized, "Not logged in")
			return
		}
		logger.FromContext(r.Context(), h.logger).Error("failed to toggle theme", "user_id", session.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	session.Theme = theme
	if err := h.setSessionCookie(w, &session); err != nil {
		logger.FromContext(r.Context(), h.logger).Error("failed to re-issue session", "user_id", session.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.writeJSON(w, http.StatusOK, themeResponse{Theme: theme})
}

type shipmentStatusResponse struct {
	CurrentLocation   *string  `json:"current_location"`
	Temperature       *float64 `json:"temperature"`
	Humidity          *float64 `json:"humidity"`
	EstimatedDelivery *string  `json:"estimated_delivery"`
	TrackingNumber    string   `json:"tracking_number"`
	Status            string   `json:"status"`
}

func newShipmentStatusResponse(s *store.Shipment) shipmentStatusResponse {
	resp := shipmentStatusResponse{
		TrackingNumber:  s.TrackingNumber,
		Status:          s.Status,
		CurrentLocation: s.CurrentLocation,
		Temperature:     s.Temperature,
		Humidity:        s.Humidity,
	}
	if s.EstimatedDelivery != nil {
		eta := s.EstimatedDelivery.UTC().Format(time.RFC3339)
		resp.EstimatedDelivery = &eta
	}
	return resp
}

// handleShipmentStatus returns the JSON snapshot of one of the caller's
// shipments. Shipments of other users are reported as not found.
func (h *Handler) handleShipmentStatus(w http.ResponseWriter, r *http.Request) {
	userID := sessionFrom(r.Context()).UserID
	trackingNumber := chi.URLParam(r, "tracking_number")

	shipment, err := h.tracking.ShipmentByTracking(r.Context(), userID, trackingNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Shipment not found")
			return
		}
		logger.FromContext(r.Context(), h.logger).Error("failed to load shipment", "tracking_number", trackingNumber, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.writeJSON(w, http.StatusOK, newShipmentStatusResponse(shipment))
}

// handleHealth serves health check endpoint.
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
