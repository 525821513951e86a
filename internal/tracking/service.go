// Package tracking implements the per-user operations behind the dashboard,
// tracking, analytics and IoT pages, plus the telemetry write path.
package tracking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/pkg/generator"
)

// RecentLimit is the number of shipments shown on the dashboard.
const RecentLimit = 5

// ErrInvalidStatus is returned for a status outside the known set.
var ErrInvalidStatus = errors.New("invalid status")

// Config holds the dependencies of the tracking Service.
type Config struct {
	Logger    *slog.Logger
	Store     *store.Store
	Generator *generator.Generator

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service runs user-scoped domain operations against the store.
type Service struct {
	logger *slog.Logger
	store  *store.Store
	gen    *generator.Generator
	now    func() time.Time
}

// NewService creates a tracking service.
func NewService(cfg *Config) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("tracking config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	gen := cfg.Generator
	if gen == nil {
		gen = generator.New(0)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		logger: cfg.Logger,
		store:  cfg.Store,
		gen:    gen,
		now:    now,
	}, nil
}

// DashboardStats are the counters shown on the dashboard.
type DashboardStats struct {
	Total         int64
	InTransit     int64
	Delivered     int64
	Delayed       int64
	ActiveDevices int64
}

// DashboardStats counts the user's shipments by exact status and active devices.
func (s *Service) DashboardStats(ctx context.Context, userID uint) (*DashboardStats, error) {
	shipments := s.store.Shipments()

	var (
		stats DashboardStats
		err   error
	)
	if stats.Total, err = shipments.CountByUser(ctx, userID); err != nil {
		return nil, err
	}
	if stats.InTransit, err = shipments.CountByStatus(ctx, userID, store.StatusInTransit); err != nil {
		return nil, err
	}
	if stats.Delivered, err = shipments.CountByStatus(ctx, userID, store.StatusDelivered); err != nil {
		return nil, err
	}
	if stats.Delayed, err = shipments.CountByStatus(ctx, userID, store.StatusDelayed); err != nil {
		return nil, err
	}
	if stats.ActiveDevices, err = s.store.Devices().CountActiveByUser(ctx, userID); err != nil {
		return nil, err
	}
	return &stats, nil
}

// RecentShipments returns the user's newest shipments, at most RecentLimit.
func (s *Service) RecentShipments(ctx context.Context, userID uint) ([]store.Shipment, error) {
	return s.store.Shipments().ListByUser(ctx, userID, RecentLimit)
}

// AllShipments returns every shipment of the user, newest first.
func (s *Service) AllShipments(ctx context.Context, userID uint) ([]store.Shipment, error) {
	return s.store.Shipments().ListByUser(ctx, userID, 0)
}

// Devices returns every device of the user.
func (s *Service) Devices(ctx context.Context, userID uint) ([]store.IoTDevice, error) {
	return s.store.Devices().ListByUser(ctx, userID)
}

// ShipmentByTracking returns the user's shipment with this tracking number.
// Shipments of other users are reported as store.ErrNotFound.
func (s *Service) ShipmentByTracking(ctx context.Context, userID uint, trackingNumber string) (*store.Shipment, error) {
	return s.store.Shipments().GetByTrackingNumber(ctx, userID, trackingNumber)
}

// User loads the account behind a session.
func (s *Service) User(ctx context.Context, userID uint) (*store.User, error) {
	return s.store.Users().GetByID(ctx, userID)
}

// ToggleTheme flips the user's theme and returns the new value. Anything
// other than light becomes light.
func (s *Service) ToggleTheme(ctx context.Context, userID uint) (string, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	theme := store.ThemeLight
	if user.ThemePreference == store.ThemeLight {
		theme = store.ThemeDark
	}

	if err := s.store.Users().UpdateTheme(ctx, userID, theme); err != nil {
		return "", err
	}
	return theme, nil
}
