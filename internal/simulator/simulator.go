// Package simulator publishes synthetic telemetry for the devices and
// shipments already in the database.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/pkg/generator"
	"procodus.dev/scmxpert/pkg/metrics"
	"procodus.dev/scmxpert/pkg/mq"
	"procodus.dev/scmxpert/pkg/telemetry"
)

const (
	// DefaultBatchSize bounds the devices and the shipments simulated per tick.
	DefaultBatchSize = 50

	// DefaultTransitionProbability is the chance per tick that an in-transit
	// shipment is delivered or delayed.
	DefaultTransitionProbability = 0.05
)

// Targets lists what the simulator reports on.
type Targets interface {
	ActiveDevices(ctx context.Context, limit int) ([]store.IoTDevice, error)
	InTransitShipments(ctx context.Context, limit int) ([]store.Shipment, error)
}

type storeTargets struct {
	store *store.Store
}

// StoreTargets simulates every active device and in-transit shipment in s.
func StoreTargets(s *store.Store) Targets {
	return &storeTargets{store: s}
}

func (t *storeTargets) ActiveDevices(ctx context.Context, limit int) ([]store.IoTDevice, error) {
	return t.store.Devices().ListActive(ctx, limit)
}

func (t *storeTargets) InTransitShipments(ctx context.Context, limit int) ([]store.Shipment, error) {
	return t.store.Shipments().ListInTransit(ctx, limit)
}

// Config holds the configuration for a Simulator.
type Config struct {
	Logger    *slog.Logger
	Targets   Targets
	Publisher mq.Publisher
	Generator *generator.Generator

	// Metrics is optional.
	Metrics *metrics.SimulatorMetrics

	// Now defaults to time.Now.
	Now func() time.Time

	BatchSize             int
	TransitionProbability float64
}

// Simulator generates one round of telemetry per Tick. It is not safe for
// concurrent use.
type Simulator struct {
	logger      *slog.Logger
	targets     Targets
	publisher   mq.Publisher
	gen         *generator.Generator
	metrics     *metrics.SimulatorMetrics
	now         func() time.Time
	batchSize   int
	transition  float64
	readings    map[string]*generator.ReadingGenerator
	transitions []string
}

// New creates a new Simulator instance.
func New(cfg *Config) (*Simulator, error) {
	if cfg == nil {
		return nil, errors.New("simulator config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Targets == nil {
		return nil, errors.New("targets cannot be nil")
	}

	if cfg.Publisher == nil {
		return nil, errors.New("publisher cannot be nil")
	}

	if cfg.TransitionProbability < 0 || cfg.TransitionProbability > 1 {
		return nil, fmt.Errorf("transition probability %v out of range [0, 1]", cfg.TransitionProbability)
	}

	gen := cfg.Generator
	if gen == nil {
		gen = generator.New(0)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Simulator{
		logger:      cfg.Logger,
		targets:     cfg.Targets,
		publisher:   cfg.Publisher,
		gen:         gen,
		metrics:     cfg.Metrics,
		now:         now,
		batchSize:   batchSize,
		transition:  cfg.TransitionProbability,
		readings:    make(map[string]*generator.ReadingGenerator),
		transitions: []string{store.StatusDelivered, store.StatusDelayed},
	}, nil
}

// Tick publishes a reading for every active device and an update for every
// in-transit shipment. Publish failures are logged and counted; the round
// continues and the failures are returned together.
func (s *Simulator) Tick(ctx context.Context) (int, error) {
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.TickDuration)
		defer timer.ObserveDuration()
	}

	devices, err := s.targets.ActiveDevices(ctx, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list active devices: %w", err)
	}

	shipments, err := s.targets.InTransitShipments(ctx, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list in-transit shipments: %w", err)
	}

	if s.metrics != nil {
		s.metrics.TargetsPerTick.WithLabelValues("device").Set(float64(len(devices)))
		s.metrics.TargetsPerTick.WithLabelValues("shipment").Set(float64(len(shipments)))
	}

	now := s.now().UTC()
	published := 0
	var errs error

	seen := make(map[string]struct{}, len(devices)+len(shipments))

	for _, device := range devices {
		seen[device.DeviceID] = struct{}{}
		reading := s.readingGenerator(device.DeviceID, now, device.BatteryLevel).Reading(now)
		if err := s.publish(ctx, telemetry.NewDeviceReadingMessage(reading)); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		published++
	}

	for _, shipment := range shipments {
		seen[shipment.TrackingNumber] = struct{}{}
		if err := s.publish(ctx, telemetry.NewShipmentUpdateMessage(s.shipmentUpdate(&shipment, now))); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		published++
	}

	for id := range s.readings {
		if _, ok := seen[id]; !ok {
			delete(s.readings, id)
		}
	}

	s.logger.Debug("simulation round finished",
		"devices", len(devices),
		"shipments", len(shipments),
		"published", published,
	)

	return published, errs
}

// readingGenerator returns the generator kept for id, starting a new one
// from the stored battery level when there is none.
func (s *Simulator) readingGenerator(id string, now time.Time, battery *int) *generator.ReadingGenerator {
	rg, ok := s.readings[id]
	if !ok {
		rg = s.gen.NewReadingGenerator(id, now)
		if battery != nil {
			rg.WithBattery(*battery)
		}
		s.readings[id] = rg
	}
	return rg
}

func (s *Simulator) shipmentUpdate(shipment *store.Shipment, now time.Time) *telemetry.ShipmentUpdate {
	reading := s.readingGenerator(shipment.TrackingNumber, now, nil).Reading(now)
	location := s.gen.Location()

	update := &telemetry.ShipmentUpdate{
		TrackingNumber:  shipment.TrackingNumber,
		Timestamp:       now,
		CurrentLocation: &location,
		Temperature:     reading.Temperature,
		Humidity:        reading.Humidity,
	}

	if s.gen.Chance(s.transition) {
		status := s.gen.Pick(s.transitions)
		update.Status = &status
		if status == store.StatusDelivered {
			update.CurrentLocation = &shipment.Destination
			update.ActualDelivery = &now
		}
		s.logger.Info("simulating shipment transition",
			"tracking_number", shipment.TrackingNumber,
			"status", status,
		)
	}

	return update
}

func (s *Simulator) publish(ctx context.Context, msg *telemetry.Message) error {
	kind := string(msg.Kind)

	data, err := telemetry.Encode(msg)
	if err != nil {
		s.failed(kind, "encode_error")
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}

	if err := s.publisher.Push(ctx, data); err != nil {
		s.failed(kind, "push_error")
		s.logger.Error("failed to publish telemetry", "kind", kind, "error", err)
		return fmt.Errorf("failed to publish %s: %w", kind, err)
	}

	if s.metrics != nil {
		s.metrics.MessagesPublished.WithLabelValues(kind).Inc()
	}
	return nil
}

func (s *Simulator) failed(kind, reason string) {
	if s.metrics != nil {
		s.metrics.PublishFailures.WithLabelValues(kind, reason).Inc()
	}
}

// Run calls Tick every interval until ctx is canceled.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("interval must be greater than 0")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("simulator started", "interval", interval, "batch_size", s.batchSize)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulator shutting down")
			return nil

		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// keep simulating on error
				s.logger.Error("simulation round failed", "error", err)
			}
		}
	}
}
