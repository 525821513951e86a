package tracking

import (
	"context"
	"fmt"

	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/pkg/telemetry"
)

// ApplyDeviceReading writes a reading to the device with the reading's global
// device id. Unknown devices return store.ErrNotFound.
func (s *Service) ApplyDeviceReading(ctx context.Context, reading *telemetry.DeviceReading) error {
	if reading.Status != nil && !store.ValidDeviceStatus(*reading.Status) {
		return fmt.Errorf("%w: device status %q", ErrInvalidStatus, *reading.Status)
	}

	ping := reading.Timestamp
	if ping.IsZero() {
		ping = s.now()
	}

	return s.store.Devices().ApplyReading(ctx, reading.DeviceID, store.DeviceReading{
		LastPing:     ping.UTC(),
		Temperature:  reading.Temperature,
		Humidity:     reading.Humidity,
		BatteryLevel: reading.BatteryLevel,
		Location:     reading.Location,
		Status:       reading.Status,
	})
}

// ApplyShipmentUpdate writes a tracking event to the shipment with the
// update's global tracking number. A transition to Delivered without an
// actual delivery time is stamped with the event time.
func (s *Service) ApplyShipmentUpdate(ctx context.Context, update *telemetry.ShipmentUpdate) error {
	if update.Status != nil && !store.ValidShipmentStatus(*update.Status) {
		return fmt.Errorf("%w: shipment status %q", ErrInvalidStatus, *update.Status)
	}

	changes := store.ShipmentChanges{
		Status:          update.Status,
		CurrentLocation: update.CurrentLocation,
		Temperature:     update.Temperature,
		Humidity:        update.Humidity,
		ActualDelivery:  update.ActualDelivery,
	}

	if update.Status != nil && *update.Status == store.StatusDelivered && changes.ActualDelivery == nil {
		at := update.Timestamp
		if at.IsZero() {
			at = s.now()
		}
		at = at.UTC()
		changes.ActualDelivery = &at
	}

	return s.store.Shipments().ApplyUpdate(ctx, update.TrackingNumber, changes)
}
