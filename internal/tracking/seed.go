package tracking

import (
	"context"

	"procodus.dev/scmxpert/internal/store"
)

// SeedResult reports how many sample rows were inserted.
type SeedResult struct {
	ShipmentsCreated int
	DevicesCreated   int
}

type sampleShipment struct {
	origin, destination, status, location, carrier, priority string
	temperature, humidity, cost                              float64
}

var sampleShipments = []sampleShipment{
	{"New York, NY", "Los Angeles, CA", store.StatusInTransit, "Chicago, IL", "FedEx", store.PriorityExpress, 22.5, 45.0, 299.99},
	{"Miami, FL", "Seattle, WA", store.StatusDelivered, "Seattle, WA", "UPS", store.PriorityStandard, 18.0, 60.0, 189.50},
	{"Dallas, TX", "Boston, MA", store.StatusDelayed, "Memphis, TN", "DHL", store.PriorityExpress, 25.0, 55.0, 245.75},
}

type sampleDevice struct {
	deviceType, status, location string
	battery                      int
	temperature, humidity        float64
}

var sampleDevices = []sampleDevice{
	{"Temperature Sensor", store.DeviceActive, "Chicago, IL", 85, 22.5, 45.0},
	{"GPS Tracker", store.DeviceActive, "Memphis, TN", 92, 25.0, 55.0},
	{"Humidity Sensor", store.DeviceInactive, "Seattle, WA", 15, 18.0, 60.0},
}

// SeedSampleData gives an empty account three sample shipments and three
// sample devices. Each category is only filled when the user has none of it,
// so calling it again is a no-op. Everything happens in one transaction.
func (s *Service) SeedSampleData(ctx context.Context, userID uint) (*SeedResult, error) {
	result := &SeedResult{}

	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		shipmentCount, err := tx.Shipments().CountByUser(ctx, userID)
		if err != nil {
			return err
		}
		if shipmentCount == 0 {
			now := s.now().UTC()
			shipments := make([]store.Shipment, 0, len(sampleShipments))
			for _, sample := range sampleShipments {
				eta := s.gen.EstimatedDelivery(now)
				shipments = append(shipments, store.Shipment{
					UserID:            userID,
					TrackingNumber:    s.gen.TrackingNumber(),
					Origin:            sample.origin,
					Destination:       sample.destination,
					Status:            sample.status,
					CurrentLocation:   ptr(sample.location),
					Temperature:       ptr(sample.temperature),
					Humidity:          ptr(sample.humidity),
					Cost:              ptr(sample.cost),
					Carrier:           ptr(sample.carrier),
					Priority:          sample.priority,
					EstimatedDelivery: &eta,
				})
			}
			if err := tx.Shipments().CreateBatch(ctx, shipments); err != nil {
				return err
			}
			result.ShipmentsCreated = len(shipments)
		}

		deviceCount, err := tx.Devices().CountByUser(ctx, userID)
		if err != nil {
			return err
		}
		if deviceCount == 0 {
			devices := make([]store.IoTDevice, 0, len(sampleDevices))
			for _, sample := range sampleDevices {
				devices = append(devices, store.IoTDevice{
					UserID:       userID,
					DeviceID:     s.gen.DeviceID(),
					DeviceType:   sample.deviceType,
					Status:       sample.status,
					BatteryLevel: ptr(sample.battery),
					Location:     ptr(sample.location),
					Temperature:  ptr(sample.temperature),
					Humidity:     ptr(sample.humidity),
				})
			}
			if err := tx.Devices().CreateBatch(ctx, devices); err != nil {
				return err
			}
			result.DevicesCreated = len(devices)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.ShipmentsCreated > 0 || result.DevicesCreated > 0 {
		s.logger.Info("sample data seeded",
			"user_id", userID,
			"shipments", result.ShipmentsCreated,
			"devices", result.DevicesCreated,
		)
	}
	return result, nil
}

func ptr[T any](v T) *T {
	return &v
}
