package store

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DeviceRepository reads and writes IoTDevice rows.
type DeviceRepository struct {
	db *gorm.DB
}

// DeviceReading carries a telemetry reading for a device. Nil fields are
// left untouched; LastPing is always written.
type DeviceReading struct {
	LastPing     time.Time
	Temperature  *float64
	Humidity     *float64
	BatteryLevel *int
	Location     *string
	Status       *string
}

// Create inserts a device. A zero LastPing defaults to the creation time.
func (r *DeviceRepository) Create(ctx context.Context, device *IoTDevice) error {
	if device.LastPing.IsZero() {
		device.LastPing = r.db.NowFunc()
	}
	return translate(r.db.WithContext(ctx).Create(device).Error, "create device")
}

// CreateBatch inserts several devices in one statement.
func (r *DeviceRepository) CreateBatch(ctx context.Context, devices []IoTDevice) error {
	if len(devices) == 0 {
		return nil
	}
	now := r.db.NowFunc()
	for i := range devices {
		if devices[i].LastPing.IsZero() {
			devices[i].LastPing = now
		}
	}
	return translate(r.db.WithContext(ctx).Create(&devices).Error, "create devices")
}

// ListByUser returns all devices of a user.
func (r *DeviceRepository) ListByUser(ctx context.Context, userID uint) ([]IoTDevice, error) {
	var devices []IoTDevice
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&devices).Error; err != nil {
		return nil, translate(err, "list devices")
	}
	return devices, nil
}

// CountByUser counts all devices of a user.
func (r *DeviceRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&IoTDevice{}).Where("user_id = ?", userID).Count(&count).Error
	return count, translate(err, "count devices")
}

// CountActiveByUser counts the devices of a user whose status is Active.
func (r *DeviceRepository) CountActiveByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&IoTDevice{}).
		Where("user_id = ? AND status = ?", userID, DeviceActive).
		Count(&count).Error
	return count, translate(err, "count active devices")
}

// ApplyReading writes a reading to the device with the given global device id.
// Unknown device ids return ErrNotFound.
func (r *DeviceRepository) ApplyReading(ctx context.Context, deviceID string, reading DeviceReading) error {
	cols := map[string]any{"last_ping": reading.LastPing}
	if reading.Temperature != nil {
		cols["temperature"] = *reading.Temperature
	}
	if reading.Humidity != nil {
		cols["humidity"] = *reading.Humidity
	}
	if reading.BatteryLevel != nil {
		cols["battery_level"] = *reading.BatteryLevel
	}
	if reading.Location != nil {
		cols["location"] = *reading.Location
	}
	if reading.Status != nil {
		cols["status"] = *reading.Status
	}

	result := r.db.WithContext(ctx).Model(&IoTDevice{}).Where("device_id = ?", deviceID).Updates(cols)
	if result.Error != nil {
		return translate(result.Error, "update device")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive returns up to limit active devices across all users.
func (r *DeviceRepository) ListActive(ctx context.Context, limit int) ([]IoTDevice, error) {
	var devices []IoTDevice
	query := r.db.WithContext(ctx).Where("status = ?", DeviceActive).Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&devices).Error; err != nil {
		return nil, translate(err, "list active devices")
	}
	return devices, nil
}
