package store

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ShipmentRepository reads and writes Shipment rows. Every read that serves a
// user request is scoped by user id.
type ShipmentRepository struct {
	db *gorm.DB
}

// ShipmentChanges carries the optional fields of a telemetry update.
// Nil fields are left untouched.
type ShipmentChanges struct {
	Status          *string
	CurrentLocation *string
	Temperature     *float64
	Humidity        *float64
	ActualDelivery  *time.Time
}

func (c ShipmentChanges) columns() map[string]any {
	cols := make(map[string]any)
	if c.Status != nil {
		cols["status"] = *c.Status
	}
	if c.CurrentLocation != nil {
		cols["current_location"] = *c.CurrentLocation
	}
	if c.Temperature != nil {
		cols["temperature"] = *c.Temperature
	}
	if c.Humidity != nil {
		cols["humidity"] = *c.Humidity
	}
	if c.ActualDelivery != nil {
		cols["actual_delivery"] = *c.ActualDelivery
	}
	return cols
}

// Create inserts a shipment.
func (r *ShipmentRepository) Create(ctx context.Context, shipment *Shipment) error {
	return translate(r.db.WithContext(ctx).Create(shipment).Error, "create shipment")
}

// CreateBatch inserts several shipments in one statement.
func (r *ShipmentRepository) CreateBatch(ctx context.Context, shipments []Shipment) error {
	if len(shipments) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Create(&shipments).Error, "create shipments")
}

// CountByUser counts all shipments of a user.
func (r *ShipmentRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Shipment{}).Where("user_id = ?", userID).Count(&count).Error
	return count, translate(err, "count shipments")
}

// CountByStatus counts the shipments of a user with an exact status.
func (r *ShipmentRepository) CountByStatus(ctx context.Context, userID uint, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Shipment{}).
		Where("user_id = ? AND status = ?", userID, status).
		Count(&count).Error
	return count, translate(err, "count shipments by status")
}

// ListByUser returns a user's shipments newest first. A limit of 0 or less
// returns all of them.
func (r *ShipmentRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]Shipment, error) {
	var shipments []Shipment
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&shipments).Error; err != nil {
		return nil, translate(err, "list shipments")
	}
	return shipments, nil
}

// GetByTrackingNumber returns the shipment with this tracking number if it
// belongs to userID. A shipment owned by someone else is reported as ErrNotFound.
func (r *ShipmentRepository) GetByTrackingNumber(ctx context.Context, userID uint, trackingNumber string) (*Shipment, error) {
	var shipment Shipment
	err := r.db.WithContext(ctx).
		Where("tracking_number = ? AND user_id = ?", trackingNumber, userID).
		First(&shipment).Error
	if err != nil {
		return nil, translate(err, "get shipment")
	}
	return &shipment, nil
}

// ApplyUpdate writes changes to the shipment with the given global tracking
// number. Unknown tracking numbers return ErrNotFound.
func (r *ShipmentRepository) ApplyUpdate(ctx context.Context, trackingNumber string, changes ShipmentChanges) error {
	cols := changes.columns()

	var count int64
	if err := r.db.WithContext(ctx).Model(&Shipment{}).
		Where("tracking_number = ?", trackingNumber).
		Count(&count).Error; err != nil {
		return translate(err, "find shipment")
	}
	if count == 0 {
		return ErrNotFound
	}
	if len(cols) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Model(&Shipment{}).
		Where("tracking_number = ?", trackingNumber).
		Updates(cols).Error
	return translate(err, "update shipment")
}

// ListInTransit returns up to limit in-transit shipments across all users.
func (r *ShipmentRepository) ListInTransit(ctx context.Context, limit int) ([]Shipment, error) {
	var shipments []Shipment
	query := r.db.WithContext(ctx).Where("status = ?", StatusInTransit).Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&shipments).Error; err != nil {
		return nil, translate(err, "list in-transit shipments")
	}
	return shipments, nil
}
