// Package store provides the relational persistence layer for users,
// shipments, IoT devices and analytics rollups.
package store

import (
	"time"
)

// Theme preferences stored on a user.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Shipment statuses.
const (
	StatusInTransit = "In Transit"
	StatusDelivered = "Delivered"
	StatusDelayed   = "Delayed"
)

// Shipment priorities.
const (
	PriorityStandard = "Standard"
	PriorityExpress  = "Express"
)

// Device statuses.
const (
	DeviceActive   = "Active"
	DeviceInactive = "Inactive"
)

// ValidShipmentStatus reports whether status is one of the known shipment statuses.
func ValidShipmentStatus(status string) bool {
	switch status {
	case StatusInTransit, StatusDelivered, StatusDelayed:
		return true
	}
	return false
}

// ValidDeviceStatus reports whether status is one of the known device statuses.
func ValidDeviceStatus(status string) bool {
	return status == DeviceActive || status == DeviceInactive
}

// User is an account owning shipments and devices.
type User struct {
	CreatedAt       time.Time   `gorm:"autoCreateTime"`
	Username        string      `gorm:"size:64;uniqueIndex;not null"`
	Email           string      `gorm:"size:120;uniqueIndex;not null"`
	PasswordHash    string      `gorm:"size:256"`
	ThemePreference string      `gorm:"size:20;default:'light'"`
	Shipments       []Shipment  `gorm:"foreignKey:UserID"`
	Devices         []IoTDevice `gorm:"foreignKey:UserID"`
	ID              uint        `gorm:"primaryKey"`
	IsActive        bool        `gorm:"default:true"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// Shipment is a tracked consignment owned by exactly one user.
type Shipment struct {
	CreatedAt         time.Time  `gorm:"index;autoCreateTime"`
	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time
	CurrentLocation   *string    `gorm:"size:100"`
	Temperature       *float64
	Humidity          *float64
	Cost              *float64
	Carrier           *string    `gorm:"size:50"`
	TrackingNumber    string     `gorm:"size:50;uniqueIndex;not null"`
	Origin            string     `gorm:"size:100;not null"`
	Destination       string     `gorm:"size:100;not null"`
	Status            string     `gorm:"size:50;not null;default:'In Transit';index"`
	Priority          string     `gorm:"size:20;default:'Standard'"`
	ID                uint       `gorm:"primaryKey"`
	UserID            uint       `gorm:"index;not null"`
}

// TableName specifies the table name for Shipment model.
func (Shipment) TableName() string {
	return "shipments"
}

// IoTDevice is a sensor device owned by exactly one user.
type IoTDevice struct {
	LastPing     time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	BatteryLevel *int
	Location     *string `gorm:"size:100"`
	Temperature  *float64
	Humidity     *float64
	DeviceID     string `gorm:"size:50;uniqueIndex;not null"`
	DeviceType   string `gorm:"size:50;not null"`
	Status       string `gorm:"size:20;default:'Active';index"`
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"index;not null"`
}

// TableName specifies the table name for IoTDevice model.
func (IoTDevice) TableName() string {
	return "iot_devices"
}

// Analytics is a per-user, per-day rollup of shipment activity.
type Analytics struct {
	Date               time.Time `gorm:"type:date;uniqueIndex:idx_analytics_user_date;not null"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	TotalCost          float64   `gorm:"default:0"`
	AvgDeliveryTime    float64   `gorm:"default:0"`
	TotalShipments     int       `gorm:"default:0"`
	DeliveredShipments int       `gorm:"default:0"`
	InTransitShipments int       `gorm:"default:0"`
	DelayedShipments   int       `gorm:"default:0"`
	ID                 uint      `gorm:"primaryKey"`
	UserID             uint      `gorm:"uniqueIndex:idx_analytics_user_date;not null"`
}

// TableName specifies the table name for Analytics model.
func (Analytics) TableName() string {
	return "analytics"
}
