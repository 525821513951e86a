// Package telemetry defines the JSON messages exchanged over the telemetry
// queue between the simulator and the ingestion consumer.
package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ContentType is the AMQP content type of encoded messages.
const ContentType = "application/json"

// Kind discriminates the payload carried by a Message.
type Kind string

// Known message kinds.
const (
	KindDeviceReading  Kind = "device_reading"
	KindShipmentUpdate Kind = "shipment_update"
)

// ErrMalformed is returned by Decode for bodies that cannot be applied.
var ErrMalformed = errors.New("malformed telemetry message")

// Message is the envelope published on the queue. Exactly one of Device or
// Shipment is set, matching Kind.
type Message struct {
	Device   *DeviceReading  `json:"device,omitempty"`
	Shipment *ShipmentUpdate `json:"shipment,omitempty"`
	Kind     Kind            `json:"kind"`
}

// DeviceReading is a sensor sample reported by an IoT device. Nil fields are
// unchanged.
type DeviceReading struct {
	Timestamp    time.Time `json:"timestamp"`
	Temperature  *float64  `json:"temperature,omitempty"`
	Humidity     *float64  `json:"humidity,omitempty"`
	BatteryLevel *int      `json:"battery_level,omitempty"`
	Location     *string   `json:"location,omitempty"`
	Status       *string   `json:"status,omitempty"`
	DeviceID     string    `json:"device_id"`
}

// ShipmentUpdate is a tracking event for a shipment. Nil fields are unchanged.
type ShipmentUpdate struct {
	Timestamp       time.Time  `json:"timestamp"`
	Status          *string    `json:"status,omitempty"`
	CurrentLocation *string    `json:"current_location,omitempty"`
	Temperature     *float64   `json:"temperature,omitempty"`
	Humidity        *float64   `json:"humidity,omitempty"`
	ActualDelivery  *time.Time `json:"actual_delivery,omitempty"`
	TrackingNumber  string     `json:"tracking_number"`
}

// NewDeviceReadingMessage wraps a device reading in an envelope.
func NewDeviceReadingMessage(r *DeviceReading) *Message {
	return &Message{Kind: KindDeviceReading, Device: r}
}

// NewShipmentUpdateMessage wraps a shipment update in an envelope.
func NewShipmentUpdateMessage(u *ShipmentUpdate) *Message {
	return &Message{Kind: KindShipmentUpdate, Shipment: u}
}

// Validate checks that the payload matches the kind and carries an identifier.
func (m *Message) Validate() error {
	switch m.Kind {
	case KindDeviceReading:
		if m.Device == nil {
			return fmt.Errorf("%w: missing device payload", ErrMalformed)
		}
		if m.Device.DeviceID == "" {
			return fmt.Errorf("%w: device_id cannot be empty", ErrMalformed)
		}
		if b := m.Device.BatteryLevel; b != nil && (*b < 0 || *b > 100) {
			return fmt.Errorf("%w: battery_level %d out of range", ErrMalformed, *b)
		}
	case KindShipmentUpdate:
		if m.Shipment == nil {
			return fmt.Errorf("%w: missing shipment payload", ErrMalformed)
		}
		if m.Shipment.TrackingNumber == "" {
			return fmt.Errorf("%w: tracking_number cannot be empty", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, m.Kind)
	}
	return nil
}

// Encode validates and serializes a message.
func Encode(m *Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: message cannot be nil", ErrMalformed)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode telemetry message: %w", err)
	}
	return data, nil
}

// Decode parses and validates a message body.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
