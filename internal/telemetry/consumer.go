// Package telemetry consumes device readings and shipment updates from
// RabbitMQ and applies them to the relational store.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/internal/tracking"
	"procodus.dev/scmxpert/pkg/metrics"
	"procodus.dev/scmxpert/pkg/mq"
	wire "procodus.dev/scmxpert/pkg/telemetry"
)

// Applier writes decoded telemetry to storage.
type Applier interface {
	ApplyDeviceReading(ctx context.Context, reading *wire.DeviceReading) error
	ApplyShipmentUpdate(ctx context.Context, update *wire.ShipmentUpdate) error
}

// Outcomes of handling a delivery.
const (
	outcomeApplied   = "applied"
	outcomeMalformed = "malformed"
	outcomeUnknown   = "unknown"
	outcomeInvalid   = "invalid"
	outcomeFailed    = "failed"
)

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger  *slog.Logger
	Source  mq.Subscriber
	Applier Applier

	// Metrics is optional.
	Metrics *metrics.TelemetryMetrics
}

// Consumer applies telemetry messages one delivery at a time.
type Consumer struct {
	logger  *slog.Logger
	source  mq.Subscriber
	applier Applier
	metrics *metrics.TelemetryMetrics
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewConsumer creates a new Consumer instance.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Source == nil {
		return nil, errors.New("message source cannot be nil")
	}

	if cfg.Applier == nil {
		return nil, errors.New("applier cannot be nil")
	}

	return &Consumer{
		logger:  cfg.Logger,
		source:  cfg.Source,
		applier: cfg.Applier,
		metrics: cfg.Metrics,
	}, nil
}

// Start waits for the queue and processes deliveries in the background
// until ctx is canceled, Stop is called or the delivery channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return errors.New("consumer already started")
	}

	c.logger.Info("starting consumer")

	deliveries, err := c.source.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	if c.metrics != nil {
		c.metrics.ActiveConsumers.Inc()
	}

	go c.processMessages(ctx, deliveries)

	c.logger.Info("consumer started, waiting for messages")
	return nil
}

// Done is closed when message processing has stopped. It is nil before Start.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Consumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer func() {
		if c.metrics != nil {
			c.metrics.ActiveConsumers.Dec()
		}
		close(c.done)
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping message processing")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				return
			}
			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery applies one message. Only storage failures are requeued;
// anything that can never succeed is acked and dropped.
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	msg, err := wire.Decode(delivery.Body)
	if err != nil {
		c.logger.Error("dropping malformed telemetry message", "error", err, "delivery_tag", delivery.DeliveryTag)
		c.record("", outcomeMalformed)
		c.ack(delivery)
		return
	}

	kind := string(msg.Kind)
	if c.metrics != nil {
		timer := prometheus.NewTimer(c.metrics.ProcessingDuration.WithLabelValues(kind))
		defer timer.ObserveDuration()
	}

	var id string
	switch msg.Kind {
	case wire.KindDeviceReading:
		id = msg.Device.DeviceID
		err = c.applier.ApplyDeviceReading(ctx, msg.Device)
	case wire.KindShipmentUpdate:
		id = msg.Shipment.TrackingNumber
		err = c.applier.ApplyShipmentUpdate(ctx, msg.Shipment)
	}

	switch {
	case err == nil:
		c.logger.Debug("telemetry applied", "kind", kind, "id", id)
		c.record(kind, outcomeApplied)
		c.ack(delivery)
	case errors.Is(err, store.ErrNotFound):
		c.logger.Warn("dropping telemetry for unknown target", "kind", kind, "id", id)
		c.record(kind, outcomeUnknown)
		c.ack(delivery)
	case errors.Is(err, tracking.ErrInvalidStatus):
		c.logger.Warn("dropping telemetry with invalid status", "kind", kind, "id", id, "error", err)
		c.record(kind, outcomeInvalid)
		c.ack(delivery)
	default:
		c.logger.Error("failed to apply telemetry", "kind", kind, "id", id, "error", err)
		c.record(kind, outcomeFailed)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
	}
}

func (c *Consumer) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
	}
}

func (c *Consumer) record(kind, outcome string) {
	if c.metrics != nil {
		c.metrics.MessagesTotal.WithLabelValues(kind, outcome).Inc()
	}
}

// Stop cancels processing, closes the source and waits for the processing
// goroutine to exit.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumer")

	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var err error
	if closeErr := c.source.Close(); closeErr != nil {
		err = fmt.Errorf("failed to close mq client: %w", closeErr)
	}

	if done != nil {
		<-done
	}

	c.logger.Info("consumer stopped")
	return err
}
