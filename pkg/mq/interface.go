package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher pushes messages onto a queue.
type Publisher interface {
	// Push publishes data and blocks until the broker confirms it.
	Push(ctx context.Context, data []byte) error

	// Close shuts down the underlying connection.
	Close() error
}

// Subscriber receives deliveries from a queue.
type Subscriber interface {
	// Consume returns the delivery stream. Each delivery must be acked or nacked.
	Consume(ctx context.Context) (<-chan amqp.Delivery, error)

	// Close shuts down the underlying connection.
	Close() error
}

// ClientInterface is the full surface of Client.
type ClientInterface interface {
	Publisher
	Subscriber

	// UnsafePush publishes without waiting for a confirmation.
	UnsafePush(ctx context.Context, data []byte) error

	// Ready reports whether a channel is currently open.
	Ready() bool
}

var _ ClientInterface = (*Client)(nil)
