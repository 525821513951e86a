// Package mock provides a testify mock of the mq client.
package mock

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"

	"procodus.dev/scmxpert/pkg/mq"
)

// Client is a testify mock implementing mq.ClientInterface.
type Client struct {
	mock.Mock
}

var _ mq.ClientInterface = (*Client)(nil)

// Push records the call and returns the configured error.
func (c *Client) Push(ctx context.Context, data []byte) error {
	args := c.Called(ctx, data)
	return args.Error(0)
}

// UnsafePush records the call and returns the configured error.
func (c *Client) UnsafePush(ctx context.Context, data []byte) error {
	args := c.Called(ctx, data)
	return args.Error(0)
}

// Consume records the call and returns the configured channel and error.
func (c *Client) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	args := c.Called(ctx)
	ch, _ := args.Get(0).(<-chan amqp.Delivery)
	return ch, args.Error(1)
}

// Ready records the call and returns the configured readiness.
func (c *Client) Ready() bool {
	return c.Called().Bool(0)
}

// Close records the call and returns the configured error.
func (c *Client) Close() error {
	return c.Called().Error(0)
}

// Acknowledger records how a delivery was settled. Attach it to an
// amqp.Delivery built in tests.
type Acknowledger struct {
	mock.Mock
}

var _ amqp.Acknowledger = (*Acknowledger)(nil)

// Ack records an acknowledgement.
func (a *Acknowledger) Ack(tag uint64, multiple bool) error {
	return a.Called(tag, multiple).Error(0)
}

// Nack records a negative acknowledgement.
func (a *Acknowledger) Nack(tag uint64, multiple, requeue bool) error {
	return a.Called(tag, multiple, requeue).Error(0)
}

// Reject records a rejection.
func (a *Acknowledger) Reject(tag uint64, requeue bool) error {
	return a.Called(tag, requeue).Error(0)
}
