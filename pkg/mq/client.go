// Package mq provides a RabbitMQ client with automatic reconnection,
// confirmed publishing and single-message consumption.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"procodus.dev/scmxpert/pkg/metrics"
)

const (
	// When reconnecting to the server after connection failure.
	reconnectDelay = 5 * time.Second

	// When setting up the channel after a channel exception.
	reInitDelay = 2 * time.Second

	// Push retries back off exponentially from initialBackoff up to maxBackoff.
	initialBackoff    = 100 * time.Millisecond
	maxBackoff        = 10 * time.Second
	backoffMultiplier = 2
	maxRetryAttempts  = 5

	// Interval at which Consume polls readiness while the client connects.
	readyPollInterval = 100 * time.Millisecond

	defaultContentType = "application/json"
)

var (
	// ErrNotConnected is returned when no channel is available.
	ErrNotConnected = errors.New("not connected to a server")

	// ErrShutdown is returned by operations interrupted by Close.
	ErrShutdown = errors.New("client is shutting down")

	// ErrMaxRetriesExceeded is returned by Push after maxRetryAttempts failures.
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

// Config holds the configuration for a Client.
type Config struct {
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *metrics.MQMetrics

	URL       string
	QueueName string

	// ContentType defaults to application/json.
	ContentType string

	// Durable declares the queue as durable and publishes persistent messages.
	Durable bool
}

// Client is a RabbitMQ client bound to a single queue. It reconnects in the
// background until Close is called.
type Client struct {
	m               sync.Mutex
	logger          *slog.Logger
	metrics         *metrics.MQMetrics
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan struct{}
	closeOnce       sync.Once
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	queueName       string
	contentType     string
	durable         bool
	isReady         bool
}

// New validates cfg and starts connecting to the broker in the background.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("mq config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.URL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	contentType := cfg.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	client := &Client{
		logger:      cfg.Logger.With("queue", cfg.QueueName),
		metrics:     cfg.Metrics,
		done:        make(chan struct{}),
		queueName:   cfg.QueueName,
		contentType: contentType,
		durable:     cfg.Durable,
	}
	go client.handleReconnect(cfg.URL)
	return client, nil
}

// QueueName returns the queue the client publishes to and consumes from.
func (client *Client) QueueName() string {
	return client.queueName
}

// Ready reports whether a channel is currently available.
func (client *Client) Ready() bool {
	client.m.Lock()
	defer client.m.Unlock()
	return client.isReady
}

func (client *Client) setReady(ready bool) {
	client.m.Lock()
	client.isReady = ready
	client.m.Unlock()

	if client.metrics != nil {
		if ready {
			client.metrics.Connected.Set(1)
		} else {
			client.metrics.Connected.Set(0)
		}
	}
}

// handleReconnect waits for a connection error and then keeps reconnecting
// until the client is closed.
func (client *Client) handleReconnect(addr string) {
	for {
		client.setReady(false)
		client.logger.Info("attempting to connect")

		conn, err := client.connect(addr)
		if err != nil {
			client.logger.Error("failed to connect, retrying", "error", err)
			client.dialed("failed")

			select {
			case <-client.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		client.dialed("connected")
		if done := client.handleReInit(conn); done {
			return
		}
	}
}

func (client *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		return nil, err
	}

	notifyConnClose := make(chan *amqp.Error, 1)
	conn.NotifyClose(notifyConnClose)

	client.m.Lock()
	client.connection = conn
	client.notifyConnClose = notifyConnClose
	client.m.Unlock()

	client.logger.Info("connected")
	return conn, nil
}

// handleReInit waits for a channel error and re-initializes the channel.
// It returns true once the client is closed.
func (client *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		client.setReady(false)

		client.m.Lock()
		notifyConnClose := client.notifyConnClose
		client.m.Unlock()

		if err := client.init(conn); err != nil {
			client.logger.Error("failed to initialize channel, retrying", "error", err)

			select {
			case <-client.done:
				return true
			case <-notifyConnClose:
				client.logger.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		client.m.Lock()
		notifyChanClose := client.notifyChanClose
		client.m.Unlock()

		select {
		case <-client.done:
			return true
		case <-notifyConnClose:
			client.logger.Info("connection closed, reconnecting")
			return false
		case <-notifyChanClose:
			client.logger.Info("channel closed, re-running init")
		}
	}
}

// init opens a confirming channel and declares the queue.
func (client *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(
		client.queueName,
		client.durable,
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	notifyChanClose := make(chan *amqp.Error, 1)
	notifyConfirm := make(chan amqp.Confirmation, 1)
	ch.NotifyClose(notifyChanClose)
	ch.NotifyPublish(notifyConfirm)

	client.m.Lock()
	client.channel = ch
	client.notifyChanClose = notifyChanClose
	client.notifyConfirm = notifyConfirm
	client.m.Unlock()

	client.setReady(true)
	client.logger.Info("client init done")
	return nil
}

// WaitReady blocks until the client has a channel, ctx is done or the client
// is closed.
func (client *Client) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		if client.Ready() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-client.done:
			return ErrShutdown
		case <-ticker.C:
		}
	}
}

// Push publishes data and waits for the broker confirmation. While the client
// is disconnected, or when the broker nacks, it retries with exponential
// backoff and gives up after maxRetryAttempts with ErrMaxRetriesExceeded.
func (client *Client) Push(ctx context.Context, data []byte) error {
	if client.metrics != nil {
		timer := prometheus.NewTimer(client.metrics.ConfirmLatency.WithLabelValues(client.queueName))
		defer timer.ObserveDuration()
	}

	backoff := initialBackoff
	wait := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-client.done:
			return ErrShutdown
		case <-time.After(backoff):
		}
		backoff = min(backoff*backoffMultiplier, maxBackoff)
		return nil
	}

	for attempt := 0; ; attempt++ {
		if attempt >= maxRetryAttempts {
			client.logger.Error("maximum retry attempts exceeded", "attempts", attempt)
			client.pushFailed("max_retries_exceeded")
			return ErrMaxRetriesExceeded
		}

		client.m.Lock()
		confirms := client.notifyConfirm
		client.m.Unlock()

		if err := client.UnsafePush(ctx, data); err != nil {
			if errors.Is(err, ErrNotConnected) {
				client.logger.Info("not connected, waiting for reconnection", "backoff", backoff, "attempt", attempt)
				client.pushFailed("not_connected")
			} else {
				client.logger.Error("push failed, retrying with backoff", "error", err, "backoff", backoff, "attempt", attempt)
				client.pushFailed("publish_error")
			}
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			client.pushFailed("context_canceled")
			return ctx.Err()
		case <-client.done:
			return ErrShutdown
		case confirm, ok := <-confirms:
			if ok && confirm.Ack {
				if client.metrics != nil {
					client.metrics.Published.WithLabelValues(client.queueName).Inc()
				}
				client.logger.Debug("push confirmed", "delivery_tag", confirm.DeliveryTag, "attempt", attempt)
				return nil
			}
			client.logger.Warn("push not acknowledged, retrying", "delivery_tag", confirm.DeliveryTag, "backoff", backoff)
			client.pushFailed("nack")
			if err := wait(); err != nil {
				return err
			}
		}
	}
}

func (client *Client) dialed(result string) {
	if client.metrics != nil {
		client.metrics.Dials.WithLabelValues(result).Inc()
	}
}

func (client *Client) pushFailed(reason string) {
	if client.metrics != nil {
		client.metrics.PublishErrors.WithLabelValues(client.queueName, reason).Inc()
	}
}

// UnsafePush publishes data without waiting for a confirmation.
func (client *Client) UnsafePush(ctx context.Context, data []byte) error {
	client.m.Lock()
	if !client.isReady {
		client.m.Unlock()
		return ErrNotConnected
	}
	ch := client.channel
	client.m.Unlock()

	deliveryMode := amqp.Transient
	if client.durable {
		deliveryMode = amqp.Persistent
	}

	return ch.PublishWithContext(
		ctx,
		"",               // exchange
		client.queueName, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  client.contentType,
			DeliveryMode: deliveryMode,
			Timestamp:    time.Now().UTC(),
			Body:         data,
		},
	)
}

// Consume waits for the connection and starts a consumer with prefetch 1.
// Every delivery must be acked or nacked by the caller.
func (client *Client) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	if err := client.WaitReady(ctx); err != nil {
		return nil, err
	}

	client.m.Lock()
	ch := client.channel
	client.m.Unlock()

	if err := ch.Qos(1, 0, false); err != nil {
		return nil, err
	}

	deliveries, err := ch.Consume(
		client.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, err
	}

	if client.metrics != nil {
		client.metrics.Subscriptions.WithLabelValues(client.queueName).Inc()
	}
	return deliveries, nil
}

// Close stops reconnecting and shuts down the channel and connection.
// Calling Close more than once is safe.
func (client *Client) Close() error {
	var err error
	client.closeOnce.Do(func() {
		close(client.done)

		client.m.Lock()
		ch, conn := client.channel, client.connection
		client.m.Unlock()

		if ch != nil {
			if cerr := ch.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
				err = cerr
			}
		}
		if conn != nil && !conn.IsClosed() {
			if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
				err = errors.Join(err, cerr)
			}
		}

		client.setReady(false)
		client.logger.Info("client closed")
	})
	return err
}
