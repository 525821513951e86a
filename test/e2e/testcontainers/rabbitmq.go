// Package testcontainers starts the PostgreSQL and RabbitMQ containers used by
// the end-to-end suites.
package testcontainers

import (
	"context"
	"fmt"
	"net/url"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const rabbitMQImage = "rabbitmq:3.13-alpine"

// RabbitMQConfig selects the broker credentials. Empty fields fall back to
// guest/guest.
type RabbitMQConfig struct {
	User          string
	Password      string
	ContainerName string
}

func (c *RabbitMQConfig) withDefaults() RabbitMQConfig {
	out := RabbitMQConfig{User: "guest", Password: "guest"}
	if c == nil {
		return out
	}
	if c.User != "" {
		out.User = c.User
	}
	if c.Password != "" {
		out.Password = c.Password
	}
	out.ContainerName = c.ContainerName
	return out
}

// StartRabbitMQ starts a broker and returns the container and its AMQP URL.
func StartRabbitMQ(ctx context.Context, config *RabbitMQConfig) (testcontainers.Container, string, error) {
	cfg := config.withDefaults()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        rabbitMQImage,
			ExposedPorts: []string{"5672/tcp"},
			Env: map[string]string{
				"RABBITMQ_DEFAULT_USER": cfg.User,
				"RABBITMQ_DEFAULT_PASS": cfg.Password,
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5672/tcp"),
				wait.ForLog("Server startup complete"),
			),
			Name: cfg.ContainerName,
		},
		Started: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to start RabbitMQ container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, "", terminate(ctx, container, fmt.Errorf("failed to get container host: %w", err))
	}

	port, err := container.MappedPort(ctx, "5672")
	if err != nil {
		return nil, "", terminate(ctx, container, fmt.Errorf("failed to get container port: %w", err))
	}

	amqpURL := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%s", host, port.Port()),
		Path:   "/",
	}
	return container, amqpURL.String(), nil
}
