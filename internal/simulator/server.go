package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/pkg/generator"
	"procodus.dev/scmxpert/pkg/metrics"
	"procodus.dev/scmxpert/pkg/mq"
)

// ServerConfig holds the configuration for the simulator server.
type ServerConfig struct {
	Logger *slog.Logger
	DB     *store.DBConfig

	RabbitMQURL string
	QueueName   string

	// Interval is the time between simulation rounds.
	Interval time.Duration

	BatchSize             int
	TransitionProbability float64

	// Seed makes the generated values reproducible. Zero picks a random seed.
	Seed uint64
}

// Server runs a Simulator against the database and a RabbitMQ queue.
type Server struct {
	logger *slog.Logger
	config *ServerConfig
	db     *gorm.DB
	client *mq.Client
}

var (
	errInvalidInterval = errors.New("interval must be greater than 0")
	errLoggerRequired  = errors.New("logger cannot be nil")
)

// NewServer creates a new simulator server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	if cfg.DB == nil {
		return nil, errors.New("database config cannot be nil")
	}

	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run publishes simulated telemetry until a shutdown signal is received or
// ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	dbCfg := *s.config.DB
	dbCfg.Logger = s.logger
	db, err := store.NewDB(&dbCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	st, err := store.New(db)
	if err != nil {
		return errors.Join(err, s.Shutdown())
	}

	client, err := mq.New(&mq.Config{
		Logger:    s.logger.With(slog.String("component", "mq-client")),
		Metrics:   metrics.NewMQMetrics(metrics.Registry, metrics.Namespace),
		URL:       s.config.RabbitMQURL,
		QueueName: s.config.QueueName,
		Durable:   true,
	})
	if err != nil {
		return errors.Join(fmt.Errorf("failed to create mq client: %w", err), s.Shutdown())
	}
	s.client = client

	sim, err := New(&Config{
		Logger:                s.logger,
		Targets:               StoreTargets(st),
		Publisher:             client,
		Generator:             generator.New(s.config.Seed),
		Metrics:               metrics.NewSimulatorMetrics(metrics.Registry, metrics.Namespace),
		BatchSize:             s.config.BatchSize,
		TransitionProbability: s.config.TransitionProbability,
	})
	if err != nil {
		return errors.Join(err, s.Shutdown())
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- sim.Run(ctx, s.config.Interval)
	}()

	var simErr error
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
		simErr = <-runErr
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
		simErr = <-runErr
	case simErr = <-runErr:
	}

	return errors.Join(simErr, s.Shutdown())
}

// Shutdown closes the RabbitMQ client and the database.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down simulator server")

	var shutdownErr error

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("mq client close error: %w", err))
		}
		s.client = nil
	}

	if s.db != nil {
		if err := store.CloseDB(s.db, s.logger); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("database close error: %w", err))
		}
		s.db = nil
	}

	return shutdownErr
}
