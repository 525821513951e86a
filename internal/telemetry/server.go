package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/internal/tracking"
	"procodus.dev/scmxpert/pkg/metrics"
	"procodus.dev/scmxpert/pkg/mq"
)

// Server owns the database, the RabbitMQ client and the consumer of the
// telemetry ingestion service.
type Server struct {
	logger        *slog.Logger
	db            *gorm.DB
	consumer      *Consumer
	metricsServer *http.Server
	config        *ServerConfig
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger
	DB     *store.DBConfig

	RabbitMQURL string
	QueueName   string

	// MetricsPort serves /metrics and /health when positive.
	MetricsPort int
}

// NewServer creates a new Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
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

	if cfg.MetricsPort < 0 {
		return nil, errors.New("metrics port cannot be negative")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run starts the telemetry service and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting telemetry server")

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

	svc, err := tracking.NewService(&tracking.Config{Logger: s.logger, Store: st})
	if err != nil {
		return errors.Join(err, s.Shutdown())
	}

	mqClient, err := mq.New(&mq.Config{
		Logger:    s.logger,
		Metrics:   metrics.NewMQMetrics(metrics.Registry, metrics.Namespace),
		URL:       s.config.RabbitMQURL,
		QueueName: s.config.QueueName,
		Durable:   true,
	})
	if err != nil {
		return errors.Join(fmt.Errorf("failed to create mq client: %w", err), s.Shutdown())
	}

	consumer, err := NewConsumer(&ConsumerConfig{
		Logger:  s.logger,
		Source:  mqClient,
		Applier: svc,
		Metrics: metrics.NewTelemetryMetrics(metrics.Registry, metrics.Namespace),
	})
	if err != nil {
		_ = mqClient.Close()
		return errors.Join(err, s.Shutdown())
	}

	serverErr := make(chan error, 1)
	if s.config.MetricsPort > 0 {
		s.metricsServer = newMetricsServer(s.config.MetricsPort)
		go func() {
			s.logger.Info("starting metrics server", "address", s.metricsServer.Addr)
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// the consumer waits for the broker, so start it without blocking signal handling
	startErr := make(chan error, 1)
	go func() {
		startErr <- consumer.Start(ctx)
	}()
	s.consumer = consumer

	var (
		consumerDone <-chan struct{}
		runErr       error
	)

loop:
	for {
		select {
		case sig := <-sigChan:
			s.logger.Info("received shutdown signal", "signal", sig.String())
			break loop
		case <-ctx.Done():
			s.logger.Info("context canceled")
			break loop
		case err := <-startErr:
			if err != nil {
				runErr = err
				break loop
			}
			s.logger.Info("telemetry server started successfully", "queue", s.config.QueueName)
			consumerDone = consumer.Done()
		case <-consumerDone:
			runErr = errors.New("consumer stopped unexpectedly")
			break loop
		case err := <-serverErr:
			runErr = err
			break loop
		}
	}

	cancel()
	if runErr != nil {
		s.logger.Error("telemetry server error", "error", runErr)
	}
	return errors.Join(runErr, s.Shutdown())
}

// Shutdown stops the consumer, the metrics endpoint and the database.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down telemetry server")

	var shutdownErr error

	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("metrics server shutdown error: %w", err))
		}
		cancel()
		s.metricsServer = nil
	}

	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("consumer shutdown error: %w", err))
		}
		s.consumer = nil
	}

	if s.db != nil {
		if err := store.CloseDB(s.db, s.logger); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("database close error: %w", err))
		}
		s.db = nil
	}

	if shutdownErr != nil {
		s.logger.Error("telemetry server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("telemetry server shutdown completed successfully")
	return nil
}

func newMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
