package web

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

	"procodus.dev/scmxpert/internal/auth"
	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/pkg/metrics"
)

// Server represents the web HTTP server.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	db         *gorm.DB
	config     *ServerConfig
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger
	DB     *store.DBConfig

	// HTTP server configuration
	HTTPPort int

	// SessionSecret signs the session cookie.
	SessionSecret string
	CookieSecure  bool

	LoginRateLimit int
	BcryptCost     int
}

// NewServer creates a new web Server instance.
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

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret cannot be empty")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run starts the web server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting web server")

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

	sessions, err := auth.NewSessionCodec([]byte(s.config.SessionSecret))
	if err != nil {
		return errors.Join(err, s.Shutdown())
	}

	handler, err := NewHandler(&HandlerConfig{
		Logger:         s.logger,
		Store:          st,
		Sessions:       sessions,
		Metrics:        metrics.NewWebMetrics(metrics.Registry, metrics.Namespace),
		BcryptCost:     s.config.BcryptCost,
		LoginRateLimit: s.config.LoginRateLimit,
		CookieSecure:   s.config.CookieSecure,
	})
	if err != nil {
		return errors.Join(err, s.Shutdown())
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("web server started successfully")

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			return errors.Join(err, s.Shutdown())
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down web server")

	var shutdownErr error

	if s.httpServer != nil {
		s.logger.Info("stopping HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.httpServer = nil
		s.logger.Info("HTTP server stopped")
	}

	if s.db != nil {
		if err := store.CloseDB(s.db, s.logger); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("database close error: %w", err))
		}
		s.db = nil
	}

	if shutdownErr != nil {
		s.logger.Error("web server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("web server shutdown completed successfully")
	return nil
}
