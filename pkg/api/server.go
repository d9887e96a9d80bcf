package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/pkg/auth"
	"github.com/marmos91/fsdelegate/pkg/auth/token"
)

// Server provides the HTTP server for the delegate REST API.
//
// Endpoints:
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe
//   - GET /metrics: Prometheus metrics
//   - /api/v1/fs/*: filesystem operations on behalf of the caller
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	sessions     *SessionManager
	config       Config
	shutdownOnce sync.Once
	listener     net.Listener
}

// ServerOptions carries what the server needs beyond its configuration.
type ServerOptions struct {
	// Open opens delegate sessions for authenticated users.
	Open Opener

	// Metrics records request metrics. May be nil.
	Metrics Metrics

	// MetricsPath overrides the /metrics route.
	MetricsPath string

	// Version and FSType are reported by the health endpoints.
	Version string
	FSType  string
}

// NewServer creates a new API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving requests.
// Bearer tokens are validated with config.JWT; pseudo credentials are
// accepted only when config.AllowPseudo is set.
func NewServer(config Config, opts ServerOptions) (*Server, error) {
	config.ApplyDefaults()

	var providers []auth.AuthProvider
	if config.JWT.Secret != "" {
		tokens, err := token.NewService(config.JWT)
		if err != nil {
			return nil, fmt.Errorf("api: jwt: %w", err)
		}
		providers = append(providers, tokens)
	}
	if config.AllowPseudo {
		providers = append(providers, auth.PseudoProvider{})
	}
	if len(providers) == 0 {
		return nil, errors.New("api: no authentication configured: set api.jwt.secret or api.allow_pseudo")
	}

	sessions := NewSessionManager(opts.Open, opts.Metrics)
	router := NewRouter(RouterOptions{
		Authenticator:  auth.NewAuthenticator(providers...),
		Sessions:       sessions,
		QueryUser:      config.AllowPseudo,
		RequestTimeout: config.RequestTimeout,
		Metrics:        opts.Metrics,
		MetricsPath:    opts.MetricsPath,
		Version:        opts.Version,
		FSType:         opts.FSType,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server:   server,
		sessions: sessions,
		config:   config,
	}, nil
}

// Handler returns the router, for serving from tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and returns.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("API server failed: %w", err)
	}
	s.listener = ln

	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)
		logger.Debug("API endpoints available",
			"health", fmt.Sprintf("http://localhost:%d/health", s.config.Port),
			"fs", fmt.Sprintf("http://localhost:%d/api/v1/fs", s.config.Port),
		)

		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server and closes every
// cached delegate session.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.KeyError, err)
		} else {
			logger.Info("API server stopped gracefully")
		}
		if err := s.sessions.Close(); err != nil {
			logger.Warn("Failed to close delegate sessions", logger.KeyError, err)
			shutdownErr = errors.Join(shutdownErr, err)
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}
