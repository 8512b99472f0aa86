package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/marmos91/dittodicom/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a Prometheus scrape endpoint.
//
// Endpoints:
//   - GET /metrics: the gathered families in text or OpenMetrics format,
//     or 503 when no gatherer is available
//   - GET /: a one-line index page linking to /metrics
//
// Thread safety:
// Start and Stop may be called from different goroutines. Stop is idempotent.
type Server struct {
	echo         *echo.Echo
	port         int
	shutdownOnce sync.Once
}

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Port to listen on. Default: 9090
	Port int

	// Gatherer to serve. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

func (c *ServerConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 9090
	}
	if c.Gatherer == nil {
		if reg := GetRegistry(); reg != nil {
			c.Gatherer = reg
		}
	}
}

// NewServer creates a metrics server in the stopped state. Call Start to
// begin serving.
//
// Parameters:
//   - config: Port and gatherer. Zero values fall back to port 9090 and the
//     global registry (see InitRegistry).
//
// Returns a configured Server that does not listen yet.
func NewServer(config ServerConfig) *Server {
	config.applyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 10 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	if config.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		})))
		logger.Debug("Metrics endpoint registered at /metrics")
	} else {
		e.GET("/metrics", func(c echo.Context) error {
			return c.String(http.StatusServiceUnavailable, "Metrics collection is disabled\n")
		})
		logger.Debug("Metrics collection disabled")
	}

	e.GET("/", func(c echo.Context) error {
		return c.HTML(http.StatusOK, fmt.Sprintf(
			`<html><head><title>DittoDICOM Metrics</title></head>`+
				`<body><h1>DittoDICOM Metrics</h1><p><a href="/metrics">/metrics</a> on port %d</p></body></html>`,
			config.Port))
	})

	return &Server{echo: e, port: config.Port}
}

// Handler returns the HTTP handler without binding a port.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured port and blocks until ctx is cancelled or
// the listener fails.
//
// Parameters:
//   - ctx: Server lifetime. Cancellation triggers a graceful shutdown bounded
//     by five seconds.
//
// Returns:
//   - nil after a graceful shutdown
//   - the shutdown error when draining connections fails
//   - a wrapped error when the port cannot be bound
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening on port %d", s.port)
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop gracefully shuts the server down.
//
// Only the first call does any work; later calls return nil.
//
// Parameters:
//   - ctx: Bounds the shutdown. In-flight scrapes are abandoned when it expires.
//
// Returns:
//   - nil on a clean shutdown or a repeated call
//   - error if draining connections failed
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.echo.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
			logger.Error("Metrics server shutdown error: %v", err)
			return
		}
		logger.Info("Metrics server stopped gracefully")
	})
	return shutdownErr
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}
