package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodicom/internal/logger"
	"github.com/marmos91/dittodicom/pkg/adapter"
	"github.com/marmos91/dittodicom/pkg/metrics"
)

const defaultStopTimeout = 30 * time.Second

// ErrAlreadyServed is returned by a second call to Serve.
var ErrAlreadyServed = errors.New("server: Serve() has already been called")

// Server manages the lifecycle of the listener adapters of one process and
// of the optional metrics endpoint.
//
// Lifecycle:
//  1. Creation: New() with options
//  2. Registration: AddAdapter() for each configured listener
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: context cancellation or the failure of any adapter stops
//     all adapters in reverse registration order
//
// Example usage:
//
//	srv := server.New(server.WithMetricsServer(ms))
//	for _, l := range listeners {
//	    if err := srv.AddAdapter(http.New(l, http.Config{})); err != nil {
//	        return err
//	    }
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
//
// Thread safety:
// AddAdapter, Serve and Adapters may be called concurrently. Serve runs at
// most once per Server.
type Server struct {
	adapters    []adapter.Adapter
	metrics     *metrics.Server
	stopTimeout time.Duration

	// mu protects adapters and served
	mu     sync.Mutex
	served bool
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsServer runs ms alongside the adapters. A nil ms is ignored.
func WithMetricsServer(ms *metrics.Server) Option {
	return func(s *Server) { s.metrics = ms }
}

// WithStopTimeout bounds how long adapters get to shut down.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// New creates a Server with no adapters.
func New(opts ...Option) *Server {
	s := &Server{
		adapters:    make([]adapter.Adapter, 0, 4),
		stopTimeout: defaultStopTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddAdapter registers an adapter to be started by Serve.
//
// Parameters:
//   - a: The adapter to register. Must not be nil.
//
// Returns an error when:
//   - a is nil
//   - Serve has already been called
//   - another adapter uses the same port or name (AE title)
//   - the port is taken by the metrics server
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		return errors.New("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return errors.New("cannot add adapter after Serve() has been called")
	}

	for _, existing := range s.adapters {
		if existing.Port() == a.Port() {
			return fmt.Errorf("port %d already in use by listener %s", a.Port(), existing.Name())
		}
		if existing.Name() == a.Name() {
			return fmt.Errorf("listener %s already registered", a.Name())
		}
	}
	if s.metrics != nil && s.metrics.Port() == a.Port() {
		return fmt.Errorf("port %d already in use by the metrics server", a.Port())
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s listener %s on port %d", a.Protocol(), a.Name(), a.Port())
	return nil
}

// Serve starts all registered adapters and blocks until ctx is cancelled or
// an adapter fails.
//
// The metrics server, when configured, runs on its own context; its failure
// is logged and does not stop the adapters.
//
// Parameters:
//   - ctx: Process lifetime. Cancellation stops every adapter.
//
// Returns:
//   - ctx.Err() after a graceful shutdown triggered by cancellation
//   - the first adapter error when an adapter failed
//   - ErrAlreadyServed on a second call
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	logger.Info("Starting server with %d listener(s)", len(adapters))

	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	if s.metrics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.metrics.Start(metricsCtx); err != nil {
				logger.Error("Metrics server stopped: %v", err)
			}
		}()
	}

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			if err := a.Serve(ctx); err != nil {
				if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
					logger.Error("Listener %s failed: %v", a.Name(), err)
					errChan <- adapterError{name: a.Name(), err: err}
					return
				}
				logger.Debug("Listener %s stopped gracefully", a.Name())
				return
			}
			logger.Info("Listener %s stopped", a.Name())
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case adapterErr := <-errChan:
		logger.Error("Listener %s failed: %v - initiating shutdown of all listeners", adapterErr.name, adapterErr.err)
		shutdownErr = fmt.Errorf("listener %s: %w", adapterErr.name, adapterErr.err)
	}

	s.stopAllAdapters(adapters)
	stopMetrics()

	logger.Debug("Waiting for all listeners to complete shutdown")
	wg.Wait()
	logger.Info("Server stopped")

	return shutdownErr
}

type adapterError struct {
	name string
	err  error
}

// stopAllAdapters stops adapters in reverse registration order.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d listener(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping listener %s: %v", adp.Name(), err)
		}
	}
}

// Adapters returns a copy of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
