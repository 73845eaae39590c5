// Package server runs the simulator's long-lived components and stops them in
// reverse order when one finishes or fails, on SIGINT or SIGTERM, or when the
// parent context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout bounds how long Run waits for services to return
// after they were told to stop.
const DefaultShutdownTimeout = 10 * time.Second

// ErrShutdownTimeout is returned when a service is still running after the
// shutdown timeout.
var ErrShutdownTimeout = errors.New("services did not stop in time")

// Service is a component run by a Lifecycle.
type Service interface {
	// Start runs the service and blocks until ctx is cancelled, Stop is
	// called or the service's work is done. A nil return means the service
	// finished normally.
	Start(ctx context.Context) error
	// Stop asks the service to return from Start.
	Stop()
}

// FuncService adapts a start/stop function pair into the Service interface.
// A nil StartFn waits for cancellation; a nil StopFn does nothing.
type FuncService struct {
	StartFn func(ctx context.Context) error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start(ctx context.Context) error {
	if f.StartFn == nil {
		<-ctx.Done()
		return nil
	}
	return f.StartFn(ctx)
}

// Stop calls the underlying stop function.
func (f *FuncService) Stop() {
	if f.StopFn != nil {
		f.StopFn()
	}
}

// Lifecycle manages the startup and shutdown of multiple services.
// Services are started in order and stopped in reverse order.
type Lifecycle struct {
	// ShutdownTimeout of zero means DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	logger   *zap.Logger
	signals  []os.Signal
	services []namedService
	mu       sync.Mutex
}

type namedService struct {
	name    string
	service Service
}

type exit struct {
	name string
	err  error
}

// NewLifecycle creates a new Lifecycle manager listening for SIGINT and SIGTERM.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	if logger == nil {
		panic("server.NewLifecycle: logger must not be nil")
	}
	return &Lifecycle{
		logger:  logger,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Add registers a named service for lifecycle management.
// Services are started in the order they are added.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	if name == "" || svc == nil {
		panic("server.Lifecycle.Add: name and service are required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts all services and blocks until the first one returns, a
// termination signal arrives or ctx is cancelled. Every service is then
// stopped in reverse order.
//
// Postcondition: Returns the first service failure, ErrShutdownTimeout when a
// service does not return after Stop, or nil.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()
	l.mu.Lock()
	services := slices.Clone(l.services)
	l.mu.Unlock()

	ctx, stopSignals := signal.NotifyContext(ctx, l.signals...)
	defer stopSignals()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	exits := make(chan exit, len(services))
	for _, ns := range services {
		wg.Go(func() {
			l.logger.Info("starting service",
				zap.String("service", ns.name),
			)
			svcStart := time.Now()
			err := ns.service.Start(ctx)
			l.logger.Info("service returned",
				zap.String("service", ns.name),
				zap.Duration("uptime", time.Since(svcStart)),
				zap.Error(err),
			)
			exits <- exit{name: ns.name, err: err}
		})
	}

	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	var runErr error
	select {
	case e := <-exits:
		if e.err != nil && !errors.Is(e.err, context.Canceled) {
			l.logger.Error("service failed, shutting down",
				zap.String("service", e.name),
				zap.Error(e.err),
			)
			runErr = fmt.Errorf("service %s: %w", e.name, e.err)
		} else {
			l.logger.Info("service finished, shutting down",
				zap.String("service", e.name),
			)
		}
	case <-ctx.Done():
		l.logger.Info("signal or cancellation, shutting down")
	}
	cancel()

	l.shutdown(services)
	if err := l.await(&wg); err != nil && runErr == nil {
		runErr = err
	}

	l.logger.Info("shutdown complete",
		zap.Duration("total_uptime", time.Since(start)),
	)
	return runErr
}

func (l *Lifecycle) shutdown(services []namedService) {
	shutdownStart := time.Now()
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		svcStart := time.Now()
		l.logger.Info("stopping service",
			zap.String("service", ns.name),
		)
		ns.service.Stop()
		l.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(svcStart)),
		)
	}
	l.logger.Info("all services stopped",
		zap.Duration("shutdown_elapsed", time.Since(shutdownStart)),
	)
}

// await waits for every Start call to return, bounded by the shutdown timeout.
func (l *Lifecycle) await(wg *sync.WaitGroup) error {
	timeout := l.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Error("services still running after shutdown", zap.Duration("timeout", timeout))
		return ErrShutdownTimeout
	}
}
