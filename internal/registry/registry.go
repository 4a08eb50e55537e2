// Package registry owns construction order and lifecycle of runtime services.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Service is one registry-managed component lifecycle.
type Service interface {
	Initialize(ctx context.Context, r *Registry) error
	Shutdown(ctx context.Context) error
}

// Funcs adapts plain functions to the Service interface.
type Funcs struct {
	Init func(ctx context.Context, r *Registry) error
	Stop func(ctx context.Context) error
}

func (f Funcs) Initialize(ctx context.Context, r *Registry) error {
	if f.Init == nil {
		return nil
	}
	return f.Init(ctx, r)
}

func (f Funcs) Shutdown(ctx context.Context) error {
	if f.Stop == nil {
		return nil
	}
	return f.Stop(ctx)
}

// Registry constructs each service once and drives ordered startup/shutdown.
type Registry struct {
	logger *slog.Logger

	mu          sync.Mutex
	order       []string
	services    map[string]Service
	initialized []string
	started     bool
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		services: map[string]Service{},
	}
}

// Register adds a named service in declaration order.
func (r *Registry) Register(name string, svc Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("service name must not be empty")
	}
	if svc == nil {
		return fmt.Errorf("service %q must not be nil", name)
	}
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("service %q already registered", name)
	}

	r.services[name] = svc
	r.order = append(r.order, name)
	return nil
}

// Get resolves a registered service by name.
func (r *Registry) Get(name string) (Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[name]
	if !ok {
		return nil, fmt.Errorf("service %q not registered", name)
	}
	return svc, nil
}

// Initialize starts services in registration order.
//
// The first failure rolls back already-initialized services in reverse and
// is returned; a partially started registry is never left behind.
func (r *Registry) Initialize(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("registry already initialized")
	}
	order := append([]string(nil), r.order...)
	r.mu.Unlock()

	for _, name := range order {
		svc, err := r.Get(name)
		if err != nil {
			r.rollback(ctx)
			return err
		}

		if err := svc.Initialize(ctx, r); err != nil {
			r.logError("service initialize failed", name, err)
			r.rollback(ctx)
			return fmt.Errorf("initialize service %q: %w", name, err)
		}

		r.mu.Lock()
		r.initialized = append(r.initialized, name)
		r.mu.Unlock()
		r.logDebug("service initialized", name)
	}

	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

// Shutdown stops initialized services in reverse order.
//
// Individual shutdown errors are logged and swallowed so later services
// still run.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	r.started = false
	r.mu.Unlock()
	r.rollback(ctx)
}

// rollback shuts down everything initialized so far, newest first.
func (r *Registry) rollback(ctx context.Context) {
	r.mu.Lock()
	initialized := r.initialized
	r.initialized = nil
	r.mu.Unlock()

	for i := len(initialized) - 1; i >= 0; i-- {
		name := initialized[i]
		svc, err := r.Get(name)
		if err != nil {
			continue
		}
		if err := svc.Shutdown(ctx); err != nil {
			r.logError("service shutdown failed", name, err)
			continue
		}
		r.logDebug("service shut down", name)
	}
}

func (r *Registry) logError(message string, name string, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Error(message, "service", name, "error", err.Error())
}

func (r *Registry) logDebug(message string, name string) {
	if r.logger == nil {
		return
	}
	r.logger.Debug(message, "service", name)
}
