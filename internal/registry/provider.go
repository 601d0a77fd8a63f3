package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ErrUnknownProvider is returned when a provider id has no factory.
var ErrUnknownProvider = errors.New("unknown service provider")

// Provider is a unit of application wiring referenced by id from a module's
// providers manifest.
type Provider interface {
	// Name returns a unique identifier for the provider.
	Name() string

	// Register is called as soon as the provider is added. It should only
	// bind services; other providers may not have registered yet.
	Register(reg *Registry) error

	// Boot is called once every provider known at boot time has registered.
	// Providers added after boot are booted right after Register.
	Boot(ctx context.Context, reg *Registry) error

	// Shutdown is called during graceful application shutdown.
	Shutdown(ctx context.Context) error
}

// BaseProvider provides default no-op implementations for Provider methods.
// Providers can embed this to avoid implementing methods they don't need.
type BaseProvider struct{}

func (BaseProvider) Register(reg *Registry) error                  { return nil }
func (BaseProvider) Boot(ctx context.Context, reg *Registry) error { return nil }
func (BaseProvider) Shutdown(ctx context.Context) error            { return nil }

// Provide makes a provider constructible by id.
func (r *Registry) Provide(id string, factory func() Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog[id] = factory
}

// Provided returns the ids known to the provider catalog, sorted.
func (r *Registry) Provided() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.catalog))
	for id := range r.catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RegisterByID constructs the provider registered under id and registers it.
// An id that is already registered returns the existing provider.
func (r *Registry) RegisterByID(ctx context.Context, id string) (Provider, error) {
	r.mu.Lock()
	if p, ok := r.byID[id]; ok {
		r.mu.Unlock()
		slog.Debug("Service provider already registered", "id", id)
		return p, nil
	}
	factory, ok := r.catalog[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}

	p := factory()
	if err := r.Register(ctx, p); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.byID[id] = p
	r.mu.Unlock()
	return p, nil
}

// Register adds p to the application and runs its Register phase before
// returning. If the application has already booted, p is booted as well.
func (r *Registry) Register(ctx context.Context, p Provider) error {
	slog.Debug("Registering service provider", "provider", p.Name())
	if err := p.Register(r); err != nil {
		return fmt.Errorf("failed to register provider %s: %w", p.Name(), err)
	}

	r.mu.Lock()
	r.providers = append(r.providers, p)
	booted := r.booted
	r.mu.Unlock()

	if booted {
		if err := p.Boot(ctx, r); err != nil {
			return fmt.Errorf("failed to boot provider %s: %w", p.Name(), err)
		}
	}
	return nil
}

// Boot boots every registered provider in registration order. Calling it
// more than once is a no-op.
func (r *Registry) Boot(ctx context.Context) error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	providers := append([]Provider(nil), r.providers...)
	r.mu.Unlock()

	for _, p := range providers {
		slog.Debug("Booting service provider", "provider", p.Name())
		if err := p.Boot(ctx, r); err != nil {
			return fmt.Errorf("failed to boot provider %s: %w", p.Name(), err)
		}
	}
	return nil
}

// Booted reports whether Boot has run.
func (r *Registry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Shutdown shuts providers down in reverse registration order. Every
// provider is asked to shut down; the errors are joined.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	providers := append([]Provider(nil), r.providers...)
	r.mu.Unlock()

	var errs []error
	for i := len(providers) - 1; i >= 0; i-- {
		p := providers[i]
		if err := p.Shutdown(ctx); err != nil {
			slog.Error("Provider shutdown failed", "provider", p.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Providers returns the registered providers in registration order.
func (r *Registry) Providers() []Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Provider(nil), r.providers...)
}
