package registry

import (
	"context"
	"fmt"
	"html/template"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/modfinder/internal/config"
	"github.com/nfrund/modfinder/internal/container"
	"github.com/nfrund/modfinder/internal/factory"
	"github.com/nfrund/modfinder/internal/helper"
	"github.com/nfrund/modfinder/internal/migration"
	"github.com/nfrund/modfinder/internal/pubsub"
	"github.com/nfrund/modfinder/internal/router"
	"github.com/nfrund/modfinder/internal/templateregistry"
	"github.com/spf13/afero"
)

// Key is a type-safe, generic key for registering and retrieving services.
// The string value should be a unique identifier, e.g., "billing.invoices".
type Key[T any] string

// Registry is the host application that modules are loaded into. It owns the
// config namespace, helper scope, factory and migration sources, views,
// router, DI container and the service providers registered so far.
type Registry struct {
	Config     *config.Repository
	Helpers    *helper.Scope
	Factories  *factory.Registry
	Migrations *migration.Registry
	Views      *templateregistry.Registry
	Router     *router.Router
	Container  *container.Container
	Events     pubsub.Publisher

	services sync.Map

	mu        sync.Mutex
	catalog   map[string]func() Provider
	byID      map[string]Provider
	providers []Provider
	booted    bool
}

// New creates a registry whose file-backed sources read from fs and whose
// routes are mounted on e. A nil events publisher drops lifecycle events.
func New(fs afero.Fs, e *echo.Echo, events pubsub.Publisher) *Registry {
	if events == nil {
		events = pubsub.Nop{}
	}
	r := &Registry{
		Config:     config.NewRepository(),
		Helpers:    helper.NewScope(),
		Factories:  factory.NewRegistry(fs),
		Migrations: migration.NewRegistry(fs),
		Router:     router.New(e),
		Container:  container.New(),
		Events:     events,
		catalog:    make(map[string]func() Provider),
		byID:       make(map[string]Provider),
	}
	r.Views = templateregistry.New(r.FuncMap())
	return r
}

// FuncMap returns the template functions every module view can use:
// config reads the config namespace, helper reads a helper global and callHelper
// invokes a helper function.
func (r *Registry) FuncMap() template.FuncMap {
	return template.FuncMap{
		"config": func(key string) any {
			v, _ := r.Config.Get(key)
			return v
		},
		"helper": func(name string) any {
			v, _ := r.Helpers.Get(name)
			return v
		},
		"callHelper": func(name string, args ...any) (any, error) {
			return r.Helpers.Call(context.Background(), name, args...)
		},
	}
}

// Set registers a service instance against a type-safe key.
func Set[T any](r *Registry, key Key[T], value T) {
	r.services.Store(string(key), value)
}

// Get retrieves a service from the registry by its type.
func Get[T any](r *Registry, key Key[T]) (T, bool) {
	val, ok := r.services.Load(string(key))
	if !ok {
		var zero T
		return zero, false
	}

	result, ok := val.(T)
	if !ok {
		var zero T
		return zero, false
	}

	return result, true
}

// MustGet retrieves a service or panics if not found. This is useful for
// wiring up essential dependencies at startup.
func MustGet[T any](r *Registry, key Key[T]) T {
	val, ok := Get(r, key)
	if !ok {
		panic(fmt.Sprintf("service not found for key: %v", key))
	}
	return val
}
