package container

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/do/v2"
)

var (
	// ErrUnknownConcrete is returned when a binding points at a concrete that has
	// neither a constructor nor a binding of its own.
	ErrUnknownConcrete = errors.New("unknown concrete")

	// ErrNotBound is returned by Make for names with no binding or constructor.
	ErrNotBound = errors.New("no binding registered")
)

// Constructor builds a concrete implementation. It receives the injector so it
// can resolve its own dependencies.
type Constructor func(i do.Injector) (any, error)

// Binding describes an abstract → concrete association.
type Binding struct {
	Abstract string
	Concrete string
	Shared   bool
}

// Container binds abstract identifiers to concrete implementations on top of a
// samber/do injector. Non-shared bindings build a new instance per resolution,
// shared bindings are built once and cached.
type Container struct {
	mu           sync.RWMutex
	injector     *do.RootScope
	constructors map[string]Constructor
	bindings     map[string]Binding
}

// New creates an empty container.
func New() *Container {
	return &Container{
		injector:     do.New(),
		constructors: make(map[string]Constructor),
		bindings:     make(map[string]Binding),
	}
}

// Injector exposes the underlying injector for code that uses samber/do directly.
func (c *Container) Injector() do.Injector {
	return c.injector
}

// Concrete registers a named constructor that bindings may point at.
func (c *Container) Concrete(name string, ctor Constructor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.constructors[name] = ctor
}

// Instance registers an already built value as a shared binding of itself.
func (c *Container) Instance(name string, value any) {
	c.mu.Lock()
	c.bindings[name] = Binding{Abstract: name, Concrete: name, Shared: true}
	c.mu.Unlock()
	do.OverrideNamedValue[any](c.injector, name, value)
}

// Bind registers a non-shared binding: every Make builds a fresh instance.
func (c *Container) Bind(abstract, concrete string) {
	c.record(Binding{Abstract: abstract, Concrete: concrete, Shared: false})
	do.OverrideNamedTransient[any](c.injector, abstract, c.provider(abstract, concrete))
}

// Singleton registers a shared binding: the first Make builds the instance and
// later calls return the same one.
func (c *Container) Singleton(abstract, concrete string) {
	c.record(Binding{Abstract: abstract, Concrete: concrete, Shared: true})
	do.OverrideNamed[any](c.injector, abstract, c.provider(abstract, concrete))
}

// Make resolves name to an instance.
func (c *Container) Make(name string) (any, error) {
	c.mu.RLock()
	_, bound := c.bindings[name]
	ctor, hasCtor := c.constructors[name]
	c.mu.RUnlock()

	if bound {
		return do.InvokeNamed[any](c.injector, name)
	}
	if hasCtor {
		return ctor(c.injector)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotBound, name)
}

// MakeAs resolves name and asserts the result to T.
func MakeAs[T any](c *Container, name string) (T, error) {
	var zero T
	v, err := c.Make(name)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("binding %s resolved to %T, not %T", name, v, zero)
	}
	return typed, nil
}

// Bound reports whether name has a binding.
func (c *Container) Bound(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bindings[name]
	return ok
}

// Bindings returns all bindings sorted by abstract name.
func (c *Container) Bindings() []Binding {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Binding, 0, len(c.bindings))
	for _, b := range c.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Abstract < out[j].Abstract })
	return out
}

func (c *Container) record(b Binding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, exists := c.bindings[b.Abstract]; exists {
		slog.Debug("Replacing container binding", "abstract", b.Abstract, "previous", prev.Concrete, "concrete", b.Concrete)
	}
	c.bindings[b.Abstract] = b
}

// provider resolves the concrete lazily so bindings may be declared before the
// constructor they point at is registered.
func (c *Container) provider(abstract, concrete string) do.Provider[any] {
	return func(i do.Injector) (any, error) {
		c.mu.RLock()
		ctor, hasCtor := c.constructors[concrete]
		_, aliased := c.bindings[concrete]
		c.mu.RUnlock()

		switch {
		case hasCtor:
			return ctor(i)
		case aliased && concrete != abstract:
			return do.InvokeNamed[any](i, concrete)
		default:
			return nil, fmt.Errorf("%w: %s (bound to %s)", ErrUnknownConcrete, concrete, abstract)
		}
	}
}
