package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// File is the decoded shape of a module routes file.
type File struct {
	Prefix     string       `json:"prefix" validate:"omitempty,startswith=/"`
	Middleware []string     `json:"middleware" validate:"dive,required"`
	Routes     []Definition `json:"routes" validate:"dive"`
}

// Definition declares a single route.
type Definition struct {
	Method     string   `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS ANY"`
	Path       string   `json:"path" validate:"required,startswith=/"`
	Handler    string   `json:"handler" validate:"required"`
	Name       string   `json:"name"`
	Middleware []string `json:"middleware" validate:"dive,required"`
}

// Route is a registered route as reported by Routes.
type Route struct {
	Method  string
	Path    string
	Name    string
	Handler string
	Source  string
}

// catalog holds named handlers and middleware shared by a router and all the
// groups derived from it.
type catalog struct {
	mu         sync.RWMutex
	handlers   map[string]echo.HandlerFunc
	middleware map[string]echo.MiddlewareFunc
	routes     []Route
}

// Router binds declarative route files into an echo group. Handlers and
// middleware are referenced by name and resolved on each request, so they may
// be registered after the routes that use them.
type Router struct {
	echo     *echo.Echo
	group    *echo.Group
	prefix   string
	catalog  *catalog
	validate *validator.Validate
}

// New creates a router mounted at the root of e.
func New(e *echo.Echo) *Router {
	return &Router{
		echo:  e,
		group: e.Group(""),
		catalog: &catalog{
			handlers:   make(map[string]echo.HandlerFunc),
			middleware: make(map[string]echo.MiddlewareFunc),
		},
		validate: validator.New(),
	}
}

// Echo returns the underlying echo instance.
func (r *Router) Echo() *echo.Echo {
	return r.echo
}

// Group returns a router scoped to a sub-group. It shares handler and
// middleware catalogs with r.
func (r *Router) Group(prefix string, mw ...echo.MiddlewareFunc) *Router {
	return &Router{
		echo:     r.echo,
		group:    r.group.Group(prefix, mw...),
		prefix:   r.prefix + prefix,
		catalog:  r.catalog,
		validate: r.validate,
	}
}

// Prefix returns the full path prefix of this router's group.
func (r *Router) Prefix() string {
	return r.prefix
}

// Handle registers a named handler.
func (r *Router) Handle(name string, h echo.HandlerFunc) {
	r.catalog.mu.Lock()
	defer r.catalog.mu.Unlock()
	r.catalog.handlers[name] = h
}

// Middleware registers a named middleware.
func (r *Router) Middleware(name string, mw echo.MiddlewareFunc) {
	r.catalog.mu.Lock()
	defer r.catalog.mu.Unlock()
	r.catalog.middleware[name] = mw
}

// Validate checks a decoded routes file.
func (r *Router) Validate(f File) error {
	if err := r.validate.Struct(f); err != nil {
		return fmt.Errorf("invalid routes: %w", err)
	}
	return nil
}

// Load validates f and registers its routes on this router's group. source
// names the file the routes came from.
func (r *Router) Load(f File, source string) error {
	routes := make([]Definition, len(f.Routes))
	for i, def := range f.Routes {
		def.Method = strings.ToUpper(def.Method)
		routes[i] = def
	}
	f.Routes = routes

	if err := r.Validate(f); err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}

	group := r.group
	if f.Prefix != "" || len(f.Middleware) > 0 {
		group = r.group.Group(f.Prefix, r.named(f.Middleware)...)
	}

	for _, def := range f.Routes {
		handler := r.lazyHandler(def.Handler)
		mw := r.named(def.Middleware)
		method := def.Method

		var added []*echo.Route
		if method == "ANY" {
			added = group.Any(def.Path, handler, mw...)
		} else {
			added = []*echo.Route{group.Add(method, def.Path, handler, mw...)}
		}

		for _, rt := range added {
			if def.Name != "" {
				rt.Name = def.Name
			}
			r.catalog.mu.Lock()
			r.catalog.routes = append(r.catalog.routes, Route{
				Method:  rt.Method,
				Path:    rt.Path,
				Name:    def.Name,
				Handler: def.Handler,
				Source:  source,
			})
			r.catalog.mu.Unlock()
		}
		slog.Debug("Registered route", "method", method, "path", r.prefix+f.Prefix+def.Path, "handler", def.Handler, "source", source)
	}
	return nil
}

// Routes returns every route loaded from route files, sorted by path then method.
func (r *Router) Routes() []Route {
	r.catalog.mu.RLock()
	defer r.catalog.mu.RUnlock()

	out := append([]Route(nil), r.catalog.routes...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func (r *Router) lazyHandler(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		r.catalog.mu.RLock()
		h, ok := r.catalog.handlers[name]
		r.catalog.mu.RUnlock()
		if !ok {
			return echo.NewHTTPError(http.StatusNotImplemented, fmt.Sprintf("handler not registered: %s", name))
		}
		return h(c)
	}
}

func (r *Router) named(names []string) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(names))
	for _, name := range names {
		out = append(out, r.lazyMiddleware(name))
	}
	return out
}

func (r *Router) lazyMiddleware(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r.catalog.mu.RLock()
			mw, ok := r.catalog.middleware[name]
			r.catalog.mu.RUnlock()
			if !ok {
				return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("middleware not registered: %s", name))
			}
			return mw(next)(c)
		}
	}
}
