package server

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/modfinder/internal/config"
	appmw "github.com/nfrund/modfinder/internal/middleware"
	"github.com/nfrund/modfinder/internal/module"
	"github.com/nfrund/modfinder/internal/pubsub"
	"github.com/nfrund/modfinder/internal/registry"
	"github.com/nfrund/modfinder/internal/rendering"
	"github.com/nfrund/modfinder/internal/watch"
	"github.com/spf13/afero"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E        *echo.Echo
	Cfg      *config.Config
	Registry *registry.Registry
	Loader   *module.Loader

	renderer *rendering.UniversalRenderer
	events   *pubsub.WatermillBridge
	watcher  *watch.Watcher
	modules  []module.Module
}

// New creates a server whose modules are read from fs. Modules are not
// loaded until LoadModules is called, so providers can be added to the
// registry catalog first.
func New(cfg *config.Config, fs afero.Fs) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	setupErrorHandling(e)

	events := pubsub.NewWatermillBridge()
	reg := registry.New(fs, e, events)
	appmw.Register(reg.Router)
	renderer := rendering.NewUniversalRenderer(reg.Views)
	e.Renderer = renderer

	s := &Server{
		E:        e,
		Cfg:      cfg,
		Registry: reg,
		Loader:   module.NewLoader(fs, reg),
		renderer: renderer,
		events:   events,
		watcher:  watch.New(cfg.ModulesPath, events),
	}
	s.RegisterRoutes()
	return s
}

// Events exposes the lifecycle event bus for subscribers.
func (s *Server) Events() pubsub.Subscriber {
	return s.events
}

// LoadModules discovers and registers every module below the configured root.
func (s *Server) LoadModules(ctx context.Context) error {
	modules, err := s.Loader.LoadAll(ctx, s.Cfg.ModulesPath)
	if err != nil {
		return err
	}
	s.modules = modules
	slog.Info("Application modules ready", "count", len(modules), "root", s.Cfg.ModulesPath)
	return nil
}

// Modules returns the modules loaded by LoadModules.
func (s *Server) Modules() []module.Module {
	return append([]module.Module(nil), s.modules...)
}
