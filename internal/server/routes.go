package server

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the host routes. Module routes are added by the loader.
func (s *Server) RegisterRoutes() {
	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	s.E.GET("/_modules", s.modulesStatus).Name = "modules.status"
}

func (s *Server) modulesStatus(c echo.Context) error {
	statuses := make([]moduleStatus, 0, len(s.modules))
	for _, m := range s.modules {
		res, err := s.Loader.Inspect(m)
		if err != nil {
			slog.Warn("Failed to inspect module", "module", m.Name, "error", err)
		}
		statuses = append(statuses, moduleStatus{Module: m, Resources: res})
	}

	if c.Request().Header.Get("HX-Request") == "true" {
		return s.renderer.RenderPage(c, http.StatusOK, statusBody(statuses, s.Registry))
	}
	return s.renderer.RenderPage(c, http.StatusOK, statusPage(statuses, s.Registry))
}
