package server

import (
	"errors"
	"log/slog"
	"runtime/debug"

	"github.com/labstack/echo/v4"
)

// setupErrorHandling logs unexpected handler errors with a stack trace before
// echo writes the response. HTTP errors are left to echo as they are.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			slog.Error("Internal Server Error (Unhandled)",
				"error", err,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"stack_trace", string(debug.Stack()),
			)
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}
