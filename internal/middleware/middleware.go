// Package middleware holds the named middleware the host offers to module
// route files, e.g.
//
//	middleware: [request.logger, throttle]
package middleware

import (
	"github.com/nfrund/modfinder/internal/router"
)

// Names under which the built-in middleware are registered.
const (
	RequestLoggerName = "request.logger"
	ThrottleName      = "throttle"
)

// Register adds the built-in middleware to r's catalog.
func Register(r *router.Router) {
	r.Middleware(RequestLoggerName, Logger)
	r.Middleware(ThrottleName, RateLimiter())
}
