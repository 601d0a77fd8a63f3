package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/modfinder/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_RouteFileMiddleware(t *testing.T) {
	var logBuffer bytes.Buffer
	originalLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logBuffer, nil)))
	defer slog.SetDefault(originalLogger)

	e := echo.New()
	e.Use(echomw.RequestID())
	r := router.New(e)
	Register(r)

	r.Handle("billing.invoices.index", func(c echo.Context) error {
		FromContext(c.Request().Context()).Info("listing invoices")
		return c.String(http.StatusOK, "OK")
	})
	require.NoError(t, r.Load(router.File{
		Prefix:     "/billing",
		Middleware: []string{RequestLoggerName, ThrottleName},
		Routes: []router.Definition{
			{Method: "GET", Path: "/invoices", Handler: "billing.invoices.index", Name: "billing.invoices"},
		},
	}, "routes.yaml"))

	req := httptest.NewRequest(http.MethodGet, "/billing/invoices", nil)
	req.RemoteAddr = "192.0.2.10:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	logOutput := logBuffer.String()
	assert.Contains(t, logOutput, "listing invoices")
	assert.Contains(t, logOutput, "route=/billing/invoices")
	assert.Contains(t, logOutput, "request_id="+rec.Header().Get(echo.HeaderXRequestID))
}

func TestFromContext_Default(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Same(t, slog.Default(), FromContext(req.Context()))
}

func TestThrottle(t *testing.T) {
	e := echo.New()
	r := router.New(e)
	Register(r)
	r.Handle("shop.products.index", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	require.NoError(t, r.Load(router.File{
		Routes: []router.Definition{
			{Method: "GET", Path: "/products", Handler: "shop.products.index", Middleware: []string{ThrottleName}},
		},
	}, "routes.yaml"))

	get := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < ThrottleRate; i++ {
		require.Equal(t, http.StatusOK, get("192.0.2.2:1234").Code, "request %d should be allowed", i+1)
	}

	rec := get("192.0.2.2:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many requests")

	assert.Equal(t, http.StatusOK, get("192.0.2.3:1234").Code, "other clients are not affected")
}
