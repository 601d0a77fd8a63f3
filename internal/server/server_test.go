package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/modfinder/internal/config"
	"github.com/nfrund/modfinder/internal/registry"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorHandler_WithStackTrace(t *testing.T) {
	// --- Setup ---
	e := echo.New()

	// 1. Capture log output
	// We temporarily redirect slog's output to a buffer to inspect it.
	var logBuffer bytes.Buffer
	// Create a new logger that writes to our buffer
	handler := slog.NewTextHandler(&logBuffer, &slog.HandlerOptions{
		AddSource: true,
	})
	logger := slog.New(handler)
	// Store the original default logger and defer its restoration
	originalLogger := slog.Default()
	slog.SetDefault(logger)
	defer slog.SetDefault(originalLogger)

	// 2. Set up the error handler we want to test
	setupErrorHandling(e)

	// 3. Define a route that will always produce an unhandled error
	e.GET("/test-unhandled-error", func(c echo.Context) error {
		// This is the kind of error that should trigger our stack trace logging.
		return errors.New("a deliberate unhandled error occurred")
	})

	// --- Act ---
	req := httptest.NewRequest(http.MethodGet, "/test-unhandled-error", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// --- Assert ---
	// First, check that the HTTP response is correct (a 500 error)
	require.Equal(t, http.StatusInternalServerError, rec.Code, "Expected a 500 Internal Server Error response")

	// Now, check the captured log output
	logOutput := logBuffer.String()

	// Assert that the log contains the key pieces of information
	assert.Contains(t, logOutput, "Internal Server Error (Unhandled)", "Log message should indicate an unhandled error")
	assert.Contains(t, logOutput, "error=\"a deliberate unhandled error occurred\"", "Log should contain the original error message")
	assert.Contains(t, logOutput, "stack_trace=", "Log must contain the stack_trace field")

	// A good stack trace will contain the path to the Go runtime and this test file.
	// This is a strong indicator that a real stack trace was captured.
	assert.Contains(t, logOutput, "runtime/debug/stack.go", "Stack trace should originate from the debug package")
	assert.Contains(t, logOutput, "internal/server/server_test.go", "Stack trace should point back to this test file")
}

type greeterProvider struct {
	registry.BaseProvider
}

func (greeterProvider) Name() string { return "billing.greeter" }

func (greeterProvider) Register(reg *registry.Registry) error {
	reg.Router.Handle("billing.invoices.index", func(c echo.Context) error {
		return c.Render(http.StatusOK, "billing/index.html", reg.Config.GetInt("billing.general.rate"))
	})
	return nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/app/Modules/Billing/configs/general.yaml": "rate: 5\n",
		"/app/Modules/Billing/views/index.html":     "rate is {{.}}",
		"/app/Modules/Billing/routes.yaml":          "prefix: /billing\nroutes:\n  - method: GET\n    path: /invoices\n    handler: billing.invoices.index\n",
		"/app/Modules/Billing/etc/providers.yaml":   "- billing.greeter\n",
		"/app/Modules/Billing/etc/di.yaml":          "singleton:\n  billing.gateway: billing.stripe\n",
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	require.NoError(t, fs.MkdirAll("/app/Modules/Shop", 0755))

	cfg, err := config.FromEnv(func(key string) string {
		if key == "MODULES_PATH" {
			return "/app/Modules"
		}
		return ""
	})
	require.NoError(t, err)

	s := New(cfg, fs)
	s.Registry.Provide("billing.greeter", func() registry.Provider { return greeterProvider{} })
	require.NoError(t, s.LoadModules(context.Background()))
	t.Cleanup(func() { s.events.Close() })
	return s
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t)
	require.Len(t, s.Modules(), 2)

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		s.E.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("Module route renders module view", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/billing/invoices", nil)
		rec := httptest.NewRecorder()
		s.E.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "rate is 5", rec.Body.String())
	})

	t.Run("Status page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/_modules", nil)
		rec := httptest.NewRecorder()
		s.E.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		body := rec.Body.String()
		assert.Contains(t, body, "<!doctype html>")
		assert.Contains(t, body, "Billing")
		assert.Contains(t, body, "Shop")
		assert.Contains(t, body, "configs(1), views, routes, providers, di")
		assert.Contains(t, body, "GET /billing/invoices")
		assert.Contains(t, body, "billing.gateway → billing.stripe")
		assert.Contains(t, body, `hx-get="/_modules"`)
	})

	t.Run("Status fragment for htmx", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/_modules", nil)
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		s.E.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "<!doctype html>")
		assert.Contains(t, rec.Body.String(), "Billing")
	})
}

func TestServer_LoadModulesFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/mods/Foo/etc/providers.yaml", []byte("single\n"), 0644))

	s := New(&config.Config{ModulesPath: "/mods", Addr: ":0"}, fs)
	defer s.events.Close()

	err := s.LoadModules(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module Foo")
	assert.Empty(t, s.Modules())
}
