package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_Load(t *testing.T) {
	e := echo.New()
	r := New(e)

	file := File{
		Prefix:     "/billing",
		Middleware: []string{"tag"},
		Routes: []Definition{
			{Method: "GET", Path: "/invoices", Handler: "billing.invoices.index", Name: "billing.invoices"},
			{Method: "post", Path: "/invoices", Handler: "billing.invoices.store"},
			{Method: "GET", Path: "/late", Handler: "billing.late"},
		},
	}
	require.NoError(t, r.Load(file, "/Billing/routes.yaml"))

	r.Handle("billing.invoices.index", func(c echo.Context) error {
		return c.String(http.StatusOK, "index:"+c.Response().Header().Get("X-Tag"))
	})
	r.Handle("billing.invoices.store", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})
	r.Middleware("tag", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-Tag", "billing")
			return next(c)
		}
	})

	t.Run("Handlers resolve at request time", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/billing/invoices")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "index:billing", rec.Body.String())

		rec = serve(e, http.MethodPost, "/billing/invoices")
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("Unregistered handler", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/billing/late")
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})

	t.Run("Named routes", func(t *testing.T) {
		assert.Equal(t, "/billing/invoices", e.Reverse("billing.invoices"))
	})

	t.Run("Routes listing", func(t *testing.T) {
		routes := r.Routes()
		require.Len(t, routes, 3)
		assert.Equal(t, Route{Method: "GET", Path: "/billing/invoices", Name: "billing.invoices", Handler: "billing.invoices.index", Source: "/Billing/routes.yaml"}, routes[0])
		assert.Equal(t, "POST", routes[1].Method)
		assert.Equal(t, "/billing/late", routes[2].Path)
	})
}

func TestRouter_GroupContext(t *testing.T) {
	e := echo.New()
	root := New(e)
	api := root.Group("/api")
	assert.Equal(t, "/api", api.Prefix())

	require.NoError(t, api.Load(File{Routes: []Definition{
		{Method: "ANY", Path: "/ping", Handler: "ping"},
	}}, "routes.yaml"))
	root.Handle("ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	assert.Equal(t, "pong", serve(e, http.MethodGet, "/api/ping").Body.String())
	assert.Equal(t, "pong", serve(e, http.MethodDelete, "/api/ping").Body.String())
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/ping").Code)
	assert.NotEmpty(t, root.Routes(), "groups share the route listing")
}

func TestRouter_Validation(t *testing.T) {
	r := New(echo.New())

	cases := map[string]File{
		"bad method":      {Routes: []Definition{{Method: "FETCH", Path: "/x", Handler: "h"}}},
		"relative path":   {Routes: []Definition{{Method: "GET", Path: "x", Handler: "h"}}},
		"missing handler": {Routes: []Definition{{Method: "GET", Path: "/x"}}},
		"bad prefix":      {Prefix: "billing"},
		"empty mw name":   {Middleware: []string{""}},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			err := r.Load(f, "routes.yaml")
			assert.ErrorContains(t, err, "routes.yaml")
		})
	}
	assert.Empty(t, r.Routes())
}
