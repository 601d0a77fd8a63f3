package rendering

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/modfinder/internal/templateregistry"
)

// Renderer defines the contract for rendering module views and components.
type Renderer interface {
	// RenderComponent renders a component to a slice of bytes.
	RenderComponent(ctx context.Context, component any) ([]byte, error)

	// RenderPage handles full-page rendering of a component.
	RenderPage(c echo.Context, status int, component any) error
}

// UniversalRenderer renders namespaced module views (by name) as well as templ
// and gomponents components (passed as data with an empty name).
type UniversalRenderer struct {
	views *templateregistry.Registry
}

// NewUniversalRenderer creates a renderer. views may be nil when only components
// are rendered.
func NewUniversalRenderer(views *templateregistry.Registry) *UniversalRenderer {
	return &UniversalRenderer{views: views}
}

// gomponentNode is the structural interface of gomponents.Node.
type gomponentNode interface {
	Render(w io.Writer) error
}

func (tr *UniversalRenderer) render(ctx context.Context, component any, w io.Writer) error {
	switch c := component.(type) {
	case templ.Component:
		return c.Render(ctx, w)
	case gomponentNode:
		return c.Render(w)
	default:
		return fmt.Errorf("unsupported component type: %T. Component must be templ.Component or implement Render(io.Writer) error (like gomponents.Node)", component)
	}
}

// RenderComponent implements the Renderer interface.
func (tr *UniversalRenderer) RenderComponent(ctx context.Context, component any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tr.render(ctx, component, &buf); err != nil {
		return nil, fmt.Errorf("failed to render component to bytes: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPage implements the Renderer interface for full HTTP responses.
func (tr *UniversalRenderer) RenderPage(c echo.Context, status int, component any) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)

	if err := tr.render(c.Request().Context(), component, c.Response().Writer); err != nil {
		c.Logger().Error("Failed to stream component to response writer:", err)
		return err
	}
	return nil
}

// Render implements echo.Renderer. A non-empty name selects a module view such as
// "billing/invoice.html"; otherwise data must be a component.
func (tr *UniversalRenderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	if name != "" {
		if tr.views == nil {
			return fmt.Errorf("no view registry configured for %s", name)
		}
		return tr.views.Render(w, name, data)
	}
	return tr.render(c.Request().Context(), data, w)
}
