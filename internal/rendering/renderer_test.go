package rendering

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	g "maragu.dev/gomponents"

	"github.com/nfrund/modfinder/internal/templateregistry"
)

func TestUniversalRenderer_Components(t *testing.T) {
	r := NewUniversalRenderer(nil)
	ctx := context.Background()

	out, err := r.RenderComponent(ctx, g.Text("hello & bye"))
	require.NoError(t, err)
	assert.Equal(t, "hello &amp; bye", string(out))

	out, err = r.RenderComponent(ctx, templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "from templ")
		return err
	}))
	require.NoError(t, err)
	assert.Equal(t, "from templ", string(out))

	_, err = r.RenderComponent(ctx, 42)
	assert.Error(t, err)
}

func TestUniversalRenderer_NamedViews(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/views/hello.html", []byte(`Hello {{.}}`), 0644))
	views := templateregistry.New(nil)
	require.NoError(t, views.AddNamespace("billing", afero.NewIOFS(afero.NewBasePathFs(fs, "/views"))))

	e := echo.New()
	e.Renderer = NewUniversalRenderer(views)
	e.GET("/hello", func(c echo.Context) error {
		return c.Render(http.StatusOK, "billing/hello.html", "world")
	})
	e.GET("/page", func(c echo.Context) error {
		return NewUniversalRenderer(views).RenderPage(c, http.StatusAccepted, g.Text("page"))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello world", rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "page", rec.Body.String())
}
