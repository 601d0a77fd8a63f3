package registry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	BaseProvider
	name        string
	log         *[]string
	shutdownErr error
}

func (p *recordingProvider) Name() string { return p.name }

func (p *recordingProvider) Register(reg *Registry) error {
	*p.log = append(*p.log, "register:"+p.name)
	return nil
}

func (p *recordingProvider) Boot(ctx context.Context, reg *Registry) error {
	*p.log = append(*p.log, "boot:"+p.name)
	return nil
}

func (p *recordingProvider) Shutdown(ctx context.Context) error {
	*p.log = append(*p.log, "shutdown:"+p.name)
	return p.shutdownErr
}

func newRegistry() *Registry {
	return New(afero.NewMemMapFs(), echo.New(), nil)
}

func TestServices(t *testing.T) {
	reg := newRegistry()
	key := Key[string]("billing.currency")

	_, ok := Get(reg, key)
	assert.False(t, ok)

	Set(reg, key, "EUR")
	got, ok := Get(reg, key)
	require.True(t, ok)
	assert.Equal(t, "EUR", got)
	assert.Equal(t, "EUR", MustGet(reg, key))

	assert.Panics(t, func() { MustGet(reg, Key[int]("missing")) })
}

func TestProviderLifecycle(t *testing.T) {
	ctx := context.Background()
	var log []string
	reg := newRegistry()

	reg.Provide("billing", func() Provider { return &recordingProvider{name: "billing", log: &log} })
	reg.Provide("shop", func() Provider { return &recordingProvider{name: "shop", log: &log} })
	assert.Equal(t, []string{"billing", "shop"}, reg.Provided())

	t.Run("Register runs synchronously", func(t *testing.T) {
		_, err := reg.RegisterByID(ctx, "billing")
		require.NoError(t, err)
		assert.Equal(t, []string{"register:billing"}, log)
	})

	t.Run("Boot runs once in order", func(t *testing.T) {
		_, err := reg.RegisterByID(ctx, "shop")
		require.NoError(t, err)
		require.NoError(t, reg.Boot(ctx))
		require.NoError(t, reg.Boot(ctx))
		assert.Equal(t, []string{"register:billing", "register:shop", "boot:billing", "boot:shop"}, log)
		assert.True(t, reg.Booted())
	})

	t.Run("Late providers boot immediately", func(t *testing.T) {
		log = nil
		require.NoError(t, reg.Register(ctx, &recordingProvider{name: "late", log: &log}))
		assert.Equal(t, []string{"register:late", "boot:late"}, log)
	})

	t.Run("Unknown provider", func(t *testing.T) {
		_, err := reg.RegisterByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})

	t.Run("Shutdown in reverse order", func(t *testing.T) {
		log = nil
		require.NoError(t, reg.Shutdown(ctx))
		assert.Equal(t, []string{"shutdown:late", "shutdown:shop", "shutdown:billing"}, log)
	})
}

func TestRegisterByID_Idempotent(t *testing.T) {
	ctx := context.Background()
	var log []string
	reg := newRegistry()
	built := 0
	reg.Provide("shared", func() Provider {
		built++
		return &recordingProvider{name: "shared", log: &log}
	})

	first, err := reg.RegisterByID(ctx, "shared")
	require.NoError(t, err)
	second, err := reg.RegisterByID(ctx, "shared")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, built)
	assert.Len(t, reg.Providers(), 1)

	require.NoError(t, reg.Boot(ctx))
	require.NoError(t, reg.Shutdown(ctx))
	assert.Equal(t, []string{"register:shared", "boot:shared", "shutdown:shared"}, log)
}

func TestShutdown_JoinsErrors(t *testing.T) {
	ctx := context.Background()
	var log []string
	reg := newRegistry()
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	require.NoError(t, reg.Register(ctx, &recordingProvider{name: "a", log: &log, shutdownErr: errA}))
	require.NoError(t, reg.Register(ctx, &recordingProvider{name: "b", log: &log, shutdownErr: errB}))

	err := reg.Shutdown(ctx)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, reg.Providers(), 2)
}

func TestViewFuncs(t *testing.T) {
	reg := newRegistry()
	reg.Config.MergeFrom("billing.general", map[string]any{"rate": 5})

	views := fstest.MapFS{
		"rate.html": {Data: []byte(`rate={{config "billing.general.rate"}}`)},
	}
	require.NoError(t, reg.Views.AddNamespace("billing", views))

	var buf bytes.Buffer
	require.NoError(t, reg.Views.Render(&buf, "billing/rate.html", nil))
	assert.Equal(t, "rate=5", buf.String())
}
