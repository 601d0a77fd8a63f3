package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_MergeAndGet(t *testing.T) {
	repo := NewRepository()
	repo.MergeFrom("billing.general", map[string]any{"rate": 5, "currency": "EUR"})

	t.Run("Nested lookup", func(t *testing.T) {
		v, ok := repo.Get("billing.general.rate")
		require.True(t, ok)
		assert.Equal(t, 5, v)
		assert.Equal(t, 5, repo.GetInt("billing.general.rate"))
		assert.Equal(t, "EUR", repo.GetString("billing.general.currency"))
	})

	t.Run("Missing key", func(t *testing.T) {
		_, ok := repo.Get("billing.general.missing")
		assert.False(t, ok)
		assert.False(t, repo.Has("shop"))
		assert.Equal(t, 0, repo.GetInt("shop.anything"))
	})

	t.Run("Later merge overwrites colliding leaves", func(t *testing.T) {
		repo.MergeFrom("billing.general", map[string]any{"rate": 7})
		assert.Equal(t, 7, repo.GetInt("billing.general.rate"))
		assert.Equal(t, "EUR", repo.GetString("billing.general.currency"))

		repo.MergeFrom("billing.general", "flat")
		assert.Equal(t, "flat", repo.GetString("billing.general"))
	})
}

func TestRepository_MergeNested(t *testing.T) {
	repo := NewRepository()
	repo.MergeFrom("foo.app.db", map[string]any{"host": "h"})
	repo.MergeFrom("foo.app", map[string]any{"name": "x"})

	assert.Equal(t, "x", repo.GetString("foo.app.name"))
	assert.Equal(t, "h", repo.GetString("foo.app.db.host"))
	assert.Equal(t, []string{"foo.app.db.host", "foo.app.name"}, repo.Keys())
}

func TestRepository_GetReturnsCopy(t *testing.T) {
	repo := NewRepository()
	repo.MergeFrom("shop.cache", map[string]any{
		"ttl":    "5m",
		"stores": []any{"redis"},
		"redis":  map[string]any{"db": 0},
	})

	v, ok := repo.Get("shop.cache")
	require.True(t, ok)
	m := v.(map[string]any)
	m["ttl"] = "1h"
	m["redis"].(map[string]any)["db"] = 9
	m["stores"].([]any)[0] = "memory"

	assert.Equal(t, "5m", repo.GetString("shop.cache.ttl"))
	assert.Equal(t, 0, repo.GetInt("shop.cache.redis.db"))
	assert.Equal(t, []string{"redis"}, repo.GetStringSlice("shop.cache.stores"))
}

func TestRepository_OverridesWin(t *testing.T) {
	repo := NewRepository()
	repo.Set("billing.general.rate", 10)
	repo.MergeFrom("billing.general", map[string]any{"rate": 5, "currency": "EUR"})

	assert.Equal(t, 10, repo.GetInt("billing.general.rate"))

	merged, ok := repo.Get("billing.general")
	require.True(t, ok)
	want := map[string]any{"rate": 10, "currency": "EUR"}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Errorf("merged config mismatch (-want +got):\n%s", diff)
	}
}

func TestRepository_TypedGetters(t *testing.T) {
	repo := NewRepository()
	repo.MergeFrom("shop.cache", map[string]any{
		"ttl":     "1m30s",
		"enabled": "true",
		"ratio":   "0.5",
		"regions": []any{"eu", "us"},
	})

	assert.Equal(t, 90*time.Second, repo.GetDuration("shop.cache.ttl"))
	assert.True(t, repo.GetBool("shop.cache.enabled"))
	assert.Equal(t, 0.5, repo.GetFloat("shop.cache.ratio"))
	assert.Equal(t, []string{"eu", "us"}, repo.GetStringSlice("shop.cache.regions"))
}

func TestRepository_Keys(t *testing.T) {
	repo := NewRepository()
	repo.MergeFrom("foo.a.b.c", map[string]any{"x": 1, "y": 2})
	repo.MergeFrom("foo.flag", true)
	repo.Set("host.name", "demo")

	assert.Equal(t, []string{"foo.a.b.c.x", "foo.a.b.c.y", "foo.flag", "host.name"}, repo.Keys())
}

func TestFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := FromEnv(func(string) string { return "" })
		require.NoError(t, err)
		assert.Equal(t, DefaultModulesPath, cfg.ModulesPath)
		assert.Equal(t, DefaultAddr, cfg.Addr)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.False(t, cfg.Watch)
		assert.Error(t, cfg.RequireDatabase())
	})

	t.Run("Explicit values", func(t *testing.T) {
		env := map[string]string{
			"MODULES_PATH": "/srv/app/Modules",
			"LOG_FORMAT":   "json",
			"APP_WATCH":    "true",
			"SURREAL_URL":  "ws://localhost:8000/rpc",
			"SURREAL_NS":   "app",
			"SURREAL_DB":   "main",
		}
		cfg, err := FromEnv(func(k string) string { return env[k] })
		require.NoError(t, err)
		assert.Equal(t, "/srv/app/Modules", cfg.ModulesPath)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.True(t, cfg.Watch)
		assert.NoError(t, cfg.RequireDatabase())
	})

	t.Run("Invalid log format", func(t *testing.T) {
		_, err := FromEnv(func(k string) string {
			if k == "LOG_FORMAT" {
				return "xml"
			}
			return ""
		})
		assert.Error(t, err)
	})

	t.Run("Invalid watch flag", func(t *testing.T) {
		_, err := FromEnv(func(k string) string {
			if k == "APP_WATCH" {
				return "sometimes"
			}
			return ""
		})
		assert.ErrorContains(t, err, "APP_WATCH")
	})
}
