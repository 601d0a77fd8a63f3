package manifest

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
}

func TestDecode_Formats(t *testing.T) {
	want := map[string]any{
		"bind":      map[string]any{"billing.Gateway": "billing.stripe"},
		"singleton": map[string]any{"billing.Clock": "billing.clock"},
		"rate":      5,
	}

	cases := map[string]string{
		"di.yaml": `
bind:
  billing.Gateway: billing.stripe
singleton:
  billing.Clock: billing.clock
rate: 5
`,
		"di.json": `{"bind": {"billing.Gateway": "billing.stripe"}, "singleton": {"billing.Clock": "billing.clock"}, "rate": 5}`,
		"di.toml": `
rate = 5
[bind]
"billing.Gateway" = "billing.stripe"
[singleton]
"billing.Clock" = "billing.clock"
`,
		"di.hcl": `
bind = { "billing.Gateway" = "billing.stripe" }
singleton = { "billing.Clock" = "billing.clock" }
rate = 5
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Decode(name, []byte(content))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecode_Sequences(t *testing.T) {
	t.Run("YAML list", func(t *testing.T) {
		got, err := Decode("providers.yaml", []byte("- billing.payments\n- billing.reports\n"))
		require.NoError(t, err)
		seq, ok := AsSequence(got)
		require.True(t, ok)
		assert.Equal(t, []any{"billing.payments", "billing.reports"}, seq)
	})

	t.Run("JSON scalar", func(t *testing.T) {
		got, err := Decode("providers.json", []byte(`"billing.payments"`))
		require.NoError(t, err)
		_, ok := AsSequence(got)
		assert.False(t, ok)
		assert.Equal(t, "a string", Describe(got))
	})

	t.Run("JSON floats stay floats", func(t *testing.T) {
		got, err := Decode("x.json", []byte(`{"ratio": 0.25}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"ratio": 0.25}, got)
	})
}

func TestDecode_Blank(t *testing.T) {
	for _, name := range []string{"a.yaml", "a.json", "a.toml", "a.hcl"} {
		t.Run(name, func(t *testing.T) {
			got, err := Decode(name, []byte(" \n\t\n"))
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}

	_, err := Decode("a.php", nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("routes.php", []byte("<?php return [];"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Decode("broken.yaml", []byte("a: [1, 2"))
	assert.Error(t, err)

	_, err = Decode("broken.hcl", []byte("block {\n}\n"))
	assert.Error(t, err, "blocks are not accepted in attribute-only manifests")
}

func TestFileLoader(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/mod/etc/providers.json", `["a", "b"]`)
	writeFile(t, fs, "/mod/etc/di.yml", "bind: {}\n")
	loader := NewFileLoader(fs)

	t.Run("Find resolves the first existing extension", func(t *testing.T) {
		path, err := loader.Find("/mod/etc/providers")
		require.NoError(t, err)
		assert.Equal(t, "/mod/etc/providers.json", path)

		path, err = loader.Find("/mod/etc/di")
		require.NoError(t, err)
		assert.Equal(t, "/mod/etc/di.yml", path)
	})

	t.Run("Missing manifest", func(t *testing.T) {
		_, err := loader.Find("/mod/etc/routes")
		assert.True(t, errors.Is(err, ErrNotFound))

		_, err = loader.Load("/mod/nothing.yaml")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("LoadBase", func(t *testing.T) {
		path, value, err := LoadBase(loader, "/mod/etc/providers")
		require.NoError(t, err)
		assert.Equal(t, "/mod/etc/providers.json", path)
		assert.Equal(t, []any{"a", "b"}, value)
	})
}

func TestConvert(t *testing.T) {
	type route struct {
		Method string `json:"method"`
		Path   string `json:"path"`
	}
	var out []route
	err := Convert([]any{map[string]any{"method": "GET", "path": "/x"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, []route{{Method: "GET", Path: "/x"}}, out)
}

func TestHelpers(t *testing.T) {
	assert.True(t, Supported("general.YAML"))
	assert.False(t, Supported(".gitkeep"))
	assert.Equal(t, "general", TrimExt("general.yaml"))
	assert.True(t, TableRooted("providers.toml"))
	assert.True(t, TableRooted("providers.HCL"))
	assert.False(t, TableRooted("providers.json"))
	assert.Equal(t, "a mapping", Describe(map[string]any{}))
	assert.Equal(t, "a list", Describe([]any{}))
	assert.Equal(t, "nothing", Describe(nil))
}
