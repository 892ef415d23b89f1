package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProvider(t *testing.T) {
	t.Run("Should load default configuration", func(t *testing.T) {
		provider := NewDefaultProvider()
		data, err := provider.Load()

		require.NoError(t, err)
		require.NotNil(t, data)

		registry, ok := data["registry"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, registry["projectsfilepath"], "projects.json")

		logger, ok := data["logger"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "info", logger["level"])
	})

	t.Run("Should return SourceDefault type", func(t *testing.T) {
		provider := NewDefaultProvider()
		assert.Equal(t, SourceDefault, provider.Type())
	})

	t.Run("Should not support watching", func(t *testing.T) {
		provider := NewDefaultProvider()
		err := provider.Watch(t.Context(), func() {})
		assert.NoError(t, err)
	})
}

func TestEnvProvider(t *testing.T) {
	t.Run("Should map CCR_-prefixed variables to configuration structure", func(t *testing.T) {
		t.Setenv("CCR_ROUTER_DEFAULT", "anthropic,claude-sonnet-4")
		t.Setenv("CCR_LOGGER_LEVEL", "debug")

		provider := NewEnvProvider()
		data, err := provider.Load()
		require.NoError(t, err)

		router, ok := data["router"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "anthropic,claude-sonnet-4", router["default"])

		loggerSection, ok := data["logger"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "debug", loggerSection["level"])
	})

	t.Run("Should ignore variables without the CCR_ prefix", func(t *testing.T) {
		t.Setenv("UNRELATED_VALUE", "x")
		data, err := NewEnvProvider().Load()
		require.NoError(t, err)
		assert.NotContains(t, data, "unrelated")
	})

	t.Run("Should return SourceEnv", func(t *testing.T) {
		assert.Equal(t, SourceEnv, NewEnvProvider().Type())
	})
}

func TestCLIProvider_Load(t *testing.T) {
	t.Run("Should map known flags to configuration structure", func(t *testing.T) {
		flags := map[string]any{
			"default":      "anthropic,claude-sonnet-4",
			"background":   "anthropic,claude-haiku",
			"log-level":    "debug",
			"log-json":     true,
			"ignored-flag": "dropped",
		}
		provider := NewCLIProvider(flags)
		data, err := provider.Load()
		require.NoError(t, err)

		router, ok := data["router"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "anthropic,claude-sonnet-4", router["default"])
		assert.Equal(t, "anthropic,claude-haiku", router["background"])

		logSection, ok := data["logger"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "debug", logSection["level"])
		assert.Equal(t, true, logSection["json"])

		assert.NotContains(t, data, "ignored-flag")
	})

	t.Run("Should handle nil flags gracefully", func(t *testing.T) {
		data, err := NewCLIProvider(nil).Load()
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("Should return SourceCLI", func(t *testing.T) {
		assert.Equal(t, SourceCLI, NewCLIProvider(nil).Type())
	})
}

func TestYAMLProvider_Load(t *testing.T) {
	t.Run("Should return empty map for a non-existent file", func(t *testing.T) {
		provider := NewYAMLProvider("/non/existent/config.yaml")
		data, err := provider.Load()
		assert.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("Should load configuration from a YAML file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		content := "router:\n  default: openai,gpt-4o\n  longcontextthreshold: 80000\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		provider := NewYAMLProvider(path)
		data, err := provider.Load()
		require.NoError(t, err)

		router, ok := data["router"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "openai,gpt-4o", router["default"])
	})

	t.Run("Should return an error for invalid YAML", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("router: [oops"), 0o644))

		_, err := NewYAMLProvider(path).Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML file")
	})

	t.Run("Should return SourceYAML", func(t *testing.T) {
		assert.Equal(t, SourceYAML, NewYAMLProvider("config.yaml").Type())
	})
}

func TestYAMLProvider_Watch(t *testing.T) {
	t.Run("Should invoke the callback on file change", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("router:\n  default: a,b\n"), 0o644))

		provider := NewYAMLProvider(path)
		defer provider.Close()

		changed := make(chan struct{}, 1)
		require.NoError(t, provider.Watch(t.Context(), func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		}))

		time.Sleep(100 * time.Millisecond)
		require.NoError(t, os.WriteFile(path, []byte("router:\n  default: c,d\n"), 0o644))

		select {
		case <-changed:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for file-change callback")
		}
	})
}

func TestSetNested(t *testing.T) {
	t.Run("Should create intermediate maps", func(t *testing.T) {
		m := map[string]any{}
		require.NoError(t, setNested(m, "router.default", "a,b"))
		router, ok := m["router"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "a,b", router["default"])
	})

	t.Run("Should reject structure conflicts", func(t *testing.T) {
		m := map[string]any{"router": "not-a-map"}
		err := setNested(m, "router.default", "a,b")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `key "router" is not a map`)
	})

	t.Run("Should no-op on empty key", func(t *testing.T) {
		m := map[string]any{}
		require.NoError(t, setNested(m, "", "value"))
		assert.Empty(t, m)
	})
}

func TestTransformEnvKey(t *testing.T) {
	tests := []struct {
		name, input, expected string
	}{
		{"simple nested", "ROUTER_DEFAULT", "router.default"},
		{"single part", "PORT", "port"},
		{"empty", "", ""},
		{"double underscore", "FOO__BAR", "foo.bar"},
		{"leading underscore", "_FOO_BAR", "foo.bar"},
		{"trailing underscore", "FOO_BAR_", "foo.bar"},
		{"multi-word leaf", "ROUTER_LONG_CONTEXT", "router.long_context"},
		{"only underscores", "___", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, transformEnvKey(tt.input))
		})
	}
}
