package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFailingProvider struct{}

func (m *mockFailingProvider) Load() (map[string]any, error) { return nil, assert.AnError }
func (m *mockFailingProvider) Watch(_ context.Context, _ func()) error { return nil }
func (m *mockFailingProvider) Type() SourceType                        { return "mock" }
func (m *mockFailingProvider) Close() error                             { return nil }

func TestGlobalConfig(t *testing.T) {
	t.Run("Should panic when accessed before Initialize", func(t *testing.T) {
		resetForTest()
		assert.Panics(t, func() { Get() })
		assert.Panics(t, func() { OnChange(func(*Config) {}) })
		assert.Panics(t, func() { _ = Reload(context.Background()) })
	})

	t.Run("Should initialize successfully", func(t *testing.T) {
		resetForTest()
		require.NoError(t, Initialize(context.Background(), nil, NewDefaultProvider()))
		cfg := Get()
		require.NotNil(t, cfg)
		assert.Equal(t, "info", cfg.Logger.Level)
	})

	t.Run("Should surface initialization errors", func(t *testing.T) {
		resetForTest()
		err := Initialize(context.Background(), nil, &mockFailingProvider{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize global config")
	})

	t.Run("Should only initialize once", func(t *testing.T) {
		resetForTest()
		require.NoError(t, Initialize(context.Background(), nil, NewDefaultProvider()))
		first := Get()

		require.NoError(t, Initialize(context.Background(), nil, NewCLIProvider(map[string]any{
			"log-level": "debug",
		})))
		second := Get()
		assert.Equal(t, first.Logger.Level, second.Logger.Level)
	})

	t.Run("Should support change callbacks", func(t *testing.T) {
		resetForTest()
		require.NoError(t, Initialize(context.Background(), nil, NewDefaultProvider()))
		called := false
		OnChange(func(cfg *Config) {
			called = true
			assert.NotNil(t, cfg)
		})
		require.NoError(t, Reload(context.Background()))
		assert.False(t, called, "callback should not fire when nothing changed")
	})

	t.Run("Should close cleanly and be idempotent", func(t *testing.T) {
		resetForTest()
		require.NoError(t, Initialize(context.Background(), nil, NewDefaultProvider()))
		assert.NoError(t, Close(context.Background()))
		assert.NoError(t, Close(context.Background()))
	})

	t.Run("Should allow re-initialization after close", func(t *testing.T) {
		resetForTest()
		require.NoError(t, Initialize(context.Background(), nil, NewDefaultProvider()))
		require.NoError(t, Close(context.Background()))

		resetForTest()
		require.NoError(t, Initialize(context.Background(), nil, NewDefaultProvider()))
		assert.NotNil(t, Get())
	})
}
