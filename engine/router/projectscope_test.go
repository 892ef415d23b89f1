package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ccrouter/ccr/engine/ccrreq"
	"github.com/ccrouter/ccr/engine/registry"
	"github.com/ccrouter/ccr/engine/sessioncache"
	"github.com/ccrouter/ccr/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSessionProjectFolder(t *testing.T) {
	t.Run("finds the project folder containing the session's jsonl and caches it", func(t *testing.T) {
		root := t.TempDir()
		projectFolder := filepath.Join(root, "-home-dev-myapp")
		require.NoError(t, os.MkdirAll(projectFolder, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(projectFolder, "s1.jsonl"), []byte("{}"), 0o644))

		rc := &RouterContext{ClaudeProjectsRoot: root, Caches: sessioncache.NewCaches()}
		folder := resolveSessionProjectFolder(context.Background(), rc, "s1")
		assert.Equal(t, "-home-dev-myapp", folder)
		cached, ok := rc.Caches.SessionProjectCache.Get("s1")
		assert.True(t, ok)
		assert.Equal(t, "-home-dev-myapp", cached)
	})

	t.Run("caches a miss as the empty string so the filesystem isn't re-walked", func(t *testing.T) {
		root := t.TempDir()
		rc := &RouterContext{ClaudeProjectsRoot: root, Caches: sessioncache.NewCaches()}
		folder := resolveSessionProjectFolder(context.Background(), rc, "unknown")
		assert.Equal(t, "", folder)
		cached, ok := rc.Caches.SessionProjectCache.Get("unknown")
		assert.True(t, ok)
		assert.Equal(t, "", cached)
	})

	t.Run("returns empty without touching disk when ClaudeProjectsRoot is unset", func(t *testing.T) {
		rc := &RouterContext{Caches: sessioncache.NewCaches()}
		assert.Equal(t, "", resolveSessionProjectFolder(context.Background(), rc, "s1"))
	})
}

func TestDecide_AppliesProjectConfigScopeFromSessionId(t *testing.T) {
	claudeRoot := t.TempDir()
	projectFolder := filepath.Join(claudeRoot, "-home-dev-myapp")
	require.NoError(t, os.MkdirAll(projectFolder, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(projectFolder, "s1.jsonl"), []byte("{}"), 0o644))

	overridesRoot := t.TempDir()
	overrideDir := filepath.Join(overridesRoot, "-home-dev-myapp")
	require.NoError(t, os.MkdirAll(overrideDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(overrideDir, "config.json"),
		[]byte(`{"default": "openai,gpt-4o"}`), 0o644))

	manager := config.NewManager(nil)
	defer manager.Close(context.Background())
	_, err := manager.Load(context.Background(), config.NewCLIProvider(map[string]any{
		"default": "anthropic,claude-sonnet-4",
	}))
	require.NoError(t, err)

	rc := &RouterContext{
		Config:             NewConfigAdapter(manager, registry.NewProjectConfigLoader(overridesRoot)),
		Registry:           registry.NewStore(filepath.Join(t.TempDir(), "projects.json")),
		Caches:             sessioncache.NewCaches(),
		ClaudeProjectsRoot: claudeRoot,
	}
	body := &ccrreq.Body{Metadata: ccrreq.Metadata{UserID: "u_session_s1"}}
	decision := Decide(context.Background(), rc, body)
	assert.Equal(t, "openai,gpt-4o", decision.Model, "project override should apply once the session resolves to its folder")
}
