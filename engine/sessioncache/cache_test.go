package sessioncache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetSetDelete(t *testing.T) {
	c := New(4)
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k1", "v1")
	val, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", val)

	c.Delete("k1")
	_, ok = c.Get("k1")
	assert.False(t, ok)
}

func TestCache_EvictsAtCapacity(t *testing.T) {
	c := New(2)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3") // evicts "a", the least recently used

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, int64(1), c.Metrics().Evictions)
}

func TestCache_MetricsHitRate(t *testing.T) {
	c := New(4)
	c.Set("k", "v")
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	m := c.Metrics()
	assert.Equal(t, int64(2), m.Hits)
	assert.Equal(t, int64(1), m.Misses)
	assert.InDelta(t, 0.666, m.HitRate, 0.01)
}

func TestCache_Reset(t *testing.T) {
	c := New(4)
	c.Set("k", "v")
	c.Get("k")
	c.Reset()

	assert.Equal(t, 0, c.Size())
	m := c.Metrics()
	assert.Equal(t, int64(0), m.Hits)
	assert.Equal(t, int64(0), m.Misses)
	assert.Equal(t, int64(0), m.Evictions)
}

func TestModelCacheKey(t *testing.T) {
	key := ModelCacheKey("sess1", "agent", "proj1", "id1")
	assert.Equal(t, "sess1:agent:proj1:id1", key)
}

func TestFindSessionProjectFolder(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "my-project")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "sess-123.jsonl"), []byte("{}"), 0o644))

	found := FindSessionProjectFolder(context.Background(), root, "sess-123")
	assert.Equal(t, "my-project", found)

	notFound := FindSessionProjectFolder(context.Background(), root, "sess-999")
	assert.Equal(t, "", notFound)
}
