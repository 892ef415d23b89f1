package sessioncache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ccrouter/ccr/pkg/logger"
)

// FindSessionProjectFolder searches claudeProjectsRoot (typically
// "~/.claude/projects") for a "*/{sessionId}.jsonl" file and returns the
// containing folder's name. Callers should cache the result (including the
// empty-string "searched, not found" outcome) in SessionProjectCache so
// repeated misses don't re-walk the filesystem.
func FindSessionProjectFolder(ctx context.Context, claudeProjectsRoot, sessionID string) string {
	log := logger.FromContext(ctx)
	entries, err := os.ReadDir(claudeProjectsRoot)
	if err != nil {
		log.Debug("claude projects root unreadable", "root", claudeProjectsRoot, "error", err)
		return ""
	}
	target := sessionID + ".jsonl"
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(claudeProjectsRoot, entry.Name(), target)
		if _, err := os.Stat(candidate); err == nil {
			return entry.Name()
		}
	}
	return ""
}
