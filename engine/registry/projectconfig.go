package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ccrouter/ccr/pkg/logger"
)

// RouterOverride is the subset of RouterConfig a project- or session-level
// config file may override. A zero-value field means "not set" and leaves
// the layer beneath it in place.
type RouterOverride struct {
	Default              string `json:"default,omitempty"`
	Background           string `json:"background,omitempty"`
	Think                string `json:"think,omitempty"`
	LongContext          string `json:"longcontext,omitempty"`
	WebSearch            string `json:"websearch,omitempty"`
	LongContextThreshold int    `json:"longcontextthreshold,omitempty"`
}

// merge overlays non-zero fields of other onto o and returns the result.
func (o RouterOverride) merge(other RouterOverride) RouterOverride {
	if other.Default != "" {
		o.Default = other.Default
	}
	if other.Background != "" {
		o.Background = other.Background
	}
	if other.Think != "" {
		o.Think = other.Think
	}
	if other.LongContext != "" {
		o.LongContext = other.LongContext
	}
	if other.WebSearch != "" {
		o.WebSearch = other.WebSearch
	}
	if other.LongContextThreshold != 0 {
		o.LongContextThreshold = other.LongContextThreshold
	}
	return o
}

// ProjectConfigLoader reads per-project and per-session Router overrides
// from ~/.claude-code-router/<projectFolder>/{config.json,<sessionId>.json}
// per spec §4.5's "project-level config overrides the global Router when
// present" tie-break rule.
type ProjectConfigLoader struct {
	root string

	mu       sync.Mutex
	watchers map[string]*fsnotify.Watcher
}

// NewProjectConfigLoader returns a loader rooted at root (typically
// ~/.claude-code-router).
func NewProjectConfigLoader(root string) *ProjectConfigLoader {
	return &ProjectConfigLoader{root: root, watchers: map[string]*fsnotify.Watcher{}}
}

// Load reads config.json (the project-wide override) then <sessionId>.json
// (the session-specific override, which wins on conflict) and merges them.
// A missing file at either layer is not an error; the zero RouterOverride
// is used in its place.
func (l *ProjectConfigLoader) Load(_ context.Context, projectFolder, sessionID string) (RouterOverride, error) {
	dir := filepath.Join(l.root, projectFolder)
	base, err := readRouterOverride(filepath.Join(dir, "config.json"))
	if err != nil {
		return RouterOverride{}, err
	}
	if sessionID == "" {
		return base, nil
	}
	session, err := readRouterOverride(filepath.Join(dir, sessionID+".json"))
	if err != nil {
		return RouterOverride{}, err
	}
	return base.merge(session), nil
}

func readRouterOverride(path string) (RouterOverride, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RouterOverride{}, nil
		}
		return RouterOverride{}, fmt.Errorf("read project config %q: %w", path, err)
	}
	var override RouterOverride
	if err := json.Unmarshal(stripComments(raw), &override); err != nil {
		return RouterOverride{}, fmt.Errorf("parse project config %q: %w", path, err)
	}
	return override, nil
}

// Watch starts an fsnotify watch on projectFolder's directory, invoking
// onChange whenever config.json or a session override file changes.
// Calling Watch again for the same projectFolder replaces the previous
// watch.
func (l *ProjectConfigLoader) Watch(ctx context.Context, projectFolder string, onChange func()) error {
	dir := filepath.Join(l.root, projectFolder)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create project config watcher: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		watcher.Close()
		return fmt.Errorf("ensure project config dir %q: %w", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch project config dir %q: %w", dir, err)
	}

	l.mu.Lock()
	if prev, ok := l.watchers[projectFolder]; ok {
		prev.Close()
	}
	l.watchers[projectFolder] = watcher
	l.mu.Unlock()

	log := logger.FromContext(ctx)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("project config watcher error", "project", projectFolder, "error", err)
			}
		}
	}()
	return nil
}

// Close stops every active watch.
func (l *ProjectConfigLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.watchers {
		w.Close()
	}
	l.watchers = map[string]*fsnotify.Watcher{}
	return nil
}
