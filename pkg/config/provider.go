package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	goyaml "github.com/goccy/go-yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CCR_"

// SourceType names where a configuration layer came from, for logging and
// precedence debugging.
type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceEnv     SourceType = "env"
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceProject SourceType = "project"
)

// Provider is one layer of configuration. Manager.Load applies providers in
// the order given, later providers overriding earlier ones key-by-key.
type Provider interface {
	Load() (map[string]any, error)
	Watch(ctx context.Context, onChange func()) error
	Type() SourceType
	Close() error
}

// defaultProvider supplies CCR's built-in configuration as the lowest
// precedence layer.
type defaultProvider struct{}

// NewDefaultProvider returns the provider for Default().
func NewDefaultProvider() Provider { return &defaultProvider{} }

func (p *defaultProvider) Load() (map[string]any, error) {
	return structToMap(Default()), nil
}
func (p *defaultProvider) Watch(_ context.Context, _ func()) error { return nil }
func (p *defaultProvider) Type() SourceType                       { return SourceDefault }
func (p *defaultProvider) Close() error                            { return nil }

// envProvider reads CCR_-prefixed environment variables, transforming each
// name via transformEnvKey (CCR_ROUTER_DEFAULT -> router.default).
type envProvider struct{}

// NewEnvProvider returns the environment-variable layer.
func NewEnvProvider() Provider { return &envProvider{} }

func (p *envProvider) Load() (map[string]any, error) {
	k := koanf.New(".")
	provider := env.Provider(env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return transformEnvKey(strings.TrimPrefix(key, envPrefix)), value
		},
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return k.Raw(), nil
}
func (p *envProvider) Watch(_ context.Context, _ func()) error { return nil }
func (p *envProvider) Type() SourceType                        { return SourceEnv }
func (p *envProvider) Close() error                            { return nil }

// cliProvider maps cobra flag values onto nested configuration keys.
type cliProvider struct {
	flags map[string]any
}

// NewCLIProvider returns the CLI-flag layer. A nil or empty flags map loads
// to an empty map, so unset flags never shadow a lower layer's value.
func NewCLIProvider(flags map[string]any) Provider {
	return &cliProvider{flags: flags}
}

func (p *cliProvider) Load() (map[string]any, error) {
	data := map[string]any{}
	if len(p.flags) == 0 {
		return data, nil
	}
	mapping := map[string]string{
		"default":      "router.default",
		"background":   "router.background",
		"think":        "router.think",
		"long-context": "router.longcontext",
		"web-search":   "router.websearch",
		"projects":     "registry.projectsfilepath",
		"log-level":    "logger.level",
		"log-json":     "logger.json",
	}
	for flag, value := range p.flags {
		key, ok := mapping[flag]
		if !ok {
			continue
		}
		if err := setNested(data, key, value); err != nil {
			return nil, err
		}
	}
	return data, nil
}
func (p *cliProvider) Watch(_ context.Context, _ func()) error { return nil }
func (p *cliProvider) Type() SourceType                        { return SourceCLI }
func (p *cliProvider) Close() error                            { return nil }

// yamlProvider loads a config file and watches it for changes via fsnotify,
// falling back to silence (no error) when the file does not exist - the
// project-level config file is optional.
type yamlProvider struct {
	path string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewYAMLProvider returns a layer backed by a YAML file on disk.
func NewYAMLProvider(path string) Provider {
	return &yamlProvider{path: path}
}

func (p *yamlProvider) Load() (map[string]any, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read YAML file %q: %w", p.path, err)
	}
	data := map[string]any{}
	if err := goyaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file %q: %w", p.path, err)
	}
	return data, nil
}

func (p *yamlProvider) Watch(ctx context.Context, onChange func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(p.path); err != nil {
		// The file may not exist yet; watch its directory so a later create
		// is still observed.
		if dirErr := watcher.Add(dirOf(p.path)); dirErr != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch %q: %w", p.path, err)
		}
	}
	p.watcher = watcher
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
				if event.Name == p.path && (event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0) {
					onChange()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func (p *yamlProvider) Type() SourceType { return SourceYAML }

func (p *yamlProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	p.watcher = nil
	return err
}

// structToMap flattens a Config (or any koanf-tagged struct) into the
// nested map[string]any shape every Provider.Load returns, via koanf's own
// structs provider rather than hand-rolled reflection.
func structToMap(cfg any) map[string]any {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return map[string]any{}
	}
	return k.Raw()
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

// setNested writes value at the dot-separated key path inside m, creating
// intermediate maps as needed. An empty path is a no-op. It errors if an
// intermediate path segment already holds a non-map value.
func setNested(m map[string]any, key string, value any) error {
	if key == "" {
		return nil
	}
	parts := strings.Split(key, ".")
	cur := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok {
			nm := map[string]any{}
			cur[part] = nm
			cur = nm
			continue
		}
		nm, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("configuration conflict: key %q is not a map", part)
		}
		cur = nm
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// transformEnvKey turns an environment variable name into a dotted config
// path: the first underscore-delimited word becomes the top-level section,
// the rest stay underscore-joined as the leaf key, e.g.
// LIMITS_MAX_NESTING_DEPTH -> limits.max_nesting_depth.
func transformEnvKey(key string) string {
	words := make([]string, 0, 4)
	for _, p := range strings.Split(strings.ToLower(key), "_") {
		if p != "" {
			words = append(words, p)
		}
	}
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	default:
		return words[0] + "." + strings.Join(words[1:], "_")
	}
}
