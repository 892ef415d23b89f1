// Command ccr manages the project/agent/workflow registry that drives CCR's
// in-process request router. It never runs an HTTP server itself: routing
// is a library call (engine/router.Decide) the host process embeds.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ccrouter/ccr/cli"
	"github.com/ccrouter/ccr/engine/ccrerr"
	"github.com/ccrouter/ccr/engine/registry"
	"github.com/ccrouter/ccr/pkg/config"
	"github.com/ccrouter/ccr/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	cfg, manager, err := loadConfig(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ccr: failed to load configuration:", err)
		return 2
	}
	defer manager.Close(ctx)

	log := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.Logger.Level),
		Output: os.Stderr,
		JSON:   cfg.Logger.JSON,
	})
	ctx = logger.ContextWithLogger(ctx, log)

	store := registry.NewStore(expandHome(cfg.Registry.ProjectsFilePath))

	deps := &cli.Dependencies{Registry: store, Manager: manager}
	root := cli.NewRootCommand(deps)
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		return exitCode(err)
	}
	return 0
}

// loadConfig builds the global config.Manager from the layered sources in
// precedence order env < yaml file < CLI flags (CLI flags for the running
// process aren't modeled here, since cobra owns its own flag parsing; the
// YAML file is the operator-editable ~/.claude-code-router/config.yaml).
func loadConfig(ctx context.Context) (*config.Config, *config.Manager, error) {
	manager := config.NewManager(config.NewService())
	yamlPath := expandHome("~/.claude-code-router/config.yaml")
	providers := []config.Provider{
		config.NewEnvProvider(),
		config.NewYAMLProvider(yamlPath),
	}
	cfg, err := manager.Load(ctx, providers...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, manager, nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// exitCode maps a returned error's ccrerr.Code to spec.md §6's exit codes:
// 0 success, 1 user error, 2 I/O or registry invariant violation.
func exitCode(err error) int {
	fmt.Fprintln(os.Stderr, "ccr:", err)
	var code ccrerr.Code
	if ce, ok := err.(*ccrerr.Error); ok {
		code = ce.Code
	}
	switch code {
	case ccrerr.Invalid:
		return 1
	case ccrerr.NotFound, ccrerr.Exists, ccrerr.Perm, ccrerr.IO, ccrerr.Network, ccrerr.Invariant:
		return 2
	default:
		return 1
	}
}
