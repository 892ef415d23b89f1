// Package config loads and hot-reloads CCR's configuration: the global
// router defaults, registry path, logging, and CLI behavior, with
// precedence CLI flags > project/YAML file > environment > built-in
// defaults, the same layered-Provider architecture the upstream
// orchestrator uses for its own config package.
package config

import "time"

// Config is the fully merged, effective configuration.
type Config struct {
	Router    RouterSection     `koanf:"router"`
	Registry  RegistrySection   `koanf:"registry"`
	Logger    LoggerSection     `koanf:"logger"`
	CLI       CLISection        `koanf:"cli"`
	Providers []ProviderSection `koanf:"providers"`
}

// ProviderSection is one configured upstream provider: its canonical name
// and the models it serves. The router's direct-model-field step (spec
// §4.5 step 1) matches an incoming "provider,model" string against this
// list case-insensitively and, on a match, rewrites it to the canonical
// casing recorded here.
type ProviderSection struct {
	Name   string   `koanf:"name"`
	Models []string `koanf:"models"`
}

// RouterSection mirrors engine/router.RouterConfig on the wire, plus the
// optional custom-router path.
type RouterSection struct {
	Default              string `koanf:"default"               validate:"omitempty,modelstring"`
	Background           string `koanf:"background"            validate:"omitempty,modelstring"`
	Think                string `koanf:"think"                 validate:"omitempty,modelstring"`
	LongContext          string `koanf:"longcontext"           validate:"omitempty,modelstring"`
	WebSearch            string `koanf:"websearch"             validate:"omitempty,modelstring"`
	LongContextThreshold int    `koanf:"longcontextthreshold"  validate:"gte=0"`
	CustomRouterPath     string `koanf:"customrouterpath"`
}

// RegistrySection controls where the projects-file and Claude session
// history live.
type RegistrySection struct {
	ProjectsFilePath   string `koanf:"projectsfilepath"   validate:"required"`
	ClaudeProjectsRoot string `koanf:"claudeprojectsroot" validate:"required"`
}

// LoggerSection controls structured log output.
type LoggerSection struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// CLISection controls CLI-facing behavior such as file-watch polling.
type CLISection struct {
	FileWatchInterval time.Duration `koanf:"filewatchinterval" validate:"gt=0"`
}

// Default returns the built-in configuration: no Router.default (the
// router's own hardcoded fallback applies), projects-file and Claude
// projects root under the user's home, info-level text logging.
func Default() Config {
	return Config{
		Router: RouterSection{
			LongContextThreshold: 60000,
		},
		Registry: RegistrySection{
			ProjectsFilePath:   "~/.claude-code-router/projects.json",
			ClaudeProjectsRoot: "~/.claude/projects",
		},
		Logger: LoggerSection{
			Level: "info",
		},
		CLI: CLISection{
			FileWatchInterval: time.Second,
		},
	}
}
