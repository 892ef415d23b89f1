package router

import (
	"context"
	"strings"

	"github.com/ccrouter/ccr/engine/registry"
	"github.com/ccrouter/ccr/pkg/config"
	"github.com/ccrouter/ccr/pkg/logger"
)

type projectCtxKey string

const (
	projectFolderCtxKey projectCtxKey = "ccr-project-folder"
	sessionIDCtxKey     projectCtxKey = "ccr-session-id"
)

// ContextWithProjectScope attaches the resolved project folder and session
// ID a request belongs to, so ConfigAdapter.GetAll can look up that
// project's config.json/<sessionId>.json overrides without threading extra
// parameters through Decide's signature.
func ContextWithProjectScope(ctx context.Context, projectFolder, sessionID string) context.Context {
	ctx = context.WithValue(ctx, projectFolderCtxKey, projectFolder)
	return context.WithValue(ctx, sessionIDCtxKey, sessionID)
}

// ConfigAdapter implements ConfigService over a global *config.Manager,
// layering a project's and session's Router overrides (from
// engine/registry.ProjectConfigLoader) on top of the global RouterConfig,
// per spec §4.5's "project-level config overrides the global Router when
// present" tie-break.
type ConfigAdapter struct {
	Manager  *config.Manager
	Projects *registry.ProjectConfigLoader
}

// NewConfigAdapter returns a ConfigAdapter. projects may be nil when
// project-level overrides are not in use.
func NewConfigAdapter(manager *config.Manager, projects *registry.ProjectConfigLoader) *ConfigAdapter {
	return &ConfigAdapter{Manager: manager, Projects: projects}
}

// Get resolves a lowercased "provider,model" key against the configured
// providers list, returning the canonical "provider,model" casing on a
// match. It is the direct-model-field step's only consumer (spec §4.5 step
// 1: "validate against the list of configured providers and their models
// ... normalize the casing"); it does not apply project-level overrides.
func (a *ConfigAdapter) Get(_ context.Context, key string) (string, bool) {
	if a.Manager == nil {
		return "", false
	}
	cfg := a.Manager.Get()
	if cfg == nil {
		return "", false
	}
	provider, model, ok := strings.Cut(key, ",")
	if !ok {
		return "", false
	}
	for _, p := range cfg.Providers {
		if !strings.EqualFold(p.Name, provider) {
			continue
		}
		for _, m := range p.Models {
			if strings.EqualFold(m, model) {
				return p.Name + "," + m, true
			}
		}
	}
	return "", false
}

// GetAll returns the effective RouterConfig: the global Router section with
// any project/session override files applied on top.
func (a *ConfigAdapter) GetAll(ctx context.Context) RouterConfig {
	var base RouterConfig
	if a.Manager != nil {
		if cfg := a.Manager.Get(); cfg != nil {
			base = RouterConfig{
				Default:              cfg.Router.Default,
				Background:           cfg.Router.Background,
				Think:                cfg.Router.Think,
				LongContext:          cfg.Router.LongContext,
				WebSearch:            cfg.Router.WebSearch,
				LongContextThreshold: cfg.Router.LongContextThreshold,
			}
		}
	}

	if a.Projects == nil {
		return base
	}
	projectFolder, _ := ctx.Value(projectFolderCtxKey).(string)
	if projectFolder == "" {
		return base
	}
	sessionID, _ := ctx.Value(sessionIDCtxKey).(string)
	override, err := a.Projects.Load(ctx, projectFolder, sessionID)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to load project router override", "project", projectFolder, "error", err)
		return base
	}
	return applyOverride(base, override)
}

func applyOverride(base RouterConfig, o registry.RouterOverride) RouterConfig {
	if o.Default != "" {
		base.Default = o.Default
	}
	if o.Background != "" {
		base.Background = o.Background
	}
	if o.Think != "" {
		base.Think = o.Think
	}
	if o.LongContext != "" {
		base.LongContext = o.LongContext
	}
	if o.WebSearch != "" {
		base.WebSearch = o.WebSearch
	}
	if o.LongContextThreshold != 0 {
		base.LongContextThreshold = o.LongContextThreshold
	}
	return base
}
