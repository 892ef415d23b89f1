package router

import (
	"context"
	"strings"
	"time"

	"github.com/ccrouter/ccr/engine/ccrreq"
	"github.com/ccrouter/ccr/engine/identity"
	"github.com/ccrouter/ccr/engine/registry"
	"github.com/ccrouter/ccr/engine/sessioncache"
	"github.com/ccrouter/ccr/engine/validate"
	"github.com/ccrouter/ccr/pkg/logger"
)

// Decision is the result of one routing call: the model to send the
// request to, the scenario it was classified under, and a short reason
// string for logs/metrics.
type Decision struct {
	Model        string
	ScenarioType ScenarioType
	Reason       string
}

// Decide mutates body.Model in place to the resolved provider,model value
// and returns the same Decision. It never returns an error and never
// panics outward: any internal failure, including a recovered panic, is
// logged and downgraded to the configured or hardcoded default.
func Decide(ctx context.Context, rc *RouterContext, body *ccrreq.Body) (decision Decision) {
	log := logger.FromContext(ctx)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("router panicked, falling back to default", "panic", r)
			decision = defaultDecision(ctx, rc, body)
		}
		rc.Metrics.observe(decision.ScenarioType, decision.Reason, time.Since(start))
	}()
	return decide(ctx, rc, body)
}

func defaultDecision(ctx context.Context, rc *RouterContext, body *ccrreq.Body) Decision {
	st := stateDefaulting
	fallback := ""
	if rc.Config != nil {
		fallback = rc.Config.GetAll(ctx).Default
	}
	reason := "configured default"
	if fallback == "" {
		fallback = hardFallbackModel
		reason = "hardcoded fallback"
	}
	return finalize(ctx, rc, body, fallback, ScenarioDefault, reason, &st)
}

func decide(ctx context.Context, rc *RouterContext, body *ccrreq.Body) Decision {
	log := logger.FromContext(ctx)
	st := stateExtracting

	// The subagent tag is stripped from the outgoing request as soon as it's
	// recognized, regardless of which priority ultimately decides the model:
	// a directive tag must never leak downstream even when a higher-priority
	// rule (inline override, direct model, long context) wins instead.
	subagent := identity.ExtractSubagentModel(body)
	if subagent != nil {
		body.System[1].Text = subagent.StrippedText
	}

	sessionID := identity.ExtractSessionId(body)
	ctx = ContextWithProjectScope(ctx, resolveSessionProjectFolder(ctx, rc, sessionID), sessionID)

	if rc.Custom != nil {
		if model, err := rc.Custom(ctx, body); err != nil {
			log.Warn("custom router failed, falling back to internal chain", "error", err)
		} else if model != "" {
			return finalize(ctx, rc, body, model, ScenarioDefault, "custom router", &st)
		}
	}

	st = stateDeciding
	if model := identity.ExtractInlineOverride(body); model != "" {
		return finalize(ctx, rc, body, model, ScenarioDefault, "inline override", &st)
	}

	if model, ok := directModel(ctx, rc, body); ok {
		return finalize(ctx, rc, body, model, ScenarioDefault, "direct model field", &st)
	}

	var cfg RouterConfig
	if rc.Config != nil {
		cfg = rc.Config.GetAll(ctx)
	}

	if model, ok := longContext(ctx, rc, cfg, body); ok {
		return finalize(ctx, rc, body, model, ScenarioLongContext, "long context", &st)
	}

	if subagent != nil {
		return finalize(ctx, rc, body, subagent.Model, ScenarioDefault, "subagent tag", &st)
	}

	if cfg.Background != "" && isBackgroundModel(body.Model) {
		return finalize(ctx, rc, body, cfg.Background, ScenarioBackground, "background model", &st)
	}

	if cfg.WebSearch != "" && hasWebSearchTool(body) {
		return finalize(ctx, rc, body, cfg.WebSearch, ScenarioWebSearch, "web search tool", &st)
	}

	if cfg.Think != "" && isTruthy(body.Thinking) {
		return finalize(ctx, rc, body, cfg.Think, ScenarioThink, "think mode", &st)
	}

	st = stateResolving
	if model, ok := identityRouting(ctx, rc, body, &st); ok {
		return finalize(ctx, rc, body, model, ScenarioDefault, "identity routing", &st)
	}

	st = stateDefaulting
	fallback := cfg.Default
	reason := "configured default"
	if fallback == "" {
		fallback = hardFallbackModel
		reason = "hardcoded fallback"
	}
	return finalize(ctx, rc, body, fallback, ScenarioDefault, reason, &st)
}

// resolveSessionProjectFolder resolves the project folder a session belongs
// to, consulting the session->project-folder cache first and falling back
// to a filesystem search of ClaudeProjectsRoot on a miss. The outcome -
// including "searched, not found" - is cached so repeated calls for the
// same session never re-walk the filesystem.
func resolveSessionProjectFolder(ctx context.Context, rc *RouterContext, sessionID string) string {
	if rc.Caches != nil {
		if folder, ok := rc.Caches.SessionProjectCache.Get(sessionID); ok {
			return folder
		}
	}
	if rc.ClaudeProjectsRoot == "" {
		return ""
	}
	folder := sessioncache.FindSessionProjectFolder(ctx, rc.ClaudeProjectsRoot, sessionID)
	if rc.Caches != nil {
		rc.Caches.SessionProjectCache.Set(sessionID, folder)
	}
	return folder
}

func finalize(
	ctx context.Context,
	rc *RouterContext,
	body *ccrreq.Body,
	model string,
	scenario ScenarioType,
	reason string,
	st *state,
) Decision {
	*st = stateDone
	body.Model = model
	d := Decision{Model: model, ScenarioType: scenario, Reason: reason}
	if rc.Events != nil {
		rc.Events.RoutingDecided(ctx, DecisionEvent{
			Model:        model,
			ScenarioType: scenario,
			SessionID:    identity.ExtractSessionId(body),
			Reason:       reason,
		})
	}
	return d
}

// directModel implements step 1: body.Model already contains a comma.
func directModel(ctx context.Context, rc *RouterContext, body *ccrreq.Body) (string, bool) {
	if !strings.Contains(body.Model, ",") {
		return "", false
	}
	if validate.IsValidModelString(body.Model) {
		normalized := normalizeCasing(ctx, rc, body.Model)
		return normalized, true
	}
	return body.Model, true
}

// normalizeCasing looks up the configured providers/models for a
// case-insensitive match and returns the canonical casing, falling back to
// the raw value when no configured match exists.
func normalizeCasing(ctx context.Context, rc *RouterContext, raw string) string {
	if rc.Config == nil {
		return raw
	}
	if canonical, ok := rc.Config.Get(ctx, strings.ToLower(raw)); ok && canonical != "" {
		return canonical
	}
	return raw
}

// longContext implements step 2.
func longContext(ctx context.Context, rc *RouterContext, cfg RouterConfig, body *ccrreq.Body) (string, bool) {
	if cfg.LongContext == "" {
		return "", false
	}
	threshold := cfg.longContextThresholdOrDefault()
	tokenCount := countTokens(ctx, rc, requestText(body))
	if tokenCount > threshold {
		return cfg.LongContext, true
	}
	if rc.PreviousInputTokens > threshold && tokenCount > 20000 {
		return cfg.LongContext, true
	}
	return "", false
}

func requestText(body *ccrreq.Body) string {
	var parts []string
	for _, s := range body.System {
		parts = append(parts, s.Text)
	}
	for _, m := range body.Messages {
		parts = append(parts, m.Content.Texts()...)
	}
	return strings.Join(parts, "\n")
}

func isBackgroundModel(model string) bool {
	lower := strings.ToLower(model)
	return strings.Contains(lower, "claude") && strings.Contains(lower, "haiku")
}

func hasWebSearchTool(body *ccrreq.Body) bool {
	for _, t := range body.Tools {
		if strings.HasPrefix(t.Type, "web_search") {
			return true
		}
	}
	return false
}

func isTruthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// identityRouting implements steps 7-8: workflow inheritance pre-check then
// agent/workflow identity resolution through the registry and cache.
func identityRouting(ctx context.Context, rc *RouterContext, body *ccrreq.Body, st *state) (string, bool) {
	combined := requestText(body)
	if !strings.Contains(combined, "CCR-") {
		return "", false
	}

	rid := identity.ExtractRoutingId(body)
	if rid == nil {
		return "", false
	}
	sessionID := identity.ExtractSessionId(body)

	if rid.Kind == identity.KindWorkflow && rc.Registry != nil {
		if projectID, ok, _ := rc.Registry.DetectProjectByWorkflowId(ctx, rid.ID); ok {
			if project, _ := rc.Registry.GetProject(ctx, projectID); project != nil {
				for _, w := range project.Workflows {
					if w.ID == rid.ID && w.ModelInheritance == string(validate.InheritanceInherit) {
						return "", false
					}
				}
			}
		}
	}

	if rc.Registry == nil {
		return "", false
	}

	*st = stateCacheLookup
	kind := string(rid.Kind)
	projectID, resolved := resolveProjectID(ctx, rc, rid)

	if resolved {
		if model, ok := lookupCached(rc, sessionID, kind, projectID, rid.ID); ok {
			return model, true
		}
	}

	*st = stateRegistryLookup
	if resolved {
		if model, ok := lookupRegistry(ctx, rc, rid, projectID); ok {
			if rc.Caches != nil {
				rc.Caches.ModelCache.Set(sessioncache.ModelCacheKey(sessionID, kind, projectID, rid.ID), model)
			}
			return model, true
		}
	}

	if !resolved && rid.Kind == identity.KindAgent {
		*st = stateAutoRegister
		if model, ok := autoRegisterAndResolve(ctx, rc, rid, sessionID); ok {
			return model, true
		}
	}

	return "", false
}

func resolveProjectID(ctx context.Context, rc *RouterContext, rid *identity.RoutingID) (string, bool) {
	if rid.Kind == identity.KindWorkflow {
		id, ok, _ := rc.Registry.DetectProjectByWorkflowId(ctx, rid.ID)
		return id, ok
	}
	id, ok, _ := rc.Registry.DetectProject(ctx, rid.ID)
	return id, ok
}

func lookupCached(rc *RouterContext, sessionID, kind, projectID, identityID string) (string, bool) {
	if rc.Caches == nil {
		return "", false
	}
	key := sessioncache.ModelCacheKey(sessionID, kind, projectID, identityID)
	return rc.Caches.ModelCache.Get(key)
}

func lookupRegistry(ctx context.Context, rc *RouterContext, rid *identity.RoutingID, projectID string) (string, bool) {
	if rid.Kind == identity.KindWorkflow {
		model, ok, _ := rc.Registry.GetModelByWorkflowId(ctx, rid.ID, projectID)
		return model, ok
	}
	model, ok, _ := rc.Registry.GetModelByAgentId(ctx, rid.ID, projectID)
	return model, ok
}

func autoRegisterAndResolve(ctx context.Context, rc *RouterContext, rid *identity.RoutingID, sessionID string) (string, bool) {
	if rc.AgentSearchRoot == "" {
		return "", false
	}
	path, found := registry.FindAgentFileById(ctx, rid.ID, rc.AgentSearchRoot)
	if !found {
		return "", false
	}
	project, err := rc.Registry.AutoRegisterFromAgentFile(ctx, path)
	if err != nil || project == nil {
		return "", false
	}
	if model, ok := lookupRegistry(ctx, rc, rid, project.ID); ok {
		if rc.Caches != nil {
			rc.Caches.ModelCache.Set(sessioncache.ModelCacheKey(sessionID, string(rid.Kind), project.ID, rid.ID), model)
		}
		return model, true
	}
	return "", false
}
