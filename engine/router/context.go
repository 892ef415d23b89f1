// Package router implements the request-routing decision engine: given a
// parsed chat-completion request, it walks a strictly ordered priority
// chain and returns the provider,model pair (plus a scenario tag) that the
// request should be sent to. It never returns an error to its caller — any
// internal failure is caught, logged, and downgraded to the configured (or
// hardcoded) default.
package router

import (
	"context"

	"github.com/ccrouter/ccr/engine/ccrreq"
	"github.com/ccrouter/ccr/engine/registry"
	"github.com/ccrouter/ccr/engine/sessioncache"
)

// hardFallbackModel is returned when even Router.default is unconfigured.
const hardFallbackModel = "anthropic,claude-sonnet-4"

// ConfigService is the subset of the configuration layer the router reads.
// Get resolves a lowercased "provider,model" key against the configured
// providers list, used only for the direct-model-field casing step; GetAll
// returns the effective RouterConfig after project-level overrides have
// been merged over the global one.
type ConfigService interface {
	Get(ctx context.Context, key string) (string, bool)
	GetAll(ctx context.Context) RouterConfig
}

// TokenizerService counts tokens in text. An external tokenizer
// (pkg/tokenizer, backed by tiktoken) is the expected implementation; a
// nil TokenizerService makes the router fall back to FallbackTokenCount.
type TokenizerService interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// EventSink receives routing decisions for observability. Optional.
type EventSink interface {
	RoutingDecided(ctx context.Context, event DecisionEvent)
}

// DecisionEvent is emitted once per routing decision when an EventSink is
// configured.
type DecisionEvent struct {
	Model        string
	ScenarioType ScenarioType
	SessionID    string
	Reason       string
}

// CustomRouter is a configurable external decider invoked before the
// internal priority chain. A non-empty return wins immediately.
type CustomRouter func(ctx context.Context, body *ccrreq.Body) (string, error)

// RouterContext bundles everything a routing Decide call needs beyond the
// request itself.
type RouterContext struct {
	Config              ConfigService
	Tokenizer           TokenizerService
	Events              EventSink
	Custom              CustomRouter
	Registry            *registry.Store
	Caches              *sessioncache.Caches
	Metrics             *Metrics // optional, set when CCR_PERFORMANCE_MONITORING=true
	ClaudeProjectsRoot  string   // root for session->project-folder search
	AgentSearchRoot     string   // root for FindAgentFileById auto-registration
	PreviousInputTokens int      // previous request's input_tokens in this session, if known
}

// RouterConfig is the external, consumed configuration shape: the model
// assigned to each named scenario plus the long-context threshold.
type RouterConfig struct {
	Default              string
	Background           string
	Think                string
	LongContext          string
	WebSearch            string
	LongContextThreshold int
}

func (c RouterConfig) longContextThresholdOrDefault() int {
	if c.LongContextThreshold > 0 {
		return c.LongContextThreshold
	}
	return 60000
}
